package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-router/internal/auth"
)

var (
	tokenOperator string
	tokenScopes   []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an admin API token signed with ADMIN_JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		tokens := auth.NewTokenManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTLMinutes)
		signed, expiresAt, err := tokens.GenerateToken(tokenOperator, tokenScopes)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), signed)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expiresAt.UTC().Format(time.RFC3339))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenOperator, "operator", "", "Operator name recorded in the token")
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", nil, "Granted scope; repeatable (default: all scopes)")
	_ = tokenCmd.MarkFlagRequired("operator")
	rootCmd.AddCommand(tokenCmd)
}
