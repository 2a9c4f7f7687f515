package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-router/internal/app"
)

var rosterActor string

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Edit who is on support for a team",
}

var rosterSetCmd = &cobra.Command{
	Use:   "set <team-id> [user-id...]",
	Short: "Replace a team's on-support users; no users clears the roster",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			if err := a.Roster.SetOnSupport(cmd.Context(), args[0], args[1:], rosterActor); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %s: %d user(s) on support\n", args[0], len(args)-1)
			return nil
		})
	},
}

func init() {
	rosterSetCmd.Flags().StringVar(&rosterActor, "actor", "", "Chat user id credited in the announcement")
	_ = rosterSetCmd.MarkFlagRequired("actor")
	rosterCmd.AddCommand(rosterSetCmd)
	rootCmd.AddCommand(rosterCmd)
}
