package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-router/internal/api/dto"
	"github.com/spec-kit/helpdesk-router/internal/app"
)

var ticketCmd = &cobra.Command{
	Use:   "ticket <ticket-id>",
	Short: "Print the ledger row of a ticket as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			ticket, err := a.Tickets.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(dto.TicketDetail(*ticket))
		})
	},
}

func init() {
	rootCmd.AddCommand(ticketCmd)
}
