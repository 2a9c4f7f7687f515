package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-router/internal/app"
	"github.com/spec-kit/helpdesk-router/internal/domain"
)

var oncallCmd = &cobra.Command{
	Use:   "oncall [team-id]",
	Short: "Show who a ticket would be assigned to right now",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			var entries []domain.RosterEntry
			if len(args) == 1 {
				entry, err := a.Roster.ForTeam(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				entries = []domain.RosterEntry{entry}
			} else {
				all, err := a.Roster.Overview(cmd.Context())
				if err != nil {
					return err
				}
				entries = all
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "TEAM\tASSIGNEE\tSOURCE")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Team.ID, e.Assignee.Label(e.Team), e.Assignee.Source)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(oncallCmd)
}
