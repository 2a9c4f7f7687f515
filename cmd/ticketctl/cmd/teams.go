package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-router/internal/app"
)

var teamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "List directory teams and topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			teams, err := a.Directory.ListTeams(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTEAM\tON SUPPORT\tSCHEDULE\tISSUES\tTOPICS")
			for _, t := range teams {
				topics, err := a.Directory.ListTopicsForTeam(cmd.Context(), t.ID)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(topics))
				for _, tp := range topics {
					names = append(names, tp.ID)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
					t.ID, t.Display, strings.Join(t.OnSupportUsers, ","), t.PagerDutySchedule, t.GitHubEnabled, strings.Join(names, ","))
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(teamsCmd)
}
