package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/edvin/mariaback/internal/backup"
	"github.com/edvin/mariaback/internal/mariadb"
)

func newNowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Run every configured backup immediately",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}

			orch := backup.NewOrchestrator(a.logger, a.runner, a.dumper, a.cfg.Servers)
			sum := orch.RunAll(cmd.Context(), func(u mariadb.Unit, err error) {
				if err != nil {
					color.Red("  failed  %s/%s: %v", u.Host, u.Database, err)
				} else {
					color.Green("  ok      %s/%s", u.Host, u.Database)
				}
			})

			if sum.Skipped > 0 {
				color.Red("  skipped %d server(s): database discovery failed", sum.Skipped)
			}
			if sum.Failed > 0 {
				return fmt.Errorf("%d of %d backups failed", sum.Failed, sum.Ran)
			}
			if sum.Skipped > 0 {
				return fmt.Errorf("discovery failed on %d of %d servers", sum.Skipped, len(a.cfg.Servers))
			}
			color.Green("All %d backups completed.", sum.Ran)
			return nil
		},
	}
}
