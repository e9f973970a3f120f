package cli

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "mariaback",
	Short: "Scheduled MariaDB logical backups with retention and restore",
	Long: `mariaback dumps MariaDB databases through mariadb-dump | gzip pipelines,
prunes old artifacts under count and size bounds, and restores any stored
backup on demand. Run the daemon for scheduled backups or invoke the
one-shot commands directly.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default ./config.yml, then /etc/mariaback/config.yml)")

	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newNowCommand())
	rootCmd.AddCommand(newRestoreCommand())
	rootCmd.AddCommand(newDaemonCommand())
}
