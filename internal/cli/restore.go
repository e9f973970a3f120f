package cli

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newRestoreCommand() *cobra.Command {
	var clean bool
	var yes bool

	cmd := &cobra.Command{
		Use:   "restore <host>/<backup>",
		Short: "Restore a backup into its database",
		Long: `Restore streams a stored backup back into the database it was taken
from. The target database is derived from the backup name. With --clean the
database's existing tables are dropped first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}

			target, err := a.restorer.Resolve(args[0])
			if err != nil {
				return err
			}

			if !yes {
				action := "Restore"
				if clean {
					action = "Drop all tables and restore"
				}
				var proceed bool
				prompt := &survey.Confirm{
					Message: fmt.Sprintf("%s %s into database %q on %s?", action, target.Name, target.Unit.Database, target.Unit.Host),
					Default: false,
				}
				if err := survey.AskOne(prompt, &proceed); err != nil {
					return err
				}
				if !proceed {
					color.Yellow("Restore cancelled.")
					return nil
				}
			}

			color.Blue("Restoring %s into %s on %s...", target.Name, target.Unit.Database, target.Unit.Host)
			if err := a.restorer.RunTarget(cmd.Context(), target, clean); err != nil {
				return err
			}
			color.Green("Restore completed successfully.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&clean, "clean", false, "drop existing tables in the target database first")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
