package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/edvin/mariaback/internal/backup"
)

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored backups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(true)
			if err != nil {
				return err
			}

			groups, err := backup.ListAll(a.cfg.Storage.Path)
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				color.Yellow("No backups found in %s", a.cfg.Storage.Path)
				return nil
			}

			header := color.New(color.FgCyan, color.Bold)
			header.Printf("%-28s %-44s %12s  %s\n", "Host", "Backup", "Size", "Modified")
			fmt.Println(strings.Repeat("-", 108))

			for _, g := range groups {
				for _, art := range g.Artifacts {
					fmt.Printf("%-28s %-44s %9.2f MB  %s\n",
						g.Host, art.Name,
						float64(art.Size)/(1024*1024),
						art.ModTime.Format("2006-01-02 15:04:05"))
				}
			}

			fmt.Println()
			color.New(color.Faint).Println("Restore with: mariaback restore <host>/<backup>")
			return nil
		},
	}
}
