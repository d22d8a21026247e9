package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/semmidev/dbkeeper/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily backup and report jobs until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return a.Run(ctx)
		})
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run one backup now",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			return a.Backup(ctx)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(backupCmd)
}
