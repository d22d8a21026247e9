package commands

import (
	"context"
	"fmt"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/semmidev/dbkeeper/internal/app"
	"github.com/semmidev/dbkeeper/internal/domain"
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the database contents with the latest remote backup",
	Long: `Downloads the newest backup and loads it into the configured database.
Every table in the target schema is dropped first. The command refuses to run
unless --confirm names the configured database.`,
	RunE: runRestore,
}

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().String("confirm", "", "name of the database to overwrite")
	restoreCmd.Flags().Bool("dry-run", false, "download and inspect only, write the wipe script but change nothing")
	restoreCmd.Flags().String("requested-by", "", "operator name recorded in the logs (default: current user)")
}

func runRestore(cmd *cobra.Command, args []string) error {
	confirm, _ := cmd.Flags().GetString("confirm")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	requestedBy, _ := cmd.Flags().GetString("requested-by")

	if requestedBy == "" {
		if u, err := user.Current(); err == nil {
			requestedBy = u.Username
		}
	}

	return withApp(func(ctx context.Context, a *app.App) error {
		err := a.Restore(ctx, domain.RestoreRequest{
			RequestedBy:     requestedBy,
			ConfirmDatabase: confirm,
			DryRun:          dryRun,
		})
		if err != nil {
			return err
		}
		if dryRun {
			fmt.Fprintln(cmd.OutOrStdout(), "Dry run complete, nothing was changed")
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Database %s restored\n", a.Descriptor().DatabaseName)
		}
		return nil
	})
}
