package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/semmidev/dbkeeper/internal/app"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List remote backups, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(ctx context.Context, a *app.App) error {
			objects, err := a.List(ctx)
			if err != nil {
				return err
			}
			if len(objects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No backups found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMODIFIED (UTC)\tAGE")
			for _, obj := range objects {
				fmt.Fprintf(w, "%s\t%s\t%s\n", obj.Name, obj.ModifiedAt.UTC().Format(time.DateTime), humanize.Time(obj.ModifiedAt))
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
