package app

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/adopsbot/adopsbot/internal/daemon"
	"github.com/adopsbot/adopsbot/internal/permission"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(syncCmd)
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Run one permission sync cycle and print the resulting table",
	PreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := syncOnce(cmd)
		if err != nil {
			return err
		}

		return printRecords(cmd.OutOrStdout(), store.All())
	},
}

// syncOnce builds a store and fills it with one cycle.
func syncOnce(cmd *cobra.Command) (*permission.Store, error) {
	store, job, err := daemon.Permissions(&cfg, prometheus.NewRegistry())
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	n, err := job.SyncNow(cmd.Context())
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "synchronized %d identities\n", n)

	return store, nil
}

func printRecords(out io.Writer, records []permission.Record) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "IDENTITY\tLOGIN\tCAPABILITIES")

	for _, r := range records {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", r.Identity, r.Login, r.Capabilities)
	}

	return w.Flush() //nolint:wrapcheck
}
