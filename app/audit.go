package app

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/adopsbot/adopsbot/internal/db"
	"github.com/adopsbot/adopsbot/internal/db/controller/auditlog"
	"github.com/adopsbot/adopsbot/internal/db/models"
)

func init() { //nolint: gochecknoinits
	auditListCmd.Flags().Int64Var(&auditFilter.Identity, "identity", 0, "only entries of this chat identity")
	auditListCmd.Flags().StringVar(&auditFilter.Action, "action", "", "only entries of this action")
	auditListCmd.Flags().StringVar(&auditFilter.Outcome, "outcome", "", "only entries with this outcome: success, denied or error")
	auditListCmd.Flags().DurationVar(&auditSince, "since", 0, "only entries newer than this, e.g. 24h")
	auditListCmd.Flags().IntVar(&auditFilter.Limit, "limit", 0, "maximum number of entries (default 50)")

	auditPurgeCmd.Flags().DurationVar(&auditOlderThan, "older-than", 90*24*time.Hour, "remove entries older than this") //nolint: mnd

	auditCmd.AddCommand(auditListCmd, auditPurgeCmd)
	rootCmd.AddCommand(auditCmd)
}

var (
	auditFilter    auditlog.Filter
	auditSince     time.Duration
	auditOlderThan time.Duration

	auditCmd = &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit trail stored in the database",
	}

	auditListCmd = &cobra.Command{
		Use:     "list",
		Short:   "List audit entries, newest first",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(func(gdb *gorm.DB) error {
				if auditSince > 0 {
					auditFilter.Since = time.Now().Add(-auditSince)
				}

				entries, err := auditlog.List(gdb, auditFilter)
				if err != nil {
					return err //nolint:wrapcheck
				}

				return printEntries(cmd.OutOrStdout(), entries)
			})
		},
	}

	auditPurgeCmd = &cobra.Command{
		Use:     "purge",
		Short:   "Remove old audit entries",
		PreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(func(gdb *gorm.DB) error {
				n, err := auditlog.Purge(gdb, time.Now().Add(-auditOlderThan))
				if err != nil {
					return err //nolint:wrapcheck
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)

				return nil
			})
		},
	}
)

func withDB(fn func(*gorm.DB) error) error {
	gdb, err := db.Open(&cfg.DB)
	if err != nil {
		return err //nolint:wrapcheck
	}

	defer func() {
		if sqlDB, errDB := gdb.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	}()

	return fn(gdb)
}

func printEntries(out io.Writer, entries []models.AuditEntry) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "TIME\tACTION\tIDENTITY\tLOGIN\tOUTCOME\tTARGET\tDETAIL")

	for _, e := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			e.OccurredAt.Format(time.RFC3339), e.Action, e.Identity, e.Login, e.Outcome, e.Target, e.Detail)
	}

	return w.Flush() //nolint:wrapcheck
}
