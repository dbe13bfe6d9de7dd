package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/zzxtbeta/arixv-fetcher/internal/model"
	"github.com/zzxtbeta/arixv-fetcher/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect and manage ingestion sessions",
	Long:  "Commands for listing, viewing, resuming, and cleaning up ingestion sessions.",
}

// -- sessions list --

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingestion sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		sessions, err := st.ListSessions(ctx, store.SessionFilter{
			Status: model.SessionStatus(status),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return eris.Wrap(err, "sessions list")
		}

		if len(sessions) == 0 {
			fmt.Fprintln(os.Stderr, "No sessions found.")
			return nil
		}

		formatSessionsList(os.Stdout, sessions)
		return nil
	},
}

// -- sessions show --

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show full details of a session, including per-paper items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		details, err := st.GetSessionDetails(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "sessions show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(details)
	},
}

// -- sessions resume --

var sessionsResumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Re-run the unfinished papers of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		sum, err := e.Service.Resume(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "sessions resume")
		}
		return printSummary(sum)
	},
}

// -- sessions delete --

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its item records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		if err := st.DeleteSession(ctx, args[0]); err != nil {
			return eris.Wrap(err, "sessions delete")
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

// -- sessions cleanup --

var sessionsCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete sessions older than the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		olderThan, _ := cmd.Flags().GetDuration("older-than")
		n, err := st.DeleteSessionsOlderThan(ctx, olderThan)
		if err != nil {
			return eris.Wrap(err, "sessions cleanup")
		}
		fmt.Printf("Deleted %d session(s)\n", n)
		return nil
	},
}

func init() {
	sessionsListCmd.Flags().String("status", "", "filter by session status (created, processing, completed, partially_failed, failed, api_quota_exhausted)")
	sessionsListCmd.Flags().Int("limit", 50, "max number of sessions to display")
	sessionsListCmd.Flags().Int("offset", 0, "number of sessions to skip")

	sessionsResumeCmd.Flags().StringVar(&flagPolicy, "policy", "fill-missing", "merge policy for re-enriched fields (fill-missing or overwrite)")
	sessionsResumeCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "enrichment worker count (default from config)")

	sessionsCleanupCmd.Flags().Duration("older-than", 30*24*time.Hour, "delete sessions not updated within this window")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsResumeCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsCleanupCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// formatSessionsList writes a tabular list of sessions to w.
func formatSessionsList(out io.Writer, sessions []model.Session) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tTOTAL\tDONE\tFAILED\tPENDING\tINSERTED\tSKIPPED\tCREATED")
	for _, s := range sessions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			s.ID, s.Status, s.TotalPapers, s.CompletedPapers, s.FailedPapers,
			s.PendingPapers, s.TotalInserted, s.TotalSkipped,
			s.CreatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
