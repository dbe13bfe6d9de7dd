package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/zzxtbeta/arixv-fetcher/internal/ingest"
)

var (
	fetchDays       int
	fetchFrom       string
	fetchTo         string
	fetchCategories []string
	fetchMaxResults int
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and ingest papers from a submission window",
	Long:  "Searches arXiv for papers submitted or updated in the given window, enriches them, and persists them under a new session.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		maxResults := fetchMaxResults
		if maxResults <= 0 {
			maxResults = cfg.Arxiv.MaxResults
		}

		var sum *ingest.Summary
		if fetchFrom != "" || fetchTo != "" {
			start, end, err := parseFetchRange(fetchFrom, fetchTo)
			if err != nil {
				return err
			}
			sum, err = e.Service.FetchRange(ctx, fetchCategories, start, end, maxResults)
			if err != nil {
				return err
			}
		} else {
			sum, err = e.Service.FetchWindow(ctx, fetchCategories, fetchDays, maxResults)
			if err != nil {
				return err
			}
		}

		return printSummary(sum)
	},
}

var fetchByIDCmd = &cobra.Command{
	Use:   "fetch-by-id <arxiv-id> [arxiv-id...]",
	Short: "Fetch and ingest an explicit list of arXiv ids",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		sum, err := e.Service.FetchByIDs(ctx, args)
		if err != nil {
			return err
		}
		return printSummary(sum)
	},
}

func parseFetchRange(from, to string) (time.Time, time.Time, error) {
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, eris.New("--from and --to must be set together")
	}
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrapf(err, "parse --from %q", from)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return time.Time{}, time.Time{}, eris.Wrapf(err, "parse --to %q", to)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, eris.Errorf("--to %s is before --from %s", to, from)
	}
	// Make the end date inclusive.
	return start, end.Add(24*time.Hour - time.Minute), nil
}

func printSummary(sum *ingest.Summary) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

func init() {
	fetchCmd.Flags().IntVar(&fetchDays, "days", 7, "look-back window in days")
	fetchCmd.Flags().StringVar(&fetchFrom, "from", "", "window start date (YYYY-MM-DD, overrides --days)")
	fetchCmd.Flags().StringVar(&fetchTo, "to", "", "window end date (YYYY-MM-DD, inclusive)")
	fetchCmd.Flags().StringSliceVar(&fetchCategories, "categories", []string{"cs.AI"}, "arXiv categories to search")
	fetchCmd.Flags().IntVar(&fetchMaxResults, "max-results", 0, "cap on fetched papers (default from config)")
	fetchCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "enrichment worker count (default from config)")
	fetchByIDCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "enrichment worker count (default from config)")

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(fetchByIDCmd)
}
