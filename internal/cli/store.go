package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmarchuk/newsloom/internal/store"
)

var (
	storeType      string
	storePattern   string
	storeLimit     int
	storeTimeframe string
	storeAsJSON    bool
)

// storeCmd groups the aggregation-store queries
var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Query the artifact store across runs",
}

var storeMergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge matching artifacts into one deduplicated item set",
	Long: `Merge selects artifacts newest first, concatenates their items and
deduplicates by stable item id, with the most recent copy winning.

Example:
  newsloom store merge --type claims --limit 10
  newsloom store merge --type articles --pattern '2026*' --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, contentType, err := openStore()
		if err != nil {
			return err
		}

		merged, err := s.LoadAndMerge(storePattern, contentType, storeLimit)
		if err != nil {
			return err
		}

		if storeAsJSON {
			return printJSON(merged)
		}

		fmt.Printf("Merged %d items from %d artifacts\n",
			merged.Provenance.ItemCount, merged.Provenance.FileCount)
		if !merged.Provenance.Oldest.IsZero() {
			fmt.Printf("Span: %s to %s\n",
				merged.Provenance.Oldest.Format("2006-01-02 15:04"),
				merged.Provenance.Newest.Format("2006-01-02 15:04"))
		}
		for _, item := range merged.Items {
			fmt.Printf("  %s  %s\n", item.ID, item.CreatedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics, recomputed from disk",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		s, err := store.New(cfg.Store.Dir, nil)
		if err != nil {
			return err
		}

		stats, err := s.GetStatistics()
		if err != nil {
			return err
		}

		if storeAsJSON {
			return printJSON(stats)
		}

		fmt.Printf("Store: %s\n", s.Dir())
		fmt.Printf("%-14s %-8s %-8s %-12s %s\n", "TYPE", "FILES", "ITEMS", "BYTES", "LATEST")
		for _, contentType := range []store.ContentType{store.ContentCrawledRaw, store.ContentClaims, store.ContentArticles} {
			ts, ok := stats.ByType[contentType]
			if !ok {
				continue
			}
			latest := ""
			if !ts.Latest.IsZero() {
				latest = ts.Latest.Format("2006-01-02 15:04")
			}
			fmt.Printf("%-14s %-8d %-8d %-12d %s\n",
				contentType, ts.FileCount, ts.ItemCount, ts.TotalBytes, latest)
		}
		fmt.Printf("Total: %d files, %d bytes\n", stats.TotalFiles, stats.TotalBytes)
		return nil
	},
}

var storeTimelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Bucket artifacts into calendar periods",
	Long: `Timeline aggregates stored items into calendar-aligned daily, weekly
or monthly buckets, newest first.

Example:
  newsloom store timeline --type claims --timeframe daily --limit 7`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, contentType, err := openStore()
		if err != nil {
			return err
		}

		buckets, err := s.AggregateByTimeframe(contentType, store.Timeframe(storeTimeframe), storeLimit)
		if err != nil {
			return err
		}

		if storeAsJSON {
			return printJSON(buckets)
		}

		if len(buckets) == 0 {
			fmt.Println("No artifacts found.")
			return nil
		}
		for _, bucket := range buckets {
			fmt.Printf("%-12s %d items\n", bucket.Period, bucket.ItemCount)
		}
		return nil
	},
}

func openStore() (*store.Store, store.ContentType, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}

	contentType := store.ContentType(storeType)
	if !contentType.Valid() {
		return nil, "", fmt.Errorf("unknown content type %q (crawled-raw, claims, articles)", storeType)
	}

	s, err := store.New(cfg.Store.Dir, nil)
	if err != nil {
		return nil, "", err
	}
	return s, contentType, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storeMergeCmd)
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeTimelineCmd)

	storeCmd.PersistentFlags().StringVar(&storeType, "type", "claims", "content type (crawled-raw, claims, articles)")
	storeCmd.PersistentFlags().IntVar(&storeLimit, "limit", 0, "limit artifacts or periods (0 = no limit)")
	storeCmd.PersistentFlags().BoolVar(&storeAsJSON, "json", false, "print JSON")
	storeMergeCmd.Flags().StringVar(&storePattern, "pattern", "*", "filename pattern to match")
	storeTimelineCmd.Flags().StringVar(&storeTimeframe, "timeframe", "daily", "daily, weekly or monthly")
}
