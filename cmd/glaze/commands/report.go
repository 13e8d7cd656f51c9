package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/glazeui/glaze/pkg/stores"
)

func newReportCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize recorded transition history",
		Long: `Report reads the transition history database (--db) and prints an
aggregate summary followed by the most recent transitions.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return reportHistory(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of recent transitions to show")

	return cmd
}

func reportHistory(cmd *cobra.Command, limit int) error {
	if dbPath == "" {
		return fmt.Errorf("report requires --db")
	}

	ctx := cmd.Context()

	store, err := stores.Open(ctx, stores.Config{Path: dbPath})
	if err != nil {
		return fmt.Errorf("open history store: %w", err)
	}
	defer store.Close()

	summary, err := store.Summarize(ctx)
	if err != nil {
		return fmt.Errorf("summarize history: %w", err)
	}

	rows, err := store.ListTransitions(ctx, limit, 0)
	if err != nil {
		return fmt.Errorf("list transitions: %w", err)
	}

	if jsonOutput {
		out := struct {
			Summary *stores.Summary         `json:"summary"`
			Recent  []*stores.TransitionRow `json:"recent"`
		}{Summary: summary, Recent: rows}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Transition history (%s)\n", dbPath)
	fmt.Printf("  Total:       %d\n", summary.Total)
	fmt.Printf("  Completed:   %d\n", summary.Completed)
	fmt.Printf("  Cancelled:   %d\n", summary.Cancelled)
	fmt.Printf("  Failed:      %d\n", summary.Failed)
	fmt.Printf("  Avg time:    %.1fms\n", summary.AvgDurationMs)
	fmt.Printf("  Violations:  %d\n", summary.TotalViolations)

	if len(rows) == 0 {
		fmt.Println("\nNo transitions recorded.")
		return nil
	}

	fmt.Printf("\nRecent transitions:\n")
	for _, row := range rows {
		fmt.Printf("  %s  %-28s %-10s %5dms  %d updates  %s\n",
			row.StartedAt.Local().Format(time.RFC3339),
			row.Descriptor,
			row.Status,
			row.DurationMs,
			row.UpdateCount,
			row.SessionID[:8])
	}
	return nil
}
