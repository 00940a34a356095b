package cli

import (
	"context"
	"fmt"
	"time"

	"rekoda/internal/models"
	"rekoda/internal/storage"

	"github.com/spf13/cobra"
)

var statsWindow time.Duration

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print video counts by state and failure statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().DurationVar(&statsWindow, "window", 0, "failure stats window (0 = all time)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	videos := storage.NewVideoRepository(db)
	failureRepo := storage.NewFailureRepository(db)

	counts, err := videos.CountByState(ctx)
	if err != nil {
		return fmt.Errorf("count videos: %w", err)
	}

	fmt.Println("Videos by state:")
	order := []string{
		models.StateNeedsAnalysis,
		models.StateAnalyzed,
		models.StateCRFSearched,
		models.StateEncoded,
		models.StateFailed,
	}
	var total int64
	for _, state := range order {
		fmt.Printf("  %-16s %d\n", state, counts[state])
		total += counts[state]
	}
	fmt.Printf("  %-16s %d\n", "total", total)

	stats, err := failureRepo.Stats(ctx, statsWindow)
	if err != nil {
		return fmt.Errorf("failure stats: %w", err)
	}

	fmt.Printf("\nFailures: %d total, %d unresolved\n", stats.Total, stats.Unresolved)
	if len(stats.ByCategory) > 0 {
		fmt.Println("By category:")
		for category, n := range stats.ByCategory {
			fmt.Printf("  %-20s %d\n", category, n)
		}
	}
	if len(stats.ByStage) > 0 {
		fmt.Println("By stage:")
		for stage, n := range stats.ByStage {
			fmt.Printf("  %-20s %d\n", stage, n)
		}
	}
	return nil
}
