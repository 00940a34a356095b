package cli

import (
	"context"
	"fmt"

	"rekoda/internal/storage"

	"github.com/spf13/cobra"
)

var failuresLimit int

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "List the most common open failure patterns",
	RunE:  runFailures,
}

func init() {
	failuresCmd.Flags().IntVar(&failuresLimit, "limit", 20, "maximum patterns to show")
	rootCmd.AddCommand(failuresCmd)
}

func runFailures(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	failureRepo := storage.NewFailureRepository(db)

	patterns, err := failureRepo.CommonPatterns(ctx, failuresLimit)
	if err != nil {
		return fmt.Errorf("list failure patterns: %w", err)
	}
	if len(patterns) == 0 {
		fmt.Println("No open failures")
		return nil
	}

	fmt.Printf("%-22s %-24s %s\n", "CATEGORY", "CODE", "COUNT")
	for _, p := range patterns {
		fmt.Printf("%-22s %-24s %d\n", p.Category, p.Code, p.Count)
	}
	return nil
}
