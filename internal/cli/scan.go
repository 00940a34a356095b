package cli

import (
	"context"
	"fmt"

	"rekoda/internal/config"
	"rekoda/internal/library"
	"rekoda/internal/storage"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [root...]",
	Short: "Register video files found under the given roots",
	Long: `Scan walks the given directories (or the configured libraries when
none are given) and registers every video file not yet tracked, in the
needs_analysis state.`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	roots := args
	if len(roots) == 0 {
		roots = cfg.Libraries
	}
	if len(roots) == 0 {
		return fmt.Errorf("no roots given and no libraries configured")
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	videos := storage.NewVideoRepository(db)
	scanner := library.NewScanner(videos, logger)

	n, err := scanner.Scan(context.Background(), roots)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	fmt.Printf("Registered %d new files\n", n)
	return nil
}
