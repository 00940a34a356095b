// Package cli provides the rekoda command-line interface.
package cli

import (
	"fmt"
	"os"

	"rekoda/internal/config"
	"rekoda/internal/storage"
	"rekoda/internal/version"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath string

	// Loaded in PersistentPreRunE, shared by subcommands.
	cfg config.Config
	db  *storage.DB
)

var rootCmd = &cobra.Command{
	Use:   "rekoda",
	Short: "Bulk video re-encoding automation",
	Long: `Rekoda tracks a video library in SQLite and drives every file
through analysis, CRF search, and encoding pipelines until the whole
library sits at the target codecs (AV1 video, Opus audio).`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// .env is optional.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		db, err = storage.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			if err := db.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: close database: %v\n", err)
			}
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
