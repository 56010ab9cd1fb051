// Package cli provides the jobops command-line interface.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/justsurfingit/jobops-pipeline/internal/config"
	"github.com/justsurfingit/jobops-pipeline/internal/database"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	verbose bool

	cfg        config.Config
	logger     *slog.Logger
	closeLog   func() error
	db         *gorm.DB
	skipDBCmds = map[string]bool{"help": true, "version": true, "completion": true}
)

var rootCmd = &cobra.Command{
	Use:   "jobops",
	Short: "Job discovery, scoring and tailoring pipeline",
	Long: `jobops discovers job postings through pluggable extractors, scores them
against your profile and prepares tailored material for the best matches.

Run "jobops serve" for the HTTP API and daily scheduler, or "jobops run" for a
single pipeline run in the foreground.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if skipDBCmds[cmd.Name()] {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)

		db, err = database.Connect(cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(extractorsCmd)
	rootCmd.AddCommand(settingsCmd)
}

// ExitWithError prints an error message and exits with code 1.
func ExitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
