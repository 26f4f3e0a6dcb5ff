package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cetcompare/internal/config"
)

var (
	cfgFile  string
	dataDir  string
	apiURL   string
	logLevel string
	useLocal bool

	cfg *config.Config
	log = zap.NewNop()

	rootCmd = &cobra.Command{
		Use:   "cetcompare",
		Short: "CET Compare - Compare Maharashtra CET college cutoffs",
		Long: `CET Compare compares closing cutoffs of up to three Maharashtra CET
engineering colleges for one branch across admission years, and answers
admission questions through an assistant.

When run without commands, it launches an interactive TUI.
Use subcommands for CLI mode with JSON output.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand specified - launch TUI
			return LaunchTUI(cmd.Context(), cfg, useLocal)
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Config file (default ./cetcompare.yaml when present)")
	flags.StringVarP(&dataDir, "data-dir", "d", "", "Directory holding cutoff_trends/ and the database")
	flags.StringVar(&apiURL, "api-url", "", "Backend API base URL")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&useLocal, "local", false, "Read the local database instead of calling the backend")
}

// loadConfig resolves configuration and flag overrides, then opens the log.
func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		loaded.DataDir = dataDir
	}
	if flags.Changed("api-url") {
		loaded.Client.APIURL = apiURL
		loaded.Client.CompareURL = ""
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = logLevel
	}
	if err := loaded.Finalize(); err != nil {
		return err
	}
	cfg = loaded

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	l, err := SetupLogger(cfg.DataDir, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to setup logger: %v\n", err)
		return nil
	}
	log = l
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
