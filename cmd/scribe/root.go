package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/scribe"
	"github.com/aretw0/scribe/internal/platform"
)

var (
	verbose    bool
	configPath string
	uriFlag    string

	cfg = platform.DefaultConfig()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "A note session engine with debounced autosave and an optimistic cache",
	Long: `Scribe edits rich-text notes organized by subject.
Edits are saved after a quiet period or on Ctrl+S, against a local SQLite
database or a remote Scribe server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}

		level, _ := platform.ParseLevel(cfg.Log.Level)
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to scribe.yaml (default: searched upwards from the working directory)")
	rootCmd.PersistentFlags().StringVar(&uriFlag, "uri", "", "Repository address: a SQLite path, :memory: or an http(s) server URL")
}

// loadConfig reads the explicit --config file, or the first scribe.yaml found
// upwards from the working directory. A missing file keeps the defaults.
func loadConfig() error {
	path := configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		found, err := scribe.FindConfig(wd)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		path = found
	}

	loaded, err := scribe.LoadConfig(path)
	if err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// repositoryURI applies the --uri override to the configuration.
func repositoryURI() string {
	if uriFlag != "" {
		return uriFlag
	}
	return cfg.URI()
}

// engineOptions returns the options shared by the commands that open an
// engine. Without --uri the configured adapter applies.
func engineOptions(extra ...scribe.Option) []scribe.Option {
	opts := append([]scribe.Option{scribe.WithLogger(slog.Default())}, cfg.Options()...)
	if uriFlag != "" {
		opts = append(opts, scribe.WithAdapter(platform.DetectAdapter(uriFlag)))
	}
	return append(opts, extra...)
}
