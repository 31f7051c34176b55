package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/egress-lab/evacsim/internal/config"
	"github.com/egress-lab/evacsim/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "evacsim",
	Short: "Evacuation scenario generation",
	Long:  `Composites crowd images into facility backdrops and renders calm and rapid egress scenarios through an image synthesis service.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return errors.Wrap(err, "config load failed")
		}
		cfg = c
		setLogLevel(cfg.LogLevel)
		return nil
	},
}

// cfg is loaded once before any subcommand runs
var cfg *config.Config

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("asset-dir", "images", "Directory holding the facility and crowd collections")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("sqlite-path", ".artifacts/runs.db", "SQLite run ledger path")
	rootCmd.PersistentFlags().String("fsm-db-path", ".artifacts/fsm.db", "FSM BoltDB path")
	rootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket for uploaded assets")
	rootCmd.PersistentFlags().String("s3-region", "us-east-1", "S3 region")
	rootCmd.PersistentFlags().String("s3-endpoint", "", "S3-compatible endpoint (path-style addressing)")
	rootCmd.PersistentFlags().String("model-id", config.DefaultModelID, "Synthesis model id")
	rootCmd.PersistentFlags().Int64("max-file-size", 25*1024*1024, "Max asset size in bytes")

	for _, key := range []string{
		"asset-dir",
		"log-level",
		"sqlite-path",
		"fsm-db-path",
		"s3-bucket",
		"s3-region",
		"s3-endpoint",
		"model-id",
		"max-file-size",
	} {
		viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(key))
	}
}

func setLogLevel(level string) {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l})))
}
