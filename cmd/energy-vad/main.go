package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/skypro1111/energy-vad/internal/config"
)

const (
	serviceName    = "energy-vad"
	serviceVersion = "1.0.0"
)

// Shared CLI flags
var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd configures the root command with all subcommands and flags
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   serviceName,
		Short: "Energy based GMM voice activity detector",
		Long: `energy-vad labels every sample of a mono WAV file as speech or non-speech.

Frame energies are modelled with a gaussian mixture fitted by EM; frames the
lowest-mean component does not explain are speech. The per-sample mask is
cleaned with a morphological closing followed by an opening.`,
		Version:      serviceVersion,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults)")

	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(augmentCmd())
	rootCmd.AddCommand(serveCmd())

	return rootCmd
}

// loadConfig loads the configuration named by --config and the logger it describes
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, initLogger(cfg.Logging), nil
}

// initLogger creates and configures the structured logger based on configuration
func initLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// stdout carries command output, so logs default to stderr
	var output io.Writer
	switch cfg.Output {
	case "stderr", "":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to open log file %s: %v, falling back to stderr\n", cfg.Output, err)
			output = os.Stderr
		} else {
			output = file
		}
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	return slog.New(handler)
}
