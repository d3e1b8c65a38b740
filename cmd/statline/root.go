// Package main provides the CLI entrypoint for statline.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/statline/internal/config"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		socketPath string
		configPath string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "statline",
	Short: "Status bar client for the statlined daemon",
	Long: `statline talks to a running statlined daemon over its unix socket.

Running statline without a subcommand subscribes to the daemon and
streams rendered status lines to stdout, ready for piping into a bar.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.Load(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	// Default to subscribing when no subcommand is provided.
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubscribe(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.socketPath, "socket", "",
		"Daemon socket path (default: $XDG_RUNTIME_DIR/statline.sock)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/statline/statlined.toml)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	// Log to stderr so stdout is clean for the bar.
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// socketPath resolves the daemon socket, preferring the flag over config.
func socketPath() string {
	if globalOpts.socketPath != "" {
		return globalOpts.socketPath
	}
	if cfg != nil && cfg.Daemon.Socket != "" {
		return cfg.Daemon.Socket
	}
	return config.DefaultSocketPath()
}

func main() {
	Execute()
}
