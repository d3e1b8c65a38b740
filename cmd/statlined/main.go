// Package main is the entry point for the statlined status daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmylchreest/statline/internal/config"
	"github.com/jmylchreest/statline/internal/execx"
	"github.com/jmylchreest/statline/internal/modules"
	"github.com/jmylchreest/statline/internal/render"
	"github.com/jmylchreest/statline/internal/sched"
	"github.com/jmylchreest/statline/internal/server"
	"github.com/jmylchreest/statline/internal/status"
)

// Build-time variables (set via ldflags)
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/statline/statlined.toml)")
	socketPath := flag.String("socket", "", "Unix socket path (overrides config)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("statlined version", version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(*configPath, *socketPath, logger); err != nil {
		logger.Error("statlined failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, socketOverride string, logger *slog.Logger) error {
	logger.Info("starting statlined", "version", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	palette, err := render.PaletteFromConfig(cfg.Format)
	if err != nil {
		return fmt.Errorf("failed to build palette: %w", err)
	}

	blocks, err := modules.FromConfig(cfg, modules.Deps{Runner: execx.NewRunner()})
	if err != nil {
		return fmt.Errorf("failed to build modules: %w", err)
	}
	logger.Info("modules enabled", "blocks", cfg.Blocks)

	composite := status.NewComposite(cfg.Blocks)
	scheduler := sched.New(blocks, composite, sched.Options{
		MaxWorkers:    cfg.Daemon.MaxWorkers,
		Debounce:      cfg.Daemon.Debounce.Duration(),
		MaxBackoff:    cfg.Daemon.MaxBackoff.Duration(),
		ShutdownGrace: cfg.Daemon.ShutdownGrace.Duration(),
		Logger:        logger,
	})

	socket := cfg.Daemon.Socket
	if socketOverride != "" {
		socket = socketOverride
	}
	srv := server.New(socket, composite, scheduler, palette, logger)
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Forward change signals to subscribers.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-scheduler.Changed():
				srv.Broadcast()
			}
		}
	}()

	// Hot-reload the palette when the config file changes. Module and
	// block-list changes still need a restart.
	watchPath := configPath
	if watchPath == "" {
		watchPath = config.ConfigPath()
	}
	if watchPath != "" {
		go func() {
			err := config.Watch(ctx, watchPath, logger, func(fresh *config.Config) {
				p, err := render.PaletteFromConfig(fresh.Format)
				if err != nil {
					logger.Warn("ignoring reloaded palette", "error", err)
					return
				}
				srv.SetPalette(p)
			})
			if err != nil && ctx.Err() == nil {
				logger.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	schedDone := make(chan error, 1)
	go func() { schedDone <- scheduler.Run(ctx) }()

	serveErr := srv.Serve(ctx)

	if err := <-schedDone; err != nil {
		logger.Warn("scheduler shutdown incomplete", "error", err)
	}
	if serveErr != nil {
		return serveErr
	}

	logger.Info("statlined stopped")
	return nil
}
