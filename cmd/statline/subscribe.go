package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/statline/internal/client"
	"github.com/jmylchreest/statline/internal/render"
)

var subscribeOpts struct {
	mode          string
	retryInterval time.Duration
	maxRetries    int
}

var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Stream rendered status lines from the daemon",
	Long: `Subscribe connects to statlined and prints one rendered status line
per update, in the requested output mode.

For i3bar, add something like this to your i3 config:

    bar {
        status_command statline subscribe --mode i3
    }`,
	RunE: runSubscribe,
}

func init() {
	subscribeCmd.Flags().StringVarP(&subscribeOpts.mode, "mode", "m", "plain",
		"Output mode: lemon, i3, pango or plain")
	subscribeCmd.Flags().DurationVar(&subscribeOpts.retryInterval, "retry-interval", time.Second,
		"Initial delay between reconnect attempts")
	subscribeCmd.Flags().IntVar(&subscribeOpts.maxRetries, "max-retries", 0,
		"Give up after this many consecutive failed attempts (0 = retry forever)")
	rootCmd.AddCommand(subscribeCmd)
}

func runSubscribe(cmd *cobra.Command, _ []string) error {
	format, err := render.ParseFormat(subscribeOpts.mode)
	if err != nil {
		return err
	}

	palette, err := render.PaletteFromConfig(cfg.Format)
	if err != nil {
		return fmt.Errorf("failed to build palette: %w", err)
	}

	// The i3bar protocol wants a version header and an opening bracket
	// before the infinite array of status lines.
	if format == render.FormatI3 {
		fmt.Println(`{"version":1}`)
		fmt.Println("[")
	}

	c := client.New(client.Options{
		SocketPath:    socketPath(),
		Format:        format,
		Palette:       palette,
		RetryInterval: subscribeOpts.retryInterval,
		MaxRetries:    subscribeOpts.maxRetries,
		Logger:        logger,
	})

	err = c.Run(cmd.Context(), os.Stdout)
	if errors.Is(err, client.ErrRetriesExhausted) {
		logger.Error("giving up on daemon", "socket", socketPath(), "error", err)
	}
	return err
}
