package modules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jmylchreest/statline/internal/config"
	"github.com/jmylchreest/statline/internal/status"
)

var brightnessIcons = [6]rune{
	'\U000F00DB', '\U000F00DC', '\U000F00DD',
	'\U000F00DE', '\U000F00DF', '\U000F00E0',
}

// The kernel pushes no events for most backlight drivers; fsnotify on
// the sysfs file covers the rest, with a slow poll as a safety net.
const brightnessInterval = time.Minute

// Brightness reports the backlight level of one card.
type Brightness struct {
	baseDir string
}

// NewBrightness creates the brightness block for the configured card.
func NewBrightness(cfg config.BrightnessConfig) *Brightness {
	return &Brightness{
		baseDir: filepath.Join("/sys/class/backlight", cfg.Card),
	}
}

// Name implements Block.
func (b *Brightness) Name() string { return "brightness" }

// Update implements Block.
func (b *Brightness) Update(_ context.Context, _ time.Time) (status.BlockOutput, NextUpdate, error) {
	next := After(brightnessInterval)

	max, err := b.readLevel("max_brightness")
	if err != nil {
		return status.BlockOutput{}, next, err
	}
	if max == 0 {
		return status.BlockOutput{}, next, &ParseError{Block: b.Name(), Output: "max_brightness", Err: fmt.Errorf("zero max brightness")}
	}

	current, err := b.readLevel("brightness")
	if err != nil {
		return status.BlockOutput{}, next, err
	}

	percent := current * 100 / max
	return status.BlockOutput{
		Name:      b.Name(),
		Icon:      brightnessIcon(percent),
		Text:      fmt.Sprintf("%d%%", percent),
		Attention: status.AttentionDim,
	}, next, nil
}

// Watch implements Watcher. Fires on every write to the brightness file
// so keybinding changes show up without waiting for the next poll.
func (b *Brightness) Watch(ctx context.Context, notify func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create brightness watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(b.baseDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", b.baseDir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != "brightness" {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				notify()
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

func (b *Brightness) readLevel(name string) (int64, error) {
	raw, err := os.ReadFile(filepath.Join(b.baseDir, name))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrUnavailable, b.baseDir, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		return 0, &ParseError{Block: b.Name(), Output: strings.TrimSpace(string(raw)), Err: err}
	}
	return v, nil
}

func brightnessIcon(percent int64) rune {
	i := int(percent) * len(brightnessIcons) / 100
	if i >= len(brightnessIcons) {
		i = len(brightnessIcons) - 1
	}
	if i < 0 {
		i = 0
	}
	return brightnessIcons[i]
}
