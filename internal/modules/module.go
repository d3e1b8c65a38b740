// Package modules implements the status blocks the daemon polls.
package modules

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmylchreest/statline/internal/config"
	"github.com/jmylchreest/statline/internal/execx"
	"github.com/jmylchreest/statline/internal/status"
)

// ErrUnavailable marks a collaborator as missing or unreachable.
// The scheduler keeps the previous content and backs off.
var ErrUnavailable = errors.New("collaborator unavailable")

// ParseError is returned when a collaborator produced output the module
// could not interpret.
type ParseError struct {
	Block  string
	Output string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: cannot parse %q: %v", e.Block, e.Output, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// NextUpdate tells the scheduler when to poll the block again.
// The zero value means "use the block's default interval" and is treated
// as After(defaultInterval) by the scheduler.
type NextUpdate struct {
	after time.Duration
	at    time.Time
	set   bool
}

// After requests the next poll a duration after this one completed.
func After(d time.Duration) NextUpdate {
	return NextUpdate{after: d, set: true}
}

// At requests the next poll at an absolute time.
func At(t time.Time) NextUpdate {
	return NextUpdate{at: t, set: true}
}

// Deadline resolves the request to an absolute time relative to now.
// fallback is used for the zero value.
func (n NextUpdate) Deadline(now time.Time, fallback time.Duration) time.Time {
	if !n.set {
		return now.Add(fallback)
	}
	if !n.at.IsZero() {
		return n.at
	}
	return now.Add(n.after)
}

// Block is a single status module.
type Block interface {
	// Name returns the unique module name used in config and triggers.
	Name() string

	// Update polls the block's collaborators and produces fresh content
	// plus a request for the next poll time. Update must not retain ctx.
	Update(ctx context.Context, now time.Time) (status.BlockOutput, NextUpdate, error)
}

// Watcher is implemented by blocks whose collaborators can push change
// notifications. notify requests an immediate re-poll; it is safe to
// call from any goroutine. Watch blocks until ctx is done.
type Watcher interface {
	Watch(ctx context.Context, notify func()) error
}

// Deps carries the collaborator capabilities modules may need.
type Deps struct {
	Runner execx.Runner
}

// New instantiates the named block from configuration.
func New(name string, cfg *config.Config, deps Deps) (Block, error) {
	switch name {
	case "date":
		return NewDate(cfg.Date), nil
	case "battery":
		return NewBattery(cfg.Battery), nil
	case "brightness":
		return NewBrightness(cfg.Brightness), nil
	case "volume":
		return NewVolume(cfg.Volume, deps.Runner), nil
	case "network":
		return NewNetwork(cfg.Network, deps.Runner), nil
	case "mpris":
		return NewMpris(), nil
	case "weather":
		return NewWeather(cfg.Weather), nil
	default:
		return nil, &config.ConfigError{Section: "blocks", Reason: fmt.Sprintf("unknown block %q", name)}
	}
}

// FromConfig instantiates every enabled block in display order.
func FromConfig(cfg *config.Config, deps Deps) ([]Block, error) {
	blocks := make([]Block, 0, len(cfg.Blocks))
	for _, name := range cfg.Blocks {
		b, err := New(name, cfg, deps)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}
