package modules

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmylchreest/statline/internal/config"
	"github.com/jmylchreest/statline/internal/execx"
	"github.com/jmylchreest/statline/internal/status"
)

var volumeIcons = [3]rune{'\U000F057F', '\U000F0580', '\U000F057E'}

const (
	volumeMuteIcon = '\U000F0581'
	volumeZeroIcon = '\U000F0E08'

	volumeInterval = 30 * time.Second
)

// Volume reports mixer level via pamixer, falling back to amixer.
// Keybindings should run `statline update volume` for instant refresh.
type Volume struct {
	sink   string
	runner execx.Runner
}

// NewVolume creates the volume block.
func NewVolume(cfg config.VolumeConfig, runner execx.Runner) *Volume {
	return &Volume{
		sink:   cfg.Sink,
		runner: runner,
	}
}

// Name implements Block.
func (v *Volume) Name() string { return "volume" }

// Update implements Block.
func (v *Volume) Update(ctx context.Context, _ time.Time) (status.BlockOutput, NextUpdate, error) {
	next := After(volumeInterval)

	percent, muted, err := v.fromPamixer(ctx)
	if err != nil {
		percent, muted, err = v.fromAmixer(ctx)
		if err != nil {
			return status.BlockOutput{}, next, err
		}
	}

	out := status.BlockOutput{
		Name:      v.Name(),
		Attention: status.AttentionDim,
	}
	switch {
	case muted:
		out.Icon = volumeMuteIcon
		out.Text = "Muted"
	case percent == 0:
		out.Icon = volumeZeroIcon
		out.Text = "Muted"
	default:
		out.Icon = volumeIcon(percent)
		out.Text = fmt.Sprintf("%d%%", percent)
	}
	return out, next, nil
}

// fromPamixer queries pamixer. pamixer exits nonzero when unmuted, so
// stdout is parsed whenever it is non-empty.
func (v *Volume) fromPamixer(ctx context.Context) (int, bool, error) {
	muteArgs := []string{"--get-mute"}
	volArgs := []string{"--get-volume"}
	if v.sink != "" {
		muteArgs = append(muteArgs, "--sink", v.sink)
		volArgs = append(volArgs, "--sink", v.sink)
	}

	raw, err := v.runner.Run(ctx, "pamixer", muteArgs...)
	if len(raw) == 0 && err != nil {
		return 0, false, fmt.Errorf("%w: pamixer: %v", ErrUnavailable, err)
	}
	muted, err := strconv.ParseBool(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, false, &ParseError{Block: v.Name(), Output: strings.TrimSpace(string(raw)), Err: err}
	}
	if muted {
		return 0, true, nil
	}

	raw, err = v.runner.Run(ctx, "pamixer", volArgs...)
	if len(raw) == 0 && err != nil {
		return 0, false, fmt.Errorf("%w: pamixer: %v", ErrUnavailable, err)
	}
	percent, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, false, &ParseError{Block: v.Name(), Output: strings.TrimSpace(string(raw)), Err: err}
	}
	return percent, false, nil
}

// fromAmixer parses the last line of `amixer sget Master`, which looks
// like "Mono: Playback 52 [80%] [on]".
func (v *Volume) fromAmixer(ctx context.Context) (int, bool, error) {
	raw, err := v.runner.Run(ctx, "amixer", "sget", "Master")
	if err != nil {
		return 0, false, fmt.Errorf("%w: amixer: %v", ErrUnavailable, err)
	}

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	last := lines[len(lines)-1]

	i := strings.IndexByte(last, '[')
	if i < 0 {
		return 0, false, &ParseError{Block: v.Name(), Output: last, Err: fmt.Errorf("no bracket delimiter")}
	}
	tail := last[i:]

	if strings.Contains(tail, "off") {
		return 0, true, nil
	}

	var digits strings.Builder
	for _, r := range tail {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	percent, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, false, &ParseError{Block: v.Name(), Output: tail, Err: err}
	}
	return percent, false, nil
}

func volumeIcon(percent int) rune {
	i := percent * len(volumeIcons) / 100
	if i >= len(volumeIcons) {
		i = len(volumeIcons) - 1
	}
	if i < 0 {
		i = 0
	}
	return volumeIcons[i]
}
