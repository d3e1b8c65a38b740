package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jmylchreest/statline/internal/config"
)

// RGBA is a color with byte channels.
type RGBA struct {
	R, G, B, A uint8
}

// ParseRGBA parses a hex color of 6 (rrggbb) or 8 (rrggbbaa) digits.
// A leading '#' is tolerated.
func ParseRGBA(s string) (RGBA, error) {
	raw := strings.TrimPrefix(s, "#")
	switch len(raw) {
	case 6:
		v, err := strconv.ParseUint(raw, 16, 32)
		if err != nil {
			return RGBA{}, fmt.Errorf("%q is not a valid hex color: %w", s, err)
		}
		return RGBA{
			R: uint8(v >> 16),
			G: uint8(v >> 8),
			B: uint8(v),
			A: 0xff,
		}, nil
	case 8:
		v, err := strconv.ParseUint(raw, 16, 32)
		if err != nil {
			return RGBA{}, fmt.Errorf("%q is not a valid hex color: %w", s, err)
		}
		return RGBA{
			R: uint8(v >> 24),
			G: uint8(v >> 16),
			B: uint8(v >> 8),
			A: uint8(v),
		}, nil
	default:
		return RGBA{}, fmt.Errorf("%q is not a valid hex color: want 6 or 8 digits", s)
	}
}

// LemonHex returns the color as aarrggbb, the byte order lemonbar wants.
func (c RGBA) LemonHex() string {
	return fmt.Sprintf("%02x%02x%02x%02x", c.A, c.R, c.G, c.B)
}

// PangoHex returns the color as rrggbbaa for Pango span attributes.
func (c RGBA) PangoHex() string {
	return fmt.Sprintf("%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// Palette carries the colors and fonts blocks are rendered with.
type Palette struct {
	Primary   RGBA
	Secondary RGBA
	Warning   RGBA
	Alarm     RGBA
	TextFont  string
	IconFont  string
}

// PaletteFromConfig builds a Palette from the [format] config section.
func PaletteFromConfig(cfg config.FormatConfig) (Palette, error) {
	p := Palette{
		TextFont: cfg.TextFont,
		IconFont: cfg.IconFont,
	}

	var err error
	if p.Primary, err = ParseRGBA(cfg.PrimaryColor); err != nil {
		return Palette{}, fmt.Errorf("primary_color: %w", err)
	}
	if p.Secondary, err = ParseRGBA(cfg.SecondaryColor); err != nil {
		return Palette{}, fmt.Errorf("secondary_color: %w", err)
	}
	if p.Warning, err = ParseRGBA(cfg.WarningColor); err != nil {
		return Palette{}, fmt.Errorf("warning_color: %w", err)
	}
	if p.Alarm, err = ParseRGBA(cfg.AlarmColor); err != nil {
		return Palette{}, fmt.Errorf("alarm_color: %w", err)
	}
	return p, nil
}

// attentionColors maps an attention level to the (main, aside) color
// pair used for primary and secondary text. Pulse levels render as
// their static color so output stays deterministic.
func (p Palette) attentionColors(a attentionLevel) (RGBA, RGBA) {
	switch a {
	case attentionDim:
		return p.Secondary, p.Secondary
	case attentionWarning:
		return p.Warning, p.Warning
	case attentionAlarm:
		return p.Alarm, p.Alarm
	default:
		return p.Primary, p.Secondary
	}
}
