// Package render turns a status snapshot into bar-ready text. All
// renderers are pure: the same snapshot and palette always produce the
// same bytes.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmylchreest/statline/internal/status"
)

// Format selects the output grammar.
type Format string

// Supported output formats.
const (
	FormatLemon Format = "lemon"
	FormatI3    Format = "i3"
	FormatPango Format = "pango"
	FormatPlain Format = "plain"
)

// ParseFormat validates a format name from config or the wire.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatLemon, FormatI3, FormatPango, FormatPlain:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown format %q (want lemon, i3, pango or plain)", s)
	}
}

// String implements fmt.Stringer.
func (f Format) String() string { return string(f) }

type attentionLevel int

const (
	attentionNormal attentionLevel = iota
	attentionDim
	attentionWarning
	attentionAlarm
)

// flatten collapses pulse levels onto their static colors.
func flatten(a status.Attention) attentionLevel {
	switch a {
	case status.AttentionDim:
		return attentionDim
	case status.AttentionWarning, status.AttentionWarningPulse:
		return attentionWarning
	case status.AttentionAlarm, status.AttentionAlarmPulse:
		return attentionAlarm
	default:
		return attentionNormal
	}
}

// Render produces one complete output unit for the snapshot.
// The unit contains no newlines; the transport delimits units by line.
func Render(f Format, snap status.Snapshot, p Palette) (string, error) {
	switch f {
	case FormatLemon:
		return renderLemon(snap, p), nil
	case FormatI3:
		return renderI3(snap, p)
	case FormatPango:
		return renderPango(snap, p), nil
	case FormatPlain:
		return renderPlain(snap), nil
	default:
		return "", fmt.Errorf("unknown format %q", f)
	}
}

// visible filters hidden blocks and strips newlines from content.
func visible(snap status.Snapshot) []status.BlockStatus {
	blocks := make([]status.BlockStatus, 0, len(snap.Blocks))
	for _, b := range snap.Blocks {
		if b.Output.Empty() {
			continue
		}
		b.Output.Text = stripNewlines(b.Output.Text)
		b.Output.SecondaryText = stripNewlines(b.Output.SecondaryText)
		blocks = append(blocks, b)
	}
	return blocks
}

var newlineReplacer = strings.NewReplacer("\n", " ", "\r", " ")

func stripNewlines(s string) string {
	return newlineReplacer.Replace(s)
}

// blockColors resolves the color pair for a block; stale content is
// dimmed regardless of its attention level.
func blockColors(b status.BlockStatus, p Palette) (RGBA, RGBA) {
	if b.Stale {
		return p.Secondary, p.Secondary
	}
	return p.attentionColors(flatten(b.Output.Attention))
}

func renderLemon(snap status.Snapshot, p Palette) string {
	var parts []string
	for _, b := range visible(snap) {
		main, aside := blockColors(b, p)

		var sb strings.Builder
		if b.Output.Icon != 0 {
			fmt.Fprintf(&sb, "%%{F#%s}%c", main.LemonHex(), b.Output.Icon)
		}
		if b.Output.Text != "" {
			if sb.Len() > 0 {
				sb.WriteString("  ")
			}
			fmt.Fprintf(&sb, "%%{F#%s}%s", main.LemonHex(), b.Output.Text)
		}
		if b.Output.SecondaryText != "" {
			if sb.Len() > 0 {
				sb.WriteString("  ")
			}
			fmt.Fprintf(&sb, "%%{F#%s}%s", aside.LemonHex(), b.Output.SecondaryText)
		}
		parts = append(parts, sb.String())
	}
	if len(parts) == 0 {
		return "%{F-}"
	}
	return strings.Join(parts, "    ") + "%{F-}"
}

var pangoEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

func pangoSpan(text string, color RGBA, font string) string {
	escaped := pangoEscaper.Replace(text)
	if font != "" {
		return fmt.Sprintf("<span color='#%s' font_desc='%s'>%s</span>", color.PangoHex(), font, escaped)
	}
	return fmt.Sprintf("<span color='#%s'>%s</span>", color.PangoHex(), escaped)
}

// pangoStrings returns the full and short pango markup for one block.
// Short text drops the secondary part, per the i3bar protocol.
func pangoStrings(b status.BlockStatus, p Palette) (full, short string) {
	main, aside := blockColors(b, p)

	var parts []string
	if b.Output.Icon != 0 {
		parts = append(parts, pangoSpan(string(b.Output.Icon), main, p.IconFont))
	}
	if b.Output.Text != "" {
		parts = append(parts, pangoSpan(b.Output.Text, main, ""))
	}
	short = strings.Join(parts, "  ")

	if b.Output.SecondaryText != "" {
		parts = append(parts, pangoSpan(b.Output.SecondaryText, aside, ""))
	}
	full = strings.Join(parts, "  ")
	return full, short
}

func renderPango(snap status.Snapshot, p Palette) string {
	var parts []string
	for _, b := range visible(snap) {
		full, _ := pangoStrings(b, p)
		parts = append(parts, full)
	}
	return strings.Join(parts, "    ")
}

// i3Block is one element of an i3bar protocol status line.
type i3Block struct {
	Name      string `json:"name"`
	FullText  string `json:"full_text"`
	ShortText string `json:"short_text"`
	Separator bool   `json:"separator"`
	Markup    string `json:"markup"`
}

// renderI3 emits one element of the i3bar infinite array: a comma, then
// a JSON array of blocks. The subscriber prints the protocol preamble.
func renderI3(snap status.Snapshot, p Palette) (string, error) {
	blocks := make([]i3Block, 0, len(snap.Blocks))
	for _, b := range visible(snap) {
		full, short := pangoStrings(b, p)
		blocks = append(blocks, i3Block{
			Name:      b.Output.Name,
			FullText:  full,
			ShortText: short,
			Separator: true,
			Markup:    "pango",
		})
	}

	encoded, err := json.Marshal(blocks)
	if err != nil {
		return "", fmt.Errorf("failed to encode i3 blocks: %w", err)
	}
	return "," + string(encoded), nil
}

// renderPlain is colorless output for piping and debugging.
func renderPlain(snap status.Snapshot) string {
	var parts []string
	for _, b := range visible(snap) {
		var fields []string
		if b.Output.Icon != 0 {
			fields = append(fields, string(b.Output.Icon))
		}
		if b.Output.Text != "" {
			fields = append(fields, b.Output.Text)
		}
		if b.Output.SecondaryText != "" {
			fields = append(fields, b.Output.SecondaryText)
		}
		s := strings.Join(fields, "  ")
		if b.Stale {
			s += " !"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " | ")
}

// Disconnected returns the unit a client prints when the daemon link is
// down, in the negotiated format.
func Disconnected(f Format, p Palette) string {
	snap := status.Snapshot{
		Blocks: []status.BlockStatus{{
			Output: status.BlockOutput{
				Name:      "statline",
				Text:      "daemon disconnected",
				Attention: status.AttentionWarning,
			},
		}},
	}
	out, err := Render(f, snap, p)
	if err != nil {
		return "daemon disconnected"
	}
	return out
}
