package render

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jmylchreest/statline/internal/config"
	"github.com/jmylchreest/statline/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPalette(t *testing.T) Palette {
	t.Helper()
	p, err := PaletteFromConfig(config.DefaultConfig().Format)
	require.NoError(t, err)
	return p
}

func testSnapshot() status.Snapshot {
	return status.Snapshot{
		Revision: 7,
		Blocks: []status.BlockStatus{
			{
				Output: status.BlockOutput{
					Name:          "date",
					Icon:          'C',
					Text:          "10:30 am",
					SecondaryText: "Mon, Mar 9",
					Attention:     status.AttentionNormal,
				},
			},
			{
				Output: status.BlockOutput{
					Name:      "battery",
					Icon:      'B',
					Text:      "12%",
					Attention: status.AttentionAlarmPulse,
				},
			},
			{
				// Hidden block must not show up anywhere.
				Output: status.BlockOutput{Name: "mpris"},
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for _, name := range []string{"lemon", "i3", "pango", "plain"} {
		f, err := ParseFormat(name)
		require.NoError(t, err)
		assert.Equal(t, name, f.String())
	}

	_, err := ParseFormat("html")
	assert.Error(t, err)
}

func TestParseRGBA(t *testing.T) {
	c, err := ParseRGBA("ffaa00")
	require.NoError(t, err)
	assert.Equal(t, RGBA{R: 0xff, G: 0xaa, B: 0x00, A: 0xff}, c)

	c, err = ParseRGBA("#11223344")
	require.NoError(t, err)
	assert.Equal(t, RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}, c)

	_, err = ParseRGBA("xyz")
	assert.Error(t, err)
}

func TestRGBAHexOrders(t *testing.T) {
	c := RGBA{R: 0x11, G: 0x22, B: 0x33, A: 0x44}
	assert.Equal(t, "44112233", c.LemonHex())
	assert.Equal(t, "11223344", c.PangoHex())
}

func TestRenderDeterministic(t *testing.T) {
	p := testPalette(t)
	snap := testSnapshot()

	for _, f := range []Format{FormatLemon, FormatI3, FormatPango, FormatPlain} {
		first, err := Render(f, snap, p)
		require.NoError(t, err)
		second, err := Render(f, snap, p)
		require.NoError(t, err)
		assert.Equal(t, first, second, "format %s", f)
		assert.NotContains(t, first, "\n", "format %s", f)
	}
}

func TestRenderLemon(t *testing.T) {
	out, err := Render(FormatLemon, testSnapshot(), testPalette(t))
	require.NoError(t, err)

	// Alarm pulse renders as the static alarm color.
	assert.Contains(t, out, "%{F#ffff0000}12%")
	assert.Contains(t, out, "%{F#ffffffff}10:30 am")
	assert.True(t, strings.HasSuffix(out, "%{F-}"))
	assert.NotContains(t, out, "mpris")
}

func TestRenderI3(t *testing.T) {
	out, err := Render(FormatI3, testSnapshot(), testPalette(t))
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(out, ","))

	var blocks []i3Block
	require.NoError(t, json.Unmarshal([]byte(out[1:]), &blocks))
	require.Len(t, blocks, 2)

	assert.Equal(t, "date", blocks[0].Name)
	assert.Equal(t, "pango", blocks[0].Markup)
	assert.True(t, blocks[0].Separator)
	assert.Contains(t, blocks[0].FullText, "Mon, Mar 9")
	assert.NotContains(t, blocks[0].ShortText, "Mon, Mar 9")
	assert.Contains(t, blocks[1].FullText, "ff0000ff")
}

func TestRenderPangoEscapes(t *testing.T) {
	snap := status.Snapshot{
		Blocks: []status.BlockStatus{{
			Output: status.BlockOutput{
				Name: "mpris",
				Text: "Q & A <live>",
			},
		}},
	}

	out, err := Render(FormatPango, snap, testPalette(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Q &amp; A &lt;live&gt;")
}

func TestRenderPlainStaleMarker(t *testing.T) {
	snap := status.Snapshot{
		Blocks: []status.BlockStatus{
			{Output: status.BlockOutput{Name: "volume", Text: "50%"}, Stale: true},
			{Output: status.BlockOutput{Name: "date", Text: "10:30 am"}},
		},
	}

	out, err := Render(FormatPlain, snap, testPalette(t))
	require.NoError(t, err)
	assert.Equal(t, "50% ! | 10:30 am", out)
}

func TestRenderStaleDims(t *testing.T) {
	p := testPalette(t)
	snap := status.Snapshot{
		Blocks: []status.BlockStatus{{
			Output: status.BlockOutput{
				Name:      "battery",
				Text:      "40%",
				Attention: status.AttentionAlarm,
			},
			Stale: true,
		}},
	}

	out, err := Render(FormatLemon, snap, p)
	require.NoError(t, err)
	assert.Contains(t, out, p.Secondary.LemonHex())
	assert.NotContains(t, out, p.Alarm.LemonHex())
}

func TestRenderNewlinesStripped(t *testing.T) {
	snap := status.Snapshot{
		Blocks: []status.BlockStatus{{
			Output: status.BlockOutput{Name: "mpris", Text: "line\nbreak"},
		}},
	}

	out, err := Render(FormatPlain, snap, testPalette(t))
	require.NoError(t, err)
	assert.Equal(t, "line break", out)
}

func TestDisconnected(t *testing.T) {
	p := testPalette(t)

	plain := Disconnected(FormatPlain, p)
	assert.Equal(t, "daemon disconnected", plain)

	i3 := Disconnected(FormatI3, p)
	assert.True(t, strings.HasPrefix(i3, ","))
	assert.Contains(t, i3, "daemon disconnected")
}
