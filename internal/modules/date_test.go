package modules

import (
	"context"
	"testing"
	"time"

	"github.com/jmylchreest/statline/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateUpdate(t *testing.T) {
	d := NewDate(config.DateConfig{})
	now := time.Date(2026, time.March, 9, 14, 30, 45, 0, time.Local)

	out, next, err := d.Update(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, "date", out.Name)
	assert.Equal(t, "2:30 pm", out.Text)
	assert.Equal(t, "Mon, Mar 9", out.SecondaryText)
	assert.Equal(t, clockIcons[2], out.Icon)

	// Next poll lands exactly on the next minute boundary.
	want := time.Date(2026, time.March, 9, 14, 31, 0, 0, time.Local)
	assert.Equal(t, want, next.Deadline(now, time.Minute))
}

func TestDateClockIconWrapsAtNoon(t *testing.T) {
	d := NewDate(config.DateConfig{})

	noon := time.Date(2026, time.March, 9, 12, 0, 0, 0, time.Local)
	out, _, err := d.Update(context.Background(), noon)
	require.NoError(t, err)
	assert.Equal(t, clockIcons[0], out.Icon)

	midnight := time.Date(2026, time.March, 9, 0, 5, 0, 0, time.Local)
	out, _, err = d.Update(context.Background(), midnight)
	require.NoError(t, err)
	assert.Equal(t, clockIcons[0], out.Icon)
}

func TestDateCustomLayouts(t *testing.T) {
	d := NewDate(config.DateConfig{TimeLayout: "15:04", DateLayout: "2006-01-02"})
	now := time.Date(2026, time.March, 9, 14, 30, 0, 0, time.Local)

	out, _, err := d.Update(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, "14:30", out.Text)
	assert.Equal(t, "2026-03-09", out.SecondaryText)
}
