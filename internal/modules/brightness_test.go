package modules

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmylchreest/statline/internal/config"
	"github.com/jmylchreest/statline/internal/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBacklight(t *testing.T, current, max string) *Brightness {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brightness"), []byte(current+"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "max_brightness"), []byte(max+"\n"), 0644))

	b := NewBrightness(config.BrightnessConfig{Card: "test"})
	b.baseDir = dir
	return b
}

func TestBrightnessUpdate(t *testing.T) {
	b := testBacklight(t, "300", "1200")

	out, next, err := b.Update(context.Background(), time.Now())
	require.NoError(t, err)

	assert.Equal(t, "25%", out.Text)
	assert.Equal(t, brightnessIcons[1], out.Icon)
	assert.Equal(t, status.AttentionDim, out.Attention)

	now := time.Now()
	assert.Equal(t, now.Add(brightnessInterval), next.Deadline(now, time.Second))
}

func TestBrightnessFullIsLastIcon(t *testing.T) {
	b := testBacklight(t, "1200", "1200")

	out, _, err := b.Update(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "100%", out.Text)
	assert.Equal(t, brightnessIcons[5], out.Icon)
}

func TestBrightnessZeroMax(t *testing.T) {
	b := testBacklight(t, "0", "0")

	_, _, err := b.Update(context.Background(), time.Now())
	require.Error(t, err)

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestBrightnessMissingCard(t *testing.T) {
	b := NewBrightness(config.BrightnessConfig{Card: "nope"})
	b.baseDir = filepath.Join(t.TempDir(), "nope")

	_, _, err := b.Update(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBrightnessWatchNotifies(t *testing.T) {
	b := testBacklight(t, "300", "1200")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var fired atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Watch(ctx, func() { fired.Add(1) })
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(b.baseDir, "brightness"), []byte("600\n"), 0644))

	assert.Eventually(t, func() bool {
		return fired.Load() > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
