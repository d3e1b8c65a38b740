package modules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/statline/internal/config"
)

func TestNewInstantiatesEveryKnownBlock(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Weather.OpenWeatherMapKey = "k"
	deps := Deps{Runner: newFakeRunner()}

	for _, name := range []string{"date", "battery", "brightness", "volume", "network", "mpris", "weather"} {
		b, err := New(name, cfg, deps)
		require.NoError(t, err, name)
		assert.Equal(t, name, b.Name())
	}
}

func TestNewRejectsUnknownBlock(t *testing.T) {
	_, err := New("teleport", config.DefaultConfig(), Deps{})
	var cfgErr *config.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Reason, "teleport")
}

func TestFromConfigPreservesOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Blocks = []string{"volume", "date"}
	blocks, err := FromConfig(cfg, Deps{Runner: newFakeRunner()})
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "volume", blocks[0].Name())
	assert.Equal(t, "date", blocks[1].Name())
}

func TestNextUpdateDeadline(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(time.Minute), NextUpdate{}.Deadline(now, time.Minute))
	assert.Equal(t, now.Add(5*time.Second), After(5*time.Second).Deadline(now, time.Minute))

	at := now.Add(42 * time.Second)
	assert.Equal(t, at, At(at).Deadline(now, time.Minute))
}
