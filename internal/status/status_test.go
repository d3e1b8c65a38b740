package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOutput(name, text string) BlockOutput {
	return BlockOutput{
		Name:      name,
		Icon:      'x',
		Text:      text,
		Attention: AttentionNormal,
	}
}

func TestCompositeApply(t *testing.T) {
	c := NewComposite([]string{"date", "battery"})
	now := time.Now()

	changed := c.Apply(testOutput("date", "10:00 am"), now)
	assert.True(t, changed)
	assert.Equal(t, uint64(1), c.Revision())

	// Identical content does not advance the revision.
	changed = c.Apply(testOutput("date", "10:00 am"), now)
	assert.False(t, changed)
	assert.Equal(t, uint64(1), c.Revision())

	changed = c.Apply(testOutput("date", "10:01 am"), now)
	assert.True(t, changed)
	assert.Equal(t, uint64(2), c.Revision())
}

func TestCompositeApplyUnknownBlock(t *testing.T) {
	c := NewComposite([]string{"date"})

	changed := c.Apply(testOutput("bogus", "hello"), time.Now())
	assert.False(t, changed)
	assert.Equal(t, uint64(0), c.Revision())
}

func TestCompositeMarkStale(t *testing.T) {
	c := NewComposite([]string{"volume"})
	now := time.Now()

	require.True(t, c.Apply(testOutput("volume", "50%"), now))
	rev := c.Revision()

	assert.True(t, c.MarkStale("volume", now))
	assert.Equal(t, rev+1, c.Revision())

	// Second stale transition is a no-op.
	assert.False(t, c.MarkStale("volume", now))
	assert.Equal(t, rev+1, c.Revision())

	snap := c.Snapshot()
	require.Len(t, snap.Blocks, 1)
	assert.True(t, snap.Blocks[0].Stale)
	// Last good content survives the failure.
	assert.Equal(t, "50%", snap.Blocks[0].Output.Text)

	// A fresh result clears the marker and counts as a change even if
	// the content matches the pre-stale content.
	assert.True(t, c.Apply(testOutput("volume", "50%"), now))
	snap = c.Snapshot()
	assert.False(t, snap.Blocks[0].Stale)
}

func TestCompositeSnapshotOrder(t *testing.T) {
	c := NewComposite([]string{"date", "battery", "volume"})
	now := time.Now()

	c.Apply(testOutput("volume", "v"), now)
	c.Apply(testOutput("date", "d"), now)

	snap := c.Snapshot()
	require.Len(t, snap.Blocks, 3)
	assert.Equal(t, "date", snap.Blocks[0].Output.Name)
	assert.Equal(t, "battery", snap.Blocks[1].Output.Name)
	assert.Equal(t, "volume", snap.Blocks[2].Output.Name)
}

func TestCompositeSnapshotIsolation(t *testing.T) {
	c := NewComposite([]string{"date"})
	now := time.Now()
	c.Apply(testOutput("date", "before"), now)

	snap := c.Snapshot()
	c.Apply(testOutput("date", "after"), now)

	assert.Equal(t, "before", snap.Blocks[0].Output.Text)
	assert.Equal(t, uint64(1), snap.Revision)
	assert.Equal(t, uint64(2), c.Revision())
}

func TestCompositeDuplicateNames(t *testing.T) {
	c := NewComposite([]string{"date", "date"})
	assert.Equal(t, []string{"date"}, c.Names())
}

func TestBlockOutputEmpty(t *testing.T) {
	assert.True(t, BlockOutput{Name: "mpris"}.Empty())
	assert.False(t, BlockOutput{Name: "mpris", Text: "song"}.Empty())
	assert.False(t, BlockOutput{Name: "mpris", Icon: 'x'}.Empty())
}
