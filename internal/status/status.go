// Package status defines the composite status state shared between the
// scheduler and the broadcaster.
package status

import (
	"sync"
	"time"
)

// Attention indicates how prominently a block should be displayed.
type Attention int

const (
	// AttentionDim renders with the secondary color.
	AttentionDim Attention = iota
	// AttentionNormal renders with the primary color.
	AttentionNormal
	// AttentionWarning renders with the warning color.
	AttentionWarning
	// AttentionWarningPulse is rendered like AttentionWarning.
	AttentionWarningPulse
	// AttentionAlarm renders with the alarm color.
	AttentionAlarm
	// AttentionAlarmPulse is rendered like AttentionAlarm.
	AttentionAlarmPulse
)

// String returns a human-readable name for logging.
func (a Attention) String() string {
	switch a {
	case AttentionDim:
		return "dim"
	case AttentionNormal:
		return "normal"
	case AttentionWarning:
		return "warning"
	case AttentionWarningPulse:
		return "warning-pulse"
	case AttentionAlarm:
		return "alarm"
	case AttentionAlarmPulse:
		return "alarm-pulse"
	default:
		return "unknown"
	}
}

// BlockOutput is the content fragment produced by one module poll.
// A zero Icon and empty Text hides the block from the bar.
type BlockOutput struct {
	Name          string
	Icon          rune
	Text          string
	SecondaryText string
	Attention     Attention
}

// Equal reports whether two outputs would render identically.
func (o BlockOutput) Equal(other BlockOutput) bool {
	return o == other
}

// Empty reports whether the block has nothing to display.
func (o BlockOutput) Empty() bool {
	return o.Icon == 0 && o.Text == "" && o.SecondaryText == ""
}

// BlockStatus is one block's entry in a snapshot.
type BlockStatus struct {
	Output    BlockOutput
	Stale     bool
	UpdatedAt time.Time
}

// Snapshot is an immutable copy of the composite state at one revision.
type Snapshot struct {
	Revision uint64
	Blocks   []BlockStatus
}

type entry struct {
	output    BlockOutput
	stale     bool
	updatedAt time.Time
}

// Composite holds the latest output of every block plus a strictly
// increasing revision counter. The scheduler is the only mutator; all
// other components read immutable snapshots.
type Composite struct {
	mu       sync.RWMutex
	order    []string
	entries  map[string]*entry
	revision uint64
}

// NewComposite creates a Composite with blocks in the given display order.
func NewComposite(order []string) *Composite {
	entries := make(map[string]*entry, len(order))
	names := make([]string, 0, len(order))
	for _, name := range order {
		if _, dup := entries[name]; dup {
			continue
		}
		entries[name] = &entry{output: BlockOutput{Name: name}}
		names = append(names, name)
	}
	return &Composite{
		order:   names,
		entries: entries,
	}
}

// Apply replaces a block's entry with a fresh poll result, clearing any
// stale marker. It returns true and bumps the revision only if the
// rendered content actually changed. Unknown block names are ignored.
func (c *Composite) Apply(out BlockOutput, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[out.Name]
	if !ok {
		return false
	}

	changed := !e.output.Equal(out) || e.stale
	e.output = out
	e.stale = false
	e.updatedAt = now
	if changed {
		c.revision++
	}
	return changed
}

// MarkStale flags a block as degraded without discarding its last good
// content. Returns true and bumps the revision on the first transition.
func (c *Composite) MarkStale(name string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[name]
	if !ok || e.stale {
		return false
	}
	e.stale = true
	e.updatedAt = now
	c.revision++
	return true
}

// Revision returns the current revision counter.
func (c *Composite) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// Snapshot returns a deep copy of the current state in display order.
func (c *Composite) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	blocks := make([]BlockStatus, 0, len(c.order))
	for _, name := range c.order {
		e := c.entries[name]
		blocks = append(blocks, BlockStatus{
			Output:    e.output,
			Stale:     e.stale,
			UpdatedAt: e.updatedAt,
		})
	}
	return Snapshot{
		Revision: c.revision,
		Blocks:   blocks,
	}
}

// Names returns the block names in display order.
func (c *Composite) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, len(c.order))
	copy(names, c.order)
	return names
}
