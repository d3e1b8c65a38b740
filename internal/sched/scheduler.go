// Package sched polls blocks on their requested deadlines and folds
// results into the composite state.
package sched

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jmylchreest/statline/internal/modules"
	"github.com/jmylchreest/statline/internal/status"
)

const (
	// Deadlines in the past are clamped this far into the future so a
	// misbehaving block cannot busy-loop the scheduler.
	epsilon = 50 * time.Millisecond

	// Fallback poll interval for blocks that do not request one.
	defaultInterval = time.Minute

	backoffBase = time.Second
)

// Options configures a Scheduler.
type Options struct {
	MaxWorkers    int
	Debounce      time.Duration
	MaxBackoff    time.Duration
	ShutdownGrace time.Duration

	// Clock defaults to the real clock; tests inject a fake.
	Clock  clockwork.Clock
	Logger *slog.Logger
}

type pollResult struct {
	name string
	out  status.BlockOutput
	next modules.NextUpdate
	err  error
}

// Scheduler owns all block polling. It is the only writer of the
// composite state; everything else sees snapshots.
type Scheduler struct {
	clock     clockwork.Clock
	logger    *slog.Logger
	composite *status.Composite

	blocks map[string]modules.Block

	maxWorkers    int
	debounce      time.Duration
	maxBackoff    time.Duration
	shutdownGrace time.Duration

	entries map[string]*entry
	heap    deadlineHeap

	triggerCh chan string
	resultCh  chan pollResult
	changedCh chan struct{}
	sem       chan struct{}

	lastSignaled uint64
	wg           sync.WaitGroup
}

// New creates a scheduler for the given blocks and composite.
func New(blocks []modules.Block, composite *status.Composite, opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 4
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Minute
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = 2 * time.Second
	}

	s := &Scheduler{
		clock:         opts.Clock,
		logger:        opts.Logger,
		composite:     composite,
		blocks:        make(map[string]modules.Block, len(blocks)),
		maxWorkers:    opts.MaxWorkers,
		debounce:      opts.Debounce,
		maxBackoff:    opts.MaxBackoff,
		shutdownGrace: opts.ShutdownGrace,
		entries:       make(map[string]*entry, len(blocks)),
		triggerCh:     make(chan string, 64),
		resultCh:      make(chan pollResult, len(blocks)),
		changedCh:     make(chan struct{}, 1),
		sem:           make(chan struct{}, opts.MaxWorkers),
	}

	for _, b := range blocks {
		s.blocks[b.Name()] = b
		s.entries[b.Name()] = &entry{name: b.Name(), index: -1}
	}
	return s
}

// Changed delivers a coalesced signal whenever the composite revision
// advanced. Receivers that lag see at most one pending signal.
func (s *Scheduler) Changed() <-chan struct{} {
	return s.changedCh
}

// Trigger requests an immediate re-poll of the named block. Safe from
// any goroutine; requests are dropped rather than blocking the caller
// when the queue is saturated.
func (s *Scheduler) Trigger(name string) {
	select {
	case s.triggerCh <- name:
	default:
		s.logger.Warn("trigger queue full, dropping", "block", name)
	}
}

// Has reports whether a block with this name is scheduled.
func (s *Scheduler) Has(name string) bool {
	_, ok := s.blocks[name]
	return ok
}

// Names returns the scheduled block names.
func (s *Scheduler) Names() []string {
	names := make([]string, 0, len(s.blocks))
	for name := range s.blocks {
		names = append(names, name)
	}
	return names
}

// Run is the scheduler event loop. It seeds every block with an
// immediate poll, then blocks until ctx is canceled. Watcher blocks get
// a watch goroutine that feeds Trigger.
func (s *Scheduler) Run(ctx context.Context) error {
	now := s.clock.Now()
	for _, e := range s.entries {
		e.deadline = now
		s.heap.push(e)
	}

	for name, b := range s.blocks {
		if w, ok := b.(modules.Watcher); ok {
			s.wg.Add(1)
			go s.watch(ctx, name, w)
		}
	}

	for {
		s.dispatchDue(ctx)

		var timerCh <-chan time.Time
		var timer clockwork.Timer
		if next := s.heap.peek(); next != nil {
			wait := next.deadline.Sub(s.clock.Now())
			if wait < epsilon {
				wait = epsilon
			}
			timer = s.clock.NewTimer(wait)
			timerCh = timer.Chan()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return s.shutdown()
		case <-timerCh:
			// Re-enter the loop; dispatchDue picks up due entries.
		case name := <-s.triggerCh:
			s.handleTrigger(name)
		case res := <-s.resultCh:
			s.handleResult(res)
		}

		if timer != nil {
			timer.Stop()
		}
	}
}

// dispatchDue starts polls for every due entry, bounded by the worker
// pool. Entries that cannot get a worker stay queued.
func (s *Scheduler) dispatchDue(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	now := s.clock.Now()
	for {
		next := s.heap.peek()
		if next == nil || next.deadline.After(now) {
			return
		}
		select {
		case s.sem <- struct{}{}:
		default:
			// Pool saturated; a finishing poll re-triggers dispatch.
			return
		}

		e := s.heap.pop()
		e.inFlight = true
		e.lastStart = now

		block := s.blocks[e.name]
		s.wg.Add(1)
		go s.poll(ctx, block)
	}
}

func (s *Scheduler) poll(ctx context.Context, block modules.Block) {
	defer s.wg.Done()
	defer func() { <-s.sem }()

	out, next, err := block.Update(ctx, s.clock.Now())
	s.resultCh <- pollResult{name: block.Name(), out: out, next: next, err: err}
}

func (s *Scheduler) watch(ctx context.Context, name string, w modules.Watcher) {
	defer s.wg.Done()
	for {
		err := w.Watch(ctx, func() { s.Trigger(name) })
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.logger.Warn("block watcher failed, restarting", "block", name, "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(5 * time.Second):
		}
	}
}

func (s *Scheduler) handleTrigger(name string) {
	e, ok := s.entries[name]
	if !ok {
		s.logger.Debug("trigger for unknown block", "block", name)
		return
	}

	if e.inFlight {
		// One follow-up poll after the current one lands.
		e.dirty = true
		return
	}

	now := s.clock.Now()
	target := now
	if debounced := e.lastStart.Add(s.debounce); debounced.After(target) {
		// Within the debounce window; coalesce onto its edge.
		target = debounced
	}
	if target.Before(e.deadline) {
		e.deadline = target
		s.heap.fix(e)
	}
}

func (s *Scheduler) handleResult(res pollResult) {
	e, ok := s.entries[res.name]
	if !ok {
		return
	}

	now := s.clock.Now()
	e.inFlight = false

	if res.err != nil {
		e.failures++
		backoff := backoffBase << (e.failures - 1)
		if backoff > s.maxBackoff || backoff <= 0 {
			backoff = s.maxBackoff
		}
		e.deadline = now.Add(backoff)

		s.composite.MarkStale(res.name, now)
		s.logger.Warn("block update failed",
			"block", res.name,
			"failures", e.failures,
			"retry_in", backoff,
			"error", res.err)
	} else {
		e.failures = 0
		e.deadline = s.clamp(res.next.Deadline(now, defaultInterval), now)
		s.composite.Apply(res.out, now)
	}

	if e.dirty {
		e.dirty = false
		followUp := s.clamp(e.lastStart.Add(s.debounce), now)
		if followUp.Before(e.deadline) {
			e.deadline = followUp
		}
	}

	s.heap.push(e)
	s.signalIfChanged()
}

// clamp keeps deadlines strictly in the future.
func (s *Scheduler) clamp(deadline, now time.Time) time.Time {
	if floor := now.Add(epsilon); deadline.Before(floor) {
		return floor
	}
	return deadline
}

func (s *Scheduler) signalIfChanged() {
	rev := s.composite.Revision()
	if rev == s.lastSignaled {
		return
	}
	s.lastSignaled = rev
	select {
	case s.changedCh <- struct{}{}:
	default:
	}
}

// shutdown gives in-flight polls a bounded grace period. The grace uses
// wall time on purpose; a fake clock must not stall teardown.
func (s *Scheduler) shutdown() error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(s.shutdownGrace):
		return errors.New("shutdown grace elapsed with polls still in flight")
	}
}
