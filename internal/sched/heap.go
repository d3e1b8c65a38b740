package sched

import (
	"container/heap"
	"time"
)

// entry is the scheduler's bookkeeping for one block.
type entry struct {
	name     string
	deadline time.Time

	failures  int
	inFlight  bool
	dirty     bool
	lastStart time.Time

	// index in the deadline heap, -1 when not queued.
	index int
}

// deadlineHeap orders waiting entries by deadline, ties by name so the
// dispatch order is stable. In-flight entries are not queued.
type deadlineHeap []*entry

func (h deadlineHeap) Len() int { return len(h) }

func (h deadlineHeap) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].name < h[j].name
	}
	return h[i].deadline.Before(h[j].deadline)
}

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

func (h *deadlineHeap) push(e *entry) {
	heap.Push(h, e)
}

func (h *deadlineHeap) pop() *entry {
	return heap.Pop(h).(*entry)
}

// peek returns the earliest entry without removing it.
func (h deadlineHeap) peek() *entry {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// fix restores heap order after an entry's deadline changed.
func (h *deadlineHeap) fix(e *entry) {
	if e.index >= 0 {
		heap.Fix(h, e.index)
	}
}
