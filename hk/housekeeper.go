// Package hk provides a mechanism for registering periodic cleanup and
// supervisory functions invoked at their own configured intervals, shared
// by every package that needs a background tick: the Membrane's idle
// monitor (spec.md §4.4, every 5s), the observability sampler (§4.8, every
// 1s), and the discovery beacon's periodic announce. Grounded on aistore's own
// hk package (same Reg/Unreg vocabulary, a single background goroutine
// driving a min-heap of scheduled jobs rather than one ticker per job).
package hk

import (
	"container/heap"
	"sync"
	"time"
)

// Func is a registered job. It returns the delay until its next
// invocation; returning <= 0 unregisters the job.
type Func func() time.Duration

type entry struct {
	name  string
	fn    Func
	due   time.Time
	index int // heap index, maintained by container/heap
}

type jobHeap []*entry

func (h jobHeap) Len() int            { return len(h) }
func (h jobHeap) Less(i, j int) bool  { return h[i].due.Before(h[j].due) }
func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *jobHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// Housekeeper runs registered Funcs on their own schedules from a single
// background goroutine.
type Housekeeper struct {
	mu      sync.Mutex
	byName  map[string]*entry
	pending jobHeap
	wake    chan struct{}
	started chan struct{}
	stopCh  chan struct{}
	once    sync.Once
}

// New constructs a Housekeeper. Call Run in its own goroutine to start it.
func New() *Housekeeper {
	return &Housekeeper{
		byName:  make(map[string]*entry),
		wake:    make(chan struct{}, 1),
		started: make(chan struct{}),
		stopCh:  make(chan struct{}),
	}
}

// DefaultHK is the process-wide Housekeeper used by membrane, stats and
// discovery unless a caller constructs its own (tests typically do, for
// isolation).
var DefaultHK = New()

// Reg schedules fn to first run after initial, then at whatever delay it
// returns. Re-registering an existing name replaces it.
func (hk *Housekeeper) Reg(name string, fn Func, initial time.Duration) {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	if old, ok := hk.byName[name]; ok {
		old.fn = nil // mark stale; dropped when popped
		heap.Remove(&hk.pending, old.index)
		delete(hk.byName, name)
	}
	e := &entry{name: name, fn: fn, due: time.Now().Add(initial)}
	hk.byName[name] = e
	heap.Push(&hk.pending, e)
	hk.nudge()
}

// Unreg removes a registered job by name; a no-op if absent.
func (hk *Housekeeper) Unreg(name string) {
	hk.mu.Lock()
	defer hk.mu.Unlock()
	if e, ok := hk.byName[name]; ok {
		e.fn = nil
		heap.Remove(&hk.pending, e.index)
		delete(hk.byName, name)
	}
}

func (hk *Housekeeper) nudge() {
	select {
	case hk.wake <- struct{}{}:
	default:
	}
}

// WaitStarted blocks until Run has entered its loop — used by tests that
// register jobs before the goroutine driving them has started.
func (hk *Housekeeper) WaitStarted() { <-hk.started }

// Run drives the schedule until Stop is called. Intended to be run in its
// own goroutine (go hk.DefaultHK.Run()).
func (hk *Housekeeper) Run() {
	hk.once.Do(func() { close(hk.started) })
	for {
		hk.mu.Lock()
		var wait time.Duration
		if hk.pending.Len() == 0 {
			wait = time.Hour
		} else {
			wait = time.Until(hk.pending[0].due)
			if wait < 0 {
				wait = 0
			}
		}
		hk.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-hk.stopCh:
			timer.Stop()
			return
		case <-hk.wake:
			timer.Stop()
		case <-timer.C:
		}
		hk.fireDue()
	}
}

func (hk *Housekeeper) fireDue() {
	now := time.Now()
	var due []*entry
	hk.mu.Lock()
	for hk.pending.Len() > 0 && !hk.pending[0].due.After(now) {
		e := heap.Pop(&hk.pending).(*entry)
		if e.fn == nil {
			continue // unregistered between scheduling and firing
		}
		delete(hk.byName, e.name)
		due = append(due, e)
	}
	hk.mu.Unlock()

	for _, e := range due {
		next := e.fn()
		if next > 0 {
			hk.Reg(e.name, e.fn, next)
		}
	}
}

// Stop terminates Run's loop.
func (hk *Housekeeper) Stop() { close(hk.stopCh) }
