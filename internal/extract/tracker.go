package extract

import (
	"sync"
)

// Progress is a snapshot of how far an extraction run has gotten
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Percent returns completion in [0, 100]
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total) * 100
}

// Tracker fans progress updates out to any number of subscribers
// (logging, the status server's websocket clients). Slow subscribers
// skip updates rather than stalling the workers.
type Tracker struct {
	mu      sync.RWMutex
	current Progress
	subs    map[chan Progress]struct{}
	closed  bool
}

// NewTracker creates a tracker for a run with the given frame total
func NewTracker(total int) *Tracker {
	return &Tracker{
		current: Progress{Total: total},
		subs:    make(map[chan Progress]struct{}),
	}
}

// Update publishes a new progress snapshot
func (t *Tracker) Update(done, total int) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.current = Progress{Done: done, Total: total}
	p := t.current
	for ch := range t.subs {
		select {
		case ch <- p:
		default:
			// Subscriber is behind, skip this update
		}
	}
	t.mu.Unlock()
}

// Snapshot returns the latest progress
func (t *Tracker) Snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Subscribe registers a new progress listener
func (t *Tracker) Subscribe() chan Progress {
	ch := make(chan Progress, 8)
	t.mu.Lock()
	if t.closed {
		close(ch)
	} else {
		t.subs[ch] = struct{}{}
	}
	t.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener registered with Subscribe
func (t *Tracker) Unsubscribe(ch chan Progress) {
	t.mu.Lock()
	if _, ok := t.subs[ch]; ok {
		delete(t.subs, ch)
		close(ch)
	}
	t.mu.Unlock()
}

// Close ends the run; all subscriber channels are closed
func (t *Tracker) Close() {
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		for ch := range t.subs {
			close(ch)
		}
		t.subs = make(map[chan Progress]struct{})
	}
	t.mu.Unlock()
}
