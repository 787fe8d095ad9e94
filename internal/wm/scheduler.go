package wm

import (
	"context"
	"sync"
	"time"
)

// Scheduler batches visual updates into frames. Requests with the same key
// made between two ticks collapse into the last one.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]func()
	order   []string
}

// NewScheduler returns an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{pending: make(map[string]func())}
}

// Request schedules fn for the next tick, replacing any pending fn for key.
func (s *Scheduler) Request(key string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[key]; !ok {
		s.order = append(s.order, key)
	}
	s.pending[key] = fn
}

// Cancel drops the pending fn for key, if any.
func (s *Scheduler) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[key]; !ok {
		return
	}
	delete(s.pending, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Pending returns the number of queued updates.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Tick runs every pending fn once, in request order, and returns how many ran.
// Requests made while the frame runs land in the next frame.
func (s *Scheduler) Tick() int {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.order))
	for _, k := range s.order {
		fns = append(fns, s.pending[k])
	}
	s.pending = make(map[string]func())
	s.order = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Run ticks every interval until ctx ends.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second / 60
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.Tick()
		}
	}
}
