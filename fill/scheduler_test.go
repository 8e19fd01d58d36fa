package fill

import (
	"sync"
	"testing"
	"time"
)

type runs struct {
	mu     sync.Mutex
	forces []bool
	done   chan struct{}
}

func newRuns() *runs { return &runs{done: make(chan struct{}, 16)} }

func (r *runs) run(force bool) {
	r.mu.Lock()
	r.forces = append(r.forces, force)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *runs) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.forces...)
}

func (r *runs) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("scan never ran")
	}
}

func TestScheduler_CoalescesBurst(t *testing.T) {
	r := newRuns()
	s := NewScheduler(50*time.Millisecond, r.run)
	defer s.Stop()

	for i := 0; i < 10; i++ {
		s.Trigger(false)
		time.Sleep(2 * time.Millisecond)
	}
	r.wait(t)
	time.Sleep(100 * time.Millisecond)

	got := r.snapshot()
	if len(got) != 1 {
		t.Fatalf("runs = %d, want 1", len(got))
	}
	if got[0] {
		t.Error("incremental burst ran forced")
	}
}

func TestScheduler_ForceIsSticky(t *testing.T) {
	r := newRuns()
	s := NewScheduler(30*time.Millisecond, r.run)
	defer s.Stop()

	s.Trigger(true)
	s.Trigger(false)
	s.Trigger(false)
	r.wait(t)

	if got := r.snapshot(); len(got) != 1 || !got[0] {
		t.Fatalf("runs = %v, want [true]", got)
	}

	// The force flag does not leak into the next window.
	s.Trigger(false)
	r.wait(t)
	if got := r.snapshot(); len(got) != 2 || got[1] {
		t.Fatalf("runs = %v, want [true false]", got)
	}
}

func TestScheduler_SeparateWindows(t *testing.T) {
	r := newRuns()
	s := NewScheduler(10*time.Millisecond, r.run)
	defer s.Stop()

	s.Trigger(false)
	r.wait(t)
	s.Trigger(false)
	r.wait(t)

	if got := r.snapshot(); len(got) != 2 {
		t.Fatalf("runs = %d, want 2", len(got))
	}
}

func TestScheduler_Stop(t *testing.T) {
	r := newRuns()
	s := NewScheduler(20*time.Millisecond, r.run)

	s.Trigger(false)
	if !s.Pending() {
		t.Error("expected a pending scan")
	}
	s.Stop()
	s.Trigger(true)
	time.Sleep(60 * time.Millisecond)

	if got := r.snapshot(); len(got) != 0 {
		t.Fatalf("runs after stop = %v", got)
	}
	if s.Pending() {
		t.Error("pending after stop")
	}
}

func TestScheduler_DefaultDelay(t *testing.T) {
	s := NewScheduler(0, func(bool) {})
	if s.delay != DefaultDebounce {
		t.Errorf("delay = %v", s.delay)
	}
}
