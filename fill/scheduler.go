package fill

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet interval between the last trigger and the scan.
const DefaultDebounce = 150 * time.Millisecond

// Scheduler coalesces scan triggers. Every Trigger cancels the pending scan
// and reschedules it after the quiet interval, so a burst of DOM mutations
// produces one scan. A forced trigger keeps the pending scan forced even when
// incremental triggers supersede it.
type Scheduler struct {
	delay time.Duration
	run   func(force bool)

	mu      sync.Mutex
	timer   *time.Timer
	gen     uint64
	force   bool
	stopped bool
}

// NewScheduler returns a Scheduler calling run after delay of quiet. A
// non-positive delay means DefaultDebounce. run is called from a timer
// goroutine.
func NewScheduler(delay time.Duration, run func(force bool)) *Scheduler {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Scheduler{delay: delay, run: run}
}

// Trigger (re)schedules a scan.
func (s *Scheduler) Trigger(force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.force = s.force || force
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.delay, func() { s.fire(gen) })
}

// fire runs the scan unless a later trigger superseded this timer.
func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	force := s.force
	s.force = false
	s.timer = nil
	s.mu.Unlock()

	s.run(force)
}

// Pending reports whether a scan is scheduled.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Stop cancels the pending scan and ignores further triggers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
