// Package scheduler debounces edits into a single commit per settle window.
package scheduler

import (
	"sync"
	"time"
)

// DefaultWindow is the settle window used when none is configured.
const DefaultWindow = 2 * time.Second

// Scheduler owns one cancellable timer. Every Schedule call resets it, so the
// commit callback fires only after the window passes without further calls.
type Scheduler struct {
	timer   *time.Timer
	commit  func()
	window  time.Duration
	gen     uint64 // gen инвалидирует таймеры, которые уже сработали, но не успели взять lock
	pending bool
	mu      sync.Mutex
}

// New creates a scheduler that calls commit when the window elapses.
func New(window time.Duration, commit func()) *Scheduler {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Scheduler{window: window, commit: commit}
}

// Window returns the settle window.
func (s *Scheduler) Window() time.Duration {
	return s.window
}

// Schedule (re)starts the settle window.
func (s *Scheduler) Schedule() {
	s.ScheduleAfter(s.window)
}

// ScheduleAfter arms the timer with an explicit delay, replacing any pending one.
func (s *Scheduler) ScheduleAfter(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.pending = true
	gen := s.gen
	s.timer = time.AfterFunc(d, func() { s.fire(gen) })
}

// Hold marks a commit as pending without arming the timer. The commit then
// runs only on FlushNow or a later Schedule.
func (s *Scheduler) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.pending = true
}

// FlushNow cancels the pending timer and runs the commit immediately.
// It reports whether a commit was pending; with nothing pending it does nothing.
func (s *Scheduler) FlushNow() bool {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return false
	}
	s.stopLocked()
	s.mu.Unlock()

	s.commit()
	return true
}

// Cancel clears the pending timer without running the commit.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Pending reports whether a commit is waiting for its timer.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.pending {
		// Таймер был отменён или перезапущен после срабатывания
		s.mu.Unlock()
		return
	}
	s.pending = false
	s.timer = nil
	s.gen++
	s.mu.Unlock()

	s.commit()
}

func (s *Scheduler) stopLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = false
	s.gen++
}
