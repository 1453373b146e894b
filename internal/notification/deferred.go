package notification

import (
	"sync"
	"time"
)

// delayUntil returns how long n must wait before it is due, or zero if it
// is due now.
func delayUntil(n Notification, now time.Time) time.Duration {
	if n.ScheduledAt == nil {
		return 0
	}
	return max(n.ScheduledAt.Sub(now), 0)
}

// timerSet holds callbacks waiting for a notification's scheduled time,
// keyed by notification ID.
type timerSet struct {
	mu      sync.Mutex
	pending map[string]*time.Timer
}

// after runs fn once delay has passed. It reports false if id is already waiting.
func (s *timerSet) after(id string, delay time.Duration, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = make(map[string]*time.Timer)
	}
	if _, exists := s.pending[id]; exists {
		return false
	}
	s.pending[id] = time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
		fn()
	})
	return true
}

func (s *timerSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// stop cancels everything still waiting.
func (s *timerSet) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}
