package encryptedquery

import (
	"sync"
	"time"
)

// PullDiagnostics describes one completed pull.
type PullDiagnostics struct {
	ActivityID string
	StatusCode int
	Duration   time.Duration
	Documents  int
	Failures   int
}

// DiagnosticsSampler decides which pulls are worth logging in detail. A pull
// is emitted only when minDelay has passed since the last emitted pull and it
// is slower than every pull emitted before it, so at most one pull is
// emitted per minDelay. Emitted diagnostics are kept in a ring buffer.
// It is safe for concurrent use.
type DiagnosticsSampler struct {
	minDelay time.Duration
	now      func() time.Time

	mu          sync.Mutex
	lastEmitted time.Time
	maxObserved time.Duration
	recent      []PullDiagnostics
	next        int
	full        bool
}

// NewDiagnosticsSampler creates a sampler keeping the last capacity emitted entries.
func NewDiagnosticsSampler(minDelay time.Duration, capacity int) *DiagnosticsSampler {
	if capacity < 1 {
		capacity = 1
	}
	return &DiagnosticsSampler{
		minDelay: minDelay,
		now:      time.Now,
		recent:   make([]PullDiagnostics, capacity),
	}
}

var defaultSampler = NewDiagnosticsSampler(time.Minute, 32)

// DefaultDiagnosticsSampler returns the process-wide sampler used when no
// WithDiagnosticsSampler option is given.
func DefaultDiagnosticsSampler() *DiagnosticsSampler {
	return defaultSampler
}

// Offer reports whether d should be emitted and, if so, records it.
func (s *DiagnosticsSampler) Offer(d PullDiagnostics) bool {
	if s == nil {
		return false
	}

	// Both checks and both updates happen under one lock so two pulls cannot
	// both claim the same window.
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if !s.lastEmitted.IsZero() && now.Sub(s.lastEmitted) < s.minDelay {
		return false
	}
	if d.Duration <= s.maxObserved {
		return false
	}
	s.lastEmitted = now
	s.maxObserved = d.Duration

	s.recent[s.next] = d
	s.next = (s.next + 1) % len(s.recent)
	if s.next == 0 {
		s.full = true
	}
	return true
}

// Recent returns the emitted diagnostics, oldest first.
func (s *DiagnosticsSampler) Recent() []PullDiagnostics {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.full {
		return append([]PullDiagnostics(nil), s.recent[:s.next]...)
	}
	out := make([]PullDiagnostics, 0, len(s.recent))
	out = append(out, s.recent[s.next:]...)
	return append(out, s.recent[:s.next]...)
}
