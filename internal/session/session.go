// Package session tracks pausable, cancelable analysis runs.
//
// A Session is the shared handle between one analysis run and the request
// handlers that pause, resume, or cancel it on the user's behalf. All
// sessions live in a process-wide Controller registry; the run itself is
// the only mutator of its working state, so the controller holds nothing
// but lifecycle flags and progress counters.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one pausable run of the analysis workflow over one chapter.
type Session struct {
	ID        string
	Project   string
	Chapter   string
	CreatedAt time.Time

	mu        sync.Mutex
	paused    bool
	cancelled bool
	// gate is closed while the session may run. Pause swaps in a fresh
	// open channel; resume and cancel close it so no waiter blocks
	// forever.
	gate chan struct{}

	current     int
	total       int
	lastTouched time.Time

	// pendingText carries a full replacement chapter text supplied with a
	// resume call. The run drains it at its next pause point so the text
	// swap stays on the run's own goroutine.
	pendingText string
	hasPending  bool
}

func newSession(project, chapter string, total int) *Session {
	gate := make(chan struct{})
	close(gate) // not paused: gate starts open
	now := time.Now()
	return &Session{
		ID:          uuid.New().String(),
		Project:     project,
		Chapter:     chapter,
		CreatedAt:   now,
		gate:        gate,
		total:       total,
		lastTouched: now,
	}
}

// Status is a point-in-time snapshot of a session.
type Status struct {
	SessionID        string `json:"session_id"`
	Project          string `json:"project"`
	Chapter          string `json:"chapter"`
	Paused           bool   `json:"paused"`
	Cancelled        bool   `json:"cancelled"`
	CurrentParagraph int    `json:"current_paragraph"`
	TotalParagraphs  int    `json:"total_paragraphs"`
}

func (s *Session) status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		SessionID:        s.ID,
		Project:          s.Project,
		Chapter:          s.Chapter,
		Paused:           s.paused,
		Cancelled:        s.cancelled,
		CurrentParagraph: s.current,
		TotalParagraphs:  s.total,
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastTouched = time.Now()
	s.mu.Unlock()
}

func (s *Session) pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()
	if s.paused || s.cancelled {
		return
	}
	s.paused = true
	s.gate = make(chan struct{})
}

func (s *Session) resume(updatedText string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()
	if updatedText != "" {
		s.pendingText = updatedText
		s.hasPending = true
	}
	if !s.paused {
		return
	}
	s.paused = false
	close(s.gate)
}

func (s *Session) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastTouched = time.Now()
	s.cancelled = true
	if s.paused {
		s.paused = false
		close(s.gate)
	}
}

// Cancelled reports whether the session has been cancelled.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// TakePendingText returns and clears any replacement chapter text supplied
// with a resume call. The second return is false when nothing is pending.
func (s *Session) TakePendingText() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasPending {
		return "", false
	}
	text := s.pendingText
	s.pendingText = ""
	s.hasPending = false
	return text, true
}

// waitIfPaused blocks until the gate opens, the timeout elapses, or the
// session is cancelled. It returns true when the run may proceed.
func (s *Session) waitIfPaused(timeout time.Duration) bool {
	s.mu.Lock()
	s.lastTouched = time.Now()
	if s.cancelled {
		s.mu.Unlock()
		return false
	}
	if !s.paused {
		s.mu.Unlock()
		return true
	}
	gate := s.gate
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-gate:
		// Woken by resume or cancel; cancel also opens the gate so the
		// flag decides the outcome.
		return !s.Cancelled()
	case <-timer.C:
		return false
	}
}
