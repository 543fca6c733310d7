package session

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// DefaultTTL is how long an untouched session survives before the sweeper
// removes it.
const DefaultTTL = 30 * time.Minute

// Controller is the process-wide session registry.
//
// Every operation on an unknown id is a harmless no-op returning false; the
// control surface never raises for expired or mistyped ids.
type Controller struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewController creates an empty session registry.
func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// Create registers a new session for one chapter run.
func (c *Controller) Create(project, chapter string, totalParagraphs int) *Session {
	s := newSession(project, chapter, totalParagraphs)
	c.mu.Lock()
	c.sessions[s.ID] = s
	c.mu.Unlock()
	c.logger.Info("session created", "session_id", s.ID, "project", project, "chapter", chapter)
	return s
}

func (c *Controller) get(id string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessions[id]
}

// Pause closes the session's gate. Idempotent; false for unknown ids.
func (c *Controller) Pause(id string) bool {
	s := c.get(id)
	if s == nil {
		return false
	}
	s.pause()
	return true
}

// Resume opens the session's gate. No-op if not paused; false for unknown
// ids. An optional full replacement chapter text rides along and is applied
// by the run at its next pause point.
func (c *Controller) Resume(id, updatedText string) bool {
	s := c.get(id)
	if s == nil {
		return false
	}
	s.resume(updatedText)
	return true
}

// Cancel flags the session cancelled and unconditionally opens the gate so
// no waiter blocks forever. False for unknown ids.
func (c *Controller) Cancel(id string) bool {
	s := c.get(id)
	if s == nil {
		return false
	}
	s.cancel()
	c.logger.Info("session cancelled", "session_id", id)
	return true
}

// WaitIfPaused returns true immediately when the session is running, false
// when it is unknown or already cancelled. Otherwise it blocks up to
// timeout, returning false on timeout or wake-to-cancelled.
func (c *Controller) WaitIfPaused(id string, timeout time.Duration) bool {
	s := c.get(id)
	if s == nil {
		return false
	}
	return s.waitIfPaused(timeout)
}

// Progress records the run's paragraph cursor for status queries.
func (c *Controller) Progress(id string, current int) {
	if s := c.get(id); s != nil {
		s.mu.Lock()
		s.current = current
		s.lastTouched = time.Now()
		s.mu.Unlock()
	}
}

// Status returns a snapshot of the session, or false for unknown ids.
func (c *Controller) Status(id string) (Status, bool) {
	s := c.get(id)
	if s == nil {
		return Status{}, false
	}
	return s.status(), true
}

// Statuses snapshots every live session, ordered by creation time.
func (c *Controller) Statuses() []Status {
	c.mu.Lock()
	list := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		list = append(list, s)
	}
	c.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	out := make([]Status, len(list))
	for i, s := range list {
		out[i] = s.status()
	}
	return out
}

// Remove deletes the session from the registry, cancelling it first so any
// blocked waiter wakes. Safe to call more than once.
func (c *Controller) Remove(id string) bool {
	c.mu.Lock()
	s, ok := c.sessions[id]
	delete(c.sessions, id)
	c.mu.Unlock()
	if !ok {
		return false
	}
	s.cancel()
	c.logger.Info("session removed", "session_id", id)
	return true
}

// Len reports the number of live sessions.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// SweepExpired removes sessions untouched for longer than ttl and returns
// how many were dropped.
func (c *Controller) SweepExpired(ttl time.Duration) int {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	cutoff := time.Now().Add(-ttl)

	c.mu.Lock()
	var expired []*Session
	for id, s := range c.sessions {
		s.mu.Lock()
		stale := s.lastTouched.Before(cutoff)
		s.mu.Unlock()
		if stale {
			expired = append(expired, s)
			delete(c.sessions, id)
		}
	}
	c.mu.Unlock()

	for _, s := range expired {
		s.cancel()
		c.logger.Warn("session expired", "session_id", s.ID, "project", s.Project)
	}
	return len(expired)
}

// StartSweeper runs SweepExpired on an interval until ctx is done.
func (c *Controller) StartSweeper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.SweepExpired(ttl)
			}
		}
	}()
}
