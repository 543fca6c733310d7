package session

import (
	"sync"
	"testing"
	"time"
)

func newTestController() *Controller {
	return NewController(nil)
}

func TestUnknownIDOperations(t *testing.T) {
	c := newTestController()

	if c.Pause("nope") {
		t.Error("Pause on unknown id should return false")
	}
	if c.Resume("nope", "") {
		t.Error("Resume on unknown id should return false")
	}
	if c.Cancel("nope") {
		t.Error("Cancel on unknown id should return false")
	}
	if c.Remove("nope") {
		t.Error("Remove on unknown id should return false")
	}
	if c.WaitIfPaused("nope", time.Second) {
		t.Error("WaitIfPaused on unknown id should return false")
	}
	if _, ok := c.Status("nope"); ok {
		t.Error("Status on unknown id should report not found")
	}
}

func TestWaitIfPaused_NotPausedReturnsImmediately(t *testing.T) {
	c := newTestController()
	s := c.Create("proj", "ch1", 3)

	start := time.Now()
	if !c.WaitIfPaused(s.ID, 5*time.Second) {
		t.Fatal("expected true when not paused")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("not-paused wait took %v, expected immediate return", elapsed)
	}
}

func TestWaitIfPaused_TimesOut(t *testing.T) {
	c := newTestController()
	s := c.Create("proj", "ch1", 3)
	c.Pause(s.ID)

	start := time.Now()
	if c.WaitIfPaused(s.ID, 50*time.Millisecond) {
		t.Fatal("expected false on timeout")
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("returned before timeout: %v", elapsed)
	}
}

func TestWaitIfPaused_ResumeUnblocks(t *testing.T) {
	c := newTestController()
	s := c.Create("proj", "ch1", 3)
	c.Pause(s.ID)

	done := make(chan bool, 1)
	go func() {
		done <- c.WaitIfPaused(s.ID, 5*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	if !c.Resume(s.ID, "") {
		t.Fatal("resume failed")
	}

	select {
	case ok := <-done:
		if !ok {
			t.Error("expected true after resume")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not unblocked by resume")
	}
}

func TestWaitIfPaused_CancelUnblocksToFalse(t *testing.T) {
	c := newTestController()
	s := c.Create("proj", "ch1", 3)
	c.Pause(s.ID)

	done := make(chan bool, 1)
	go func() {
		done <- c.WaitIfPaused(s.ID, 5*time.Second)
	}()

	time.Sleep(20 * time.Millisecond)
	c.Cancel(s.ID)

	select {
	case ok := <-done:
		if ok {
			t.Error("expected false after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not unblocked by cancel")
	}
}

func TestWaitIfPaused_AlreadyCancelled(t *testing.T) {
	c := newTestController()
	s := c.Create("proj", "ch1", 3)
	c.Cancel(s.ID)
	if c.WaitIfPaused(s.ID, time.Second) {
		t.Error("expected false for cancelled session")
	}
}

func TestPauseResumeIdempotent(t *testing.T) {
	c := newTestController()
	s := c.Create("proj", "ch1", 3)

	c.Pause(s.ID)
	c.Pause(s.ID)
	st, _ := c.Status(s.ID)
	if !st.Paused {
		t.Error("expected paused")
	}

	c.Resume(s.ID, "")
	c.Resume(s.ID, "")
	st, _ = c.Status(s.ID)
	if st.Paused {
		t.Error("expected resumed")
	}

	// Resume when not paused is a no-op.
	c.Resume(s.ID, "")
	if !c.WaitIfPaused(s.ID, time.Second) {
		t.Error("expected runnable after redundant resume")
	}
}

func TestCancelIdempotentAndSticky(t *testing.T) {
	c := newTestController()
	s := c.Create("proj", "ch1", 3)
	c.Pause(s.ID)
	c.Cancel(s.ID)
	c.Cancel(s.ID)

	if !s.Cancelled() {
		t.Error("expected cancelled")
	}
	// Resume after cancel does not revive the run.
	c.Resume(s.ID, "")
	if c.WaitIfPaused(s.ID, 50*time.Millisecond) {
		t.Error("cancelled session should never become runnable")
	}
}

func TestResumeCarriesPendingText(t *testing.T) {
	c := newTestController()
	s := c.Create("proj", "ch1", 3)
	c.Pause(s.ID)
	c.Resume(s.ID, "fresh chapter text")

	text, ok := s.TakePendingText()
	if !ok || text != "fresh chapter text" {
		t.Errorf("TakePendingText = %q, %v", text, ok)
	}
	if _, ok := s.TakePendingText(); ok {
		t.Error("pending text should be drained after take")
	}
}

func TestRemoveWakesWaiter(t *testing.T) {
	c := newTestController()
	s := c.Create("proj", "ch1", 3)
	c.Pause(s.ID)

	done := make(chan bool, 1)
	go func() {
		done <- c.WaitIfPaused(s.ID, 5*time.Second)
	}()
	time.Sleep(20 * time.Millisecond)
	c.Remove(s.ID)

	select {
	case ok := <-done:
		if ok {
			t.Error("expected false after remove")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter not unblocked by remove")
	}

	if c.Len() != 0 {
		t.Errorf("expected empty registry, got %d", c.Len())
	}
}

func TestSweepExpired(t *testing.T) {
	c := newTestController()
	stale := c.Create("proj", "ch1", 1)
	fresh := c.Create("proj", "ch2", 1)

	stale.mu.Lock()
	stale.lastTouched = time.Now().Add(-time.Hour)
	stale.mu.Unlock()

	if n := c.SweepExpired(30 * time.Minute); n != 1 {
		t.Fatalf("expected 1 swept, got %d", n)
	}
	if _, ok := c.Status(stale.ID); ok {
		t.Error("stale session should be gone")
	}
	if _, ok := c.Status(fresh.ID); !ok {
		t.Error("fresh session should survive")
	}
}

func TestConcurrentPauseResume(t *testing.T) {
	c := newTestController()
	s := c.Create("proj", "ch1", 1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Pause(s.ID)
		}()
		go func() {
			defer wg.Done()
			c.Resume(s.ID, "")
		}()
	}
	wg.Wait()

	// Whatever interleaving happened, the session must be resolvable.
	c.Resume(s.ID, "")
	if !c.WaitIfPaused(s.ID, time.Second) {
		t.Error("session unresolvable after concurrent pause/resume storm")
	}
}
