package httpapi

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestSessionRegistry_AddAndDone(t *testing.T) {
	sr := NewSessionRegistry()

	if sr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", sr.ActiveCount())
	}

	if !sr.Add() {
		t.Error("Add() should return true when not draining")
	}
	if sr.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d, want 1", sr.ActiveCount())
	}

	if !sr.Add() {
		t.Error("Add() should return true when not draining")
	}
	if sr.ActiveCount() != 2 {
		t.Errorf("ActiveCount() = %d, want 2", sr.ActiveCount())
	}

	sr.Done()
	if sr.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d, want 1 after one Done()", sr.ActiveCount())
	}

	sr.Done()
	if sr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0 after all Done()", sr.ActiveCount())
	}
}

func TestSessionRegistry_Draining(t *testing.T) {
	sr := NewSessionRegistry()

	if sr.IsDraining() {
		t.Error("IsDraining() should be false initially")
	}

	// Add a session before draining
	if !sr.Add() {
		t.Error("Add() should succeed before draining")
	}

	sr.StartDraining()

	if !sr.IsDraining() {
		t.Error("IsDraining() should be true after StartDraining()")
	}

	// New sessions should be rejected
	if sr.Add() {
		t.Error("Add() should return false when draining")
	}

	// Active count should still be 1 (the pre-drain session)
	if sr.ActiveCount() != 1 {
		t.Errorf("ActiveCount() = %d, want 1", sr.ActiveCount())
	}

	// Complete the existing session
	sr.Done()
	if sr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", sr.ActiveCount())
	}
}

func TestSessionRegistry_WaitBlocksUntilDone(t *testing.T) {
	sr := NewSessionRegistry()

	sr.Add()
	sr.Add()

	done := make(chan struct{})
	go func() {
		sr.Wait()
		close(done)
	}()

	// Wait should not complete yet
	select {
	case <-done:
		t.Error("Wait() should block while sessions are live")
	default:
	}

	sr.Done()

	// Still one live
	select {
	case <-done:
		t.Error("Wait() should block while sessions are live")
	default:
	}

	sr.Done()

	// Now Wait should complete
	<-done
}

func TestSessionRegistry_ConcurrentAddAndDone(t *testing.T) {
	sr := NewSessionRegistry()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if sr.Add() {
				defer sr.Done()
			}
		}()
	}

	wg.Wait()

	if sr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0 after all goroutines done", sr.ActiveCount())
	}
}

func TestSessionRegistry_DrainDuringConcurrentAdds(t *testing.T) {
	sr := NewSessionRegistry()
	const n = 100

	var wg sync.WaitGroup
	var accepted, rejected int64
	var mu sync.Mutex

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if sr.Add() {
				mu.Lock()
				accepted++
				mu.Unlock()
				defer sr.Done()
			} else {
				mu.Lock()
				rejected++
				mu.Unlock()
			}
		}()

		// Start draining midway
		if i == n/2 {
			sr.StartDraining()
		}
	}

	wg.Wait()

	if accepted+rejected != n {
		t.Errorf("accepted(%d) + rejected(%d) != %d", accepted, rejected, n)
	}
	if rejected == 0 {
		t.Error("expected some sessions to be rejected after draining started")
	}
	if sr.ActiveCount() != 0 {
		t.Errorf("ActiveCount() = %d, want 0", sr.ActiveCount())
	}
}

func TestHealthzReportsDraining(t *testing.T) {
	sr := NewSessionRegistry()
	r := &Router{
		logger:   log.New(io.Discard, "", 0),
		sessions: sr,
	}

	t.Run("returns 200 when not draining", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		r.handleHealthz(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if body := rec.Body.String(); body != "ok" {
			t.Errorf("body = %q, want %q", body, "ok")
		}
	})

	t.Run("returns 503 when draining", func(t *testing.T) {
		sr.StartDraining()

		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		r.handleHealthz(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
		if body := rec.Body.String(); body != "draining" {
			t.Errorf("body = %q, want %q", body, "draining")
		}
	})
}
