package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/capture"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/interpret"
)

type fakeRecorder struct {
	mu       sync.Mutex
	started  int
	stopped  int
	turns    int
	aborted  int
	startErr error

	completions chan capture.Capture
	failures    chan error
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{
		completions: make(chan capture.Capture, 8),
		failures:    make(chan error, 8),
	}
}

func (f *fakeRecorder) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started++
	return nil
}

func (f *fakeRecorder) Stop() {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
}

func (f *fakeRecorder) Turn() {
	f.mu.Lock()
	f.turns++
	f.mu.Unlock()
}

func (f *fakeRecorder) Abort() {
	f.mu.Lock()
	f.aborted++
	f.mu.Unlock()
}

func (f *fakeRecorder) Completions() <-chan capture.Capture { return f.completions }
func (f *fakeRecorder) Failures() <-chan error              { return f.failures }

type fakeTranscriber struct {
	mu    sync.Mutex
	texts map[string]string
	err   error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if t, ok := f.texts[string(audio)]; ok {
		return t, nil
	}
	return string(audio), nil
}

type recordingSpeaker struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingSpeaker) Speak(ctx context.Context, text, language string) error {
	r.mu.Lock()
	r.texts = append(r.texts, text)
	r.mu.Unlock()
	return nil
}

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func newTestSession(rec *fakeRecorder, opts Options) *Session {
	return NewSession(rec, &fakeTranscriber{}, interpret.New(nil), nil, opts, testLogger())
}

func TestSession_CaptureFlowsToResult(t *testing.T) {
	rec := newFakeRecorder()
	s := newTestSession(rec, Options{Language: "en"})
	defer s.Close()

	if err := s.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	if got := s.State(); got != StateListening {
		t.Fatalf("state = %v, want listening", got)
	}

	rec.completions <- capture.Capture{Audio: []byte("create a product")}

	select {
	case res := <-s.Results():
		if res.Transcript != "create a product" {
			t.Errorf("transcript = %q", res.Transcript)
		}
		if res.Command.Intent != interpret.IntentCreateProduct {
			t.Errorf("intent = %q, want CREATE_PRODUCT", res.Command.Intent)
		}
	case <-time.After(time.Second):
		t.Fatal("no result delivered")
	}

	deadline := time.Now().Add(time.Second)
	for s.State() != StateIdle && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if got := s.State(); got != StateIdle {
		t.Fatalf("state after single-shot = %v, want idle", got)
	}
	if s.LastTranscript() != "create a product" {
		t.Errorf("last transcript = %q", s.LastTranscript())
	}
}

func TestSession_ResultsAreFIFO(t *testing.T) {
	rec := newFakeRecorder()
	s := newTestSession(rec, Options{Continuous: true})
	defer s.Close()

	if err := s.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening: %v", err)
	}

	const n = 5
	for i := 0; i < n; i++ {
		rec.completions <- capture.Capture{Audio: []byte(fmt.Sprintf("utterance %d", i))}
	}
	for i := 0; i < n; i++ {
		select {
		case res := <-s.Results():
			want := fmt.Sprintf("utterance %d", i)
			if res.Transcript != want {
				t.Fatalf("result %d transcript = %q, want %q", i, res.Transcript, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("result %d never delivered", i)
		}
	}
}

func TestSession_StopListeningIsIdempotent(t *testing.T) {
	rec := newFakeRecorder()
	s := newTestSession(rec, Options{})
	defer s.Close()

	s.StopListening()
	s.StopListening()
	if got := s.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.aborted != 2 {
		t.Fatalf("aborts = %d, want 2", rec.aborted)
	}
}

func TestSession_DeviceDenialSurfacesError(t *testing.T) {
	rec := newFakeRecorder()
	rec.startErr = capture.ErrDeviceUnavailable
	s := newTestSession(rec, Options{})
	defer s.Close()

	err := s.StartListening(context.Background())
	if !errors.Is(err, capture.ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
	if got := s.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle", got)
	}
	if !errors.Is(s.Err(), capture.ErrDeviceUnavailable) {
		t.Fatalf("Err() = %v, want ErrDeviceUnavailable", s.Err())
	}
}

func TestSession_TranscriptionErrorDeliversErrorResult(t *testing.T) {
	rec := newFakeRecorder()
	svcErr := errors.New("service down")
	tr := &fakeTranscriber{err: svcErr}
	s := NewSession(rec, tr, interpret.New(nil), nil, Options{}, testLogger())
	defer s.Close()

	if err := s.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	rec.completions <- capture.Capture{Audio: []byte("anything")}

	// A consumer reading only Results must see the failure, not silence.
	select {
	case res := <-s.Results():
		if !errors.Is(res.Err, svcErr) {
			t.Fatalf("result.Err = %v, want %v", res.Err, svcErr)
		}
		if res.Transcript != "" {
			t.Errorf("transcript on failed result = %q, want empty", res.Transcript)
		}
	case <-time.After(time.Second):
		t.Fatal("no error result delivered")
	}

	if !errors.Is(s.Err(), svcErr) {
		t.Fatalf("Err() = %v, want %v", s.Err(), svcErr)
	}
	if got := s.State(); got != StateIdle {
		t.Fatalf("state = %v, want idle (never stuck in processing)", got)
	}
}

func TestSession_CaptureFailureDeliversErrorResult(t *testing.T) {
	rec := newFakeRecorder()
	s := newTestSession(rec, Options{})
	defer s.Close()

	micErr := errors.New("microphone lost")
	rec.failures <- micErr

	select {
	case res := <-s.Results():
		if !errors.Is(res.Err, micErr) {
			t.Fatalf("result.Err = %v, want %v", res.Err, micErr)
		}
	case <-time.After(time.Second):
		t.Fatal("no error result delivered")
	}
}

func TestSession_FinishListeningTurnsRecorder(t *testing.T) {
	rec := newFakeRecorder()
	s := newTestSession(rec, Options{})
	defer s.Close()

	if err := s.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	s.FinishListening()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.turns != 1 {
		t.Fatalf("turns = %d, want 1", rec.turns)
	}
	if rec.stopped != 0 {
		t.Fatalf("stops = %d, want 0 (manual turn must not cancel continuous restart)", rec.stopped)
	}
}

func TestSession_ContinuousStaysListeningAfterResult(t *testing.T) {
	rec := newFakeRecorder()
	s := newTestSession(rec, Options{Continuous: true})
	defer s.Close()

	if err := s.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	rec.completions <- capture.Capture{Audio: []byte("search for products")}
	<-s.Results()

	deadline := time.Now().Add(time.Second)
	for s.State() != StateListening && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if got := s.State(); got != StateListening {
		t.Fatalf("state = %v, want listening after continuous turn", got)
	}
}

func TestSession_SpeaksCommandResponse(t *testing.T) {
	rec := newFakeRecorder()
	spk := &recordingSpeaker{}
	s := NewSession(rec, &fakeTranscriber{}, interpret.New(nil), spk, Options{SpeakResponses: true}, testLogger())
	defer s.Close()

	if err := s.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	rec.completions <- capture.Capture{Audio: []byte("accept the order")}
	<-s.Results()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		spk.mu.Lock()
		n := len(spk.texts)
		spk.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	spk.mu.Lock()
	defer spk.mu.Unlock()
	if len(spk.texts) == 0 || spk.texts[0] != "Order accepted" {
		t.Fatalf("spoken = %v, want [Order accepted]", spk.texts)
	}
}
