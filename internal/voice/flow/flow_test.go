package flow

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/interpret"
)

type spokenRecorder struct {
	mu    sync.Mutex
	texts []string
}

func (s *spokenRecorder) Speak(ctx context.Context, text, language string) error {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	return nil
}

func (s *spokenRecorder) last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.texts) == 0 {
		return ""
	}
	return s.texts[len(s.texts)-1]
}

type fakeSubmitter struct {
	mu        sync.Mutex
	err       error
	submitted []map[string]string
}

func (f *fakeSubmitter) Submit(ctx context.Context, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, fields)
	return nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

// say feeds transcripts through the interpreter into the flow, the same way
// the voice session does in production.
func say(f *Flow, k *interpret.KeywordInterpreter, transcripts ...string) {
	ctx := context.Background()
	for _, tr := range transcripts {
		f.Handle(ctx, Input{Transcript: tr, Command: k.Interpret(ctx, tr)})
	}
}

func TestFlow_HandleAfterCompleteIsNoop(t *testing.T) {
	k := interpret.New(nil)
	sub := &fakeSubmitter{}
	f := NewOnboarding(k, sub, &spokenRecorder{}, "en", testLogger())
	f.Begin(context.Background())

	say(f, k, "english", "Sita Devi", "Rampur", "Sitapur", "I want to sell", "9876543210", "1234", "yes")
	if !f.Done() {
		t.Fatalf("flow not done, at step %q", f.CurrentStep())
	}
	say(f, k, "anything else")
	if got := f.CurrentStep(); got != "" {
		t.Fatalf("step after completion = %q, want empty", got)
	}
	if sub.count() != 1 {
		t.Fatalf("submissions = %d, want 1", sub.count())
	}
}

func TestFlow_RetryBoundTriggersFallback(t *testing.T) {
	k := interpret.New(nil)
	f := NewOnboarding(k, &fakeSubmitter{}, &spokenRecorder{}, "en", testLogger())
	f.Begin(context.Background())

	// The language step falls back to English once retries are exhausted.
	say(f, k, "mmm", "hmm", "uh", "what")
	if got := f.CurrentStep(); got != "name" {
		t.Fatalf("step = %q, want name after language fallback", got)
	}
	if got := f.Field(FieldLanguage); got != "en" {
		t.Fatalf("language = %q, want en", got)
	}
}

func TestFlow_ValidationSetsNotice(t *testing.T) {
	k := interpret.New(nil)
	f := NewOnboarding(k, &fakeSubmitter{}, &spokenRecorder{}, "en", testLogger())
	f.Begin(context.Background())

	say(f, k, "english", "Sita", "Rampur", "Sitapur", "buy", "98765")
	if f.Notice() == "" {
		t.Fatal("expected a user-facing notice after invalid phone")
	}
	say(f, k, "9876543210")
	if f.Notice() != "" {
		t.Fatalf("notice = %q, want cleared after valid input", f.Notice())
	}
}

var errSubmit = errors.New("store unavailable")
