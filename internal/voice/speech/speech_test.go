package speech

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"
)

type fakeSynth struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeSynth) Synthesize(_ context.Context, text, _ string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	return []byte(text), nil
}

// blockingPlayer simulates playback that lasts until its context is
// cancelled or the fixed duration elapses.
type blockingPlayer struct {
	playFor time.Duration

	mu      sync.Mutex
	playing int
	maxSeen int
}

func (p *blockingPlayer) Play(ctx context.Context, _ []byte) error {
	p.mu.Lock()
	p.playing++
	if p.playing > p.maxSeen {
		p.maxSeen = p.playing
	}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.playing--
		p.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.playFor):
		return nil
	}
}

func testLogger() *log.Logger {
	return log.New(os.Stderr, "", 0)
}

func TestOutput_SpeakCompletes(t *testing.T) {
	synth := &fakeSynth{}
	player := &blockingPlayer{playFor: 5 * time.Millisecond}
	out := NewOutput(synth, player, testLogger())

	if err := out.Speak(context.Background(), "hello", "en-IN"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(synth.calls) != 1 || synth.calls[0] != "hello" {
		t.Errorf("synth calls = %v, want [hello]", synth.calls)
	}
}

func TestOutput_NeverOverlapsUtterances(t *testing.T) {
	synth := &fakeSynth{}
	player := &blockingPlayer{playFor: time.Second}
	out := NewOutput(synth, player, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = out.Speak(context.Background(), "utterance", "en-IN")
		}()
		time.Sleep(5 * time.Millisecond)
	}
	out.Cancel()
	wg.Wait()

	player.mu.Lock()
	defer player.mu.Unlock()
	if player.maxSeen > 1 {
		t.Errorf("observed %d concurrent playbacks, want at most 1", player.maxSeen)
	}
}

func TestOutput_NoBackendResolvesImmediately(t *testing.T) {
	out := NewOutput(nil, nil, testLogger())

	done := make(chan error, 1)
	go func() { done <- out.Speak(context.Background(), "anything", "hi-IN") }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Speak without backend: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Speak without backend blocked")
	}
}

func TestOutput_EmptyTextIsNoop(t *testing.T) {
	synth := &fakeSynth{}
	out := NewOutput(synth, &blockingPlayer{}, testLogger())
	if err := out.Speak(context.Background(), "", "en-IN"); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if len(synth.calls) != 0 {
		t.Errorf("synthesizer called for empty text")
	}
}
