// Package speech wraps a text-to-speech backend behind a serialized
// "speak and await completion" contract. At most one utterance plays at a
// time: a new Speak call cancels whatever is in flight before starting, so
// callers can sequence "prompt, then listen" without overlap.
package speech

import (
	"context"
	"log"
	"sync"
)

// Synthesizer converts text in a language to one playable audio unit.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, language string) ([]byte, error)
}

// Player plays one audio unit to the listener and returns when playback
// ends or ctx is cancelled.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Output serializes speech through a Synthesizer/Player pair. A nil
// synthesizer or player degrades to a silent no-op so flows on platforms
// without speech capability never block.
type Output struct {
	synth  Synthesizer
	player Player
	logger *log.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	current chan struct{} // closed when the in-flight utterance settles
}

// NewOutput creates an Output. logger must not be nil.
func NewOutput(synth Synthesizer, player Player, logger *log.Logger) *Output {
	return &Output{synth: synth, player: player, logger: logger}
}

// Speak synthesizes and plays text, returning once playback has ended. Any
// utterance still playing is cancelled first and awaited, so two utterances
// never overlap. Without a backend Speak logs and returns nil immediately.
func (o *Output) Speak(ctx context.Context, text, language string) error {
	if text == "" {
		return nil
	}
	if o.synth == nil || o.player == nil {
		o.logger.Printf("speech: no synthesis backend, skipping: %s", text)
		return nil
	}

	utterCtx, done := o.begin(ctx)
	defer done()

	audio, err := o.synth.Synthesize(utterCtx, text, language)
	if err != nil {
		// Speech is feedback, not state: log and keep the flow moving.
		o.logger.Printf("speech: synthesize failed: %v", err)
		return nil
	}

	if err := o.player.Play(utterCtx, audio); err != nil && utterCtx.Err() == nil {
		o.logger.Printf("speech: playback failed: %v", err)
	}
	return nil
}

// Cancel stops any in-flight utterance without starting a new one.
func (o *Output) Cancel() {
	o.mu.Lock()
	cancel, current := o.cancel, o.current
	o.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if current != nil {
		<-current
	}
}

// begin cancels the previous utterance, waits for it to settle, and
// registers the new one. The returned done func must be called when the
// utterance finishes.
func (o *Output) begin(ctx context.Context) (context.Context, func()) {
	o.mu.Lock()
	prevCancel, prevDone := o.cancel, o.current
	o.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
	}
	if prevDone != nil {
		<-prevDone
	}

	utterCtx, cancel := context.WithCancel(ctx)
	settled := make(chan struct{})

	o.mu.Lock()
	o.cancel = cancel
	o.current = settled
	o.mu.Unlock()

	return utterCtx, func() {
		cancel()
		o.mu.Lock()
		if o.current == settled {
			o.cancel = nil
			o.current = nil
		}
		o.mu.Unlock()
		close(settled)
	}
}
