// Package voice coordinates one user's voice interaction: it owns the
// capture session, runs transcription and interpretation over each completed
// capture, and publishes the results to whoever is driving the conversation.
package voice

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/capture"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/interpret"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/transcribe"
)

// State is the externally observable phase of a voice session.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateListening
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Result is one settled capture cycle. On success Transcript and Command
// travel together so consumers never see a command without its transcript.
// When the cycle failed (device loss, transcription error) Err is set and
// the other fields are zero; consumers surface the failure and retry.
type Result struct {
	Transcript string
	Command    interpret.Command
	// TranscribeSeconds is the transcription latency for this utterance,
	// zero when the failure happened before transcription ran.
	TranscribeSeconds float64
	Err               error
}

// Recorder is the capture capability the session drives. Satisfied by
// *capture.Session.
type Recorder interface {
	Start(ctx context.Context) error
	Stop()
	Turn()
	Abort()
	Completions() <-chan capture.Capture
	Failures() <-chan error
}

// Speaker voices feedback to the user. May be nil when the session has no
// audio output path.
type Speaker interface {
	Speak(ctx context.Context, text, language string) error
}

// Options tunes a Session.
type Options struct {
	// Continuous keeps the session listening turn after turn; the capture
	// layer reopens the microphone between turns.
	Continuous bool
	// Language is the BCP 47 hint passed to transcription and spoken
	// feedback, e.g. "hi" or "en".
	Language string
	// SpeakResponses voices each command's SpokenResponse through the
	// Speaker after publishing the result.
	SpeakResponses bool
}

// Session is the per-user voice coordinator. One goroutine pumps capture
// events through transcription and interpretation, so results are delivered
// in the order their captures started.
type Session struct {
	recorder    Recorder
	transcriber transcribe.Transcriber
	interpreter interpret.Interpreter
	speaker     Speaker
	opts        Options
	logger      *log.Logger

	results chan Result

	mu             sync.Mutex
	state          State
	lastTranscript string
	lastErr        error

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewSession wires a coordinator over its capabilities and starts the event
// pump. Call Close to release it.
func NewSession(rec Recorder, tr transcribe.Transcriber, in interpret.Interpreter, spk Speaker, opts Options, logger *log.Logger) *Session {
	s := &Session{
		recorder:    rec,
		transcriber: tr,
		interpreter: in,
		speaker:     spk,
		opts:        opts,
		logger:      logger,
		results:     make(chan Result, 8),
		done:        make(chan struct{}),
	}
	s.wg.Add(1)
	go s.pump()
	return s
}

// Results delivers one Result per settled capture cycle, FIFO. Failed
// cycles arrive with Err set.
func (s *Session) Results() <-chan Result { return s.results }

// State returns the current phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastTranscript returns the most recent transcript, for display.
func (s *Session) LastTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTranscript
}

// Err returns the most recent session error, cleared on the next successful
// StartListening.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// StartListening opens a new listen cycle. Any pending cycle is cancelled
// first. On device denial the session returns to Idle with the error
// surfaced via Err.
func (s *Session) StartListening(ctx context.Context) error {
	s.mu.Lock()
	s.state = StateRequesting
	s.lastErr = nil
	s.mu.Unlock()

	if err := s.recorder.Start(ctx); err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.lastErr = err
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.state = StateListening
	s.mu.Unlock()
	return nil
}

// StopListening cancels the active cycle without delivering its audio and
// returns to Idle. Calling it while Idle is a no-op.
func (s *Session) StopListening() {
	s.recorder.Abort()
	s.mu.Lock()
	s.state = StateIdle
	s.mu.Unlock()
}

// FinishListening ends the active cycle and lets its buffered audio flow
// through transcription, for callers that gate turns manually. In
// continuous mode the recorder reopens on its own afterwards.
func (s *Session) FinishListening() {
	s.recorder.Turn()
}

// Close stops listening and shuts down the event pump.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.recorder.Abort()
		close(s.done)
		s.wg.Wait()
		close(s.results)
	})
}

// pump serializes all capture events: one capture settles completely before
// the next is examined, which is what makes delivery FIFO.
func (s *Session) pump() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case c, ok := <-s.recorder.Completions():
			if !ok {
				return
			}
			s.process(c)
		case err, ok := <-s.recorder.Failures():
			if !ok {
				return
			}
			s.fail(err, 0)
		}
	}
}

func (s *Session) process(c capture.Capture) {
	s.mu.Lock()
	s.state = StateProcessing
	s.mu.Unlock()

	ctx := context.Background()

	started := time.Now()
	text, err := s.transcriber.Transcribe(ctx, c.Audio, s.opts.Language)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		s.fail(err, elapsed)
		return
	}

	s.mu.Lock()
	s.lastTranscript = text
	s.mu.Unlock()

	cmd := s.interpreter.Interpret(ctx, text)

	select {
	case s.results <- Result{Transcript: text, Command: cmd, TranscribeSeconds: elapsed}:
	case <-s.done:
		return
	}

	if s.opts.SpeakResponses && s.speaker != nil && cmd.SpokenResponse != "" {
		if err := s.speaker.Speak(ctx, cmd.SpokenResponse, s.opts.Language); err != nil {
			s.logger.Printf("voice: speak response: %v", err)
		}
	}

	s.mu.Lock()
	if s.opts.Continuous {
		// The capture layer reopens the microphone after its turnaround
		// delay; surface that as still-listening rather than idle.
		s.state = StateListening
	} else {
		s.state = StateIdle
	}
	s.mu.Unlock()
}

// fail records the error, parks the session at Idle, and delivers an error
// Result so the consumer can surface the failure and restart listening. A
// failed session is never left in Processing.
func (s *Session) fail(err error, transcribeSeconds float64) {
	s.logger.Printf("voice: session error: %v", err)
	s.recorder.Abort()
	s.mu.Lock()
	s.lastErr = err
	s.state = StateIdle
	s.mu.Unlock()

	select {
	case s.results <- Result{Err: err, TranscribeSeconds: transcribeSeconds}:
	case <-s.done:
	}
}
