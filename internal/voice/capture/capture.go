// Package capture owns microphone acquisition and recording for one voice
// session. A Session runs one recording cycle at a time: it acquires the
// device, accumulates audio chunks, and emits exactly one completion (or
// failure) per cycle. Single-shot cycles stop themselves on a command
// timeout; continuous cycles hand off their audio and reopen after a
// turnaround delay until the caller explicitly stops.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrDeviceUnavailable is returned when the microphone cannot be acquired
// (permission denied or no device present).
var ErrDeviceUnavailable = errors.New("capture: device unavailable")

// Stream is an exclusively owned handle to a live microphone stream.
// Chunks is closed when the underlying source ends. Close releases the
// device and must be called exactly once per acquisition.
type Stream interface {
	Chunks() <-chan []byte
	Close() error
}

// Device is the capability handle for microphone access. Implementations
// may be a real audio transport or a test fake; the Session never touches
// platform audio APIs directly.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Mode selects the listening discipline for a session.
type Mode int

const (
	// ModeSingleShot records one utterance, bounded by CommandTimeout.
	ModeSingleShot Mode = iota
	// ModeContinuous hands off each completed capture and reopens a new
	// recording after Turnaround, until explicitly stopped.
	ModeContinuous
)

// State describes where a session is in its recording lifecycle.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateRecording
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Options tunes a Session. The durations are tuning constants, not
// semantics; zero values disable the corresponding behavior.
type Options struct {
	Mode Mode
	// CommandTimeout bounds a recording cycle. In single-shot mode the
	// cycle completes when it elapses; zero means no automatic stop.
	CommandTimeout time.Duration
	// Turnaround is the delay before a continuous session reopens a new
	// recording after a hand-off.
	Turnaround time.Duration
}

// Capture is the buffered audio of one completed recording cycle.
type Capture struct {
	Audio     []byte
	StartedAt time.Time
}

// cycle is one acquire/record/release pass. A fresh cycle value per pass
// keeps stale timers and goroutines from touching a successor.
type cycle struct {
	stream  Stream
	stopCh  chan struct{} // deliver buffered audio, no restart
	turnCh  chan struct{} // deliver buffered audio, restart if continuous
	abortCh chan struct{} // discard buffered audio
	done    chan struct{}
	started time.Time

	once sync.Once // guards stop/turn/abort signals
}

// Session coordinates recording cycles over one Device. All exported
// methods are safe for concurrent use.
type Session struct {
	device Device
	opts   Options
	logger *log.Logger

	completions chan Capture
	failures    chan error

	mu         sync.Mutex
	state      State
	current    *cycle
	restart    *time.Timer
	restartGen uint64
	closed     bool

	closeOnce sync.Once
}

// NewSession creates a Session around device. logger must not be nil.
func NewSession(device Device, opts Options, logger *log.Logger) *Session {
	return &Session{
		device:      device,
		opts:        opts,
		logger:      logger,
		completions: make(chan Capture, 4),
		failures:    make(chan error, 4),
	}
}

// Completions delivers one Capture per completed recording cycle.
func (s *Session) Completions() <-chan Capture { return s.completions }

// Failures delivers acquisition and stream errors.
func (s *Session) Failures() <-chan error { return s.failures }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start begins a new recording cycle. If a cycle is already active it is
// torn down (audio discarded) before the device is re-acquired, so at most
// one stream is ever open. On device denial it returns
// ErrDeviceUnavailable and emits the same on Failures.
func (s *Session) Start(ctx context.Context) error {
	s.Abort()
	return s.open(ctx, false, 0)
}

// open acquires the device and registers a new cycle. When guarded, the
// cycle is abandoned if gen no longer matches the restart generation: the
// check runs under mu in the same section that registers the cycle, so a
// Stop or Abort that raced a continuous restart either sees the registered
// cycle or prevents its registration, never neither.
func (s *Session) open(ctx context.Context, guarded bool, gen uint64) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("capture: session closed")
	}
	if guarded && gen != s.restartGen {
		s.mu.Unlock()
		return nil
	}
	s.state = StateRequesting
	s.mu.Unlock()

	stream, err := s.device.Acquire(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		werr := fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		s.emitFailure(werr)
		return werr
	}

	c := &cycle{
		stream:  stream,
		stopCh:  make(chan struct{}),
		turnCh:  make(chan struct{}),
		abortCh: make(chan struct{}),
		done:    make(chan struct{}),
		started: time.Now().UTC(),
	}

	s.mu.Lock()
	if closed := s.closed; closed || (guarded && gen != s.restartGen) {
		s.state = StateIdle
		s.mu.Unlock()
		_ = stream.Close()
		if closed {
			return errors.New("capture: session closed")
		}
		return nil
	}
	s.current = c
	s.state = StateRecording
	s.mu.Unlock()

	go s.record(ctx, c)
	return nil
}

// Stop ends the active cycle, delivering its buffered audio, and cancels
// any pending timeout or continuous restart. Calling Stop with no active
// cycle is a no-op.
func (s *Session) Stop() {
	s.cancelRestart()
	c := s.snapshot()
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.stopCh) })
	<-c.done
}

// Turn ends the active cycle delivering its buffered audio, the same way a
// command timeout does: in continuous mode the session reopens after the
// turnaround delay. Callers gating turns manually use Turn instead of Stop
// so hands-free listening survives the hand-off. A no-op when idle.
func (s *Session) Turn() {
	c := s.snapshot()
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.turnCh) })
	<-c.done
}

// Abort ends the active cycle discarding its audio: the stream is released
// and no completion is delivered afterwards. Idempotent; a no-op when idle.
func (s *Session) Abort() {
	s.cancelRestart()
	c := s.snapshot()
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.abortCh) })
	<-c.done
}

// Close aborts any active cycle and closes the event channels. The session
// cannot be restarted afterwards.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.Abort()
		close(s.completions)
		close(s.failures)
	})
}

// record is the per-cycle goroutine: it buffers chunks until the cycle is
// ended by timeout, turn-taking, caller stop, abort, or stream end.
func (s *Session) record(ctx context.Context, c *cycle) {
	defer close(c.done)

	var buf []byte
	var timeoutCh <-chan time.Time
	if s.opts.CommandTimeout > 0 {
		timer := time.NewTimer(s.opts.CommandTimeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	deliver, turn := true, false
	for {
		select {
		case chunk, ok := <-c.stream.Chunks():
			if !ok {
				goto settle
			}
			buf = append(buf, chunk...)
			continue
		case <-timeoutCh:
			turn = true
		case <-c.turnCh:
			turn = true
		case <-c.stopCh:
		case <-c.abortCh:
			deliver = false
		case <-ctx.Done():
			deliver = false
		}
		break
	}

settle:
	s.mu.Lock()
	if s.current == c {
		s.state = StateStopping
	}
	s.mu.Unlock()

	if err := c.stream.Close(); err != nil {
		s.logger.Printf("capture: stream close: %v", err)
	}

	if deliver {
		s.emitCompletion(Capture{Audio: buf, StartedAt: c.started})
	}

	s.mu.Lock()
	if s.current != c {
		s.mu.Unlock()
		return
	}
	s.current = nil
	s.state = StateIdle

	// Turn-taking: reopen after the configured delay unless the caller
	// stops in the interim. Stop/Abort bump the restart generation, so a
	// timer that has already fired and is mid-acquisition abandons its
	// cycle instead of resuming after an explicit stop.
	if deliver && turn && s.opts.Mode == ModeContinuous && !s.closed {
		gen := s.restartGen
		s.restart = time.AfterFunc(s.opts.Turnaround, func() {
			if err := s.open(ctx, true, gen); err != nil {
				s.logger.Printf("capture: continuous restart: %v", err)
			}
		})
	}
	s.mu.Unlock()
}

func (s *Session) snapshot() *cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) cancelRestart() {
	s.mu.Lock()
	s.restartGen++
	if s.restart != nil {
		s.restart.Stop()
		s.restart = nil
	}
	s.mu.Unlock()
}

func (s *Session) emitCompletion(c Capture) {
	select {
	case s.completions <- c:
	default:
		s.logger.Printf("capture: completion dropped, consumer too slow")
	}
}

func (s *Session) emitFailure(err error) {
	select {
	case s.failures <- err:
	default:
	}
}
