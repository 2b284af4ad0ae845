package httpapi

import (
	"context"
	"encoding/base64"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/eventlog"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/metrics"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/capture"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/interpret"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/speech"
)

func testLogger() *log.Logger {
	return log.New(os.Stderr, "[test] ", 0)
}

func TestEstimateAudioSeconds(t *testing.T) {
	tests := []struct {
		name  string
		bytes int
		want  int
	}{
		{"empty session", 0, 0},
		{"under half a second rounds down", 1500, 0},
		{"over half a second rounds up", 2500, 1},
		{"exact seconds", 12000, 3},
		{"long session", 4000 * 300, 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateAudioSeconds(tt.bytes); got != tt.want {
				t.Errorf("estimateAudioSeconds(%d) = %d, want %d", tt.bytes, got, tt.want)
			}
		})
	}
}

func TestCaptureOptionsContinuous(t *testing.T) {
	cfg := RouterConfig{
		CommandTimeout: 10 * time.Second,
		Turnaround:     750 * time.Millisecond,
	}

	single := captureOptions(cfg, false)
	if single.Mode != capture.ModeSingleShot {
		t.Errorf("single-shot mode = %v, want ModeSingleShot", single.Mode)
	}
	if single.Turnaround != 0 {
		t.Errorf("single-shot turnaround = %v, want 0", single.Turnaround)
	}
	if single.CommandTimeout != cfg.CommandTimeout {
		t.Errorf("single-shot timeout = %v, want %v", single.CommandTimeout, cfg.CommandTimeout)
	}

	cont := captureOptions(cfg, true)
	if cont.Mode != capture.ModeContinuous {
		t.Errorf("continuous mode = %v, want ModeContinuous", cont.Mode)
	}
	if cont.Turnaround != cfg.Turnaround {
		t.Errorf("continuous turnaround = %v, want %v", cont.Turnaround, cfg.Turnaround)
	}
	if cont.CommandTimeout != cfg.CommandTimeout {
		t.Errorf("continuous timeout = %v, want %v", cont.CommandTimeout, cfg.CommandTimeout)
	}
}

func TestWSDeviceSingleAcquisition(t *testing.T) {
	d := &wsDevice{}

	st, err := d.Acquire(context.Background())
	if err != nil {
		t.Fatalf("first Acquire failed: %v", err)
	}

	if _, err := d.Acquire(context.Background()); err != capture.ErrDeviceUnavailable {
		t.Fatalf("second Acquire error = %v, want ErrDeviceUnavailable", err)
	}

	if err := st.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := d.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire after Close failed: %v", err)
	}
}

func TestWSDevicePushDeliversToActiveStream(t *testing.T) {
	d := &wsDevice{}

	// Pushing with no live stream is dropped, not a panic.
	d.push([]byte("dropped"))

	st, err := d.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	d.push([]byte("chunk-1"))
	d.push([]byte("chunk-2"))

	select {
	case got := <-st.Chunks():
		if string(got) != "chunk-1" {
			t.Errorf("first chunk = %q, want chunk-1", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for chunk")
	}

	st.Close()

	// Pushes after Close must not panic on the closed channel.
	d.push([]byte("late"))
}

func TestWSDeviceCloseIsIdempotent(t *testing.T) {
	d := &wsDevice{}
	st, err := d.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestVoiceWSRejectsBadToken(t *testing.T) {
	r := &Router{
		cfg:      RouterConfig{JWTSecret: "test-secret", WhisperAPIKey: "key"},
		logger:   testLogger(),
		sessions: NewSessionRegistry(),
		metrics:  metrics.DefaultMetrics,
	}

	srv := httptest.NewServer(http.HandlerFunc(r.handleVoiceWS))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "?token=not-a-jwt"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected handshake to fail for bad token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %v, want 401", resp)
	}
}

type stubTranscriber struct {
	text string
}

func (s stubTranscriber) Transcribe(ctx context.Context, audio []byte, language string) (string, error) {
	return s.text, nil
}

// A failed turn must reach the caller twice, as a visible error frame and a
// spoken retry prompt, and the microphone must reopen afterwards.
func TestHandleTurnErrorSurfacesAndRelistens(t *testing.T) {
	frames := make(chan serverFrame, 8)
	handled := make(chan bool, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		vs := &voiceSession{
			id:     "test-session",
			lang:   "en",
			conn:   conn,
			device: &wsDevice{},
			logger: testLogger(),
			router: &Router{
				metrics:  metrics.DefaultMetrics,
				eventLog: eventlog.New(nil),
				logger:   testLogger(),
			},
			ctx:    ctx,
			cancel: cancel,
		}
		vs.speaker = &wsSpeaker{
			sess: vs,
			out:  speech.NewOutput(fixedSynth{audio: []byte("tts-bytes")}, &wsPlayer{sess: vs}, vs.logger),
		}
		vs.recorder = capture.NewSession(vs.device, capture.Options{CommandTimeout: time.Second}, vs.logger)
		defer vs.recorder.Close()
		vs.session = voice.NewSession(vs.recorder, stubTranscriber{}, interpret.New(nil), nil, voice.Options{Language: "en"}, vs.logger)
		defer vs.session.Close()

		handled <- vs.handleTurnError(voice.Result{Err: errTranscribe})
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	go func() {
		for i := 0; i < 4; i++ {
			var f serverFrame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
		}
	}()

	var got []serverFrame
	for i := 0; i < 4; i++ {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d frames", len(got))
		}
	}

	if got[0].Event != "error" || got[0].Message == "" {
		t.Errorf("first frame = %+v, want error with message", got[0])
	}
	if got[1].Event != "prompt" || got[1].Text == "" {
		t.Errorf("second frame = %+v, want spoken retry prompt", got[1])
	}
	if got[2].Event != "speech" {
		t.Errorf("third frame = %+v, want speech", got[2])
	}
	if got[3].Event != "state" || got[3].State != "listening" {
		t.Errorf("fourth frame = %+v, want state listening", got[3])
	}

	select {
	case ok := <-handled:
		if !ok {
			t.Error("handleTurnError = false, want session to keep going")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handleTurnError did not return")
	}
}

var errTranscribe = errors.New("transcription failed")

type fixedSynth struct {
	audio []byte
}

func (s fixedSynth) Synthesize(ctx context.Context, text, language string) ([]byte, error) {
	return s.audio, nil
}

func TestWSSpeakerSendsPromptThenSpeech(t *testing.T) {
	frames := make(chan serverFrame, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			t.Errorf("upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		vs := &voiceSession{
			id:     "test-session",
			conn:   conn,
			logger: testLogger(),
			router: &Router{metrics: metrics.DefaultMetrics},
		}
		speaker := &wsSpeaker{
			sess: vs,
			out:  speech.NewOutput(fixedSynth{audio: []byte("tts-bytes")}, &wsPlayer{sess: vs}, vs.logger),
		}

		if err := speaker.Speak(context.Background(), "What is your name?", "hi"); err != nil {
			t.Errorf("Speak failed: %v", err)
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	go func() {
		for i := 0; i < 2; i++ {
			var f serverFrame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
		}
	}()

	var got []serverFrame
	for i := 0; i < 2; i++ {
		select {
		case f := <-frames:
			got = append(got, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d frames", len(got))
		}
	}

	if got[0].Event != "prompt" || got[0].Text != "What is your name?" {
		t.Errorf("first frame = %+v, want prompt", got[0])
	}
	if got[1].Event != "speech" {
		t.Fatalf("second frame = %+v, want speech", got[1])
	}
	audio, err := base64.StdEncoding.DecodeString(got[1].Payload)
	if err != nil || string(audio) != "tts-bytes" {
		t.Errorf("speech payload = %q (%v), want tts-bytes", audio, err)
	}
}
