package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/costs"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/eventlog"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/store"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/tts"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/capture"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/flow"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/interpret"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/speech"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/transcribe"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Session modes selected by the client's start frame.
const (
	ModeCommand       = "command"
	ModeOnboarding    = "onboarding"
	ModeCreateProduct = "create_product"
	ModeDiscovery     = "discovery"
)

// clientFrame is one message from the app to the voice endpoint.
type clientFrame struct {
	Event      string `json:"event"`                // "start", "audio", "turn_end", "stop"
	Mode       string `json:"mode,omitempty"`       // session mode, "start" only
	Language   string `json:"language,omitempty"`   // BCP 47 hint, "start" only
	Continuous bool   `json:"continuous,omitempty"` // hands-free listening, "start" only
	Payload    string `json:"payload,omitempty"`    // base64 audio, "audio" only
}

// serverFrame is one message from the voice endpoint to the app.
type serverFrame struct {
	Event   string             `json:"event"`
	State   string             `json:"state,omitempty"`
	Text    string             `json:"text,omitempty"`
	Command *interpret.Command `json:"command,omitempty"`
	Payload string             `json:"payload,omitempty"` // base64 audio, "speech" only
	Fields  map[string]string  `json:"fields,omitempty"`  // "flow_done" only
	Message string             `json:"message,omitempty"` // "error" only
}

// Rough bitrate of the client's Opus-in-WebM uplink, used only for the
// end-of-session cost estimate.
const approxAudioBytesPerSecond = 4000

// estimateAudioSeconds converts uplink byte volume into whole seconds of
// audio for the cost calculator, rounding to the nearest second.
func estimateAudioSeconds(audioBytes int) int {
	return (audioBytes + approxAudioBytesPerSecond/2) / approxAudioBytesPerSecond
}

// captureOptions derives the capture tuning for a session. Continuous
// sessions carry the turnaround delay so the microphone reopens on its own
// after each turn; single-shot sessions reopen only when asked.
func captureOptions(cfg RouterConfig, continuous bool) capture.Options {
	opts := capture.Options{
		Mode:           capture.ModeSingleShot,
		CommandTimeout: cfg.CommandTimeout,
	}
	if continuous {
		opts.Mode = capture.ModeContinuous
		opts.Turnaround = cfg.Turnaround
	}
	return opts
}

// wsDevice adapts the websocket audio uplink into the microphone capability
// the capture layer expects. The read loop pushes decoded chunks; Acquire
// hands out at most one live stream at a time.
type wsDevice struct {
	mu     sync.Mutex
	active *wsStream
}

func (d *wsDevice) Acquire(ctx context.Context) (capture.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active != nil {
		return nil, capture.ErrDeviceUnavailable
	}
	st := &wsStream{device: d, chunks: make(chan []byte, 64)}
	d.active = st
	return st, nil
}

// push delivers one audio chunk to the live stream, dropping it when no
// cycle is recording or the buffer is full. Sending under the device lock
// keeps push ordered against Close.
func (d *wsDevice) push(chunk []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return
	}
	select {
	case d.active.chunks <- chunk:
	default:
	}
}

type wsStream struct {
	device    *wsDevice
	chunks    chan []byte
	closeOnce sync.Once
}

func (s *wsStream) Chunks() <-chan []byte { return s.chunks }

func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		s.device.mu.Lock()
		if s.device.active == s {
			s.device.active = nil
		}
		close(s.chunks)
		s.device.mu.Unlock()
	})
	return nil
}

// wsPlayer delivers synthesized audio to the client as a speech frame.
// "Playback" is complete once the frame is written; the app plays it.
type wsPlayer struct {
	sess *voiceSession
}

func (p *wsPlayer) Play(ctx context.Context, audio []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.sess.send(serverFrame{Event: "speech", Payload: base64.StdEncoding.EncodeToString(audio)})
	return nil
}

// wsSpeaker narrates prompts: the text goes out as a prompt frame so the
// app can display it, then the speech output voices it. TTS trouble never
// blocks the conversation; the prompt text already made it out.
type wsSpeaker struct {
	sess *voiceSession
	out  *speech.Output
}

func (sp *wsSpeaker) Speak(ctx context.Context, text, language string) error {
	sp.sess.send(serverFrame{Event: "prompt", Text: text})
	sp.sess.addTTSChars(len(text))

	start := time.Now()
	err := sp.out.Speak(ctx, text, language)
	sp.sess.router.metrics.RecordSynthesis(err, time.Since(start).Seconds())
	if err != nil {
		sp.sess.logger.Printf("voice_ws: TTS error in session %s: %v", sp.sess.id, err)
	}
	return nil
}

// voiceSession manages one websocket voice conversation.
type voiceSession struct {
	id         string
	user       *AuthUser
	mode       string
	lang       string
	continuous bool

	conn   *websocket.Conn
	connMu sync.Mutex

	device   *wsDevice
	recorder *capture.Session
	session  *voice.Session
	speaker  *wsSpeaker
	fl       *flow.Flow

	router *Router
	logger *log.Logger

	mu         sync.Mutex
	audioBytes int // whole session
	turnBytes  int // since the last interpreted result
	ttsChars   int

	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

func (r *Router) handleVoiceWS(w http.ResponseWriter, req *http.Request) {
	user, err := r.authenticateToken(req.Context(), req.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, `{"error": "unauthorized"}`, http.StatusUnauthorized)
		return
	}

	if r.cfg.WhisperAPIKey == "" && r.cfg.DeepgramAPIKey == "" {
		r.logger.Printf("voice_ws: no transcription provider configured")
		http.Error(w, `{"error": "voice not configured"}`, http.StatusServiceUnavailable)
		return
	}

	if !r.sessions.Add() {
		http.Error(w, `{"error": "server is draining"}`, http.StatusServiceUnavailable)
		return
	}
	defer r.sessions.Done()

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Printf("voice_ws: upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	vs := &voiceSession{
		id:        uuid.NewString(),
		user:      user,
		conn:      conn,
		device:    &wsDevice{},
		router:    r,
		logger:    r.logger,
		startedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}

	r.logger.Printf("voice_ws: session %s opened for user %s", vs.id, user.ID)
	vs.run()
}

func (vs *voiceSession) run() {
	defer vs.cleanup()

	// The first frame must be "start"; it fixes the mode and language for
	// the whole session.
	start, ok := vs.awaitStart()
	if !ok {
		return
	}
	if err := vs.begin(start); err != nil {
		vs.sendError(err.Error())
		return
	}

	for {
		select {
		case <-vs.ctx.Done():
			return
		default:
		}

		_, msg, err := vs.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				vs.logger.Printf("voice_ws: read error in session %s: %v", vs.id, err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			vs.logger.Printf("voice_ws: bad frame in session %s: %v", vs.id, err)
			continue
		}

		switch frame.Event {
		case "audio":
			audio, err := base64.StdEncoding.DecodeString(frame.Payload)
			if err != nil {
				vs.logger.Printf("voice_ws: bad audio payload in session %s: %v", vs.id, err)
				continue
			}
			vs.mu.Lock()
			vs.audioBytes += len(audio)
			vs.turnBytes += len(audio)
			vs.mu.Unlock()
			vs.device.push(audio)

		case "turn_end":
			vs.send(serverFrame{Event: "state", State: "processing"})
			vs.session.FinishListening()

		case "stop":
			vs.logger.Printf("voice_ws: session %s stopped by client", vs.id)
			return

		default:
			vs.logger.Printf("voice_ws: unknown event %q in session %s", frame.Event, vs.id)
		}
	}
}

func (vs *voiceSession) awaitStart() (clientFrame, bool) {
	_, msg, err := vs.conn.ReadMessage()
	if err != nil {
		return clientFrame{}, false
	}
	var frame clientFrame
	if err := json.Unmarshal(msg, &frame); err != nil || frame.Event != "start" {
		vs.sendError("expected start frame")
		return clientFrame{}, false
	}
	return frame, true
}

// begin wires the voice pipeline for the requested mode and opens the first
// listen cycle.
func (vs *voiceSession) begin(start clientFrame) error {
	r := vs.router

	vs.mode = start.Mode
	if vs.mode == "" {
		vs.mode = ModeCommand
	}
	vs.lang = start.Language
	if vs.lang == "" {
		vs.lang = "hi"
	}
	vs.continuous = start.Continuous

	var transcriber transcribe.Transcriber
	if r.cfg.STTProvider == "deepgram" && r.cfg.DeepgramAPIKey != "" {
		transcriber = transcribe.NewDeepgramClient(transcribe.DeepgramConfig{APIKey: r.cfg.DeepgramAPIKey})
	} else {
		transcriber = transcribe.NewWhisperClient(transcribe.WhisperConfig{APIKey: r.cfg.WhisperAPIKey})
	}

	var synth speech.Synthesizer
	if r.cfg.ElevenLabsAPIKey != "" {
		synth = tts.NewElevenLabsClient(tts.ElevenLabsConfig{
			APIKey:  r.cfg.ElevenLabsAPIKey,
			VoiceID: r.cfg.TTSVoiceID,
		})
	}
	speaker := &wsSpeaker{
		sess: vs,
		out:  speech.NewOutput(synth, &wsPlayer{sess: vs}, vs.logger),
	}
	vs.speaker = speaker

	vs.recorder = capture.NewSession(vs.device, captureOptions(r.cfg, vs.continuous), vs.logger)

	keywords := r.interpreter
	vs.session = voice.NewSession(vs.recorder, transcriber, keywords, speaker, voice.Options{
		Continuous:     vs.continuous,
		Language:       vs.lang,
		SpeakResponses: vs.mode == ModeCommand,
	}, vs.logger)

	switch vs.mode {
	case ModeCommand:
		// Plain command sessions have no flow; results go straight out.
	case ModeOnboarding:
		vs.fl = flow.NewOnboarding(keywords, onboardingSubmitter{store: r.store, userID: vs.user.ID}, speaker, vs.lang, vs.logger)
	case ModeCreateProduct:
		vs.fl = flow.NewProductCreation(keywords, productSubmitter{router: r, sellerID: vs.user.ID}, speaker, vs.lang, vs.logger)
	case ModeDiscovery:
		d := flow.NewDiscovery(keywords, catalogSearcher{store: r.store}, orderSubmitter{router: r, buyerID: vs.user.ID}, speaker, vs.lang, vs.logger)
		vs.fl = d.Flow
	default:
		return errUnknownMode
	}

	r.metrics.RecordSessionStart()
	if vs.fl != nil {
		r.metrics.RecordFlowStart(vs.fl.Name())
	}
	r.eventLog.LogAsync(vs.id, eventlog.EventSessionStarted, map[string]any{
		"user_id":  vs.user.ID,
		"mode":     vs.mode,
		"language": vs.lang,
	})

	go vs.pumpResults()

	if vs.fl != nil {
		vs.fl.Begin(vs.ctx)
	}
	return vs.listen()
}

var errUnknownMode = errors.New("unknown session mode")

func (vs *voiceSession) listen() error {
	if err := vs.session.StartListening(vs.ctx); err != nil {
		vs.router.metrics.RecordCaptureFailure("device")
		return err
	}
	vs.send(serverFrame{Event: "state", State: "listening"})
	return nil
}

// pumpResults consumes settled turns and drives the conversation: forward
// commands in command mode, feed transcripts to the flow otherwise. Failed
// turns are surfaced to the client, spoken, and followed by a fresh listen
// cycle so one bad turn never strands the session. The loop runs until the
// flow completes, the microphone is lost for good, or the client stops.
func (vs *voiceSession) pumpResults() {
	r := vs.router
	prevStep := ""
	if vs.fl != nil {
		prevStep = vs.fl.CurrentStep()
	}

	for result := range vs.session.Results() {
		vs.mu.Lock()
		turnBytes := vs.turnBytes
		vs.turnBytes = 0
		vs.mu.Unlock()

		if result.Err != nil {
			if !vs.handleTurnError(result) {
				return
			}
			continue
		}

		r.metrics.RecordCapture(turnBytes)
		r.metrics.RecordTranscription(nil, result.TranscribeSeconds)
		r.eventLog.LogAsync(vs.id, eventlog.EventCaptureCompleted, map[string]any{"bytes": turnBytes})

		if transcribe.IsPlaceholder(result.Transcript) {
			r.metrics.RecordDiscardedTranscript()
			vs.speaker.Speak(vs.ctx, noSpeechPrompt(vs.lang), vs.lang)
			if !vs.relisten() {
				return
			}
			continue
		}

		r.metrics.RecordCommand(string(result.Command.Intent))
		vs.send(serverFrame{Event: "transcript", Text: result.Transcript})
		r.eventLog.LogAsync(vs.id, eventlog.EventTranscriptFinal, map[string]any{"text": result.Transcript})

		if vs.fl == nil {
			cmd := result.Command
			vs.send(serverFrame{Event: "command", Command: &cmd})
			r.eventLog.LogAsync(vs.id, eventlog.EventCommandInterpreted, map[string]any{
				"intent":     string(cmd.Intent),
				"parameters": cmd.Parameters,
			})
			if !vs.relisten() {
				return
			}
			continue
		}

		vs.fl.Handle(vs.ctx, flow.Input{Transcript: result.Transcript, Command: result.Command})

		step := vs.fl.CurrentStep()
		if vs.fl.Done() {
			r.metrics.RecordFlowComplete(vs.fl.Name())
			r.eventLog.LogAsync(vs.id, eventlog.EventFlowCompleted, map[string]any{
				"flow": vs.fl.Name(),
			})
			vs.send(serverFrame{Event: "flow_done", Fields: vs.fl.Fields()})
			return
		}
		if step == prevStep {
			r.metrics.RecordStepRetry(vs.fl.Name(), step)
			r.eventLog.LogAsync(vs.id, eventlog.EventStepRetry, map[string]any{"step": step})
		} else {
			r.eventLog.LogAsync(vs.id, eventlog.EventStepAdvanced, map[string]any{"step": step})
			prevStep = step
		}

		if !vs.relisten() {
			return
		}
	}
}

// handleTurnError surfaces a failed turn to the client in both channels the
// app has, visible and spoken, then reopens the microphone. A failed cycle
// always aborted its capture, so even continuous sessions need an explicit
// restart here. Returns false when the microphone cannot be reopened.
func (vs *voiceSession) handleTurnError(result voice.Result) bool {
	r := vs.router
	r.metrics.RecordSessionError()
	if result.TranscribeSeconds > 0 {
		r.metrics.RecordTranscription(result.Err, result.TranscribeSeconds)
	}
	if errors.Is(result.Err, capture.ErrDeviceUnavailable) {
		r.eventLog.LogAsync(vs.id, eventlog.EventCaptureFailed, map[string]any{"error": result.Err.Error()})
	} else {
		r.eventLog.LogAsync(vs.id, eventlog.EventSessionError, map[string]any{"error": result.Err.Error()})
	}

	vs.sendError("could not process that, listening again")
	vs.speaker.Speak(vs.ctx, retryPrompt(vs.lang), vs.lang)

	if err := vs.listen(); err != nil {
		vs.sendError("microphone unavailable")
		return false
	}
	return true
}

// relisten readies the next turn after a successful one. Continuous capture
// reopens the microphone on its own, so only the state frame goes out; a
// single-shot session opens a fresh cycle.
func (vs *voiceSession) relisten() bool {
	if vs.continuous {
		vs.send(serverFrame{Event: "state", State: "listening"})
		return true
	}
	if err := vs.listen(); err != nil {
		vs.sendError("microphone unavailable")
		return false
	}
	return true
}

// retryPrompt is spoken after a failed turn so a caller who never looks at
// the screen still knows to speak again.
func retryPrompt(language string) string {
	if strings.HasPrefix(language, "hi") {
		return "माफ़ कीजिए, कुछ गड़बड़ हुई। फिर से बोलिए।"
	}
	return "Sorry, something went wrong. Please say that again."
}

// noSpeechPrompt is spoken when a turn carried no usable speech.
func noSpeechPrompt(language string) string {
	if strings.HasPrefix(language, "hi") {
		return "कुछ सुनाई नहीं दिया। फिर से बोलिए।"
	}
	return "I didn't catch that. Please say it again."
}

func (vs *voiceSession) send(f serverFrame) {
	vs.connMu.Lock()
	defer vs.connMu.Unlock()
	if err := vs.conn.WriteJSON(f); err != nil {
		vs.logger.Printf("voice_ws: write failed in session %s: %v", vs.id, err)
	}
}

func (vs *voiceSession) sendError(message string) {
	vs.send(serverFrame{Event: "error", Message: message})
}

func (vs *voiceSession) addTTSChars(n int) {
	vs.mu.Lock()
	vs.ttsChars += n
	vs.mu.Unlock()
}

func (vs *voiceSession) cleanup() {
	vs.cancel()
	if vs.session != nil {
		vs.session.Close()
	}
	if vs.recorder != nil {
		vs.recorder.Close()
	}

	vs.connMu.Lock()
	vs.conn.Close()
	vs.connMu.Unlock()

	vs.router.metrics.RecordSessionEnd()

	vs.mu.Lock()
	audioBytes, ttsChars := vs.audioBytes, vs.ttsChars
	vs.mu.Unlock()

	duration := time.Since(vs.startedAt)
	cost := costs.CalculateSessionCosts(costs.SessionMetrics{
		AudioSeconds:  estimateAudioSeconds(audioBytes),
		TTSCharacters: ttsChars,
	})

	vs.router.eventLog.LogAsync(vs.id, eventlog.EventSessionEnded, map[string]any{
		"duration_seconds": int(duration.Seconds()),
		"audio_bytes":      audioBytes,
		"cost_cents":       cost.TotalCostCents,
	})
	vs.logger.Printf("voice_ws: session %s closed after %s, estimated cost %d cents",
		vs.id, duration.Round(time.Second), cost.TotalCostCents)
}

// onboardingSubmitter persists the profile an onboarding flow collected.
type onboardingSubmitter struct {
	store  *store.Store
	userID string
}

func (s onboardingSubmitter) Submit(ctx context.Context, fields map[string]string) error {
	role := fields[flow.FieldRole]
	if role == "" {
		role = "buyer"
	}
	language := fields[flow.FieldLanguage]
	if language == "" {
		language = "hi"
	}
	return s.store.CompleteOnboarding(ctx, s.userID, store.Profile{
		Name:         fields[flow.FieldName],
		Village:      fields[flow.FieldVillage],
		District:     fields[flow.FieldDistrict],
		Role:         role,
		Language:     language,
		AadhaarLast4: fields[flow.FieldAadhaar],
	})
}

// productSubmitter turns a finished product-creation flow into a listing.
type productSubmitter struct {
	router   *Router
	sellerID string
}

func (s productSubmitter) Submit(ctx context.Context, fields map[string]string) error {
	price, _ := strconv.Atoi(fields[flow.FieldPrice])
	quantity, _ := strconv.Atoi(fields[flow.FieldQuantity])
	if quantity <= 0 {
		quantity = 1
	}
	unit := fields[flow.FieldUnit]
	if unit == "" {
		unit = "piece"
	}
	category := fields[flow.FieldCategory]
	if category == "" {
		category = "other"
	}

	var delivery []string
	for _, d := range strings.Split(fields[flow.FieldDelivery], ",") {
		if d = strings.ToUpper(strings.TrimSpace(d)); d != "" {
			delivery = append(delivery, d)
		}
	}
	if len(delivery) == 0 {
		delivery = []string{"PICKUP"}
	}

	var description *string
	if d := fields[flow.FieldDescription]; d != "" {
		description = &d
	}

	product, err := s.router.store.CreateProduct(ctx, store.Product{
		SellerID:    s.sellerID,
		Name:        fields[flow.FieldProductName],
		Description: description,
		Price:       price,
		Quantity:    quantity,
		Unit:        unit,
		Category:    category,
		Delivery:    delivery,
	})
	if err != nil {
		return err
	}

	s.router.metrics.ProductsCreated.Inc()
	s.router.discord.NotifyProductListed(context.WithoutCancel(ctx), product.ID, product.Name, product.Price)
	return nil
}

// catalogSearcher backs the discovery flow with the product catalog.
type catalogSearcher struct {
	store *store.Store
}

func (s catalogSearcher) Search(ctx context.Context, query string) ([]flow.SearchResult, error) {
	items, err := s.store.SearchProducts(ctx, query, 10)
	if err != nil {
		return nil, err
	}
	results := make([]flow.SearchResult, 0, len(items))
	for _, item := range items {
		seller := ""
		if item.SellerName != nil {
			seller = *item.SellerName
		}
		results = append(results, flow.SearchResult{
			ID:     item.ID,
			Name:   item.Name,
			Price:  item.Price,
			Unit:   item.Unit,
			Seller: seller,
			Phone:  item.SellerPhone,
		})
	}
	return results, nil
}

// orderSubmitter places the order a discovery flow confirmed and alerts the
// seller the same way the REST endpoint does.
type orderSubmitter struct {
	router  *Router
	buyerID string
}

func (s orderSubmitter) Submit(ctx context.Context, fields map[string]string) error {
	productID := fields["product_id"]

	product, err := s.router.store.GetProductWithSeller(ctx, productID)
	if err != nil {
		return err
	}

	order, err := s.router.store.CreateOrder(ctx, productID, s.buyerID, 1)
	if err != nil {
		return err
	}

	s.router.metrics.OrdersPlaced.Inc()
	s.router.notifySellerOfOrder(context.WithoutCancel(ctx), order, product)
	return nil
}
