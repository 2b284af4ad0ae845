package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/eventlog"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/metrics"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/notifications"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/recommend"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/store"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/interpret"
)

type RouterConfig struct {
	PublicBaseURL string

	// Twilio credentials (OTP login + SMS order alerts)
	TwilioAuthToken       string
	TwilioAccountSID      string
	TwilioVerifyServiceID string
	TwilioVerifyBaseURL   string // override for testing
	SMSSenderNumber       string

	// Voice providers
	WhisperAPIKey    string
	DeepgramAPIKey   string
	STTProvider      string // "whisper" (default) or "deepgram"
	ElevenLabsAPIKey string
	TTSVoiceID       string

	// Voice session tuning
	CommandTimeout time.Duration // max recording length for one turn
	Turnaround     time.Duration // delay before continuous mode re-listens

	// KeywordPacks are extra interpreter locales layered over the built-in
	// vocabularies; nil means defaults only.
	KeywordPacks []interpret.KeywordPack

	// JWT Authentication
	JWTSecret string
	JWTExpiry time.Duration

	// Admin access (phone numbers that have admin privileges)
	AdminPhones []string

	// Notifications
	DiscordWebhookURL string

	// APNs Push Notifications
	APNsKeyPath    string // Path to .p8 key file
	APNsKeyID      string // Key ID from Apple Developer Portal
	APNsTeamID     string // Team ID from Apple Developer Portal
	APNsBundleID   string // App bundle ID (e.g., in.haathse.app)
	APNsProduction bool   // Use production environment
}

type Router struct {
	cfg         RouterConfig
	logger      *log.Logger
	store       *store.Store
	eventLog    *eventlog.Logger
	discord     *notifications.Discord
	apns        *notifications.APNsClient
	sms         *notifications.SMSClient
	recommender *recommend.Service
	sessions    *SessionRegistry
	metrics     *metrics.Metrics
	interpreter *interpret.KeywordInterpreter
	mux         *http.ServeMux
}

func NewRouter(cfg RouterConfig, logger *log.Logger, s *store.Store, eventLog *eventlog.Logger, recommender *recommend.Service, sessions *SessionRegistry) http.Handler {
	// Initialize APNs client (may be nil if not configured)
	apnsClient, err := notifications.NewAPNsClient(notifications.APNsConfig{
		KeyPath:    cfg.APNsKeyPath,
		KeyID:      cfg.APNsKeyID,
		TeamID:     cfg.APNsTeamID,
		BundleID:   cfg.APNsBundleID,
		Production: cfg.APNsProduction,
	}, logger)
	if err != nil {
		logger.Printf("Warning: APNs client initialization failed: %v", err)
	}

	// SMS client (may be nil if not configured)
	smsClient, err := notifications.NewSMSClient(notifications.SMSConfig{
		AccountSID:   cfg.TwilioAccountSID,
		AuthToken:    cfg.TwilioAuthToken,
		SenderNumber: cfg.SMSSenderNumber,
	}, logger)
	if err != nil {
		logger.Printf("Warning: SMS client initialization failed: %v", err)
	}

	if sessions == nil {
		sessions = NewSessionRegistry()
	}

	r := &Router{
		cfg:         cfg,
		logger:      logger,
		store:       s,
		eventLog:    eventLog,
		discord:     notifications.NewDiscord(cfg.DiscordWebhookURL, logger),
		apns:        apnsClient,
		sms:         smsClient,
		recommender: recommender,
		sessions:    sessions,
		metrics:     metrics.DefaultMetrics,
		interpreter: interpret.New(cfg.KeywordPacks),
		mux:         http.NewServeMux(),
	}

	r.routes()
	return withSentryRecovery(withCORS(r.mux))
}

func (r *Router) routes() {
	// Health check and metrics
	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	// Voice websocket (token via query parameter, validated in handler)
	r.mux.HandleFunc("GET /voice", r.handleVoiceWS)

	// Auth endpoints (public)
	r.mux.HandleFunc("POST /auth/send-code", r.handleSendCode)
	r.mux.HandleFunc("POST /auth/verify-code", r.handleVerifyCode)
	r.mux.HandleFunc("POST /auth/refresh", r.handleRefreshToken)
	r.mux.HandleFunc("POST /auth/logout", r.withAuth(r.handleLogout))

	// Profile (protected)
	r.mux.HandleFunc("GET /api/me", r.withAuth(r.handleGetMe))
	r.mux.HandleFunc("PATCH /api/me", r.withAuth(r.handleUpdateProfile))

	// Onboarding (protected)
	r.mux.HandleFunc("POST /api/onboarding/complete", r.withAuth(r.handleCompleteOnboarding))

	// Products
	r.mux.HandleFunc("GET /api/products", r.withAuth(r.handleListProducts))
	r.mux.HandleFunc("GET /api/products/search", r.withAuth(r.handleSearchProducts))
	r.mux.HandleFunc("GET /api/products/{id}", r.withAuth(r.handleGetProduct))
	r.mux.HandleFunc("POST /api/products", r.withAuth(r.handleCreateProduct))
	r.mux.HandleFunc("PATCH /api/products/{id}/status", r.withAuth(r.handleUpdateProductStatus))
	r.mux.HandleFunc("GET /api/my/products", r.withAuth(r.handleListMyProducts))

	// Orders
	r.mux.HandleFunc("POST /api/orders", r.withAuth(r.handleCreateOrder))
	r.mux.HandleFunc("GET /api/orders", r.withAuth(r.handleListOrders))
	r.mux.HandleFunc("POST /api/orders/{id}/accept", r.withAuth(r.handleAcceptOrder))
	r.mux.HandleFunc("POST /api/orders/{id}/decline", r.withAuth(r.handleDeclineOrder))
	r.mux.HandleFunc("POST /api/orders/{id}/cancel", r.withAuth(r.handleCancelOrder))

	// Recommendations (protected)
	r.mux.HandleFunc("GET /api/recommendations", r.withAuth(r.handleRecommendations))

	// Push notifications (protected)
	r.mux.HandleFunc("POST /api/push/register", r.withAuth(r.handlePushRegister))
	r.mux.HandleFunc("POST /api/push/unregister", r.withAuth(r.handlePushUnregister))

	// Admin endpoints (requires admin phone)
	r.mux.HandleFunc("PATCH /admin/users/{userId}/reset-onboarding", r.withAdmin(r.handleAdminResetUserOnboarding))
	r.mux.HandleFunc("POST /admin/push/test", r.withAdmin(r.handleAdminTestPush))
}

func (r *Router) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	if r.sessions.IsDraining() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("draining"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(req)
				hub.RecoverWithContext(req.Context(), err)
				hub.Flush(2 * time.Second)
				http.Error(w, `{"error": "internal server error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if req.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// captureError sends an error to Sentry with request context
func captureError(req *http.Request, err error, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetRequest(req)
		scope.SetExtra("message", msg)
		sentry.CaptureException(err)
	})
}
