package app

import (
	"os"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr      string
	PublicBaseURL string
	DatabaseURL   string
	SentryDSN     string
	LogLevel      string

	// Voice providers
	WhisperAPIKey    string
	DeepgramAPIKey   string
	STTProvider      string // "whisper" (default) or "deepgram"
	ElevenLabsAPIKey string
	TTSVoiceID       string // ElevenLabs voice ID

	// Voice session tuning
	CommandTimeout time.Duration // max recording length for one spoken turn
	Turnaround     time.Duration // pause before continuous mode re-listens

	// KeywordPacksPath points at a yaml file of extra interpreter locale
	// packs, loaded on top of the built-in English and Hindi vocabularies.
	KeywordPacksPath string

	// Twilio (OTP login + SMS order alerts)
	TwilioAuthToken       string
	TwilioAccountSID      string
	TwilioVerifyServiceID string
	SMSSenderNumber       string

	// JWT Authentication
	JWTSecret string
	JWTExpiry time.Duration

	// Admin access
	AdminPhones []string

	// Notifications
	DiscordWebhookURL string
	APNsKeyPath       string
	APNsKeyID         string
	APNsTeamID        string
	APNsBundleID      string
	APNsProduction    bool

	// Background jobs
	RecommendRefreshInterval time.Duration
}

func LoadConfigFromEnv() Config {
	// Whisper shares the OpenAI platform key when no dedicated one is set.
	whisperKey := os.Getenv("WHISPER_API_KEY")
	if whisperKey == "" {
		whisperKey = os.Getenv("OPENAI_API_KEY")
	}

	return Config{
		HTTPAddr:      getenv("HTTP_ADDR", ":8080"),
		PublicBaseURL: getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		DatabaseURL:   getenv("DATABASE_URL", ""),
		SentryDSN:     getenv("SENTRY_DSN", ""),
		LogLevel:      getenv("LOG_LEVEL", "info"),

		// Voice providers
		WhisperAPIKey:    whisperKey,
		DeepgramAPIKey:   getenv("DEEPGRAM_API_KEY", ""),
		STTProvider:      getenv("STT_PROVIDER", "whisper"),
		ElevenLabsAPIKey: getenv("ELEVENLABS_API_KEY", ""),
		TTSVoiceID:       getenv("TTS_VOICE_ID", ""),

		// Voice session tuning
		CommandTimeout:   getenvDuration("COMMAND_TIMEOUT", 8*time.Second),
		Turnaround:       getenvDuration("TURNAROUND", 750*time.Millisecond),
		KeywordPacksPath: getenv("KEYWORD_PACKS_PATH", ""),

		// Twilio
		TwilioAuthToken:       getenv("TWILIO_AUTH_TOKEN", ""),
		TwilioAccountSID:      getenv("TWILIO_ACCOUNT_SID", ""),
		TwilioVerifyServiceID: getenv("TWILIO_VERIFY_SERVICE_SID", ""),
		SMSSenderNumber:       getenv("SMS_SENDER_NUMBER", ""),

		// JWT Authentication
		JWTSecret: os.Getenv("JWT_SECRET"), // Required - no fallback for security
		JWTExpiry: getenvDuration("JWT_EXPIRY", 24*time.Hour),

		// Admin access
		AdminPhones: parseAdminPhones(os.Getenv("ADMIN_PHONES")),

		// Notifications
		DiscordWebhookURL: getenv("DISCORD_WEBHOOK_URL", ""),
		APNsKeyPath:       getenv("APNS_KEY_PATH", ""),
		APNsKeyID:         getenv("APNS_KEY_ID", ""),
		APNsTeamID:        getenv("APNS_TEAM_ID", ""),
		APNsBundleID:      getenv("APNS_BUNDLE_ID", ""),
		APNsProduction:    getenv("APNS_PRODUCTION", "") == "true",

		// Background jobs
		RecommendRefreshInterval: getenvDuration("RECOMMEND_REFRESH_INTERVAL", time.Hour),
	}
}

func parseAdminPhones(s string) []string {
	if s == "" {
		return nil
	}
	var phones []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			phones = append(phones, p)
		}
	}
	return phones
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
