// Package costs provides cost estimation for voice pipeline API usage.
package costs

import (
	"os"
	"strconv"
)

// Pricing constants (in cents per unit for precision).
// These are based on 2026 market rates and can be overridden via environment variables.
var (
	// WhisperCentsPerMinute is the cost per minute of audio for Whisper transcription.
	// Default: $0.006/min = 0.6 cents/min
	WhisperCentsPerMinute = getEnvFloat("COST_WHISPER_CENTS_PER_MIN", 0.6)

	// ElevenLabsCentsPerThousandChars is the cost per 1K characters for ElevenLabs TTS.
	// Default: $0.18/1K chars = 18 cents/1K chars
	ElevenLabsCentsPerThousandChars = getEnvFloat("COST_ELEVENLABS_CENTS_PER_1K_CHARS", 18.0)

	// SMSCentsPerMessage is the cost per outbound SMS notification.
	// Default: $0.0079/msg = 0.79 cents/msg
	SMSCentsPerMessage = getEnvFloat("COST_SMS_CENTS_PER_MESSAGE", 0.79)
)

// SessionMetrics contains the raw metrics from a voice session used for
// cost estimation.
type SessionMetrics struct {
	AudioSeconds  int // Audio sent to transcription
	TTSCharacters int // Characters sent to TTS
	SMSMessages   int // SMS notifications triggered by the session
}

// SessionCosts contains the estimated costs for a voice session in cents.
type SessionCosts struct {
	STTCostCents   int
	TTSCostCents   int
	SMSCostCents   int
	TotalCostCents int
}

// CalculateSessionCosts computes the estimated cost of a voice session.
func CalculateSessionCosts(m SessionMetrics) SessionCosts {
	sttMinutes := float64(m.AudioSeconds) / 60.0
	sttCents := sttMinutes * WhisperCentsPerMinute

	// TTS costs: per 1K characters
	ttsCents := (float64(m.TTSCharacters) / 1000.0) * ElevenLabsCentsPerThousandChars

	smsCents := float64(m.SMSMessages) * SMSCentsPerMessage

	// Round to nearest cent (we store as integers)
	costs := SessionCosts{
		STTCostCents: roundToInt(sttCents),
		TTSCostCents: roundToInt(ttsCents),
		SMSCostCents: roundToInt(smsCents),
	}
	costs.TotalCostCents = costs.STTCostCents + costs.TTSCostCents + costs.SMSCostCents

	return costs
}

// roundToInt rounds a float to the nearest integer.
func roundToInt(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}

// getEnvFloat returns an environment variable as float64, or the default if not set.
func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
