// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "haathse"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Voice session metrics
	VoiceSessionsTotal  prometheus.Counter
	VoiceSessionsActive prometheus.Gauge
	VoiceSessionErrors  prometheus.Counter

	// Capture metrics
	CapturesCompleted prometheus.Counter
	CapturesFailed    *prometheus.CounterVec
	AudioBytesCaptured prometheus.Counter

	// Transcription metrics
	TranscriptionLatency  prometheus.Histogram
	TranscriptionErrors   prometheus.Counter
	TranscriptsDiscarded  prometheus.Counter

	// Intent metrics
	CommandsInterpreted *prometheus.CounterVec

	// Flow metrics
	FlowsStarted   *prometheus.CounterVec
	FlowsCompleted *prometheus.CounterVec
	StepRetries    *prometheus.CounterVec

	// Synthesis metrics
	SynthesisLatency prometheus.Histogram
	SynthesisErrors  prometheus.Counter

	// Marketplace metrics
	ProductsCreated prometheus.Counter
	OrdersPlaced    prometheus.Counter
	OrdersSettled   *prometheus.CounterVec
	SearchQueries   prometheus.Counter
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		// Voice session metrics
		VoiceSessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_sessions_total",
			Help:      "Total number of voice sessions started",
		}),
		VoiceSessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "voice_sessions_active",
			Help:      "Number of currently active voice sessions",
		}),
		VoiceSessionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "voice_session_errors_total",
			Help:      "Total number of voice session errors",
		}),

		// Capture metrics
		CapturesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_completed_total",
			Help:      "Total number of audio capture cycles completed",
		}),
		CapturesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_failed_total",
			Help:      "Total number of failed audio capture cycles",
		}, []string{"reason"}),
		AudioBytesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_captured_total",
			Help:      "Total audio bytes captured",
		}),

		// Transcription metrics
		TranscriptionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_latency_seconds",
			Help:      "Speech-to-text processing latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		TranscriptionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcription_errors_total",
			Help:      "Total number of transcription errors",
		}),
		TranscriptsDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcripts_discarded_total",
			Help:      "Total number of placeholder or empty transcripts discarded",
		}),

		// Intent metrics
		CommandsInterpreted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_interpreted_total",
			Help:      "Total number of interpreted voice commands",
		}, []string{"intent"}),

		// Flow metrics
		FlowsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_started_total",
			Help:      "Total number of conversation flows started",
		}, []string{"flow"}),
		FlowsCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_completed_total",
			Help:      "Total number of conversation flows completed",
		}, []string{"flow"}),
		StepRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_retries_total",
			Help:      "Total number of flow step retries",
		}, []string{"flow", "step"}),

		// Synthesis metrics
		SynthesisLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_seconds",
			Help:      "Text-to-speech synthesis latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5},
		}),
		SynthesisErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_errors_total",
			Help:      "Total number of synthesis errors",
		}),

		// Marketplace metrics
		ProductsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_created_total",
			Help:      "Total number of products listed",
		}),
		OrdersPlaced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Total number of orders placed",
		}),
		OrdersSettled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_settled_total",
			Help:      "Total number of orders accepted or declined by sellers",
		}, []string{"status"}),
		SearchQueries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_queries_total",
			Help:      "Total number of product search queries",
		}),
	}
}

// RecordSessionStart records a new voice session starting.
func (m *Metrics) RecordSessionStart() {
	m.VoiceSessionsTotal.Inc()
	m.VoiceSessionsActive.Inc()
}

// RecordSessionEnd records a voice session ending.
func (m *Metrics) RecordSessionEnd() {
	m.VoiceSessionsActive.Dec()
}

// RecordSessionError records a voice session error.
func (m *Metrics) RecordSessionError() {
	m.VoiceSessionErrors.Inc()
}

// RecordCapture records a completed capture cycle and its audio size.
func (m *Metrics) RecordCapture(bytes int) {
	m.CapturesCompleted.Inc()
	m.AudioBytesCaptured.Add(float64(bytes))
}

// RecordCaptureFailure records a failed capture cycle.
func (m *Metrics) RecordCaptureFailure(reason string) {
	m.CapturesFailed.WithLabelValues(reason).Inc()
}

// RecordTranscription records a transcription attempt.
func (m *Metrics) RecordTranscription(err error, latencySeconds float64) {
	m.TranscriptionLatency.Observe(latencySeconds)
	if err != nil {
		m.TranscriptionErrors.Inc()
	}
}

// RecordDiscardedTranscript records a placeholder transcript being dropped.
func (m *Metrics) RecordDiscardedTranscript() {
	m.TranscriptsDiscarded.Inc()
}

// RecordCommand records an interpreted command by intent name.
func (m *Metrics) RecordCommand(intent string) {
	m.CommandsInterpreted.WithLabelValues(intent).Inc()
}

// RecordFlowStart records a conversation flow starting.
func (m *Metrics) RecordFlowStart(flow string) {
	m.FlowsStarted.WithLabelValues(flow).Inc()
}

// RecordFlowComplete records a conversation flow completing.
func (m *Metrics) RecordFlowComplete(flow string) {
	m.FlowsCompleted.WithLabelValues(flow).Inc()
}

// RecordStepRetry records a flow step reprompting the speaker.
func (m *Metrics) RecordStepRetry(flow, step string) {
	m.StepRetries.WithLabelValues(flow, step).Inc()
}

// RecordSynthesis records a synthesis attempt.
func (m *Metrics) RecordSynthesis(err error, latencySeconds float64) {
	m.SynthesisLatency.Observe(latencySeconds)
	if err != nil {
		m.SynthesisErrors.Inc()
	}
}

// RecordOrderSettled records an order being accepted or declined.
func (m *Metrics) RecordOrderSettled(status string) {
	m.OrdersSettled.WithLabelValues(status).Inc()
}
