package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skypro1111/energy-vad/internal/audio"
	"github.com/skypro1111/energy-vad/internal/vad"
)

// Metrics contains all Prometheus metrics for the energy VAD
type Metrics struct {
	// Detection metrics
	Detections        prometheus.Counter
	DetectionFailures *prometheus.CounterVec
	FramesProcessed   prometheus.Counter
	SamplesProcessed  prometheus.Counter
	SpeechSamples     prometheus.Counter
	DetectionDuration prometheus.Histogram
	SpeechRatio       prometheus.Histogram

	// Mixture training metrics
	EMIterations  prometheus.Histogram
	LogLikelihood prometheus.Gauge

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with reg. A nil reg uses
// the default Prometheus registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		// Detection metrics
		Detections: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_detections_total",
			Help: "Total number of successful detections",
		}),
		DetectionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_detection_failures_total",
			Help: "Total number of failed detections",
		}, []string{"reason"}),
		FramesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_frames_processed_total",
			Help: "Total number of analysis frames processed",
		}),
		SamplesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_samples_processed_total",
			Help: "Total number of audio samples labelled",
		}),
		SpeechSamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "vad_speech_samples_total",
			Help: "Total number of samples labelled as speech",
		}),
		DetectionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_detection_duration_seconds",
			Help:    "Time spent running the detection pipeline",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		}),
		SpeechRatio: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_speech_ratio",
			Help:    "Fraction of samples labelled as speech per detection",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		// Mixture training metrics
		EMIterations: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vad_em_iterations",
			Help:    "Number of EM iterations run per detection",
			Buckets: prometheus.ExponentialBuckets(1, 2, 8), // 1 to 128
		}),
		LogLikelihood: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vad_em_log_likelihood",
			Help: "Mean log-likelihood of the last trained mixture",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vad_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vad_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// Detection is the summary of one pipeline run
type Detection struct {
	Frames        int
	Samples       int
	SpeechSamples int
	Iterations    int
	LogLikelihood float64
	Elapsed       time.Duration
}

// RecordDetection records a successful detection
func (m *Metrics) RecordDetection(d Detection) {
	m.Detections.Inc()
	m.FramesProcessed.Add(float64(d.Frames))
	m.SamplesProcessed.Add(float64(d.Samples))
	m.SpeechSamples.Add(float64(d.SpeechSamples))
	m.DetectionDuration.Observe(d.Elapsed.Seconds())
	if d.Samples > 0 {
		m.SpeechRatio.Observe(float64(d.SpeechSamples) / float64(d.Samples))
	}
	m.EMIterations.Observe(float64(d.Iterations))
	m.LogLikelihood.Set(d.LogLikelihood)
}

// RecordDetectionFailure increments the failure counter for reason
func (m *Metrics) RecordDetectionFailure(reason string) {
	m.DetectionFailures.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}

// FailureReason maps a detection error to a short failure label
func FailureReason(err error) string {
	switch {
	case errors.Is(err, vad.ErrSignalTooShort):
		return "too_short"
	case errors.Is(err, vad.ErrZeroVariance):
		return "zero_variance"
	case errors.Is(err, vad.ErrDegenerateComponent):
		return "degenerate_component"
	case errors.Is(err, vad.ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, audio.ErrInvalidWAV):
		return "invalid_wav"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
