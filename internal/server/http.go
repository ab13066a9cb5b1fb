package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skypro1111/energy-vad/internal/audio"
	"github.com/skypro1111/energy-vad/internal/config"
	"github.com/skypro1111/energy-vad/internal/metrics"
	"github.com/skypro1111/energy-vad/internal/rttm"
	"github.com/skypro1111/energy-vad/internal/vad"
)

// HTTPServer exposes the detector over HTTP
type HTTPServer struct {
	server   *http.Server
	handler  http.Handler
	logger   *slog.Logger
	config   *config.Config
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer

	// Server state
	startTime time.Time
	mu        sync.RWMutex
	stats     Statistics
}

// Statistics counts requests served by the /detect endpoint
type Statistics struct {
	Detections    uint64    `json:"detections"`
	Failures      uint64    `json:"failures"`
	SamplesServed uint64    `json:"samples_served"`
	LastDetection time.Time `json:"last_detection,omitzero"`
}

// NewHTTPServer creates a new HTTP API server. Metrics are served from
// gatherer, which is normally the registry m was registered with.
func NewHTTPServer(appConfig *config.Config, logger *slog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *HTTPServer {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	h := &HTTPServer{
		logger:    logger,
		config:    appConfig,
		metrics:   m,
		gatherer:  gatherer,
		startTime: time.Now(),
	}

	// Create HTTP server with routes
	mux := http.NewServeMux()
	h.setupRoutes(mux)
	h.handler = mux

	h.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", appConfig.HTTP.Address, appConfig.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return h
}

// Handler returns the routed handler
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// setupRoutes configures HTTP API routes
func (h *HTTPServer) setupRoutes(mux *http.ServeMux) {
	// Detection endpoint
	mux.HandleFunc("/detect", h.withMetrics("/detect", h.handleDetect))

	// Health check endpoint
	mux.HandleFunc("/health", h.withMetrics("/health", h.handleHealth))

	// Configuration endpoint
	mux.HandleFunc("/config", h.withMetrics("/config", h.handleConfig))

	// Prometheus metrics endpoint (no metrics needed for metrics endpoint)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))

	// Root endpoint with API documentation
	mux.HandleFunc("/", h.withMetrics("/", h.handleRoot))
}

// withMetrics wraps an HTTP handler with metrics collection
func (h *HTTPServer) withMetrics(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		// Create a response writer wrapper to capture status code
		ww := &responseWriter{ResponseWriter: w, statusCode: 200}

		handler(ww, r)

		duration := time.Since(startTime).Seconds()
		statusCode := strconv.Itoa(ww.statusCode)

		h.metrics.RecordHTTPRequest(r.Method, endpoint, statusCode, duration)

		if ww.statusCode >= 400 {
			errorType := "client_error"
			if ww.statusCode >= 500 {
				errorType = "server_error"
			}
			h.metrics.RecordHTTPError(r.Method, endpoint, errorType)
		}
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Start starts the HTTP server
func (h *HTTPServer) Start() error {
	h.logger.Info("Starting HTTP API server",
		slog.String("address", h.server.Addr),
	)

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error("HTTP server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// Stop gracefully stops the HTTP server
func (h *HTTPServer) Stop(ctx context.Context) error {
	h.logger.Info("Stopping HTTP API server...")

	return h.server.Shutdown(ctx)
}

// GetStatistics returns a snapshot of detection statistics
func (h *HTTPServer) GetStatistics() Statistics {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats
}

// DetectResponse is the JSON body returned by /detect
type DetectResponse struct {
	SampleRate  int             `json:"sample_rate"`
	Samples     int             `json:"samples"`
	Duration    float64         `json:"duration_seconds"`
	Frames      int             `json:"frames"`
	SpeechRatio float64         `json:"speech_ratio"`
	Segments    []SegmentInfo   `json:"segments"`
	Model       vad.Model       `json:"model"`
	Training    vad.TrainStats  `json:"training"`
	ElapsedMs   float64         `json:"elapsed_ms"`
	Config      DetectionParams `json:"params"`
}

// SegmentInfo is one speech segment in samples and seconds
type SegmentInfo struct {
	audio.Segment
	StartSec float64 `json:"start"`
	EndSec   float64 `json:"end"`
}

// DetectionParams echoes the parameters a detection ran with
type DetectionParams struct {
	Window     int     `json:"window"`
	Shift      int     `json:"shift"`
	Threshold  float64 `json:"threshold"`
	MorphSize  int     `json:"morph_size"`
	Iterations int     `json:"iterations"`
}

// handleDetect implements the /detect endpoint. The body is a mono WAV file.
// Query parameters threshold, morph_size and iterations override the
// configured values; format=rttm returns RTTM text instead of JSON.
func (h *HTTPServer) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg, err := h.requestConfig(r)
	if err != nil {
		h.recordFailure("bad_request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.HTTP.MaxBodyBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.recordFailure("too_large")
			http.Error(w, fmt.Sprintf("Body exceeds %d bytes", maxErr.Limit), http.StatusRequestEntityTooLarge)
			return
		}
		h.recordFailure("read_error")
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	signal, err := audio.DecodeWAV(bytes.NewReader(body))
	if err != nil {
		h.recordFailure("invalid_wav")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	detector, err := vad.NewDetector(cfg, vad.WithLogger(h.logger))
	if err != nil {
		h.recordFailure("bad_request")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := detector.Detect(r.Context(), signal.Samples)
	if err != nil {
		reason := metrics.FailureReason(err)
		h.recordFailure(reason)
		h.logger.Warn("Detection failed",
			slog.String("reason", reason),
			slog.Int("samples", len(signal.Samples)),
			slog.String("error", err.Error()),
		)
		status := http.StatusUnprocessableEntity
		if reason == "internal" {
			status = http.StatusInternalServerError
		}
		http.Error(w, err.Error(), status)
		return
	}

	segs := audio.Segments(result.Mask)
	speech := audio.TotalSamples(segs)
	h.metrics.RecordDetection(metrics.Detection{
		Frames:        len(result.FrameMask),
		Samples:       len(result.Mask),
		SpeechSamples: speech,
		Iterations:    result.Stats.Iterations,
		LogLikelihood: result.Stats.LogLikelihood,
		Elapsed:       result.Elapsed,
	})

	h.mu.Lock()
	h.stats.Detections++
	h.stats.SamplesServed += uint64(len(result.Mask))
	h.stats.LastDetection = time.Now().UTC()
	h.mu.Unlock()

	h.logger.Info("Detection completed",
		slog.Int("samples", len(result.Mask)),
		slog.Int("segments", len(segs)),
		slog.Float64("speech_ratio", result.SpeechRatio()),
		slog.Duration("elapsed", result.Elapsed),
	)

	if r.URL.Query().Get("format") == "rttm" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fileID := r.URL.Query().Get("file_id")
		if err := rttm.Write(w, fileID, segs, signal.SampleRate); err != nil {
			h.logger.Error("Failed to write RTTM", slog.String("error", err.Error()))
		}
		return
	}

	infos := make([]SegmentInfo, 0, len(segs))
	for _, s := range segs {
		start, end := s.Seconds(signal.SampleRate)
		infos = append(infos, SegmentInfo{Segment: s, StartSec: start, EndSec: end})
	}

	response := DetectResponse{
		SampleRate:  signal.SampleRate,
		Samples:     len(signal.Samples),
		Duration:    signal.Duration().Seconds(),
		Frames:      len(result.FrameMask),
		SpeechRatio: result.SpeechRatio(),
		Segments:    infos,
		Model:       result.Model,
		Training:    result.Stats,
		ElapsedMs:   float64(result.Elapsed.Microseconds()) / 1000,
		Config: DetectionParams{
			Window:     cfg.Window,
			Shift:      cfg.Shift,
			Threshold:  cfg.Threshold,
			MorphSize:  cfg.MorphSize,
			Iterations: cfg.Train.Iterations,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// requestConfig applies query overrides to the configured detector parameters
func (h *HTTPServer) requestConfig(r *http.Request) (vad.Config, error) {
	cfg := h.config.VADConfig()
	q := r.URL.Query()

	if v := q.Get("threshold"); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid threshold %q", v)
		}
		cfg.Threshold = threshold
	}

	if v := q.Get("morph_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid morph_size %q", v)
		}
		cfg.MorphSize = size
	}

	if v := q.Get("iterations"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid iterations %q", v)
		}
		cfg.Train.Iterations = n
	}

	return cfg, cfg.Validate()
}

func (h *HTTPServer) recordFailure(reason string) {
	h.metrics.RecordDetectionFailure(reason)
	h.mu.Lock()
	h.stats.Failures++
	h.mu.Unlock()
}

// handleHealth implements the /health endpoint
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(h.startTime)
	stats := h.GetStatistics()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    uptime.String(),
		"service": map[string]interface{}{
			"name":    "energy-vad",
			"version": "1.0.0",
		},
		"detector": stats,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

// handleConfig implements the /config endpoint
func (h *HTTPServer) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cfg := map[string]interface{}{
		"framing": map[string]interface{}{
			"window": h.config.Framing.Window,
			"shift":  h.config.Framing.Shift,
		},
		"gmm": map[string]interface{}{
			"iterations": h.config.GMM.Iterations,
			"tolerance":  h.config.GMM.Tolerance,
			"min_stddev": h.config.GMM.MinStdDev,
			"min_count":  h.config.GMM.MinCount,
			"components": h.config.GMM.Components,
		},
		"decision": map[string]interface{}{
			"threshold": h.config.Decision.Threshold,
		},
		"morphology": map[string]interface{}{
			"size": h.config.Morphology.Size,
		},
		"http": map[string]interface{}{
			"port":           h.config.HTTP.Port,
			"address":        h.config.HTTP.Address,
			"max_body_bytes": h.config.HTTP.MaxBodyBytes,
		},
		"logging": map[string]interface{}{
			"level":  h.config.Logging.Level,
			"format": h.config.Logging.Format,
			"output": h.config.Logging.Output,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg)
}

// handleRoot implements the / endpoint with API documentation
func (h *HTTPServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	apiDoc := map[string]interface{}{
		"service": "Energy GMM Voice Activity Detector",
		"version": "1.0.0",
		"endpoints": map[string]interface{}{
			"GET /":        "API documentation",
			"POST /detect": "Detect speech in a mono WAV body (query: threshold, morph_size, iterations, format=json|rttm, file_id)",
			"GET /health":  "Service health check",
			"GET /config":  "Get detector configuration",
			"GET /metrics": "Prometheus metrics",
		},
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(apiDoc)
}
