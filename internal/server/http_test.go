package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skypro1111/energy-vad/internal/audio"
	"github.com/skypro1111/energy-vad/internal/config"
	"github.com/skypro1111/energy-vad/internal/metrics"
	"github.com/skypro1111/energy-vad/internal/rttm"
	"github.com/skypro1111/energy-vad/internal/vad"
)

const testSampleRate = 8000

func newTestServer(t *testing.T, mutate func(*config.Config)) (*HTTPServer, *metrics.Metrics) {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	require.NoError(t, cfg.Validate())

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	logger := slog.New(slog.DiscardHandler)
	return NewHTTPServer(&cfg, logger, m, reg), m
}

// wavBody encodes samples as a 16-bit mono WAV file.
func wavBody(t *testing.T, samples []float64) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "body.wav")
	require.NoError(t, audio.WriteWAV(path, audio.Signal{Samples: samples, SampleRate: testSampleRate}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

// quietThenTone returns one second of a quiet tone followed by one second of
// a loud one.
func quietThenTone() []float64 {
	signal := make([]float64, 2*testSampleRate)
	for i := range signal {
		ts := float64(i) / testSampleRate
		if i < testSampleRate {
			signal[i] = 0.01 * math.Sin(2*math.Pi*200*ts)
		} else {
			signal[i] = 0.8 * math.Sin(2*math.Pi*440*ts)
		}
	}
	return signal
}

func do(h *HTTPServer, method, target string, body []byte) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, req)
	return rec
}

func TestDetectJSON(t *testing.T) {
	h, m := newTestServer(t, nil)

	rec := do(h, http.MethodPost, "/detect", wavBody(t, quietThenTone()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, testSampleRate, resp.SampleRate)
	assert.Equal(t, 2*testSampleRate, resp.Samples)
	assert.InDelta(t, 2.0, resp.Duration, 1e-9)
	assert.Equal(t, vad.NumFrames(resp.Samples, 320, 160), resp.Frames)
	assert.InDelta(t, 0.5, resp.SpeechRatio, 0.05)
	require.Len(t, resp.Segments, 1)
	assert.Equal(t, 2*testSampleRate, resp.Segments[0].End)
	assert.InDelta(t, 1.0, resp.Segments[0].StartSec, 0.05)
	assert.Len(t, resp.Model.Components, 3)
	assert.Equal(t, 10, resp.Training.Iterations)
	assert.Equal(t, 0.5, resp.Config.Threshold)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Detections))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("POST", "/detect", "200")))
	assert.Equal(t, uint64(1), h.GetStatistics().Detections)
}

func TestDetectOverrides(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(h, http.MethodPost, "/detect?threshold=0.25&morph_size=0&iterations=4", wavBody(t, quietThenTone()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DetectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0.25, resp.Config.Threshold)
	assert.Equal(t, 0, resp.Config.MorphSize)
	assert.Equal(t, 4, resp.Config.Iterations)
	assert.Equal(t, 4, resp.Training.Iterations)
}

func TestDetectRTTM(t *testing.T) {
	h, _ := newTestServer(t, nil)

	rec := do(h, http.MethodPost, "/detect?format=rttm&file_id=call1", wavBody(t, quietThenTone()))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "SPEAKER call1 1 "))

	turns, err := rttm.Parse(rec.Body)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.InDelta(t, 1.0, turns[0].Start, 0.05)
	assert.InDelta(t, 2.0, turns[0].End(), 1e-3)
}

func TestDetectErrors(t *testing.T) {
	tests := []struct {
		name   string
		method string
		target string
		body   func(t *testing.T) []byte
		mutate func(*config.Config)
		status int
		reason string
	}{
		{
			name:   "wrong method",
			method: http.MethodGet,
			target: "/detect",
			status: http.StatusMethodNotAllowed,
		},
		{
			name:   "not a wav file",
			method: http.MethodPost,
			target: "/detect",
			body:   func(t *testing.T) []byte { return []byte("definitely not RIFF") },
			status: http.StatusBadRequest,
			reason: "invalid_wav",
		},
		{
			name:   "malformed threshold",
			method: http.MethodPost,
			target: "/detect?threshold=high",
			body:   func(t *testing.T) []byte { return wavBody(t, quietThenTone()) },
			status: http.StatusBadRequest,
			reason: "bad_request",
		},
		{
			name:   "threshold out of range",
			method: http.MethodPost,
			target: "/detect?threshold=2",
			body:   func(t *testing.T) []byte { return wavBody(t, quietThenTone()) },
			status: http.StatusBadRequest,
			reason: "bad_request",
		},
		{
			name:   "body too large",
			method: http.MethodPost,
			target: "/detect",
			body:   func(t *testing.T) []byte { return wavBody(t, quietThenTone()) },
			mutate: func(c *config.Config) { c.HTTP.MaxBodyBytes = 4096 },
			status: http.StatusRequestEntityTooLarge,
			reason: "too_large",
		},
		{
			name:   "digital silence",
			method: http.MethodPost,
			target: "/detect",
			body:   func(t *testing.T) []byte { return wavBody(t, make([]float64, testSampleRate)) },
			status: http.StatusUnprocessableEntity,
			reason: "zero_variance",
		},
		{
			name:   "shorter than two frames",
			method: http.MethodPost,
			target: "/detect",
			body:   func(t *testing.T) []byte { return wavBody(t, quietThenTone()[:320]) },
			status: http.StatusUnprocessableEntity,
			reason: "too_short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, m := newTestServer(t, tt.mutate)

			var body []byte
			if tt.body != nil {
				body = tt.body(t)
			}
			rec := do(h, tt.method, tt.target, body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			if tt.reason != "" {
				assert.Equal(t, 1.0, testutil.ToFloat64(m.DetectionFailures.WithLabelValues(tt.reason)))
				assert.Equal(t, uint64(1), h.GetStatistics().Failures)
			}
			assert.Equal(t, 0.0, testutil.ToFloat64(m.Detections))
			assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPErrors.WithLabelValues(tt.method, "/detect", "client_error")))
		})
	}
}

func TestInfoEndpoints(t *testing.T) {
	h, _ := newTestServer(t, func(c *config.Config) { c.Decision.Threshold = 0.4 })

	rec := do(h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])

	rec = do(h, http.MethodGet, "/config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cfg map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, 0.4, cfg["decision"]["threshold"])
	assert.Equal(t, 320.0, cfg["framing"]["window"])

	rec = do(h, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "POST /detect")

	rec = do(h, http.MethodGet, "/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(h, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, nil)

	do(h, http.MethodGet, "/health", nil)
	rec := do(h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `vad_http_requests_total{endpoint="/health",method="GET",status_code="200"} 1`)
}
