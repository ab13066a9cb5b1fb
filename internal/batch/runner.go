package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/skypro1111/energy-vad/internal/audio"
	"github.com/skypro1111/energy-vad/internal/metrics"
	"github.com/skypro1111/energy-vad/internal/rttm"
	"github.com/skypro1111/energy-vad/internal/vad"
)

// Config contains batch runner configuration
type Config struct {
	MaxConcurrent int
	OutputDir     string // RTTM files are written here, nothing is written when empty
}

// Outcome is the result of one file
type Outcome struct {
	Path        string          `json:"path"`
	RTTMPath    string          `json:"rttm_path,omitempty"`
	SampleRate  int             `json:"sample_rate,omitempty"`
	Samples     int             `json:"samples,omitempty"`
	Segments    []audio.Segment `json:"segments,omitempty"`
	SpeechRatio float64         `json:"speech_ratio"`
	Elapsed     time.Duration   `json:"elapsed"`
	Err         error           `json:"-"`
	Error       string          `json:"error,omitempty"`
}

// Stats summarizes the jobs a runner has processed
type Stats struct {
	TotalJobs      uint64        `json:"total_jobs"`
	SucceededJobs  uint64        `json:"succeeded_jobs"`
	FailedJobs     uint64        `json:"failed_jobs"`
	SuccessRate    float64       `json:"success_rate"`
	AvgDetectTime  time.Duration `json:"avg_detect_time"`
	ActiveJobs     int           `json:"active_jobs"`
	SamplesLabeled uint64        `json:"samples_labeled"`
}

// Runner detects speech in files concurrently with a shared detector
type Runner struct {
	config   Config
	detector *vad.Detector
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// Statistics
	totalJobs      uint64
	succeededJobs  uint64
	failedJobs     uint64
	samplesLabeled uint64
	activeJobs     int
	totalTime      time.Duration

	mu sync.RWMutex
}

// NewRunner creates a batch runner. m may be nil.
func NewRunner(config Config, detector *vad.Detector, logger *slog.Logger, m *metrics.Metrics) (*Runner, error) {
	if detector == nil {
		return nil, fmt.Errorf("detector cannot be nil")
	}

	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}

	if config.OutputDir != "" {
		if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory %s: %w", config.OutputDir, err)
		}
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Runner{
		config:   config,
		detector: detector,
		logger:   logger,
		metrics:  m,
	}, nil
}

// Run processes paths and returns one outcome per path in input order.
// A failing file does not stop the others; only cancellation of ctx ends the
// batch early, in which case the remaining outcomes carry ctx's error.
func (r *Runner) Run(ctx context.Context, paths []string) []Outcome {
	outcomes := make([]Outcome, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.MaxConcurrent)

	for i, path := range paths {
		if err := gctx.Err(); err != nil {
			outcomes[i] = failed(path, err)
			continue
		}
		g.Go(func() error {
			outcomes[i] = r.process(gctx, path)
			return nil
		})
	}
	_ = g.Wait()

	stats := r.GetStats()
	r.logger.Info("Batch completed",
		slog.Int("files", len(paths)),
		slog.Uint64("succeeded", stats.SucceededJobs),
		slog.Uint64("failed", stats.FailedJobs),
	)
	return outcomes
}

// process runs one file
func (r *Runner) process(ctx context.Context, path string) Outcome {
	r.jobStarted()
	startTime := time.Now()

	outcome, err := r.detect(ctx, path)
	outcome.Elapsed = time.Since(startTime)
	if err != nil {
		r.jobFinished(false, 0, outcome.Elapsed)
		if r.metrics != nil {
			r.metrics.RecordDetectionFailure(metrics.FailureReason(err))
		}
		r.logger.Warn("Detection failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		out := failed(path, err)
		out.Elapsed = outcome.Elapsed
		return out
	}

	r.jobFinished(true, outcome.Samples, outcome.Elapsed)
	r.logger.Debug("File processed",
		slog.String("path", path),
		slog.Int("segments", len(outcome.Segments)),
		slog.Float64("speech_ratio", outcome.SpeechRatio),
		slog.Duration("elapsed", outcome.Elapsed),
	)
	return outcome
}

func (r *Runner) detect(ctx context.Context, path string) (Outcome, error) {
	outcome := Outcome{Path: path}

	signal, err := audio.ReadWAV(path)
	if err != nil {
		return outcome, err
	}

	result, err := r.detector.Detect(ctx, signal.Samples)
	if err != nil {
		return outcome, fmt.Errorf("detect %s: %w", path, err)
	}

	segs := audio.Segments(result.Mask)
	outcome.SampleRate = signal.SampleRate
	outcome.Samples = len(signal.Samples)
	outcome.Segments = segs
	outcome.SpeechRatio = result.SpeechRatio()

	if r.metrics != nil {
		r.metrics.RecordDetection(metrics.Detection{
			Frames:        len(result.FrameMask),
			Samples:       len(result.Mask),
			SpeechSamples: audio.TotalSamples(segs),
			Iterations:    result.Stats.Iterations,
			LogLikelihood: result.Stats.LogLikelihood,
			Elapsed:       result.Elapsed,
		})
	}

	if r.config.OutputDir != "" {
		outcome.RTTMPath, err = r.writeRTTM(path, segs, signal.SampleRate)
		if err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}

func (r *Runner) writeRTTM(path string, segs []audio.Segment, sampleRate int) (string, error) {
	fileID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	out := filepath.Join(r.config.OutputDir, fileID+".rttm")

	f, err := os.Create(out)
	if err != nil {
		return "", fmt.Errorf("failed to create rttm file %s: %w", out, err)
	}
	if err := rttm.Write(f, fileID, segs, sampleRate); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write rttm file %s: %w", out, err)
	}
	return out, f.Close()
}

func failed(path string, err error) Outcome {
	return Outcome{Path: path, Err: err, Error: err.Error()}
}

func (r *Runner) jobStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalJobs++
	r.activeJobs++
}

func (r *Runner) jobFinished(ok bool, samples int, elapsed time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeJobs--
	r.totalTime += elapsed
	if ok {
		r.succeededJobs++
		r.samplesLabeled += uint64(samples)
	} else {
		r.failedJobs++
	}
}

// GetStats returns runner statistics
func (r *Runner) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalJobs:      r.totalJobs,
		SucceededJobs:  r.succeededJobs,
		FailedJobs:     r.failedJobs,
		ActiveJobs:     r.activeJobs,
		SamplesLabeled: r.samplesLabeled,
	}

	done := r.succeededJobs + r.failedJobs
	if done > 0 {
		stats.SuccessRate = float64(r.succeededJobs) / float64(done)
		stats.AvgDetectTime = r.totalTime / time.Duration(done)
	}
	return stats
}
