package vad

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/skypro1111/energy-vad/internal/morph"
)

// Config holds the detector parameters.
type Config struct {
	Window    int     // frame length in samples
	Shift     int     // hop between frames in samples
	Threshold float64 // non-speech posterior below which a frame is speech
	MorphSize int     // structuring element length in samples, <= 1 disables cleanup
	Train     TrainOptions
}

// DefaultConfig returns 20ms/10ms framing at 16kHz, threshold 0.5 and
// 10 EM iterations.
func DefaultConfig() Config {
	return Config{
		Window:    320,
		Shift:     160,
		Threshold: 0.5,
		MorphSize: 321,
		Train:     DefaultTrainOptions(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validateFraming(c.Window, c.Shift); err != nil {
		return err
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("%w: threshold must be between 0 and 1, got %v", ErrInvalidConfig, c.Threshold)
	}
	if c.MorphSize < 0 {
		return fmt.Errorf("%w: morph size cannot be negative, got %d", ErrInvalidConfig, c.MorphSize)
	}
	return c.Train.Validate()
}

// Result is the output of one detection.
type Result struct {
	Mask      []bool        `json:"-"` // per sample, after cleanup
	FrameMask []bool        `json:"-"`
	Posterior []float64     `json:"-"` // per frame non-speech probability
	Energy    []float64     `json:"-"` // per frame normalized energy
	Model     Model         `json:"model"`
	Stats     TrainStats    `json:"training"`
	Elapsed   time.Duration `json:"elapsed"`
}

// SpeechRatio returns the fraction of samples marked as speech.
func (r *Result) SpeechRatio() float64 {
	if len(r.Mask) == 0 {
		return 0
	}
	var n int
	for _, v := range r.Mask {
		if v {
			n++
		}
	}
	return float64(n) / float64(len(r.Mask))
}

// Detector runs the energy GMM pipeline.
type Detector struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the logger used for training summaries.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDetector validates cfg and returns a detector.
func NewDetector(cfg Config, opts ...Option) (*Detector, error) {
	if cfg.Train.Density == nil {
		cfg.Train.Density = GaussPDF
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Detector{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Detect labels every sample of signal as speech or non-speech.
func (d *Detector) Detect(ctx context.Context, signal []float64) (*Result, error) {
	start := time.Now()
	cfg := d.cfg

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frames, err := Frame(square(signal), cfg.Window, cfg.Shift)
	if err != nil {
		return nil, err
	}
	if len(frames) < 2 {
		return nil, fmt.Errorf("%w: %d samples give %d frames (window %d, shift %d)",
			ErrSignalTooShort, len(signal), len(frames), cfg.Window, cfg.Shift)
	}

	energy, err := Normalize(Energy(frames))
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, stats, err := TrainContext(ctx, energy, cfg.Train)
	if err != nil {
		return nil, fmt.Errorf("train mixture: %w", err)
	}

	d.logger.Debug("Mixture trained",
		slog.Int("frames", len(energy)),
		slog.Int("iterations", stats.Iterations),
		slog.Bool("converged", stats.Converged),
		slog.Float64("log_likelihood", stats.LogLikelihood),
		slog.Float64("nonspeech_mean", model.Components[NonSpeech].Mean),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	posterior := Posterior(energy, model, cfg.Train.Density)
	frameMask := Decide(posterior, cfg.Threshold)
	upsampled := Upsample(frameMask, cfg.Shift, len(signal))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mask := Clean(upsampled, cfg.MorphSize)

	return &Result{
		Mask:      mask,
		FrameMask: frameMask,
		Posterior: posterior,
		Energy:    energy,
		Model:     model,
		Stats:     stats,
		Elapsed:   time.Since(start),
	}, nil
}

// Clean applies closing then opening with a flat element of size samples.
func Clean(mask []bool, size int) []bool {
	return morph.CloseOpen(mask, size)
}

// EnergyGMMVAD runs the full pipeline with a caller supplied density and
// returns the cleaned sample mask.
func EnergyGMMVAD(signal []float64, window, shift int, density DensityFunc, iterations int, threshold float64, morphSize int) ([]bool, error) {
	cfg := DefaultConfig()
	cfg.Window = window
	cfg.Shift = shift
	cfg.Threshold = threshold
	cfg.MorphSize = morphSize
	cfg.Train.Iterations = iterations
	if density != nil {
		cfg.Train.Density = density
	}

	d, err := NewDetector(cfg)
	if err != nil {
		return nil, err
	}
	res, err := d.Detect(context.Background(), signal)
	if err != nil {
		return nil, err
	}
	return res.Mask, nil
}
