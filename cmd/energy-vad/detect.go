package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skypro1111/energy-vad/internal/audio"
	"github.com/skypro1111/energy-vad/internal/rttm"
	"github.com/skypro1111/energy-vad/internal/vad"
)

// detectOptions are the flags shared by detect and evaluate
type detectOptions struct {
	wavPath    string
	threshold  float64
	morphSize  int
	iterations int
}

func (o *detectOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.wavPath, "wav", "", "mono WAV file to analyse")
	cmd.Flags().Float64Var(&o.threshold, "threshold", 0, "non-speech posterior threshold (overrides config)")
	cmd.Flags().IntVar(&o.morphSize, "morph-size", 0, "morphology element size in samples (overrides config)")
	cmd.Flags().IntVar(&o.iterations, "iterations", 0, "EM iterations (overrides config)")
	_ = cmd.MarkFlagRequired("wav")
}

// apply copies the flags the user set over cfg
func (o *detectOptions) apply(cmd *cobra.Command, cfg vad.Config) vad.Config {
	if cmd.Flags().Changed("threshold") {
		cfg.Threshold = o.threshold
	}
	if cmd.Flags().Changed("morph-size") {
		cfg.MorphSize = o.morphSize
	}
	if cmd.Flags().Changed("iterations") {
		cfg.Train.Iterations = o.iterations
	}
	return cfg
}

// run reads the WAV file and detects speech in it
func (o *detectOptions) run(ctx context.Context, cmd *cobra.Command, cfg vad.Config, logger *slog.Logger) (audio.Signal, *vad.Result, error) {
	signal, err := audio.ReadWAV(o.wavPath)
	if err != nil {
		return audio.Signal{}, nil, err
	}

	detector, err := vad.NewDetector(o.apply(cmd, cfg), vad.WithLogger(logger))
	if err != nil {
		return audio.Signal{}, nil, err
	}

	result, err := detector.Detect(ctx, signal.Samples)
	if err != nil {
		return audio.Signal{}, nil, fmt.Errorf("detect %s: %w", o.wavPath, err)
	}

	logger.Info("Detection completed",
		slog.String("wav", o.wavPath),
		slog.Int("sample_rate", signal.SampleRate),
		slog.Int("samples", len(signal.Samples)),
		slog.Int("frames", len(result.FrameMask)),
		slog.Float64("speech_ratio", result.SpeechRatio()),
		slog.Duration("elapsed", result.Elapsed),
	)
	return signal, result, nil
}

func detectCmd() *cobra.Command {
	var (
		opts    detectOptions
		rttmOut string
		maskOut string
		fileID  string
	)

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Label speech in a WAV file",
		Long: `Runs the detector over a mono WAV file and writes the speech segments as
RTTM, to stdout unless --rttm-out is given. --mask-out additionally writes
the per-sample mask as a 0/1 WAV file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			signal, result, err := opts.run(cmd.Context(), cmd, cfg.VADConfig(), logger)
			if err != nil {
				return err
			}

			if fileID == "" {
				fileID = strings.TrimSuffix(filepath.Base(opts.wavPath), filepath.Ext(opts.wavPath))
			}

			segs := audio.Segments(result.Mask)
			if err := writeRTTM(cmd.OutOrStdout(), rttmOut, fileID, segs, signal.SampleRate); err != nil {
				return err
			}

			if maskOut != "" {
				if err := audio.WriteWAV(maskOut, audio.MaskSignal(result.Mask, signal.SampleRate)); err != nil {
					return err
				}
				logger.Info("Mask written", slog.String("path", maskOut))
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&rttmOut, "rttm-out", "", "write RTTM segments to this file instead of stdout")
	cmd.Flags().StringVar(&maskOut, "mask-out", "", "write the speech mask as a WAV file")
	cmd.Flags().StringVar(&fileID, "file-id", "", "RTTM file id (default: WAV base name)")

	return cmd
}

func writeRTTM(stdout io.Writer, path, fileID string, segs []audio.Segment, sampleRate int) error {
	if path == "" {
		return rttm.Write(stdout, fileID, segs, sampleRate)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create rttm file %s: %w", path, err)
	}
	if err := rttm.Write(f, fileID, segs, sampleRate); err != nil {
		f.Close()
		return fmt.Errorf("failed to write rttm file %s: %w", path, err)
	}
	return f.Close()
}
