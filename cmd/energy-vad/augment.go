package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/skypro1111/energy-vad/internal/audio"
)

func augmentCmd() *cobra.Command {
	var (
		wavPath    string
		outPath    string
		irPath     string
		noiseSigma float64
		seed       uint64
	)

	cmd := &cobra.Command{
		Use:   "augment",
		Short: "Add reverberation and white noise to a WAV file",
		Long: `Convolves the input with an impulse response read from --ir (if given) and
then adds white gaussian noise of deviation --noise-sigma. Noise defaults come
from the augment section of the config.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("noise-sigma") {
				noiseSigma = cfg.Augment.NoiseSigma
			}
			if !cmd.Flags().Changed("seed") {
				seed = cfg.Augment.Seed
			}

			signal, err := audio.ReadWAV(wavPath)
			if err != nil {
				return err
			}

			samples := signal.Samples
			if irPath != "" {
				ir, err := audio.ReadWAV(irPath)
				if err != nil {
					return err
				}
				if ir.SampleRate != signal.SampleRate {
					return fmt.Errorf("impulse response rate %d does not match signal rate %d", ir.SampleRate, signal.SampleRate)
				}
				samples = audio.Reverb(samples, ir.Samples)
			}

			samples, err = audio.AddNoise(samples, noiseSigma, seed)
			if err != nil {
				return err
			}

			if err := audio.WriteWAV(outPath, audio.Signal{Samples: samples, SampleRate: signal.SampleRate}); err != nil {
				return err
			}

			logger.Info("Augmented audio written",
				slog.String("path", outPath),
				slog.Bool("reverb", irPath != ""),
				slog.Float64("noise_sigma", noiseSigma),
				slog.Uint64("seed", seed),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&wavPath, "wav", "", "input mono WAV file")
	cmd.Flags().StringVar(&outPath, "out", "", "output WAV file")
	cmd.Flags().StringVar(&irPath, "ir", "", "impulse response WAV file")
	cmd.Flags().Float64Var(&noiseSigma, "noise-sigma", 0, "white noise deviation (default from config)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "noise seed (default from config)")
	_ = cmd.MarkFlagRequired("wav")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}
