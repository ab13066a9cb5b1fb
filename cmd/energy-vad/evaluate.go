package main

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/skypro1111/energy-vad/internal/eval"
	"github.com/skypro1111/energy-vad/internal/rttm"
)

func evaluateCmd() *cobra.Command {
	var (
		opts    detectOptions
		refPath string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score detection against an RTTM reference",
		Long: `Runs the detector over a WAV file and compares the result sample by sample
with the speech turns of a reference RTTM file. The report is printed as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			signal, result, err := opts.run(cmd.Context(), cmd, cfg.VADConfig(), logger)
			if err != nil {
				return err
			}

			reference, err := rttm.LoadMask(refPath, len(signal.Samples), signal.SampleRate)
			if err != nil {
				return err
			}

			report, err := eval.Score(reference, result.Mask)
			if err != nil {
				return err
			}

			logger.Info("Evaluation completed",
				slog.Float64("accuracy", report.Accuracy),
				slog.Float64("f1", report.F1),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&refPath, "rttm", "", "reference RTTM file")
	_ = cmd.MarkFlagRequired("rttm")

	return cmd
}
