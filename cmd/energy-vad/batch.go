package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skypro1111/energy-vad/internal/batch"
	"github.com/skypro1111/energy-vad/internal/vad"
)

func batchCmd() *cobra.Command {
	var (
		outDir string
		jobs   int
	)

	cmd := &cobra.Command{
		Use:   "batch [file.wav ...]",
		Short: "Label speech in many WAV files concurrently",
		Long: `Runs the detector over every WAV file given and writes <name>.rttm into
--out-dir. One JSON line is printed per file. The command fails if any file
failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("jobs") {
				jobs = cfg.Batch.MaxConcurrent
			}

			detector, err := vad.NewDetector(cfg.VADConfig(), vad.WithLogger(logger))
			if err != nil {
				return err
			}

			runner, err := batch.NewRunner(batch.Config{MaxConcurrent: jobs, OutputDir: outDir}, detector, logger, nil)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			var failedJobs int
			for _, o := range runner.Run(cmd.Context(), args) {
				if o.Err != nil {
					failedJobs++
				}
				if err := enc.Encode(o); err != nil {
					return err
				}
			}

			if failedJobs > 0 {
				return fmt.Errorf("%d of %d files failed", failedJobs, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for RTTM output (default: none written)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 0, "files processed in parallel (default from config)")

	return cmd
}
