package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/skypro1111/energy-vad/internal/metrics"
	"github.com/skypro1111/energy-vad/internal/server"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP detection API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}

			logger.Info("Service starting",
				slog.String("service", serviceName),
				slog.String("version", serviceVersion),
				slog.String("config_path", cfgFile),
			)

			logger.Info("Configuration loaded",
				slog.Int("window", cfg.Framing.Window),
				slog.Int("shift", cfg.Framing.Shift),
				slog.Int("em_iterations", cfg.GMM.Iterations),
				slog.Int("components", len(cfg.GMM.Components)),
				slog.Float64("threshold", cfg.Decision.Threshold),
				slog.Int("morph_size", cfg.Morphology.Size),
				slog.String("log_level", cfg.Logging.Level),
			)

			// Create cancellable context for graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
			appMetrics := metrics.NewMetrics(reg)
			logger.Info("Prometheus metrics initialized")

			httpServer := server.NewHTTPServer(cfg, logger, appMetrics, reg)
			if err := httpServer.Start(); err != nil {
				return fmt.Errorf("failed to start HTTP server: %w", err)
			}

			logger.Info("Service started successfully, waiting for signals...",
				slog.String("http_address", fmt.Sprintf("%s:%d", cfg.HTTP.Address, cfg.HTTP.Port)),
			)

			<-ctx.Done()
			logger.Info("Starting graceful shutdown...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Stop(shutdownCtx); err != nil {
				logger.Error("Error stopping HTTP server", slog.String("error", err.Error()))
			}

			stats := httpServer.GetStatistics()
			logger.Info("Final server statistics",
				slog.Uint64("detections", stats.Detections),
				slog.Uint64("failures", stats.Failures),
				slog.Uint64("samples_served", stats.SamplesServed),
			)

			logger.Info("Service stopped")
			return nil
		},
	}
}
