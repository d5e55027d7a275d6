package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hszk-dev/framestream/internal/api/handler"
	"github.com/hszk-dev/framestream/internal/config"
	"github.com/hszk-dev/framestream/internal/decoder"
	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/infrastructure/postgres"
	"github.com/hszk-dev/framestream/internal/infrastructure/queue"
	"github.com/hszk-dev/framestream/internal/infrastructure/storage"
	"github.com/hszk-dev/framestream/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.Worker.TempDir, 0755); err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}

	// Initialize infrastructure clients
	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	if err := prometheus.Register(pgClient.Collector()); err != nil {
		return fmt.Errorf("failed to register pool metrics: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO")

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	prober := decoder.NewFFmpegDecoder(decoder.FFmpegConfig{
		FFmpegPath:  cfg.Decoder.FFmpegPath,
		FFprobePath: cfg.Decoder.FFprobePath,
	})

	probeSvc := usecase.NewProbeService(
		postgres.NewMediaRepository(pgClient.Pool()),
		storageClient,
		prober,
		usecase.ProbeServiceConfig{
			TempDir:    cfg.Worker.TempDir,
			MaxRetries: cfg.Worker.MaxRetries,
		},
		logger,
	)

	tasks := newTaskHandler(probeSvc, logger)

	var metricsSrv *http.Server
	if cfg.Worker.MetricsPort > 0 {
		metricsSrv = newMetricsServer(cfg.Worker.MetricsPort, map[string]handler.Pinger{
			"postgres": pgClient,
			"minio":    storageClient,
			"rabbitmq": queueClient,
		})
		go func() {
			logger.Info("serving worker metrics", slog.Int("port", cfg.Worker.MetricsPort))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", slog.String("error", err.Error()))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming probe tasks")
		err := queueClient.ConsumeProbeTasks(ctx, func(task repository.ProbeTask) error {
			return tasks.handle(ctx, task)
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// stop consuming new messages
	cancel()

	if tasks.wait(shutdownCtx) {
		logger.Info("all in-flight tasks completed")
	} else {
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}

	logger.Info("worker stopped")
	return nil
}

// newMetricsServer exposes /metrics, /health and /ready for the worker.
func newMetricsServer(port int, checks map[string]handler.Pinger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", handler.Health)
	mux.Handle("GET /ready", handler.Ready(checks))
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
