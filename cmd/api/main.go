package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/framestream/internal/api"
	"github.com/hszk-dev/framestream/internal/api/handler"
	"github.com/hszk-dev/framestream/internal/config"
	"github.com/hszk-dev/framestream/internal/decoder"
	"github.com/hszk-dev/framestream/internal/framecache"
	"github.com/hszk-dev/framestream/internal/infrastructure/cache"
	"github.com/hszk-dev/framestream/internal/infrastructure/framestore"
	"github.com/hszk-dev/framestream/internal/infrastructure/postgres"
	"github.com/hszk-dev/framestream/internal/infrastructure/queue"
	"github.com/hszk-dev/framestream/internal/infrastructure/storage"
	"github.com/hszk-dev/framestream/internal/pipeline"
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

	// Initialize infrastructure clients
	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	if err := postgres.Migrate(ctx, pgClient.Pool()); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := prometheus.Register(pgClient.Collector()); err != nil {
		return fmt.Errorf("failed to register pool metrics: %w", err)
	}
	logger.Info("connected to PostgreSQL")

	storageClient, err := storage.NewClient(ctx, storage.ClientConfig{
		Endpoint:       cfg.MinIO.Endpoint,
		PublicEndpoint: cfg.MinIO.PublicEndpoint,
		AccessKey:      cfg.MinIO.AccessKey,
		SecretKey:      cfg.MinIO.SecretKey,
		Bucket:         cfg.MinIO.Bucket,
		UseSSL:         cfg.MinIO.UseSSL,
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

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	stores, closeStores, err := newStoreFactory(cfg.FrameStore, redisClient)
	if err != nil {
		return err
	}
	defer closeStores()
	logger.Info("frame store ready", slog.String("backend", string(stores.Backend())))

	// Initialize services
	mediaRepo := postgres.NewMediaRepository(pgClient.Pool())
	mediaSvc := usecase.NewCachedMediaService(
		usecase.NewMediaService(
			mediaRepo,
			storageClient,
			queueClient,
			usecase.MediaServiceConfig{UploadURLExpiry: cfg.Server.UploadURLExpiry},
			logger,
		),
		cache.NewRedisMediaCache(redisClient),
		usecase.CachedMediaServiceConfig{CacheTTL: cfg.Redis.MediaCacheTTL},
		logger,
	)

	dec := decoder.NewFFmpegDecoder(decoder.FFmpegConfig{
		FFmpegPath:  cfg.Decoder.FFmpegPath,
		FFprobePath: cfg.Decoder.FFprobePath,
		Threads:     cfg.Decoder.Threads,
	})
	sessionSvc := usecase.NewSessionService(
		mediaSvc,
		storageClient,
		dec,
		stores,
		usecase.SessionServiceConfig{
			TempDir:       cfg.Worker.TempDir,
			DecodeTimeout: cfg.Decoder.Timeout,
			FPS:           cfg.Player.DefaultFPS,
			Cache: framecache.Config{
				Radius:    cfg.Cache.Radius,
				Threshold: cfg.Cache.Threshold,
			},
			Pipeline: pipeline.Config{
				BatchSize:  cfg.Decoder.BatchSize,
				Workers:    cfg.Decoder.Workers,
				AllowShort: cfg.Decoder.AllowShort,
			},
		},
		logger,
	)

	r := api.NewRouter(api.Deps{
		Media:    mediaSvc,
		Sessions: sessionSvc,
		Ready: map[string]handler.Pinger{
			"postgres": pgClient,
			"minio":    storageClient,
			"rabbitmq": queueClient,
			"redis": handler.PingerFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		},
		Logger: logger,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	// Sessions hold frames in the store; drop them before the store closes.
	if err := sessionSvc.CloseAll(shutdownCtx); err != nil {
		logger.Warn("failed to close playback sessions", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}

// newStoreFactory opens the configured frame store backend. The returned
// func closes whatever the backend opened.
func newStoreFactory(cfg config.FrameStoreConfig, redisClient redis.UniversalClient) (*framestore.Factory, func(), error) {
	backend, err := framestore.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, nil, err
	}

	switch backend {
	case framestore.BackendBolt:
		db, err := framestore.OpenBolt(filepath.Join(cfg.BoltDir, "frames.db"), cfg.BoltTimeout)
		if err != nil {
			return nil, nil, err
		}
		return framestore.NewBoltFactory(db), func() { _ = db.Close() }, nil
	case framestore.BackendRedis:
		return framestore.NewRedisFactory(redisClient, cfg.TTL), func() {}, nil
	default:
		return framestore.NewMemoryFactory(), func() {}, nil
	}
}
