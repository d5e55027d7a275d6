package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hszk-dev/framestream/internal/domain/repository"
	"github.com/hszk-dev/framestream/internal/infrastructure/metrics"
	"github.com/hszk-dev/framestream/internal/usecase"
)

// taskHandler runs probe tasks and tracks the ones in flight so shutdown
// can wait for them.
type taskHandler struct {
	svc    usecase.ProbeService
	logger *slog.Logger
	wg     sync.WaitGroup
}

func newTaskHandler(svc usecase.ProbeService, logger *slog.Logger) *taskHandler {
	return &taskHandler{svc: svc, logger: logger}
}

// handle processes one task. A returned error makes the queue retry it.
func (h *taskHandler) handle(ctx context.Context, task repository.ProbeTask) error {
	h.wg.Add(1)
	defer h.wg.Done()

	logger := h.logger.With(
		slog.String("media_id", task.MediaID.String()),
		slog.Int("retry_count", task.RetryCount),
	)
	logger.Info("processing task")

	start := time.Now()
	err := h.svc.ProcessTask(ctx, task)
	metrics.ProbeTaskDuration.Observe(time.Since(start).Seconds())
	metrics.ProbeTasksTotal.WithLabelValues(metrics.StatusLabel(err)).Inc()

	if err != nil {
		logger.Error("task processing failed", slog.String("error", err.Error()))
		return err
	}
	logger.Info("task completed successfully", slog.Duration("duration", time.Since(start)))
	return nil
}

// wait blocks until every in-flight task is done or ctx expires. It
// reports whether all tasks finished.
func (h *taskHandler) wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
