package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/variantlab/variant-scraper/internal/events"
	"github.com/variantlab/variant-scraper/internal/queue"
)

// StartWorkers runs n worker goroutines that drain the task queue until the
// context is cancelled or the queue is closed.
func (m *Manager) StartWorkers(ctx context.Context, n int) {
	m.logger.Info("starting workers", "count", n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			m.workerLoop(ctx, worker)
		}(i)
	}
	wg.Wait()

	m.logger.Info("all workers stopped")
}

func (m *Manager) workerLoop(ctx context.Context, worker int) {
	logger := m.logger.With("worker", worker)

	for {
		tasks, err := m.batch.PopBatch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrQueueClosed) {
				logger.Info("worker stopping")
				return
			}
			logger.Error("failed to pop tasks", "error", err)
			continue
		}

		for _, task := range tasks {
			if ctx.Err() != nil {
				return
			}
			m.processTask(ctx, logger, task)
		}
	}
}

// processTask handles one product page. Failures are recorded on the job and
// never abort the batch.
func (m *Manager) processTask(ctx context.Context, logger *slog.Logger, task *queue.Task) {
	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			m.recordTaskResult(task.JobID, false, fmt.Sprintf("%s: %v", task.ASIN, err))
			return
		}
	}

	logger.Info("processing task", "asin", task.ASIN, "url", task.URL)

	product, verdict, err := m.ExtractURL(ctx, task.URL)
	if err != nil {
		logger.Error("extraction failed", "asin", task.ASIN, "error", err)
		m.recordTaskResult(task.JobID, false, fmt.Sprintf("%s: %v", task.ASIN, err))

		if m.store != nil {
			if storeErr := m.store.MarkFailed(ctx, task.ASIN, task.URL, err.Error()); storeErr != nil {
				logger.Error("failed to record failure", "asin", task.ASIN, "error", storeErr)
			}
		}
		if m.publisher != nil {
			if pubErr := m.publisher.PublishExtractionFailed(ctx, &events.ExtractionFailedPayload{
				ASIN:  task.ASIN,
				URL:   task.URL,
				Error: err.Error(),
			}); pubErr != nil {
				logger.Error("failed to publish failure event", "asin", task.ASIN, "error", pubErr)
			}
		}
		return
	}

	logger.Info("task complete",
		"asin", task.ASIN,
		"title", product.Title,
		"variants", len(verdict.Variants),
		"method", verdict.Method,
		"confidence", verdict.Confidence)

	m.recordTaskResult(task.JobID, true, "")
}
