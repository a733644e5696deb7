package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"llm_compare/internal/models"
	"llm_compare/internal/queue"
	"llm_compare/internal/utils"
)

// HistoryWorker persists round records asynchronously. Rounds are split into
// one record per provider, queued, and written in batches by a background
// goroutine. Batches that keep failing are moved record by record to the
// dead letter queue.
type HistoryWorker struct {
	queue  queue.Queue
	dlq    queue.DeadLetterQueue
	writer HistoryWriter
	config *queue.Config
	logger *utils.Logger

	startOnce   sync.Once
	stopOnce    sync.Once
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewHistoryWorker creates a new history worker
func NewHistoryWorker(q queue.Queue, dlq queue.DeadLetterQueue, writer HistoryWriter, config *queue.Config) *HistoryWorker {
	if config == nil {
		config = queue.DefaultConfig("history")
	}

	return &HistoryWorker{
		queue:       q,
		dlq:         dlq,
		writer:      writer,
		config:      config,
		logger:      utils.NewLogger("history-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *HistoryWorker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		go w.run(ctx)
	})
}

// Stop stops the worker and flushes whatever is still queued
func (w *HistoryWorker) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	// A worker that was never started has no loop to wait for
	w.startOnce.Do(func() {
		close(w.stoppedChan)
	})
	<-w.stoppedChan

	w.flush()
	return nil
}

// RecordRound queues one record per provider response in the round
func (w *HistoryWorker) RecordRound(ctx context.Context, round *models.Round) error {
	var errs []error
	for _, record := range round.Records() {
		if err := w.queue.Enqueue(ctx, record); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", record.Provider, err))
		}
	}
	return errors.Join(errs...)
}

// Enqueue adds a single record to the queue
func (w *HistoryWorker) Enqueue(ctx context.Context, record *models.RoundRecord) error {
	return w.queue.Enqueue(ctx, record)
}

// run is the main worker loop
func (w *HistoryWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	// Dequeues are interrupted on stop; writes keep the caller's context
	dequeueCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopChan:
			cancel()
		case <-dequeueCtx.Done():
		}
	}()

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("History worker stopping")
			return
		case <-ctx.Done():
			w.logger.Info("History worker context cancelled")
			return
		default:
			w.processBatch(dequeueCtx, ctx, w.config.BatchTimeout)
		}
	}
}

// flush drains the queue without blocking once the loop has exited
func (w *HistoryWorker) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for ctx.Err() == nil {
		if n := w.processBatch(ctx, ctx, 0); n == 0 {
			return
		}
	}
}

// processBatch handles one batch and returns how many items were dequeued
func (w *HistoryWorker) processBatch(dequeueCtx, ctx context.Context, timeout time.Duration) int {
	items, err := w.queue.DequeueWithTimeout(dequeueCtx, w.config.BatchSize, timeout)
	if err != nil {
		if errors.Is(err, queue.ErrQueueClosed) || errors.Is(err, context.Canceled) {
			return 0
		}
		w.logger.Error("Failed to dequeue round records", "error", err)
		w.sleep(ctx, time.Second) // Back off on error
		return 0
	}

	if len(items) == 0 {
		return 0
	}

	w.logger.Debug("Processing history batch", "count", len(items))

	records := make([]*models.RoundRecord, 0, len(items))
	payloads := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		var record models.RoundRecord
		if err := json.Unmarshal(item, &record); err != nil {
			w.logger.Error("Failed to unmarshal round record", "error", err)
			w.deadLetter(ctx, item, err)
			continue
		}
		records = append(records, &record)
		payloads = append(payloads, item)
	}

	if len(records) > 0 {
		w.writeWithRetry(ctx, records, payloads)
	}
	return len(items)
}

// writeWithRetry writes the batch with exponential backoff, then dead-letters it
func (w *HistoryWorker) writeWithRetry(ctx context.Context, records []*models.RoundRecord, payloads []json.RawMessage) {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying history batch", "attempt", attempt, "backoff", backoff)
			if !w.sleep(ctx, backoff) {
				break
			}
		}

		if err := w.writer.WriteBatch(ctx, records); err != nil {
			lastErr = err
			w.logger.Error("Failed to write history batch", "attempt", attempt, "error", err)
			continue
		}

		w.logger.Debug("History batch written", "count", len(records))
		return
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	err := fmt.Errorf("%w: %v", queue.ErrMaxRetriesExceeded, lastErr)
	for _, payload := range payloads {
		w.deadLetter(ctx, payload, err)
	}
	w.logger.Warn("History batch moved to DLQ", "count", len(payloads), "error", lastErr)
}

func (w *HistoryWorker) deadLetter(ctx context.Context, payload json.RawMessage, cause error) {
	if w.dlq == nil {
		return
	}
	// The worker context may already be done while flushing
	if err := w.dlq.Add(context.WithoutCancel(ctx), payload, cause); err != nil {
		w.logger.Error("Failed to add to dead letter queue", "error", err)
	}
}

// sleep waits for d and reports false if the worker was stopped meanwhile
func (w *HistoryWorker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-w.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}

// GetQueueLength returns the current queue length
func (w *HistoryWorker) GetQueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// GetDeadLetterItems returns items from the dead letter queue
func (w *HistoryWorker) GetDeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem, error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-queues a failed record and removes it from the DLQ
func (w *HistoryWorker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, item := range items {
		if item.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, item.Payload); err != nil {
			return fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}
