// Package buffered collects items from a channel and hands them to a flusher in batches.
package buffered

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultBatchSize is the default number of items to buffer before flushing.
const DefaultBatchSize = 50

// DefaultFlushInterval is the default interval between automatic flushes.
const DefaultFlushInterval = 30 * time.Second

// Flusher is called when the buffer needs to be flushed.
type Flusher[T any] func(ctx context.Context, items []T) error

// Config holds configuration for buffered writing.
type Config struct {
	// BatchSize is the number of items to buffer before flushing.
	// Defaults to DefaultBatchSize.
	BatchSize int
	// FlushInterval is the interval between automatic flushes.
	// Defaults to DefaultFlushInterval.
	FlushInterval time.Duration
}

// Writer buffers items and flushes them in batches.
type Writer[T any] struct {
	buffer  []T
	mu      sync.Mutex
	flusher Flusher[T]
	config  Config
	logger  *slog.Logger
}

// New creates a new buffered writer with the given flusher function.
func New[T any](flusher Flusher[T], cfg Config, logger *slog.Logger) *Writer[T] {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultFlushInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Writer[T]{
		buffer:  make([]T, 0, cfg.BatchSize),
		flusher: flusher,
		config:  cfg,
		logger:  logger,
	}
}

// Write consumes items from in until it is closed or ctx is done. Items still
// buffered are flushed before returning. On cancellation the final flush runs
// with a context that is not canceled and Write returns context.Canceled.
func (w *Writer[T]) Write(ctx context.Context, in <-chan T) error {
	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	w.logger.Debug("buffered writer started",
		"batch_size", w.config.BatchSize,
		"flush_interval", w.config.FlushInterval,
	)

	for {
		select {
		case <-ctx.Done():
			return w.handleShutdown(ctx)
		case <-ticker.C:
			w.handleTimerFlush(ctx)
		case item, ok := <-in:
			if done, err := w.handleItem(ctx, item, ok); done {
				return err
			}
		}
	}
}

func (w *Writer[T]) handleShutdown(ctx context.Context) error {
	w.logger.Info("buffered writer stopping, flushing remaining buffer")
	if err := w.flush(context.WithoutCancel(ctx)); err != nil {
		w.logger.Error("failed to flush on shutdown", "error", err)
	}
	return context.Canceled
}

func (w *Writer[T]) handleTimerFlush(ctx context.Context) {
	if err := w.flush(ctx); err != nil {
		w.logger.Error("failed to flush on interval", "error", err)
	}
}

func (w *Writer[T]) handleItem(ctx context.Context, item T, ok bool) (bool, error) {
	if !ok {
		w.logger.Debug("input channel closed, flushing remaining buffer")
		if err := w.flush(ctx); err != nil {
			w.logger.Error("failed to flush on close", "error", err)
			return true, err
		}
		return true, nil
	}

	w.mu.Lock()
	w.buffer = append(w.buffer, item)
	shouldFlush := len(w.buffer) >= w.config.BatchSize
	w.mu.Unlock()

	if shouldFlush {
		if err := w.flush(ctx); err != nil {
			w.logger.Error("failed to flush on batch size", "error", err)
		}
	}
	return false, nil
}

// flush hands all buffered items to the flusher function.
func (w *Writer[T]) flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}

	// Copy buffer and reset
	toFlush := make([]T, len(w.buffer))
	copy(toFlush, w.buffer)
	w.buffer = w.buffer[:0]
	w.mu.Unlock()

	w.logger.Debug("flushing buffer", "count", len(toFlush))
	return w.flusher(ctx, toFlush)
}

// BufferLen returns the current number of buffered items.
func (w *Writer[T]) BufferLen() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}
