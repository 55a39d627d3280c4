package writer

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FlushFunc writes one batch. The slice is owned by the callee.
type FlushFunc[T any] func(ctx context.Context, rows []T) error

// WriterMetrics tracks batch activity.
type WriterMetrics struct {
	Rows    int64 // rows handed to flush
	Flushes int64 // successful flushes
	Errors  int64 // failed flushes
}

// Batch collects rows until Size is reached, then flushes. It is not safe for
// concurrent use; each job owns its own Batch.
type Batch[T any] struct {
	size    int
	flush   FlushFunc[T]
	logger  *slog.Logger
	rows    []T
	metrics WriterMetrics
}

// NewBatch creates a Batch that flushes every size rows.
func NewBatch[T any](size int, flush FlushFunc[T], logger *slog.Logger) (*Batch[T], error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be >= 1, got %d", size)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Batch[T]{
		size:   size,
		flush:  flush,
		logger: logger,
		rows:   make([]T, 0, size),
	}, nil
}

// Add appends a row and flushes when the batch is full. The returned error is
// the flush error, if one ran.
func (b *Batch[T]) Add(ctx context.Context, row T) error {
	b.rows = append(b.rows, row)
	if len(b.rows) < b.size {
		return nil
	}
	return b.Flush(ctx)
}

// Flush writes whatever is pending. An empty batch is a no-op.
func (b *Batch[T]) Flush(ctx context.Context) error {
	if len(b.rows) == 0 {
		return nil
	}

	// Take ownership of current batch
	rows := b.rows
	b.rows = make([]T, 0, b.size)
	b.metrics.Rows += int64(len(rows))

	start := time.Now()
	if err := b.flush(ctx, rows); err != nil {
		b.metrics.Errors++
		return err
	}
	b.metrics.Flushes++

	b.logger.Debug("flushed batch",
		"count", len(rows),
		"duration", time.Since(start),
	)
	return nil
}

// Len returns the number of pending rows.
func (b *Batch[T]) Len() int {
	return len(b.rows)
}

// Stats returns current metrics.
func (b *Batch[T]) Stats() WriterMetrics {
	return b.metrics
}
