package coord

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
)

// batch collects callers for one run of a BatchOperation.
type batch struct {
	done    chan struct{}
	callers int // guarded by Coordinator.mu
	value   any
	err     error
}

// WithBatching coalesces calls sharing batchKey into one run of op.
//
// The first caller opens a batch and schedules its flush; callers arriving
// before the flush join it. op runs once with the first caller's args and
// every caller receives that result or error. A caller arriving after the
// flush started opens a new batch.
func (c *Coordinator) WithBatching(ctx context.Context, batchKey string, op BatchOperation, args ...any) (any, error) {
	if op == nil {
		return nil, ErrNilOperation
	}

	c.mu.Lock()
	b, joined := c.batches[batchKey]
	if !joined {
		b = &batch{done: make(chan struct{})}
		c.batches[batchKey] = b
		go c.flush(context.WithoutCancel(ctx), batchKey, b, op, args)
	}
	b.callers++
	c.mu.Unlock()

	if joined {
		c.metrics.RecordCacheLookup(ctx, observability.CacheBatched)
	}

	select {
	case <-b.done:
		return b.value, b.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flush waits out the batch window, closes the batch to new callers, and
// runs op.
func (c *Coordinator) flush(ctx context.Context, key string, b *batch, op BatchOperation, args []any) {
	runtime.Gosched()
	if c.window > 0 {
		time.Sleep(c.window)
	}

	c.mu.Lock()
	if c.batches[key] == b {
		delete(c.batches, key)
	}
	callers := b.callers
	c.mu.Unlock()

	start := time.Now()
	v, err := runSafely(ctx, key, func(ctx context.Context) (any, error) {
		return op(ctx, args...)
	})
	if err != nil {
		err = &OperationError{Key: key, Err: err}
	}
	b.value, b.err = v, err
	close(b.done)

	c.logger.Debug("batch flushed",
		slog.String("key", key),
		slog.Int("callers", callers),
		slog.Duration("duration", time.Since(start)),
		slog.Bool("failed", err != nil),
	)
}
