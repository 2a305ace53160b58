package coord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	acerrors "github.com/randalmurphal/agentcore/pkg/agentcore/errors"
	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
)

// Operation is an expensive call whose result can be shared.
type Operation func(ctx context.Context) (any, error)

// BatchOperation is an operation that takes the first batch caller's arguments.
type BatchOperation func(ctx context.Context, args ...any) (any, error)

type entry struct {
	value     any
	createdAt time.Time
	ttl       time.Duration
}

func (e entry) expired(now time.Time) bool {
	return now.Sub(e.createdAt) >= e.ttl
}

// CacheStats is a snapshot of coordinator state.
type CacheStats struct {
	// Size is the number of cached entries, expired or not.
	Size int
	// PendingOperations is the number of keys with an operation in flight.
	PendingOperations int
	// BatchQueues is the number of batches collecting callers.
	BatchQueues int

	Hits         int64
	Misses       int64
	Deduplicated int64
}

// Coordinator protects expensive operations from duplicate work.
//
// WithCache combines a TTL result cache with in-flight de-duplication:
// concurrent callers for the same key share one run of the operation.
// WithBatching collapses calls that arrive close together under one key
// into a single run. Failures are never cached.
//
// There is no timeout on operations; a hung operation holds its key until
// it returns. A caller whose context ends stops waiting and gets ctx.Err(),
// while the operation keeps running for the others.
type Coordinator struct {
	defaultTTL time.Duration
	window     time.Duration
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	now        func() time.Time

	group singleflight.Group

	mu      sync.Mutex
	cache   map[string]entry
	pending map[string]struct{}
	batches map[string]*batch

	hits   atomic.Int64
	misses atomic.Int64
	dedup  atomic.Int64
}

// New creates a Coordinator.
func New(opts ...Option) *Coordinator {
	cfg := config{
		defaultTTL:  DefaultTTL,
		batchWindow: DefaultBatchWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		defaultTTL: cfg.defaultTTL,
		window:     cfg.batchWindow,
		logger:     logger,
		metrics:    observability.OrNoopMetrics(cfg.metrics),
		now:        cfg.now,
		cache:      make(map[string]entry),
		pending:    make(map[string]struct{}),
		batches:    make(map[string]*batch),
	}
}

// WithCache returns the cached result for key if it has not expired.
// Otherwise it joins the run already in flight for key, or starts op and
// caches its result for ttl (the default TTL when ttl <= 0). Errors are
// returned as *OperationError and are not cached.
func (c *Coordinator) WithCache(ctx context.Context, key string, op Operation, ttl time.Duration) (any, error) {
	if op == nil {
		return nil, ErrNilOperation
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	if v, ok := c.lookup(key); ok {
		c.hits.Add(1)
		c.metrics.RecordCacheLookup(ctx, observability.CacheHit)
		return v, nil
	}

	// Only the caller whose closure runs sets led; DoChan's shared flag is
	// true for every caller once there is more than one.
	var led bool
	ch := c.group.DoChan(key, func() (any, error) {
		if v, ok := c.lookup(key); ok {
			return v, nil
		}
		led = true

		c.mu.Lock()
		c.pending[key] = struct{}{}
		c.mu.Unlock()

		v, err := runSafely(context.WithoutCancel(ctx), key, op)

		c.mu.Lock()
		delete(c.pending, key)
		if err == nil {
			c.cache[key] = entry{value: v, createdAt: c.now(), ttl: ttl}
		}
		c.mu.Unlock()

		if err != nil {
			return nil, &OperationError{Key: key, Err: err}
		}
		return v, nil
	})

	select {
	case res := <-ch:
		if led {
			c.misses.Add(1)
			c.metrics.RecordCacheLookup(ctx, observability.CacheMiss)
		} else {
			c.dedup.Add(1)
			c.metrics.RecordCacheLookup(ctx, observability.CacheDedup)
		}
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cached is WithCache for a typed operation.
func Cached[T any](ctx context.Context, c *Coordinator, key string, ttl time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if op == nil {
		return zero, ErrNilOperation
	}
	v, err := c.WithCache(ctx, key, func(ctx context.Context) (any, error) {
		return op(ctx)
	}, ttl)
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, &OperationError{Key: key, Err: fmt.Errorf("cached value has type %T, want %T", v, zero)}
	}
	return t, nil
}

func (c *Coordinator) lookup(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache[key]
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.value, true
}

// Invalidate drops the cached entry for key and reports whether one existed.
// An operation in flight for key is not affected.
func (c *Coordinator) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.cache[key]
	delete(c.cache, key)
	return ok
}

// Clear drops every cached entry.
func (c *Coordinator) Clear() {
	c.mu.Lock()
	c.cache = make(map[string]entry)
	c.mu.Unlock()
}

// CleanupCache purges expired entries and returns how many were removed.
func (c *Coordinator) CleanupCache() int {
	c.mu.Lock()
	now := c.now()
	purged := 0
	for k, e := range c.cache {
		if e.expired(now) {
			delete(c.cache, k)
			purged++
		}
	}
	c.mu.Unlock()

	if purged > 0 {
		c.logger.Debug("cache cleanup", slog.Int("purged", purged))
	}
	return purged
}

// RunCleanup calls CleanupCache every interval until ctx is done.
func (c *Coordinator) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupCache()
		case <-ctx.Done():
			return
		}
	}
}

// Stats returns a snapshot of coordinator state.
func (c *Coordinator) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Size:              len(c.cache),
		PendingOperations: len(c.pending),
		BatchQueues:       len(c.batches),
		Hits:              c.hits.Load(),
		Misses:            c.misses.Load(),
		Deduplicated:      c.dedup.Load(),
	}
}

// runSafely calls op, converting a panic into an error.
func runSafely(ctx context.Context, key string, op Operation) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = acerrors.Recover("operation "+key, r)
		}
	}()
	return op(ctx)
}
