package loader

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	acerrors "github.com/randalmurphal/agentcore/pkg/agentcore/errors"
	"github.com/randalmurphal/agentcore/pkg/agentcore/observability"
)

// DefaultBatchSize is used when the batch size is not positive.
const DefaultBatchSize = 10

// Func loads one item.
type Func[T, R any] func(ctx context.Context, item T) (R, error)

// LoadError records one item that failed to load.
type LoadError struct {
	Index int
	Item  any
	Err   error
}

// Error implements error.
func (e LoadError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

// Unwrap returns the load error.
func (e LoadError) Unwrap() error {
	return e.Err
}

// Metrics describes one LoadBatched run.
type Metrics struct {
	Loaded int
	Failed int
	// ItemDurations holds the time spent on each item that ran, in item order.
	ItemDurations []time.Duration
	// BatchSizes holds the size of each chunk that ran, in order.
	BatchSizes []int
	// Total is the wall time of the whole run.
	Total time.Duration
}

// Result is the outcome of a run. Results holds successful values in item
// order; failed items appear only in Errors.
type Result[R any] struct {
	Results []R
	Errors  []LoadError
	Metrics Metrics
}

// Loader runs load functions over items in bounded, sequential chunks.
type Loader struct {
	batchSize int
	retry     acerrors.RetryConfig
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
}

// New creates a Loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		batchSize: DefaultBatchSize,
		retry:     acerrors.NoRetry,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.metrics = observability.OrNoopMetrics(l.metrics)
	l.spans = observability.OrNoopSpans(l.spans)
	return l
}

// BatchSize returns the chunk size.
func (l *Loader) BatchSize() int {
	return l.batchSize
}

// LoadBatched loads items in chunks of at most batchSize (DefaultBatchSize
// when batchSize <= 0). See Run.
func LoadBatched[T, R any](ctx context.Context, items []T, fn Func[T, R], batchSize int, opts ...Option) Result[R] {
	return Run(ctx, New(append(opts, WithBatchSize(batchSize))...), items, fn)
}

type outcome[R any] struct {
	value    R
	err      error
	duration time.Duration
	ran      bool
}

// Run loads items with l.
//
// Items of a chunk load concurrently and the whole chunk finishes before the
// next one starts; the goroutine yields between chunks. A failing or
// panicking item is recorded and never affects the other items. If ctx is
// done before a chunk starts, that chunk and every later item fail with
// ctx.Err().
func Run[T, R any](ctx context.Context, l *Loader, items []T, fn Func[T, R]) Result[R] {
	if l == nil {
		l = New()
	}
	start := time.Now()
	outcomes := make([]outcome[R], len(items))
	var sizes []int

	for batch, lo := 0, 0; lo < len(items); batch, lo = batch+1, lo+l.batchSize {
		if err := ctx.Err(); err != nil {
			for i := lo; i < len(items); i++ {
				outcomes[i].err = err
			}
			break
		}

		hi := min(lo+l.batchSize, len(items))
		sizes = append(sizes, hi-lo)
		bctx, span := l.spans.StartBatchSpan(ctx, batch, hi-lo)

		// A plain Group: one item's failure must not cancel its siblings.
		// The chunk bounds concurrency, so the group needs no limit.
		var g errgroup.Group
		for i := lo; i < hi; i++ {
			g.Go(func() error {
				outcomes[i] = loadOne(bctx, l, items[i], fn)
				return nil
			})
		}
		_ = g.Wait()

		l.spans.EndSpanWithError(span, nil)
		runtime.Gosched()
	}

	res := Result[R]{Metrics: Metrics{BatchSizes: sizes}}
	for i, o := range outcomes {
		if o.ran {
			res.Metrics.ItemDurations = append(res.Metrics.ItemDurations, o.duration)
		}
		if o.err != nil {
			res.Errors = append(res.Errors, LoadError{Index: i, Item: items[i], Err: o.err})
			res.Metrics.Failed++
			observability.LogLoadError(l.logger, i, o.err)
			continue
		}
		res.Results = append(res.Results, o.value)
		res.Metrics.Loaded++
	}
	res.Metrics.Total = time.Since(start)

	observability.LogBatchComplete(l.logger, res.Metrics.Loaded, res.Metrics.Failed, len(sizes), res.Metrics.Total)
	return res
}

func loadOne[T, R any](ctx context.Context, l *Loader, item T, fn Func[T, R]) outcome[R] {
	start := time.Now()
	var o outcome[R]
	if l.retry.Enabled() {
		r := acerrors.WithRetryContext(ctx, l.retry, func(ctx context.Context) (R, error) {
			return call(ctx, item, fn)
		})
		o.value, o.err = r.Value, r.Err
	} else {
		o.value, o.err = call(ctx, item, fn)
	}
	o.duration = time.Since(start)
	o.ran = true

	l.metrics.RecordBatchItem(ctx, o.duration, o.err)
	return o
}

func call[T, R any](ctx context.Context, item T, fn Func[T, R]) (v R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = acerrors.Recover("load item", r)
		}
	}()
	if fn == nil {
		return v, fmt.Errorf("nil load function")
	}
	return fn(ctx, item)
}
