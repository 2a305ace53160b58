package event

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrDLQFull is returned by Enqueue when the queue is at capacity.
var ErrDLQFull = errors.New("dead letter queue is full")

// DeadLetterQueue stores failed deliveries for inspection or replay.
type DeadLetterQueue interface {
	// Enqueue adds a failed delivery. A repeat failure of the same event on
	// the same handler bumps the existing record's attempt count.
	Enqueue(ctx context.Context, failed *FailedEvent) error

	// Dequeue removes and returns up to limit records, oldest first.
	Dequeue(ctx context.Context, limit int) ([]*FailedEvent, error)

	// DequeueByType is Dequeue restricted to one event type.
	DequeueByType(ctx context.Context, eventType string, limit int) ([]*FailedEvent, error)

	// Acknowledge drops every record for eventID.
	Acknowledge(ctx context.Context, eventID string) error

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)

	// CountByType returns counts grouped by event type.
	CountByType(ctx context.Context) (map[string]int, error)
}

// DLQConfig configures an InMemoryDLQ.
type DLQConfig struct {
	// MaxSize limits the number of records.
	// Default: 10000
	MaxSize int

	// OnEnqueue is called after a record is stored.
	OnEnqueue func(*FailedEvent)
}

// DefaultDLQConfig provides reasonable defaults.
var DefaultDLQConfig = DLQConfig{
	MaxSize: 10000,
}

type dlqKey struct {
	eventID string
	handler string
}

// InMemoryDLQ is an in-memory DeadLetterQueue.
// Suitable for tests and single-process runtimes.
type InMemoryDLQ struct {
	mu      sync.Mutex
	records map[dlqKey]*FailedEvent
	cfg     DLQConfig

	enqueued  int64
	recovered int64
}

var _ DeadLetterQueue = (*InMemoryDLQ)(nil)

// NewInMemoryDLQ creates an in-memory dead letter queue.
func NewInMemoryDLQ(cfg DLQConfig) *InMemoryDLQ {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultDLQConfig.MaxSize
	}
	return &InMemoryDLQ{
		records: make(map[dlqKey]*FailedEvent),
		cfg:     cfg,
	}
}

// Enqueue adds a failed delivery.
func (d *InMemoryDLQ) Enqueue(_ context.Context, failed *FailedEvent) error {
	if failed == nil {
		return nil
	}

	d.mu.Lock()
	key := dlqKey{failed.EventID, failed.Handler}
	if existing, ok := d.records[key]; ok {
		existing.AttemptCount++
		existing.LastFailedAt = failed.LastFailedAt
		existing.ErrorMessage = failed.ErrorMessage
		d.mu.Unlock()
		return nil
	}
	if len(d.records) >= d.cfg.MaxSize {
		d.mu.Unlock()
		return ErrDLQFull
	}
	if failed.AttemptCount <= 0 {
		failed.AttemptCount = 1
	}
	d.records[key] = failed
	d.enqueued++
	d.mu.Unlock()

	if d.cfg.OnEnqueue != nil {
		d.cfg.OnEnqueue(failed)
	}
	return nil
}

// Dequeue removes and returns up to limit records, oldest first.
func (d *InMemoryDLQ) Dequeue(_ context.Context, limit int) ([]*FailedEvent, error) {
	return d.take(limit, func(*FailedEvent) bool { return true }), nil
}

// DequeueByType removes and returns up to limit records of eventType.
func (d *InMemoryDLQ) DequeueByType(_ context.Context, eventType string, limit int) ([]*FailedEvent, error) {
	return d.take(limit, func(f *FailedEvent) bool { return f.EventType == eventType }), nil
}

func (d *InMemoryDLQ) take(limit int, match func(*FailedEvent) bool) []*FailedEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	keys := make([]dlqKey, 0, len(d.records))
	for k, f := range d.records {
		if match(f) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := d.records[keys[i]], d.records[keys[j]]
		if !a.FirstFailedAt.Equal(b.FirstFailedAt) {
			return a.FirstFailedAt.Before(b.FirstFailedAt)
		}
		if a.EventID != b.EventID {
			return a.EventID < b.EventID
		}
		return a.Handler < b.Handler
	})
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}

	out := make([]*FailedEvent, 0, len(keys))
	for _, k := range keys {
		out = append(out, d.records[k])
		delete(d.records, k)
	}
	return out
}

// Acknowledge drops every record for eventID.
func (d *InMemoryDLQ) Acknowledge(_ context.Context, eventID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for k := range d.records {
		if k.eventID == eventID {
			delete(d.records, k)
			d.recovered++
		}
	}
	return nil
}

// Count returns the number of records.
func (d *InMemoryDLQ) Count(_ context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.records), nil
}

// CountByType returns counts grouped by event type.
func (d *InMemoryDLQ) CountByType(_ context.Context) (map[string]int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	counts := make(map[string]int)
	for _, f := range d.records {
		counts[f.EventType]++
	}
	return counts, nil
}

// DLQStats reports lifetime counters.
type DLQStats struct {
	Current   int
	Enqueued  int64
	Recovered int64
	Oldest    time.Time
}

// Stats returns a snapshot of queue statistics.
func (d *InMemoryDLQ) Stats() DLQStats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := DLQStats{
		Current:   len(d.records),
		Enqueued:  d.enqueued,
		Recovered: d.recovered,
	}
	for _, f := range d.records {
		if s.Oldest.IsZero() || f.FirstFailedAt.Before(s.Oldest) {
			s.Oldest = f.FirstFailedAt
		}
	}
	return s
}
