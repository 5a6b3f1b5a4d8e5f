// Package pipeline implements the deduplicating, batching sink that sits
// between the retry workers and a durable table.
//
// A Pipeline is created once per output target. Workers call Add
// concurrently; records whose name was already seen are dropped, the rest are
// buffered and written to the table in batches of Capacity. The owner must call
// Close after every writer has finished so the remainder is flushed.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/metrics"
	"github.com/JakeFAU/review-crawler/internal/record"
)

// DefaultCapacity is the batch size used when Config.Capacity is not set.
const DefaultCapacity = 50

// ErrClosed is returned by Add after Close.
var ErrClosed = errors.New("pipeline closed")

// Config controls a Pipeline.
type Config struct {
	// Name labels the output in logs.
	Name string
	// Capacity is the buffered record count that triggers a flush.
	Capacity int
}

// Stats summarizes what a Pipeline did with the records it was given.
type Stats struct {
	Accepted   int
	Duplicates int
	Written    int

	// MirrorFailures counts written records that did not reach every mirror.
	MirrorFailures int
}

// Pipeline is the dedup/batch sink for one output target.
type Pipeline struct {
	table    crawler.Table
	capacity int
	logger   *zap.Logger

	// mu guards every field below; idle is signaled whenever busy drops.
	mu     sync.Mutex
	idle   *sync.Cond
	seen   map[string]struct{}
	queue  []record.Record
	busy   bool
	closed bool
	stats  Stats
}

// New builds a Pipeline writing to table.
func New(table crawler.Table, cfg Config, logger *zap.Logger) (*Pipeline, error) {
	if table == nil {
		return nil, fmt.Errorf("pipeline table is required")
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pipeline{
		table:    table,
		capacity: cfg.Capacity,
		logger:   logger.With(zap.String("output", cfg.Name)),
		seen:     make(map[string]struct{}),
		queue:    make([]record.Record, 0, cfg.Capacity),
	}
	p.idle = sync.NewCond(&p.mu)
	return p, nil
}

// Add drops r when its key was already seen, otherwise buffers it. When the
// buffer reaches capacity and no flush is running, the caller flushes
// synchronously. A failed flush keeps the batch buffered for the next flush and
// is logged rather than returned, since r itself was accepted.
func (p *Pipeline) Add(ctx context.Context, r record.Record) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	key := r.Key()
	if _, dup := p.seen[key]; dup {
		p.stats.Duplicates++
		p.mu.Unlock()
		p.logger.Warn("duplicate item dropped", zap.String("name", key), zap.String("kind", string(r.Kind())))
		metrics.ObserveDuplicate(string(r.Kind()))
		return nil
	}
	p.seen[key] = struct{}{}
	p.queue = append(p.queue, r)
	p.stats.Accepted++
	if len(p.queue) < p.capacity || p.busy {
		p.mu.Unlock()
		return nil
	}
	batch := p.takeLocked()
	p.mu.Unlock()

	if err := p.drain(ctx, batch); err != nil {
		p.logger.Error("flush failed; batch kept for retry", zap.Error(err))
	}
	return nil
}

// Flush waits for any in-flight flush, then writes everything buffered.
// It is a no-op when nothing is buffered.
func (p *Pipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	for p.busy {
		p.idle.Wait()
	}
	if len(p.queue) == 0 {
		p.mu.Unlock()
		return nil
	}
	batch := p.takeLocked()
	p.mu.Unlock()

	return p.drain(ctx, batch)
}

// Close stops accepting records, waits out an in-flight flush and flushes the
// remainder. Calling Close again only retries a previously failed flush.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	err := p.Flush(ctx)
	stats := p.Stats()
	p.logger.Info("pipeline closed",
		zap.Int("accepted", stats.Accepted),
		zap.Int("duplicates", stats.Duplicates),
		zap.Int("written", stats.Written),
	)
	if err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	return nil
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Pending reports how many records are buffered.
func (p *Pipeline) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// takeLocked swaps out the buffer and marks a flush in progress.
func (p *Pipeline) takeLocked() []record.Record {
	batch := p.queue
	p.queue = make([]record.Record, 0, p.capacity)
	p.busy = true
	return batch
}

// drain writes batch, then keeps writing while workers refilled the buffer to
// capacity during the write. busy stays set for the whole loop so writes to
// the table never overlap. Only a failed primary write puts the batch back;
// a mirror-only failure means the rows are already durable.
func (p *Pipeline) drain(ctx context.Context, batch []record.Record) error {
	for {
		if len(batch) == 0 {
			p.mu.Lock()
			p.release()
			p.mu.Unlock()
			return nil
		}
		kind := string(batch[0].Kind())
		err := p.table.Append(ctx, batch)
		mirrorOnly := errors.Is(err, crawler.ErrMirrorWrite)
		if mirrorOnly {
			metrics.ObserveFlush(kind, len(batch), nil)
			metrics.ObserveMirrorFailure(kind)
		} else {
			metrics.ObserveFlush(kind, len(batch), err)
		}

		p.mu.Lock()
		if err != nil && !mirrorOnly {
			p.queue = append(batch, p.queue...)
			p.release()
			p.mu.Unlock()
			return fmt.Errorf("append %d records: %w", len(batch), err)
		}
		p.stats.Written += len(batch)
		if mirrorOnly {
			p.stats.MirrorFailures += len(batch)
			p.logger.Error("mirror write failed; primary kept the batch",
				zap.Int("records", len(batch)), zap.Error(err))
		} else {
			p.logger.Debug("batch flushed", zap.Int("records", len(batch)))
		}
		if len(p.queue) >= p.capacity {
			batch = p.takeLocked()
			p.mu.Unlock()
			continue
		}
		p.release()
		p.mu.Unlock()
		return nil
	}
}

func (p *Pipeline) release() {
	p.busy = false
	p.idle.Broadcast()
}
