// Package dispatcher fans work units out to a bounded pool and joins them.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/review-crawler/internal/metrics"
)

// DefaultWorkers is the pool size used when a non-positive size is configured.
const DefaultWorkers = 5

// Task is one schedulable unit of work.
type Task struct {
	Label string
	Run   func(ctx context.Context) error
}

// Report summarizes a Run.
type Report struct {
	Succeeded int
	Failed    int
	Errors    []error
}

// Dispatcher runs tasks with at most a fixed number in flight.
type Dispatcher struct {
	workers int
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(workers int, logger *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		workers: workers,
		logger:  logger,
	}
}

// Workers reports the pool size.
func (d *Dispatcher) Workers() int {
	return d.workers
}

// Run executes every task and blocks until all have finished. A failing or
// panicking task is recorded in the report and does not cancel its siblings.
// Tasks not yet started when ctx ends are reported as failed with ctx's error.
func (d *Dispatcher) Run(ctx context.Context, tasks []Task) Report {
	var (
		mu     sync.Mutex
		report Report
		g      errgroup.Group
	)
	g.SetLimit(d.workers)

	record := func(label string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err == nil {
			report.Succeeded++
			return
		}
		report.Failed++
		report.Errors = append(report.Errors, fmt.Errorf("%s: %w", label, err))
	}

	for _, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				record(task.Label, err)
				return nil
			}
			record(task.Label, d.runTask(ctx, task))
			return nil
		})
	}
	_ = g.Wait()

	d.logger.Info("all units finished",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report
}

func (d *Dispatcher) runTask(ctx context.Context, task Task) (err error) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("unit panicked", zap.String("unit", task.Label), zap.Any("panic", r))
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := task.Run(ctx); err != nil {
		d.logger.Error("unit failed", zap.String("unit", task.Label), zap.Error(err))
		return err
	}
	return nil
}
