// Package job turns keywords and search files into work units, runs them on
// the bounded pool and owns every output sink for the lifetime of a phase.
package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/clock/system"
	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/dispatcher"
	"github.com/JakeFAU/review-crawler/internal/worker"
)

// Phase selects what a run does.
type Phase string

// Supported phases.
const (
	PhaseSearch  Phase = "search"
	PhaseReviews Phase = "reviews"
	PhaseCrawl   Phase = "crawl"
)

// Config carries the crawl parameters.
type Config struct {
	Keywords    []string
	Pages       int
	Location    string
	Concurrency int
	MaxRetries  int
	BatchSize   int
	OutputDir   string
}

// RunLedger records run start and completion, e.g. in Postgres.
type RunLedger interface {
	StartRun(ctx context.Context, runID, command string, startedAt time.Time) error
	FinishRun(ctx context.Context, runID string, finishedAt time.Time, succeeded, failed int, errMsg *string) error
}

// Deps are the collaborators a Runner needs. Only Sessions is required.
type Deps struct {
	Sessions crawler.SessionProvider
	Limiter  crawler.Limiter
	// Mirror returns an extra table that receives every batch after the CSV
	// file, or nil to skip mirroring.
	Mirror    func(output string) crawler.Table
	Archiver  crawler.Archiver
	Publisher crawler.Publisher
	Ledger    RunLedger
	Hasher    crawler.Hasher
	Clock     crawler.Clock
	Logger    *zap.Logger
}

// Summary is what a phase produced.
type Summary struct {
	Outputs []crawler.Output
	Report  dispatcher.Report
}

func (s *Summary) merge(other Summary) {
	s.Outputs = append(s.Outputs, other.Outputs...)
	s.Report.Succeeded += other.Report.Succeeded
	s.Report.Failed += other.Report.Failed
	s.Report.Errors = append(s.Report.Errors, other.Report.Errors...)
}

// Runner executes phases for one run ID.
type Runner struct {
	cfg        Config
	deps       Deps
	runID      string
	worker     *worker.Worker
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
	progress   *Progress
}

// New validates cfg and builds a Runner.
func New(cfg Config, deps Deps, runID string) (*Runner, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session provider is required")
	}
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	if cfg.Pages <= 0 {
		return nil, fmt.Errorf("pages must be > 0, got %d", cfg.Pages)
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("output dir is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = system.New()
	}
	logger := deps.Logger.With(zap.String("run_id", runID))
	return &Runner{
		cfg:        cfg,
		deps:       deps,
		runID:      runID,
		worker:     worker.New(deps.Sessions, deps.Limiter, worker.Config{MaxRetries: cfg.MaxRetries}, logger.Named("worker")),
		dispatcher: dispatcher.New(cfg.Concurrency, logger.Named("dispatcher")),
		logger:     logger,
		progress:   newProgress(runID),
	}, nil
}

// RunID returns the run identifier.
func (r *Runner) RunID() string {
	return r.runID
}

// Snapshot implements api.StatusSource.
func (r *Runner) Snapshot() any {
	return r.progress.snapshot()
}

// Run executes phase and records it in the ledger when one is configured.
// files feeds the reviews phase and is ignored otherwise.
func (r *Runner) Run(ctx context.Context, phase Phase, files []string) (Summary, error) {
	started := r.deps.Clock.Now()
	r.progress.start(phase, started)
	if r.deps.Ledger != nil {
		if err := r.deps.Ledger.StartRun(ctx, r.runID, string(phase), started); err != nil {
			r.logger.Warn("recording run start failed", zap.Error(err))
		}
	}

	var (
		summary Summary
		err     error
	)
	switch phase {
	case PhaseSearch:
		summary, err = r.Search(ctx)
	case PhaseReviews:
		summary, err = r.Reviews(ctx, files)
	case PhaseCrawl:
		summary, err = r.Crawl(ctx)
	default:
		err = fmt.Errorf("unknown phase %q", phase)
	}
	r.progress.finish(r.deps.Clock.Now())

	if r.deps.Ledger != nil {
		var msg *string
		if err != nil {
			s := err.Error()
			msg = &s
		} else if summary.Report.Failed > 0 {
			s := fmt.Sprintf("%d units failed", summary.Report.Failed)
			msg = &s
		}
		// The run context may already be canceled; the ledger still gets the outcome.
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if lerr := r.deps.Ledger.FinishRun(finishCtx, r.runID, r.deps.Clock.Now(),
			summary.Report.Succeeded, summary.Report.Failed, msg); lerr != nil {
			r.logger.Warn("recording run finish failed", zap.Error(lerr))
		}
	}
	return summary, err
}

// Crawl runs the search phase, then the reviews phase over its outputs.
func (r *Runner) Crawl(ctx context.Context) (Summary, error) {
	summary, err := r.Search(ctx)
	if err != nil {
		return summary, err
	}
	files := make([]string, 0, len(summary.Outputs))
	for _, out := range summary.Outputs {
		if out.Records > 0 {
			files = append(files, out.Path)
		}
	}
	if len(files) == 0 {
		r.logger.Warn("search produced no businesses; skipping reviews")
		return summary, nil
	}
	reviews, err := r.Reviews(ctx, files)
	summary.merge(reviews)
	return summary, err
}

func (r *Runner) task(unit crawler.Unit, extractor crawler.Extractor, sink crawler.Sink) dispatcher.Task {
	return dispatcher.Task{
		Label: unit.Label,
		Run: func(ctx context.Context) error {
			res, err := r.worker.Run(ctx, unit, extractor, sink)
			r.progress.unitDone(res.Records, err)
			return err
		},
	}
}
