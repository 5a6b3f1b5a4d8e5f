// Package worker runs one work unit through the bounded retry state machine:
// fetch with a fresh session, extract, then hand every record to the sink.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/metrics"
	"github.com/JakeFAU/review-crawler/internal/record"
)

// DefaultMaxRetries is used when Config.MaxRetries is negative.
const DefaultMaxRetries = 3

// State is a unit's position in the retry state machine.
type State string

// Retry states. Succeeded and Exhausted are terminal.
const (
	StatePending    State = "pending"
	StateAttempting State = "attempting"
	StateSucceeded  State = "succeeded"
	StateExhausted  State = "exhausted"
)

// Config controls Worker behavior.
type Config struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int
}

// Result reports how a unit ended.
type Result struct {
	State    State
	Attempts int
	Records  int
}

// Worker executes units against a session provider.
type Worker struct {
	sessions crawler.SessionProvider
	limiter  crawler.Limiter
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker. limiter may be nil.
func New(sessions crawler.SessionProvider, limiter crawler.Limiter, cfg Config, logger *zap.Logger) *Worker {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		sessions: sessions,
		limiter:  limiter,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run drives unit to Succeeded or Exhausted. Fetch and parse failures are
// retried up to MaxRetries times; on exhaustion the returned error wraps
// crawler.ErrMaxRetriesExceeded and the last cause. Records reach sink only
// from an attempt whose fetch and extraction both completed.
func (w *Worker) Run(
	ctx context.Context,
	unit crawler.Unit,
	extractor crawler.Extractor,
	sink crawler.Sink,
) (Result, error) {
	res := Result{State: StatePending}
	kind := string(unit.Kind)
	logger := w.logger.With(zap.String("unit", unit.Label), zap.String("url", unit.URL))
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			metrics.ObserveUnit(kind, metrics.StatusCanceled)
			return res, fmt.Errorf("unit %s canceled: %w", unit.Label, err)
		}

		res.State = StateAttempting
		res.Attempts++
		records, err := w.attempt(ctx, unit, extractor, logger)
		if err == nil {
			metrics.ObserveAttempt(kind, metrics.OutcomeSuccess)
			if err := push(ctx, sink, records); err != nil {
				return res, fmt.Errorf("push records for %s: %w", unit.Label, err)
			}
			res.Records = len(records)
			res.State = StateSucceeded
			metrics.ObserveUnit(kind, metrics.StatusSucceeded)
			logger.Info("successfully parsed page",
				zap.Int("records", res.Records),
				zap.Int("attempts", res.Attempts),
			)
			return res, nil
		}
		if ctx.Err() != nil {
			metrics.ObserveUnit(kind, metrics.StatusCanceled)
			return res, fmt.Errorf("unit %s canceled: %w", unit.Label, ctx.Err())
		}

		metrics.ObserveAttempt(kind, outcome(err))
		if failures >= w.cfg.MaxRetries {
			res.State = StateExhausted
			metrics.ObserveUnit(kind, metrics.StatusExhausted)
			logger.Error("max retries exceeded", zap.Int("attempts", res.Attempts), zap.Error(err))
			return res, &crawler.MaxRetriesExceededError{URL: unit.URL, Attempts: res.Attempts, Last: err}
		}
		logger.Error("attempt failed; retrying",
			zap.Int("attempt", res.Attempts),
			zap.Int("retries_left", w.cfg.MaxRetries-failures),
			zap.Error(err),
		)
		failures++
	}
}

// attempt performs one fetch and extraction. The session is closed before
// returning so a retry never reuses it.
func (w *Worker) attempt(
	ctx context.Context,
	unit crawler.Unit,
	extractor crawler.Extractor,
	logger *zap.Logger,
) ([]record.Record, error) {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx, unit.URL); err != nil {
			return nil, crawler.NewFetchError(unit.URL, err)
		}
	}

	session, err := w.sessions.NewSession(ctx)
	if err != nil {
		return nil, crawler.NewFetchError(unit.URL, fmt.Errorf("open session: %w", err))
	}
	resp, err := session.Fetch(ctx, crawler.FetchRequest{URL: unit.URL, Location: unit.Location})
	if cerr := session.Close(); cerr != nil {
		logger.Warn("session close failed", zap.Error(cerr))
	}
	if err != nil {
		return nil, crawler.NewFetchError(unit.URL, err)
	}
	logger.Debug("fetched page", zap.Int("status", resp.StatusCode), zap.Duration("duration", resp.Duration))

	records, err := extractor.Extract(resp.Body)
	if err != nil {
		var pe *crawler.ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, crawler.NewParseError("extract", err)
	}
	return records, nil
}

func push(ctx context.Context, sink crawler.Sink, records []record.Record) error {
	for _, r := range records {
		if err := sink.Add(ctx, r); err != nil {
			return fmt.Errorf("add %q: %w", r.Key(), err)
		}
	}
	return nil
}

func outcome(err error) string {
	var pe *crawler.ParseError
	if errors.As(err, &pe) {
		return metrics.OutcomeParseError
	}
	return metrics.OutcomeFetchError
}
