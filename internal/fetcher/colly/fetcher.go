// Package collyfetcher opens HTTP fetch sessions backed by gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/metrics"
)

// DefaultTimeout bounds a request when Config.Timeout is unset.
const DefaultTimeout = 15 * time.Second

var errSessionClosed = errors.New("session closed")

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Provider hands out one cloned collector per session.
type Provider struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Provider.
func New(cfg Config) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	// Retries revisit the same URL through a fresh clone; clones share the
	// visited-URL store, so revisits must be allowed.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.SetRequestTimeout(cfg.Timeout)

	return &Provider{
		cfg:           cfg,
		baseCollector: c,
	}
}

// NewSession implements crawler.SessionProvider.
func (p *Provider) NewSession(context.Context) (crawler.Session, error) {
	return &Session{collector: p.baseCollector.Clone()}, nil
}

// Session fetches pages with a private collector clone.
type Session struct {
	mu        sync.Mutex
	collector *colly.Collector
	closed    bool
}

// Fetch executes a single HTTP GET. Transport failures and non-2xx statuses
// are returned as *crawler.FetchError.
func (s *Session) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return crawler.FetchResponse{}, crawler.NewFetchError(request.URL, errSessionClosed)
	}

	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	start := time.Now()
	s.collector.Context = ctx
	configureCollectorHooks(s.collector, start, &result, &fetchErr)

	err := runCollector(ctx, s.collector, request.URL, &fetchErr)
	metrics.ObserveFetchDuration("http", time.Since(start))
	if err != nil {
		return crawler.FetchResponse{}, crawler.NewFetchError(request.URL, err)
	}
	if result.StatusCode < http.StatusOK || result.StatusCode >= http.StatusMultipleChoices {
		return crawler.FetchResponse{}, crawler.NewFetchError(request.URL,
			fmt.Errorf("unexpected status %d", result.StatusCode))
	}
	return result, nil
}

// Close releases the session. Further fetches fail.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

func runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
