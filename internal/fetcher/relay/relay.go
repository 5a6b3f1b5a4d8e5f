// Package relay routes fetches through a scraping proxy API.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/JakeFAU/review-crawler/internal/crawler"
)

// DefaultEndpoint is the relay API used when none is configured.
const DefaultEndpoint = "https://proxy.scrapeops.io/v1/"

// Config controls relay behavior.
type Config struct {
	APIKey   string
	Endpoint string
}

// Provider decorates a SessionProvider so every request goes via the relay.
type Provider struct {
	next     crawler.SessionProvider
	endpoint *url.URL
	apiKey   string
}

// New wraps next. The API key is required.
func New(next crawler.SessionProvider, cfg Config) (*Provider, error) {
	if next == nil {
		return nil, errors.New("relay requires a session provider")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("relay api key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse relay endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("relay endpoint %q must be absolute", endpoint)
	}
	return &Provider{next: next, endpoint: u, apiKey: cfg.APIKey}, nil
}

// Wrap returns the relay URL that fetches target from location.
func (p *Provider) Wrap(target, location string) string {
	q := url.Values{}
	q.Set("api_key", p.apiKey)
	q.Set("url", target)
	if location != "" {
		q.Set("country", location)
	}
	u := *p.endpoint
	u.RawQuery = q.Encode()
	return u.String()
}

// NewSession implements crawler.SessionProvider.
func (p *Provider) NewSession(ctx context.Context) (crawler.Session, error) {
	s, err := p.next.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return &session{next: s, provider: p}, nil
}

type session struct {
	next     crawler.Session
	provider *Provider
}

// Fetch rewrites the request URL. Errors and the response report the target URL.
func (s *session) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	target := request.URL
	request.URL = s.provider.Wrap(target, request.Location)
	resp, err := s.next.Fetch(ctx, request)
	if err != nil {
		var fe *crawler.FetchError
		if errors.As(err, &fe) {
			return crawler.FetchResponse{}, &crawler.FetchError{URL: target, Err: fe.Err}
		}
		return crawler.FetchResponse{}, crawler.NewFetchError(target, err)
	}
	resp.URL = target
	return resp, nil
}

func (s *session) Close() error {
	return s.next.Close()
}
