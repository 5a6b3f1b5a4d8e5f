package headless

import (
	"context"
	"errors"

	"github.com/JakeFAU/review-crawler/internal/crawler"
)

// ErrUnavailable is returned when no browser is configured.
var ErrUnavailable = errors.New("headless fetcher not configured")

// Noop is a SessionProvider that never opens a session.
type Noop struct{}

// NewNoop creates a new Noop provider.
func NewNoop() *Noop {
	return &Noop{}
}

// NewSession always fails with ErrUnavailable.
func (Noop) NewSession(context.Context) (crawler.Session, error) {
	return nil, ErrUnavailable
}
