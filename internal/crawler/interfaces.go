package crawler

import (
	"context"
	"io"
	"time"

	"github.com/JakeFAU/review-crawler/internal/record"
)

// Session is a per-attempt fetch resource, e.g. a cloned collector or a browser tab.
type Session interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
	Close() error
}

// SessionProvider opens a fresh Session for every attempt.
type SessionProvider interface {
	NewSession(ctx context.Context) (Session, error)
}

// Extractor parses a raw page body into records.
type Extractor interface {
	Extract(body []byte) ([]record.Record, error)
}

// Sink accepts extracted records.
type Sink interface {
	Add(ctx context.Context, r record.Record) error
}

// Table is an append-only durable target for batches of records.
type Table interface {
	Append(ctx context.Context, batch []record.Record) error
}

// Limiter paces requests before each attempt.
type Limiter interface {
	Wait(ctx context.Context, url string) error
}

// Archiver copies a finished output to long-term storage and returns its URI.
type Archiver interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, payload any) (string, error)
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Clock stamps run and output times.
type Clock interface {
	Now() time.Time
}

// Hasher digests a finished output file.
type Hasher interface {
	HashFile(path string) (string, error)
}
