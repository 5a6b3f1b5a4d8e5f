package crawler

import (
	"time"

	"github.com/JakeFAU/review-crawler/internal/record"
)

// FetchRequest captures everything needed to fetch one page.
type FetchRequest struct {
	// URL is the target page, before any relay wrapping.
	URL string
	// Location is the exit-country hint forwarded to the relay.
	Location string
}

// FetchResponse is the result returned by a Session.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// Unit describes one fetch-extract-persist task.
type Unit struct {
	// Kind selects the extractor and labels metrics.
	Kind record.Kind
	// Label names the unit in logs, e.g. "online bank page 3".
	Label    string
	URL      string
	Location string
}

// Business is one row of a search-phase output, consumed by the review phase.
type Business struct {
	Name      string
	ReviewURL string
}

// Output describes a finished output target.
type Output struct {
	Name       string      `json:"output"`
	Kind       record.Kind `json:"kind"`
	Path       string      `json:"path"`
	Records    int         `json:"records"`
	Duplicates int         `json:"duplicates"`
	SHA256     string      `json:"sha256,omitempty"`
	ArchiveURI string      `json:"archive_uri,omitempty"`
	FinishedAt time.Time   `json:"finished_at"`
}
