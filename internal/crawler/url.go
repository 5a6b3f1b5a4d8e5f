package crawler

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

const (
	searchURLTemplate = "https://www.trustpilot.com/search?query=%s&page=%d"
	reviewURLPrefix   = "https://www.trustpilot.com/review/"
)

// SearchURL returns the search page URL for a zero-based page index.
func SearchURL(keyword string, page int) string {
	return fmt.Sprintf(searchURLTemplate, url.QueryEscape(keyword), page+1)
}

// ReviewURL derives the canonical review-page URL from a business website.
func ReviewURL(website string) string {
	if _, rest, ok := strings.Cut(website, "://"); ok {
		website = rest
	}
	return reviewURLPrefix + website
}

// OutputName turns a keyword or business name into a file stem.
func OutputName(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
}

// OutputPath returns the CSV path for an output name under dir.
func OutputPath(dir, name string) string {
	return filepath.Join(dir, OutputName(name)+".csv")
}
