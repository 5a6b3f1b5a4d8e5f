package extract

import (
	"fmt"

	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/record"
)

// ForKind returns the extractor matching a unit kind.
func ForKind(kind record.Kind) (crawler.Extractor, error) {
	switch kind {
	case record.KindSearch:
		return NewSearch(), nil
	case record.KindReview:
		return NewReviews(), nil
	default:
		return nil, fmt.Errorf("no extractor for kind %q", kind)
	}
}
