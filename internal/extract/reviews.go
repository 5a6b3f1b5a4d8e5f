package extract

import (
	"fmt"

	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/record"
)

type businessPage struct {
	Reviews *[]review `json:"reviews"`
}

type review struct {
	Consumer *struct {
		DisplayName string `json:"displayName"`
	} `json:"consumer"`
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
	Title  string  `json:"title"`
	Dates  *struct {
		PublishedDate string `json:"publishedDate"`
	} `json:"dates"`
}

// Reviews extracts ReviewItem records from a business detail page.
type Reviews struct{}

// NewReviews returns a business-page extractor.
func NewReviews() Reviews {
	return Reviews{}
}

// Extract implements crawler.Extractor.
func (Reviews) Extract(body []byte) ([]record.Record, error) {
	var page businessPage
	if err := nextData(body, &page); err != nil {
		return nil, err
	}
	if page.Reviews == nil {
		return nil, crawler.NewParseError("missing pageProps.reviews", nil)
	}

	out := make([]record.Record, 0, len(*page.Reviews))
	for i, rv := range *page.Reviews {
		if rv.Consumer == nil {
			return nil, crawler.NewParseError(fmt.Sprintf("reviews[%d]: missing consumer", i), nil)
		}
		if rv.Dates == nil {
			return nil, crawler.NewParseError(fmt.Sprintf("reviews[%d]: missing dates", i), nil)
		}
		out = append(out, record.NewReviewItem(record.ReviewItem{
			Name:   rv.Consumer.DisplayName,
			Rating: rv.Rating,
			Text:   rv.Text,
			Title:  rv.Title,
			Date:   rv.Dates.PublishedDate,
		}))
	}
	return out, nil
}
