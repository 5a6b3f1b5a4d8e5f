package extract

import (
	"fmt"

	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/record"
)

type searchPage struct {
	BusinessUnits *[]businessUnit `json:"businessUnits"`
}

type businessUnit struct {
	DisplayName     string  `json:"displayName"`
	Stars           float64 `json:"stars"`
	TrustScore      float64 `json:"trustScore"`
	NumberOfReviews int     `json:"numberOfReviews"`
	Contact         *struct {
		Website *string `json:"website"`
	} `json:"contact"`
	Location *struct {
		Country *string `json:"country"`
	} `json:"location"`
	Categories []struct {
		CategoryID string `json:"categoryId"`
	} `json:"categories"`
}

// Search extracts SearchResult records from a search-results page.
type Search struct{}

// NewSearch returns a search-page extractor.
func NewSearch() Search {
	return Search{}
}

// Extract implements crawler.Extractor.
func (Search) Extract(body []byte) ([]record.Record, error) {
	var page searchPage
	if err := nextData(body, &page); err != nil {
		return nil, err
	}
	if page.BusinessUnits == nil {
		return nil, crawler.NewParseError("missing pageProps.businessUnits", nil)
	}

	out := make([]record.Record, 0, len(*page.BusinessUnits))
	for i, unit := range *page.BusinessUnits {
		if unit.Contact == nil || unit.Contact.Website == nil {
			return nil, crawler.NewParseError(fmt.Sprintf("businessUnits[%d]: missing contact.website", i), nil)
		}
		website := *unit.Contact.Website

		location := notAvailable
		if unit.Location != nil && unit.Location.Country != nil {
			location = *unit.Location.Country
		}
		category := notAvailable
		if len(unit.Categories) > 0 {
			category = unit.Categories[0].CategoryID
		}

		out = append(out, record.NewSearchResult(record.SearchResult{
			Name:          unit.DisplayName,
			Stars:         unit.Stars,
			Rating:        unit.TrustScore,
			NumReviews:    unit.NumberOfReviews,
			Website:       website,
			TrustpilotURL: crawler.ReviewURL(website),
			Location:      location,
			Category:      category,
		}))
	}
	return out, nil
}
