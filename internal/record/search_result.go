package record

import "strconv"

// searchColumns is the declared CSV schema for SearchResult.
var searchColumns = []string{
	"name",
	"stars",
	"rating",
	"num_reviews",
	"website",
	"trustpilot_url",
	"location",
	"category",
}

// SearchResult is one business listed on a search-results page.
type SearchResult struct {
	Name          string
	Stars         float64
	Rating        float64
	NumReviews    int
	Website       string
	TrustpilotURL string
	Location      string
	Category      string
}

// NewSearchResult returns a normalized copy of in.
func NewSearchResult(in SearchResult) SearchResult {
	in.Name = normalize("name", in.Name)
	in.Website = normalize("website", in.Website)
	in.TrustpilotURL = normalize("trustpilot_url", in.TrustpilotURL)
	in.Location = normalize("location", in.Location)
	in.Category = normalize("category", in.Category)
	return in
}

// SearchColumns returns the SearchResult schema.
func SearchColumns() []string {
	return append([]string(nil), searchColumns...)
}

// Kind implements Record.
func (SearchResult) Kind() Kind { return KindSearch }

// Key implements Record.
func (r SearchResult) Key() string { return r.Name }

// Columns implements Record.
func (SearchResult) Columns() []string { return SearchColumns() }

// Values implements Record.
func (r SearchResult) Values() []string {
	return []string{
		r.Name,
		formatFloat(r.Stars),
		formatFloat(r.Rating),
		strconv.Itoa(r.NumReviews),
		r.Website,
		r.TrustpilotURL,
		r.Location,
		r.Category,
	}
}
