package extract

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/record"
)

func page(payload string) []byte {
	return []byte(fmt.Sprintf(`<!DOCTYPE html><html><head><title>t</title></head><body>
<div id="__next"></div>
<script id="__NEXT_DATA__" type="application/json">%s</script>
</body></html>`, payload))
}

const searchPayload = `{"props":{"pageProps":{"businessUnits":[
 {"displayName":"Acme Bank","stars":4.5,"trustScore":4.4,"numberOfReviews":1200,
  "contact":{"website":"https://www.acme.example"},"location":{"country":"US"},
  "categories":[{"categoryId":"bank"},{"categoryId":"credit_union"}]},
 {"displayName":"  ","stars":0,"trustScore":0,"numberOfReviews":0,
  "contact":{"website":"http://plain.example"},"location":{},"categories":[]}
]}}}`

func TestSearchExtract(t *testing.T) {
	t.Parallel()

	records, err := NewSearch().Extract(page(searchPayload))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first, ok := records[0].(record.SearchResult)
	require.True(t, ok)
	require.Equal(t, record.SearchResult{
		Name:          "Acme Bank",
		Stars:         4.5,
		Rating:        4.4,
		NumReviews:    1200,
		Website:       "https://www.acme.example",
		TrustpilotURL: "https://www.trustpilot.com/review/www.acme.example",
		Location:      "US",
		Category:      "bank",
	}, first)

	second := records[1].(record.SearchResult)
	require.Equal(t, "No name", second.Name)
	require.Equal(t, "n/a", second.Location)
	require.Equal(t, "n/a", second.Category)
	require.Equal(t, "https://www.trustpilot.com/review/plain.example", second.TrustpilotURL)
}

func TestSearchExtractEmptyListing(t *testing.T) {
	t.Parallel()

	records, err := NewSearch().Extract(page(`{"props":{"pageProps":{"businessUnits":[]}}}`))
	require.NoError(t, err)
	require.Empty(t, records)
}

func TestSearchExtractParseErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		body []byte
	}{
		{"no marker", []byte("<html><body><p>blocked</p></body></html>")},
		{"empty marker", page("")},
		{"malformed json", page(`{"props":`)},
		{"missing props", page(`{"query":{}}`)},
		{"missing business units", page(`{"props":{"pageProps":{}}}`)},
		{"missing website", page(`{"props":{"pageProps":{"businessUnits":[{"displayName":"x"}]}}}`)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			records, err := NewSearch().Extract(tc.body)
			require.Nil(t, records)
			var pe *crawler.ParseError
			require.ErrorAs(t, err, &pe)
		})
	}
}

const reviewPayload = `{"props":{"pageProps":{"businessUnit":{"displayName":"Acme"},"reviews":[
 {"consumer":{"displayName":"Jane D"},"rating":5,"text":"Great service ","title":"Five stars",
  "dates":{"publishedDate":"2024-03-01T10:00:00.000Z"}},
 {"consumer":{"displayName":""},"rating":1,"text":"","title":"Bad","dates":{"publishedDate":""}}
]}}}`

func TestReviewsExtract(t *testing.T) {
	t.Parallel()

	records, err := NewReviews().Extract(page(reviewPayload))
	require.NoError(t, err)
	require.Len(t, records, 2)

	require.Equal(t, record.ReviewItem{
		Name:   "Jane D",
		Rating: 5,
		Text:   "Great service",
		Title:  "Five stars",
		Date:   "2024-03-01T10:00:00.000Z",
	}, records[0])
	require.Equal(t, record.ReviewItem{
		Name:   "No name",
		Rating: 1,
		Text:   "No text",
		Title:  "Bad",
		Date:   "No date",
	}, records[1])
}

func TestReviewsExtractParseErrors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		payload string
	}{
		{"missing reviews", `{"props":{"pageProps":{}}}`},
		{"missing consumer", `{"props":{"pageProps":{"reviews":[{"rating":3,"dates":{}}]}}}`},
		{"missing dates", `{"props":{"pageProps":{"reviews":[{"consumer":{"displayName":"a"}}]}}}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewReviews().Extract(page(tc.payload))
			var pe *crawler.ParseError
			require.ErrorAs(t, err, &pe)
		})
	}
}

func TestForKind(t *testing.T) {
	t.Parallel()

	ex, err := ForKind(record.KindSearch)
	require.NoError(t, err)
	require.IsType(t, Search{}, ex)

	ex, err = ForKind(record.KindReview)
	require.NoError(t, err)
	require.IsType(t, Reviews{}, ex)

	_, err = ForKind("other")
	require.Error(t, err)
}
