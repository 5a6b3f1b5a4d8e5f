package crawler

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSearchURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://www.trustpilot.com/search?query=online+bank&page=1", SearchURL("online bank", 0))
	require.Equal(t, "https://www.trustpilot.com/search?query=car+%26+bike&page=4", SearchURL("car & bike", 3))
}

func TestReviewURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		website string
		want    string
	}{
		{"https", "https://www.bank.example", "https://www.trustpilot.com/review/www.bank.example"},
		{"http", "http://bank.example/path", "https://www.trustpilot.com/review/bank.example/path"},
		{"no scheme", "bank.example", "https://www.trustpilot.com/review/bank.example"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ReviewURL(tc.website))
		})
	}
}

func TestOutputPath(t *testing.T) {
	t.Parallel()

	require.Equal(t, "online-bank", OutputName(" online bank "))
	require.Equal(t, filepath.Join("out", "Acme-Bank-Ltd.csv"), OutputPath("out", "Acme Bank Ltd"))
}

func TestMaxRetriesExceededErrorMatching(t *testing.T) {
	t.Parallel()

	cause := NewFetchError("https://example.com", errors.New("timeout"))
	err := error(&MaxRetriesExceededError{URL: "https://example.com", Attempts: 4, Last: cause})

	require.ErrorIs(t, err, ErrMaxRetriesExceeded)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, "https://example.com", fe.URL)
	require.Contains(t, err.Error(), "after 4 attempts")
}

func TestNewFetchErrorDoesNotDoubleWrap(t *testing.T) {
	t.Parallel()

	inner := NewFetchError("https://a", errors.New("boom"))
	outer := NewFetchError("https://b", inner)
	require.Same(t, inner, outer)
}

func TestParseErrorMessage(t *testing.T) {
	t.Parallel()

	require.Equal(t, "parse: missing marker", NewParseError("missing marker", nil).Error())
	require.Equal(t, "parse: bad json: eof", NewParseError("bad json", errors.New("eof")).Error())
}
