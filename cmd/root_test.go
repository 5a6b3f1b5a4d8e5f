package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/app"
	"github.com/JakeFAU/review-crawler/internal/config"
	"github.com/JakeFAU/review-crawler/internal/crawler"
)

type pageSessions struct{ body []byte }

func (p pageSessions) NewSession(context.Context) (crawler.Session, error) {
	return pageSession(p), nil
}

type pageSession struct{ body []byte }

func (p pageSession) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	return crawler.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: p.body}, nil
}

func (pageSession) Close() error { return nil }

func searchPage(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"props": map[string]any{"pageProps": map[string]any{
		"businessUnits": []any{map[string]any{
			"displayName":     "Acme Bank",
			"stars":           4,
			"trustScore":      4.1,
			"numberOfReviews": 3,
			"contact":         map[string]any{"website": "https://acme.example"},
			"location":        map[string]any{"country": "GB"},
			"categories":      []any{map[string]any{"categoryId": "bank"}},
		}},
	}}})
	require.NoError(t, err)
	return []byte(`<script id="__NEXT_DATA__" type="application/json">` + string(payload) + `</script>`)
}

// stubApp swaps the factory for one that serves body to every fetch and
// records the config it was built from.
func stubApp(t *testing.T, body []byte) *config.Config {
	t.Helper()
	var seen config.Config
	orig := newApp
	newApp = func(ctx context.Context, cfg config.Config, _ *zap.Logger) (App, error) {
		seen = cfg
		return app.New(ctx, cfg, zap.NewNop(), app.Options{Sessions: pageSessions{body: body}})
	}
	t.Cleanup(func() { newApp = orig })
	return &seen
}

func execute(args ...string) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&discard{})
	root.SetErr(&discard{})
	return root.ExecuteContext(context.Background())
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }

func TestSearchCommandAppliesFlags(t *testing.T) {
	seen := stubApp(t, searchPage(t))
	dir := t.TempDir()

	err := execute("search", "--keyword", "credit union", "-k", "mortgage", "--pages", "2",
		"--output-dir", dir, "--concurrency", "2", "--location", "gb")
	require.NoError(t, err)

	require.Equal(t, []string{"credit union", "mortgage"}, seen.Crawler.Keywords)
	require.Equal(t, 2, seen.Crawler.Pages)
	require.Equal(t, 2, seen.Crawler.Concurrency)
	require.Equal(t, "gb", seen.Crawler.Location)
	require.FileExists(t, filepath.Join(dir, "credit-union.csv"))
	require.FileExists(t, filepath.Join(dir, "mortgage.csv"))
}

func TestReviewsCommandRequiresFiles(t *testing.T) {
	stubApp(t, searchPage(t))

	err := execute("reviews", "--output-dir", t.TempDir())
	require.Error(t, err)
}

func TestReviewsCommandFailsOnUnreadableFile(t *testing.T) {
	stubApp(t, searchPage(t))
	dir := t.TempDir()

	err := execute("reviews", "--output-dir", dir, filepath.Join(dir, "missing.csv"))
	require.ErrorContains(t, err, "reviews")
}

func TestRejectsInvalidOverride(t *testing.T) {
	stubApp(t, searchPage(t))

	err := execute("search", "--pages", "0", "--output-dir", t.TempDir())
	require.ErrorContains(t, err, "crawler.pages")
}

func TestMissingConfigFile(t *testing.T) {
	stubApp(t, searchPage(t))

	err := execute("search", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestConfigFileIsLoaded(t *testing.T) {
	seen := stubApp(t, searchPage(t))
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "crawler.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"crawler:\n  keywords: [\"savings\"]\n  output_dir: "+dir+"\nlogging:\n  development: false\n"), 0o600))

	require.NoError(t, execute("crawl", "--config", cfgPath))
	require.Equal(t, []string{"savings"}, seen.Crawler.Keywords)
	require.FileExists(t, filepath.Join(dir, "savings.csv"))
}
