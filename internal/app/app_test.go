package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/config"
	"github.com/JakeFAU/review-crawler/internal/crawler"
	"github.com/JakeFAU/review-crawler/internal/job"
)

type fixedIDs struct {
	id  string
	err error
}

func (f fixedIDs) NewID() (string, error) { return f.id, f.err }

func searchBody(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{"props": map[string]any{"pageProps": map[string]any{
		"businessUnits": []any{map[string]any{
			"displayName":     "Acme Bank",
			"stars":           4.5,
			"trustScore":      4.4,
			"numberOfReviews": 12,
			"contact":         map[string]any{"website": "https://acme.example"},
			"location":        map[string]any{"country": "US"},
			"categories":      []any{map[string]any{"categoryId": "bank"}},
		}},
	}}})
	require.NoError(t, err)
	return []byte(`<html><script id="__NEXT_DATA__" type="application/json">` + string(payload) + `</script></html>`)
}

type staticSessions struct{ body []byte }

func (s staticSessions) NewSession(context.Context) (crawler.Session, error) {
	return staticSession(s), nil
}

type staticSession struct{ body []byte }

func (s staticSession) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	return crawler.FetchResponse{URL: req.URL, StatusCode: http.StatusOK, Body: s.body}, nil
}

func (staticSession) Close() error { return nil }

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Crawler.OutputDir = t.TempDir()
	cfg.Metrics.Addr = ""
	return cfg
}

func TestNewWithDefaults(t *testing.T) {
	cfg := baseConfig(t)

	a, err := New(context.Background(), cfg, zap.NewNop(), Options{IDs: fixedIDs{id: "run-42"}})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	require.NotNil(t, a.Logger())
	require.Equal(t, "run-42", a.Runner().RunID())
	require.Nil(t, a.store)
	require.Nil(t, a.bucket)
	require.Nil(t, a.topic)
	require.Nil(t, a.headless)
}

func TestNewFailsOnRunIDError(t *testing.T) {
	cfg := baseConfig(t)

	_, err := New(context.Background(), cfg, nil, Options{IDs: fixedIDs{err: errors.New("entropy")}})
	require.ErrorContains(t, err, "generate run id")
}

func TestNewRejectsBadRelayEndpoint(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Relay.Enabled = true
	cfg.Relay.APIKey = "secret"
	cfg.Relay.Endpoint = "not-a-url"

	_, err := New(context.Background(), cfg, zap.NewNop(), Options{})
	require.ErrorContains(t, err, "init relay")
}

func TestRunArchivesToLocalDirectory(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Storage.ArchiveDir = t.TempDir()

	a, err := New(context.Background(), cfg, zap.NewNop(), Options{
		IDs:      fixedIDs{id: "run-7"},
		Sessions: staticSessions{body: searchBody(t)},
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	summary, err := a.Runner().Run(context.Background(), job.PhaseSearch, nil)
	require.NoError(t, err)
	require.Len(t, summary.Outputs, 1)

	archived := filepath.Join(cfg.Storage.ArchiveDir, "run-7", "online-bank.csv")
	require.FileExists(t, archived)
	require.Equal(t, "file://"+archived, summary.Outputs[0].ArchiveURI)
	require.Len(t, summary.Outputs[0].SHA256, 64)
}

func TestRunThroughRelay(t *testing.T) {
	body := searchBody(t)
	var (
		mu      sync.Mutex
		targets []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("api_key") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		mu.Lock()
		targets = append(targets, q.Get("url"))
		mu.Unlock()
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	cfg := baseConfig(t)
	cfg.Relay.Enabled = true
	cfg.Relay.APIKey = "secret"
	cfg.Relay.Endpoint = srv.URL + "/v1/"
	cfg.Crawler.Pages = 2

	a, err := New(context.Background(), cfg, zap.NewNop(), Options{IDs: fixedIDs{id: "run-relay"}})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	summary, err := a.Runner().Run(context.Background(), job.PhaseSearch, nil)
	require.NoError(t, err)
	require.Equal(t, 2, summary.Report.Succeeded)
	require.Equal(t, 1, summary.Outputs[0].Records)
	require.Equal(t, 1, summary.Outputs[0].Duplicates)

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{
		crawler.SearchURL("online bank", 0),
		crawler.SearchURL("online bank", 1),
	}, targets)

	_, err = os.Stat(filepath.Join(cfg.Crawler.OutputDir, "online-bank.csv"))
	require.NoError(t, err)
}
