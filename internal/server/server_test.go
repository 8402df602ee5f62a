package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goflare.io/urlguard"
	"goflare.io/urlguard/internal/config"
	"goflare.io/urlguard/internal/models"
	"goflare.io/urlguard/internal/server"
)

type fakeGuard struct {
	verdict  models.Verdict
	checkErr error
	report   models.Report
	statsErr error
	purged   int
	panicOn  string
	gotURL   string
}

func (g *fakeGuard) Check(_ context.Context, rawURL string) (models.Verdict, error) {
	if rawURL == g.panicOn && rawURL != "" {
		panic("boom")
	}
	g.gotURL = rawURL
	if strings.TrimSpace(rawURL) == "" {
		return models.Verdict{}, urlguard.ErrEmptyURL
	}
	if g.checkErr != nil {
		return models.Verdict{}, g.checkErr
	}
	return g.verdict, nil
}

func (g *fakeGuard) Stats(context.Context) (models.Report, error) { return g.report, g.statsErr }

func (g *fakeGuard) Purge(context.Context) (int, error) { return g.purged, nil }

func newTestServer(t *testing.T, g *fakeGuard) *httptest.Server {
	t.Helper()
	cfg, err := config.NewConfig()
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "t"}))
	srv := httptest.NewServer(server.New(g, reg, cfg.Server, zap.NewNop()).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func TestCheckURL(t *testing.T) {
	g := &fakeGuard{verdict: models.Verdict{URL: "http://a.test", Safe: true, Confidence: 91.5, UnsafeConfidence: 8.5}}
	srv := newTestServer(t, g)

	resp := postJSON(t, srv.URL+"/api/check_url", `{"url":"http://a.test"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(server.RequestIDHeader))
	body := decode(t, resp)

	assert.Equal(t, map[string]any{
		"url":               "http://a.test",
		"safe":              true,
		"confidence":        91.5,
		"unsafe_confidence": 8.5,
		"cached":            false,
	}, body)
	assert.Equal(t, "http://a.test", g.gotURL)
}

func TestCheckURLErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
		msg    string
	}{
		{"missing url", `{}`, nil, http.StatusBadRequest, "No URL provided"},
		{"empty url", `{"url":""}`, nil, http.StatusBadRequest, "No URL provided"},
		{"bad json", `{"url":`, nil, http.StatusBadRequest, "Invalid JSON body"},
		{"invalid url", `{"url":"http://"}`, fmt.Errorf("%w: no host", urlguard.ErrInvalidURL), http.StatusBadRequest, "Invalid URL"},
		{"internal", `{"url":"http://a.test"}`, errors.New("classifier down"), http.StatusInternalServerError, "Failed to check URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeGuard{checkErr: tt.err})
			resp := postJSON(t, srv.URL+"/api/check_url", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.msg, decode(t, resp)["error"])
		})
	}
}

func TestCacheStats(t *testing.T) {
	report := models.Report{
		Snapshot: models.Snapshot{
			CacheHits: 3, CacheMisses: 1, HitRatio: 0.75, TotalTimeSaved: 7.5,
			AvgTimeSaved: 2.5, RequestsServed: 4, UptimeSeconds: 12.34,
		},
		Savings: &models.Savings{
			EstimatedCostSavings:   "$0.01",
			BandwidthSavedKB:       3,
			PerformanceImprovement: "2500ms per request",
		},
	}
	srv := newTestServer(t, &fakeGuard{report: report})

	resp, err := http.Get(srv.URL + "/api/cache_stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)

	assert.Equal(t, 3.0, body["cache_hits"])
	assert.Equal(t, 0.75, body["hit_ratio"])
	assert.Equal(t, 4.0, body["requests_served"])
	assert.Equal(t, "$0.01", body["estimated_cost_savings"])
	assert.Equal(t, 3.0, body["bandwidth_saved_kb"])
	assert.Equal(t, "2500ms per request", body["performance_improvement"])
}

func TestCacheStatsUnavailable(t *testing.T) {
	srv := newTestServer(t, &fakeGuard{statsErr: urlguard.ErrStatsUnavailable})

	resp, err := http.Get(srv.URL + "/api/cache_stats")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "No cache statistics available yet", decode(t, resp)["error"])
}

func TestPurgeHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, &fakeGuard{purged: 4})

	resp := postJSON(t, srv.URL+"/api/cache/purge", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 4.0, decode(t, resp)["purged"])

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, "ok", decode(t, resp)["status"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestIDPropagatesAndCoversUnknownRoutes(t *testing.T) {
	srv := newTestServer(t, &fakeGuard{})

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set(server.RequestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(server.RequestIDHeader))

	resp, err = http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(server.RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &fakeGuard{})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/check_url", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://extension.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Less(t, resp.StatusCode, 300)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPanicIsRecovered(t *testing.T) {
	srv := newTestServer(t, &fakeGuard{panicOn: "http://panic.test"})

	resp := postJSON(t, srv.URL+"/api/check_url", `{"url":"http://panic.test"}`)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Internal server error", decode(t, resp)["error"])
}

func TestServeShutsDownOnCancel(t *testing.T) {
	cfg, err := config.NewConfig()
	require.NoError(t, err)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := server.New(&fakeGuard{}, nil, cfg.Server, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}
