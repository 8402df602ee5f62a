package extract_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/urlguard/internal/extract"
)

const phishingPage = `<!doctype html>
<html><head>
  <link rel="shortcut icon" href="/favicon.ico">
  <meta name="description" content="Sign in">
  <script src="https://cdn.evil.test/a.js"></script>
  <script src="/local.js"></script>
  <script>inline()</script>
</head><body>
  <form action="/search"></form>
  <form action="https://collect.evil.test/post"></form>
  <a href="https://bank.test/">bank</a>
  <a href="/help">help</a>
  <a href="#">top</a>
  <a>no href</a>
</body></html>`

func TestContentFeatures(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		_, _ = w.Write([]byte(phishingPage))
	}))
	defer srv.Close()

	e := extract.NewContentExtractor(srv.Client(), "urlguard-test")
	f, err := e.Extract(context.Background(), mustTarget(t, srv.URL+"/login"))
	require.NoError(t, err)

	assert.Equal(t, "urlguard-test", gotUA)
	assert.Equal(t, extract.Features{
		"form_count":           2,
		"external_form_action": true,
		"external_link_ratio":  0.25,
		"external_js_ratio":    0.5,
		"has_favicon":          true,
		"has_description":      true,
	}, f)
	assert.Empty(t, e.CacheKey(mustTarget(t, srv.URL)))
}

func TestContentEmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	f, err := extract.NewContentExtractor(srv.Client(), "").Extract(context.Background(), mustTarget(t, srv.URL))
	require.NoError(t, err)
	assert.Equal(t, 0, f["form_count"])
	assert.Equal(t, false, f["external_form_action"])
	assert.Equal(t, 0.0, f["external_link_ratio"])
	assert.Equal(t, 0.0, f["external_js_ratio"])
	assert.Equal(t, false, f["has_favicon"])
}

func TestContentUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := extract.NewContentExtractor(nil, "").Extract(context.Background(), mustTarget(t, url))
	assert.Error(t, err)
}
