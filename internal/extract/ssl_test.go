package extract_test

import (
	"context"
	"crypto/x509"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/urlguard/internal/extract"
)

func TestTLSFeatures(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	e := extract.NewTLSExtractor(pool, time.Second, func() time.Time { return now })

	target := mustTarget(t, srv.URL)
	f, err := e.Extract(context.Background(), target)
	require.NoError(t, err)

	assert.Equal(t, true, f["ssl_valid"])
	assert.Equal(t, "Acme Co", f["cert_issuer"])
	assert.Equal(t, 3, f["cert_version"])
	wantDays := int(srv.Certificate().NotAfter.Sub(now) / (24 * time.Hour))
	assert.Equal(t, wantDays, f["cert_expiry_days"])

	u, _ := url.Parse(srv.URL)
	assert.Equal(t, "ssl:"+u.Host, e.CacheKey(target))
}

func TestTLSUntrustedCertificate(t *testing.T) {
	srv := httptest.NewTLSServer(http.NotFoundHandler())
	defer srv.Close()

	e := extract.NewTLSExtractor(x509.NewCertPool(), time.Second, nil)
	_, err := e.Extract(context.Background(), mustTarget(t, srv.URL))
	assert.Error(t, err)
}

func TestTLSDefaultPort(t *testing.T) {
	e := extract.NewTLSExtractor(nil, time.Second, nil)
	assert.Equal(t, "ssl:example.com:443", e.CacheKey(mustTarget(t, "http://example.com/")))
}
