package classify_test

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/urlguard/internal/classify"
	"goflare.io/urlguard/internal/models"
)

func TestBundledModelLoads(t *testing.T) {
	m, err := classify.LoadModel("")
	require.NoError(t, err)
	assert.Equal(t, "heuristic-v1", m.Name)
	assert.Equal(t, 0.5, m.Threshold)
	assert.NotEmpty(t, m.Weights)
}

func TestScoreEncoding(t *testing.T) {
	m, err := classify.ParseModel([]byte(`
bias: 1
weights:
  a: 2
  b: -1
  c: 0.5
  tld=com: 3
clip:
  c: 10
`))
	require.NoError(t, err)

	score := m.Score(models.FeatureVector{
		"a":       true,
		"b":       2.0,
		"c":       100,
		"tld":     "com",
		"ignored": []any{1},
		"nothing": nil,
	})
	// 1 + 2*1 - 1*2 + 0.5*10 + 3
	assert.InDelta(t, 9.0, score, 1e-9)
}

func TestClassifyProbabilities(t *testing.T) {
	m, err := classify.ParseModel([]byte("bias: 0\nweights:\n  ssl_valid: 2\n"))
	require.NoError(t, err)

	p, err := m.Classify(context.Background(), models.FeatureVector{"ssl_valid": true})
	require.NoError(t, err)
	assert.True(t, p.Safe)
	assert.InDelta(t, 1/(1+math.Exp(-2)), p.SafeProbability, 1e-9)
	assert.InDelta(t, 1, p.SafeProbability+p.PhishingProbability, 1e-9)

	p, err = m.Classify(context.Background(), models.FeatureVector{"ssl_valid": false})
	require.NoError(t, err)
	assert.True(t, p.Safe, "score 0 sits on the threshold")
	assert.InDelta(t, 0.5, p.SafeProbability, 1e-9)
}

func TestBundledModelSeparatesObviousCases(t *testing.T) {
	m, err := classify.LoadModel("")
	require.NoError(t, err)
	ctx := context.Background()

	legit, err := m.Classify(ctx, models.FeatureVector{
		"has_mx_record": true, "has_spf_record": true, "nameserver_count": 4, "multiple_ip_addresses": true,
		"ssl_valid": true, "cert_issuer": "R3", "cert_expiry_days": 60, "cert_version": 3,
		"domain_age_days": 7000, "domain_expiry_days": 400, "domain_updated_days": 30,
		"tld_type": "com", "subdomain_count": 1,
		"form_count": 1, "external_form_action": false, "external_link_ratio": 0.1,
		"external_js_ratio": 0.2, "has_favicon": true, "has_description": true,
	})
	require.NoError(t, err)
	assert.True(t, legit.Safe)

	phish, err := m.Classify(ctx, models.FeatureVector{
		"has_mx_record": false, "has_spf_record": false, "nameserver_count": 0, "multiple_ip_addresses": false,
		"ssl_valid": false, "cert_issuer": nil, "cert_expiry_days": -1, "cert_version": nil,
		"domain_age_days": -1, "domain_expiry_days": -1, "domain_updated_days": -1,
		"tld_type": "tk", "subdomain_count": 3,
		"form_count": 2, "external_form_action": true, "external_link_ratio": 0.9,
		"external_js_ratio": 1.0, "has_favicon": false, "has_description": false,
	})
	require.NoError(t, err)
	assert.False(t, phish.Safe)
}

func TestParseModelRejectsInvalid(t *testing.T) {
	_, err := classify.ParseModel([]byte("bias: [unterminated"))
	assert.ErrorIs(t, err, classify.ErrInvalidModel)

	_, err = classify.ParseModel([]byte("bias: 1\n"))
	assert.ErrorIs(t, err, classify.ErrInvalidModel)
}

func TestLoadModelFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: custom\nweights:\n  x: 1\n"), 0o644))

	m, err := classify.LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", m.Name)

	_, err = classify.LoadModel(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestClassifyHonoursCancellation(t *testing.T) {
	m, err := classify.LoadModel("")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Classify(ctx, models.FeatureVector{})
	assert.ErrorIs(t, err, context.Canceled)
}
