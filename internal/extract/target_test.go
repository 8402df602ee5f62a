package extract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goflare.io/urlguard/internal/extract"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		raw        string
		host       string
		registered string
		suffix     string
		subdomains int
		ip         bool
	}{
		{"https://login.secure.example.co.uk/path", "login.secure.example.co.uk", "example.co.uk", "co.uk", 2, false},
		{"example.com", "example.com", "example.com", "com", 0, false},
		{"http://WWW.Example.COM.:8080/", "www.example.com", "example.com", "com", 1, false},
		{"http://127.0.0.1:8080/", "127.0.0.1", "", "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			target, err := extract.ParseTarget(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, target.Raw)
			assert.Equal(t, tt.host, target.Host)
			assert.Equal(t, tt.registered, target.RegisteredDomain)
			assert.Equal(t, tt.suffix, target.Suffix)
			assert.Equal(t, tt.subdomains, target.SubdomainCount())
			assert.Equal(t, tt.ip, target.IP)
		})
	}
}

func TestParseTargetRejectsHostless(t *testing.T) {
	for _, raw := range []string{"", "   ", "http://", "http://:80/x"} {
		_, err := extract.ParseTarget(raw)
		assert.ErrorIs(t, err, extract.ErrInvalidTarget, raw)
	}
}

func TestIsExternal(t *testing.T) {
	assert.True(t, extract.IsExternal("https://evil.test/login"))
	assert.True(t, extract.IsExternal("http://evil.test"))
	assert.False(t, extract.IsExternal("/login"))
	assert.False(t, extract.IsExternal(""))
}
