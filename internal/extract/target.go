package extract

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ErrInvalidTarget is returned for URLs that have no usable host.
var ErrInvalidTarget = errors.New("url has no host")

// Target is a parsed URL together with its public-suffix breakdown.
type Target struct {
	Raw  string
	URL  *url.URL
	Host string // hostname without port, lower case
	Port string // explicit port or ""

	// RegisteredDomain is eTLD+1, e.g. "example.co.uk". Empty for IP hosts.
	RegisteredDomain string
	Suffix           string
	Subdomain        string
	IP               bool
}

// ParseTarget parses raw. A missing scheme defaults to http.
func ParseTarget(raw string) (*Target, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, ErrInvalidTarget
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	host := strings.ToLower(strings.TrimSuffix(u.Hostname(), "."))
	if host == "" {
		return nil, ErrInvalidTarget
	}

	t := &Target{Raw: raw, URL: u, Host: host, Port: u.Port()}
	if net.ParseIP(host) != nil {
		t.IP = true
		return t, nil
	}

	t.Suffix, _ = publicsuffix.PublicSuffix(host)
	registered, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// The host is itself a public suffix, e.g. "co.uk".
		return t, nil
	}
	t.RegisteredDomain = registered
	if host != registered {
		t.Subdomain = strings.TrimSuffix(host, "."+registered)
	}
	return t, nil
}

// SubdomainCount counts the labels in front of the registered domain.
func (t *Target) SubdomainCount() int {
	if t.Subdomain == "" {
		return 0
	}
	return strings.Count(t.Subdomain, ".") + 1
}

// IsExternal reports whether ref points to an absolute http(s) location.
func IsExternal(ref string) bool {
	return strings.HasPrefix(ref, "http")
}
