package extract

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Resolver is the subset of *net.Resolver used for DNS features.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupNS(ctx context.Context, name string) ([]*net.NS, error)
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// DNSExtractor derives mail and name-server features of the registered
// domain.
type DNSExtractor struct {
	resolver Resolver
}

// NewDNSExtractor creates a DNSExtractor. A nil resolver uses
// net.DefaultResolver.
func NewDNSExtractor(resolver Resolver) *DNSExtractor {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &DNSExtractor{resolver: resolver}
}

func (e *DNSExtractor) Group() Group { return GroupDNS }

func (e *DNSExtractor) CacheKey(t *Target) string {
	if t.RegisteredDomain == "" {
		return ""
	}
	return "dns:" + t.RegisteredDomain
}

func (e *DNSExtractor) Extract(ctx context.Context, t *Target) (Features, error) {
	domain := t.RegisteredDomain
	if domain == "" {
		return nil, errors.New("no registered domain")
	}

	mx, err := e.resolver.LookupMX(ctx, domain)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	txt, err := e.resolver.LookupTXT(ctx, domain)
	if err != nil && !isNotFound(err) {
		return nil, err
	}
	ns, err := e.resolver.LookupNS(ctx, domain)
	if err != nil {
		return nil, err
	}
	ips, err := e.resolver.LookupIPAddr(ctx, domain)
	if err != nil {
		return nil, err
	}

	return Features{
		"has_mx_record":         len(mx) > 0,
		"has_spf_record":        hasSPF(txt),
		"nameserver_count":      len(ns),
		"multiple_ip_addresses": len(ips) > 1,
	}, nil
}

func hasSPF(records []string) bool {
	for _, r := range records {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(r)), "v=spf1") {
			return true
		}
	}
	return false
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
