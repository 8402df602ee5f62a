package extract

import (
	"context"
	"errors"
	"time"
)

// Registry looks up domain registration data.
type Registry interface {
	Lookup(ctx context.Context, domain string) (*WhoisRecord, error)
}

// DomainExtractor combines registration dates with the public-suffix
// breakdown of the host.
type DomainExtractor struct {
	registry Registry
	clock    func() time.Time
}

// NewDomainExtractor creates a DomainExtractor.
func NewDomainExtractor(registry Registry, clock func() time.Time) *DomainExtractor {
	if clock == nil {
		clock = time.Now
	}
	return &DomainExtractor{registry: registry, clock: clock}
}

func (e *DomainExtractor) Group() Group { return GroupDomain }

func (e *DomainExtractor) CacheKey(t *Target) string {
	if t.RegisteredDomain == "" {
		return ""
	}
	return "domain:" + t.Host
}

func (e *DomainExtractor) Extract(ctx context.Context, t *Target) (Features, error) {
	if t.RegisteredDomain == "" {
		return nil, errors.New("no registered domain")
	}
	rec, err := e.registry.Lookup(ctx, t.RegisteredDomain)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	return Features{
		"domain_age_days":     sinceDays(now, rec.Created),
		"domain_expiry_days":  untilDays(now, rec.Expires),
		"domain_updated_days": sinceDays(now, rec.Updated),
		"tld_type":            t.Suffix,
		"subdomain_count":     t.SubdomainCount(),
	}, nil
}

func sinceDays(now, t time.Time) int {
	if t.IsZero() {
		return -1
	}
	return daysBetween(t, now)
}

func untilDays(now, t time.Time) int {
	if t.IsZero() {
		return -1
	}
	return daysBetween(now, t)
}
