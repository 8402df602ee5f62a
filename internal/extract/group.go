// Package extract computes the heuristic feature vector of a URL. Features
// come in four independent groups; a group that fails contributes its
// default values instead of failing the whole extraction.
package extract

import (
	"context"
	"fmt"
	"time"
)

// Group names a family of features.
type Group string

const (
	GroupDNS     Group = "dns"
	GroupSSL     Group = "ssl"
	GroupDomain  Group = "domain"
	GroupContent Group = "content"
)

// Groups lists every group in aggregation order.
var Groups = []Group{GroupDNS, GroupSSL, GroupDomain, GroupContent}

// Features is the output of one group.
type Features map[string]any

// Extractor computes the features of one group.
type Extractor interface {
	Group() Group
	// CacheKey returns the lookup-cache key for t, or "" when results must
	// not be shared between URLs.
	CacheKey(t *Target) string
	Extract(ctx context.Context, t *Target) (Features, error)
}

// GroupError reports that a group could not be computed.
type GroupError struct {
	Group Group
	Err   error
}

func (e *GroupError) Error() string {
	return fmt.Sprintf("%s features: %v", e.Group, e.Err)
}

func (e *GroupError) Unwrap() error {
	return e.Err
}

// GroupResult is the outcome of one group. Features is nil when Err is set.
type GroupResult struct {
	Group    Group
	Features Features
	Err      *GroupError
	Cached   bool
	Duration time.Duration
}

// Defaults returns the values used for g when it fails.
func Defaults(g Group) Features {
	switch g {
	case GroupDNS:
		return Features{
			"has_mx_record":         false,
			"has_spf_record":        false,
			"nameserver_count":      0,
			"multiple_ip_addresses": false,
		}
	case GroupSSL:
		return Features{
			"ssl_valid":        false,
			"cert_issuer":      nil,
			"cert_expiry_days": -1,
			"cert_version":     nil,
		}
	case GroupDomain:
		return Features{
			"domain_age_days":     -1,
			"domain_expiry_days":  -1,
			"domain_updated_days": -1,
			"tld_type":            nil,
			"subdomain_count":     -1,
		}
	case GroupContent:
		return Features{
			"form_count":           -1,
			"external_form_action": false,
			"external_link_ratio":  -1,
			"external_js_ratio":    -1,
			"has_favicon":          false,
			"has_description":      false,
		}
	}
	return Features{}
}
