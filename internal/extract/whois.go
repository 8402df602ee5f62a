package extract

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxWhoisResponse = 1 << 20

var ErrNoWhoisData = errors.New("no whois registration data for domain")

// WhoisRecord holds the registration dates of a domain. Zero values mean the
// registry did not report the field.
type WhoisRecord struct {
	Created time.Time
	Expires time.Time
	Updated time.Time
	Server  string
}

// WhoisClient queries WHOIS over TCP port 43, starting at a root server and
// following one referral. All queries share one rate limiter.
type WhoisClient struct {
	root    string
	dialer  *net.Dialer
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewWhoisClient creates a WhoisClient. ratePerSec <= 0 disables limiting.
func NewWhoisClient(root string, ratePerSec float64, burst int, timeout time.Duration, logger *zap.Logger) *WhoisClient {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WhoisClient{
		root:    root,
		dialer:  &net.Dialer{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Lookup returns the registration record of domain. The root response only
// describes the TLD, so a root answer without a referral yields
// ErrNoWhoisData.
func (c *WhoisClient) Lookup(ctx context.Context, domain string) (*WhoisRecord, error) {
	resp, err := c.query(ctx, c.root, domain)
	if err != nil {
		return nil, err
	}

	refer := referral(resp)
	if refer == "" || sameServer(refer, c.root) {
		c.logger.Debug("No whois referral for domain", zap.String("domain", domain), zap.String("server", c.root))
		return nil, ErrNoWhoisData
	}

	c.logger.Debug("Following whois referral", zap.String("domain", domain), zap.String("server", refer))
	resp, err = c.query(ctx, refer, domain)
	if err != nil {
		return nil, err
	}

	rec := parseWhois(resp)
	rec.Server = refer
	if rec.Created.IsZero() {
		return nil, ErrNoWhoisData
	}
	return rec, nil
}

func (c *WhoisClient) query(ctx context.Context, server, q string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	addr := whoisAddr(server)
	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return "", fmt.Errorf("whois dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := io.WriteString(conn, q+"\r\n"); err != nil {
		return "", fmt.Errorf("whois write %s: %w", addr, err)
	}
	data, err := io.ReadAll(io.LimitReader(conn, maxWhoisResponse))
	if err != nil {
		return "", fmt.Errorf("whois read %s: %w", addr, err)
	}
	return string(data), nil
}

// whoisAddr returns server as host:port, defaulting to port 43.
func whoisAddr(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(server, "43")
}

func sameServer(a, b string) bool {
	return strings.EqualFold(whoisAddr(a), whoisAddr(b))
}

func referral(resp string) string {
	for _, key := range []string{"refer", "whois", "registrar whois server"} {
		if v := field(resp, key); v != "" {
			v = strings.TrimPrefix(v, "whois://")
			return strings.TrimSuffix(v, "/")
		}
	}
	return ""
}

var (
	createdKeys = []string{"creation date", "created", "created on", "registered on", "registration time", "domain registration date"}
	expiresKeys = []string{"registry expiry date", "registrar registration expiration date", "expiration date", "expiry date", "expires", "expires on", "paid-till", "expiration time"}
	updatedKeys = []string{"updated date", "last updated", "last-modified", "changed", "last modified", "modified"}
)

func parseWhois(resp string) *WhoisRecord {
	rec := &WhoisRecord{}
	rec.Created = firstDate(resp, createdKeys)
	rec.Expires = firstDate(resp, expiresKeys)
	rec.Updated = firstDate(resp, updatedKeys)
	return rec
}

func firstDate(resp string, keys []string) time.Time {
	for _, key := range keys {
		if v := field(resp, key); v != "" {
			if t, ok := parseWhoisDate(v); ok {
				return t
			}
		}
	}
	return time.Time{}
}

// field returns the value of the first "key: value" line matching key,
// compared case-insensitively.
func field(resp, key string) string {
	sc := bufio.NewScanner(strings.NewReader(resp))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '%' || line[0] == '#' {
			continue
		}
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(k), key) {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

var whoisDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02",
	"2006.01.02",
	"2006/01/02",
	"02-Jan-2006",
	"02.01.2006",
	"January 2 2006",
}

func parseWhoisDate(v string) (time.Time, bool) {
	v = strings.TrimSpace(v)
	// Some registries append a note, e.g. "2020-01-01 (dd-mm-yyyy)".
	if i := strings.Index(v, " ("); i > 0 {
		v = v[:i]
	}
	for _, layout := range whoisDateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
