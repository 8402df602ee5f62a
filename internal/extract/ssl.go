package extract

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"time"
)

// TLSExtractor performs a verified TLS handshake with the host and reports
// attributes of its leaf certificate.
type TLSExtractor struct {
	rootCAs *x509.CertPool
	timeout time.Duration
	clock   func() time.Time
}

// NewTLSExtractor creates a TLSExtractor. A nil pool uses the system roots.
func NewTLSExtractor(rootCAs *x509.CertPool, timeout time.Duration, clock func() time.Time) *TLSExtractor {
	if clock == nil {
		clock = time.Now
	}
	return &TLSExtractor{rootCAs: rootCAs, timeout: timeout, clock: clock}
}

func (e *TLSExtractor) Group() Group { return GroupSSL }

func (e *TLSExtractor) CacheKey(t *Target) string {
	return "ssl:" + e.address(t)
}

func (e *TLSExtractor) address(t *Target) string {
	port := t.Port
	if port == "" {
		port = "443"
	}
	return net.JoinHostPort(t.Host, port)
}

func (e *TLSExtractor) Extract(ctx context.Context, t *Target) (Features, error) {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: e.timeout},
		Config: &tls.Config{
			ServerName: t.Host,
			RootCAs:    e.rootCAs,
			MinVersion: tls.VersionTLS12,
		},
	}
	conn, err := dialer.DialContext(ctx, "tcp", e.address(t))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return nil, errors.New("not a TLS connection")
	}
	certs := tlsConn.ConnectionState().PeerCertificates
	if len(certs) == 0 {
		return nil, errors.New("server sent no certificate")
	}
	leaf := certs[0]

	return Features{
		"ssl_valid":        true,
		"cert_issuer":      issuerName(leaf),
		"cert_expiry_days": daysBetween(e.clock(), leaf.NotAfter),
		"cert_version":     leaf.Version,
	}, nil
}

func issuerName(cert *x509.Certificate) string {
	if cert.Issuer.CommonName != "" {
		return cert.Issuer.CommonName
	}
	if len(cert.Issuer.Organization) > 0 {
		return cert.Issuer.Organization[0]
	}
	return cert.Issuer.String()
}

// daysBetween returns whole days from a to b, truncated toward zero.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}
