// Package auth provides feed credentials and the relay's TLS material.
package auth

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"strings"
)

// TokenParam is the query parameter that carries the feed API token.
const TokenParam = "token"

// FeedURL returns base with the API token attached as a query parameter.
// An empty token leaves base unchanged.
func FeedURL(base, token string) (string, error) {
	if base == "" {
		return "", fmt.Errorf("feed URL is required")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse feed URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("feed URL scheme must be ws or wss, got %q", u.Scheme)
	}

	if token == "" {
		return u.String(), nil
	}

	q := u.Query()
	q.Set(TokenParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// RedactURL hides the token in a feed URL for logging.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}

	q := u.Query()
	if q.Get(TokenParam) == "" {
		return u.String()
	}
	q.Set(TokenParam, "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}

// LoadServerTLS loads a PEM certificate chain and private key for the listener.
func LoadServerTLS(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" {
		return nil, fmt.Errorf("certificate file is required")
	}
	if keyFile == "" {
		return nil, fmt.Errorf("key file is required")
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("load key pair: %w", err)
	}

	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return nil, fmt.Errorf("parse certificate: %w", err)
	}
	cert.Leaf = leaf

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Subject returns a short description of the served certificate for logging.
func Subject(cfg *tls.Config) string {
	if cfg == nil || len(cfg.Certificates) == 0 || cfg.Certificates[0].Leaf == nil {
		return ""
	}
	leaf := cfg.Certificates[0].Leaf
	if len(leaf.DNSNames) > 0 {
		return strings.Join(leaf.DNSNames, ",")
	}
	return leaf.Subject.CommonName
}
