// Package httpclient builds the HTTP clients moltis uses to reach MCP
// servers and its own daemon.
//
// Every client shares the same behavior: TLS 1.2 minimum, pooled
// connections, a User-Agent identifying the caller, correlation-ID
// propagation, structured request logs with secrets redacted from
// URLs, and retries for idempotent requests. Methods with side effects
// (the JSON-RPC POSTs of the MCP transport) are sent exactly once.
//
//	cfg := httpclient.Config{
//		Timeout:       10 * time.Second,
//		RetryAttempts: 2,
//		UserAgent:     "moltis-mcp-client/1.0",
//	}
//	client, err := httpclient.New(cfg)
package httpclient

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Config configures a client. The retry schedule itself is fixed;
// callers only choose how many retries idempotent requests get.
type Config struct {
	// Timeout bounds a whole request, retries included. Required.
	Timeout time.Duration

	// RetryAttempts is the number of retries after the initial try.
	// Zero disables retrying.
	RetryAttempts int

	// UserAgent names the calling component. Required.
	UserAgent string
}

// DefaultConfig returns the settings shared by the moltis clients.
func DefaultConfig() Config {
	return Config{
		Timeout:       30 * time.Second,
		RetryAttempts: 3,
		UserAgent:     "moltis-http-client/1.0",
	}
}

func (c Config) validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry attempts must be >= 0, got %d", c.RetryAttempts)
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent is required")
	}
	return nil
}

// New creates a client from the configuration.
func New(cfg Config) (*http.Client, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	base := &http.Transport{
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
	}

	var rt http.RoundTripper = newLoggingTransport(base, cfg.UserAgent)
	if cfg.RetryAttempts > 0 {
		rt = newRetryTransport(rt, cfg.RetryAttempts)
	}

	return &http.Client{
		Transport: rt,
		Timeout:   cfg.Timeout,
	}, nil
}
