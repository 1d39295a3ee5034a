package httpclient

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhubby/moltis/internal/tracing"
)

// loggingTransport sets the outgoing User-Agent and correlation-ID
// headers and logs every request with its redacted URL and duration.
type loggingTransport struct {
	base      http.RoundTripper
	userAgent string
}

func newLoggingTransport(base http.RoundTripper, userAgent string) *loggingTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &loggingTransport{base: base, userAgent: userAgent}
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	if id := tracing.FromContextOrEmpty(req.Context()); id.IsValid() {
		req.Header.Set(tracing.HeaderCorrelationID, id.String())
	}

	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start).Milliseconds()

	attrs := []any{
		"method", req.Method,
		"url", redactURL(req.URL),
		"duration_ms", duration,
	}
	if err != nil {
		slog.Warn("http request failed", append(attrs, "error", err.Error())...)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	slog.Log(req.Context(), level, "http request", append(attrs, "status", resp.StatusCode)...)

	return resp, nil
}

// secretParamMarkers flags query parameter names whose values must not
// reach the logs. Matched case-insensitively as substrings, so
// "api_key", "ApiKey" and "session_token" are all caught.
var secretParamMarkers = []string{
	"key",
	"token",
	"secret",
	"password",
	"auth",
	"credential",
}

// redactURL replaces the values of secret-looking query parameters
// before the URL is logged.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	q := u.Query()
	for name := range q {
		lower := strings.ToLower(name)
		for _, marker := range secretParamMarkers {
			if strings.Contains(lower, marker) {
				q.Set(name, "[REDACTED]")
				break
			}
		}
	}

	redacted := *u
	redacted.RawQuery = q.Encode()
	return redacted.String()
}
