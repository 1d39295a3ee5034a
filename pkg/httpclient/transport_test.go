package httpclient

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/zhubby/moltis/internal/tracing"
)

func TestTransportSetsUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "moltis-test/1.0" {
			t.Errorf("expected injected user agent, got %q", got)
		}
	}))
	defer server.Close()

	transport := newLoggingTransport(nil, "moltis-test/1.0")
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
}

func TestTransportPreservesCallerUserAgent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "caller/2.0" {
			t.Errorf("expected caller's user agent, got %q", got)
		}
	}))
	defer server.Close()

	transport := newLoggingTransport(nil, "moltis-test/1.0")
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req.Header.Set("User-Agent", "caller/2.0")

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
}

func TestTransportPropagatesCorrelationID(t *testing.T) {
	id := tracing.NewCorrelationID()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(tracing.HeaderCorrelationID); got != id.String() {
			t.Errorf("expected correlation id %q, got %q", id, got)
		}
	}))
	defer server.Close()

	transport := newLoggingTransport(nil, "moltis-test/1.0")
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	req = req.WithContext(tracing.ToContext(req.Context(), id))

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
}

func TestTransportOmitsCorrelationHeaderWithoutID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(tracing.HeaderCorrelationID); got != "" {
			t.Errorf("expected no correlation header, got %q", got)
		}
	}))
	defer server.Close()

	transport := newLoggingTransport(nil, "moltis-test/1.0")
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"api key redacted",
			"https://example.com/v1?api_key=s3cret&page=2",
			"api_key=%5BREDACTED%5D",
		},
		{
			"token redacted case-insensitively",
			"https://example.com/v1?Session_Token=abc",
			"Session_Token=%5BREDACTED%5D",
		},
		{
			"plain params untouched",
			"https://example.com/v1?page=2&limit=10",
			"page=2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.in)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			got := redactURL(u)
			if !strings.Contains(got, tt.want) {
				t.Errorf("redactURL(%q) = %q, expected it to contain %q", tt.in, got, tt.want)
			}
			if strings.Contains(got, "s3cret") || strings.Contains(got, "abc&") {
				t.Errorf("secret value leaked: %q", got)
			}
		})
	}
}

func TestRedactURLNil(t *testing.T) {
	if got := redactURL(nil); got != "" {
		t.Errorf("expected empty string for nil URL, got %q", got)
	}
}
