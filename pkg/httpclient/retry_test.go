package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetryRecoversFrom5xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := newRetryTransport(nil, 3)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 after retries, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestRetryDoesNotTouch4xx(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	transport := newRetryTransport(nil, 3)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("expected a single attempt, got %d", got)
	}
}

func TestRetryNeverReplaysPOST(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	transport := newRetryTransport(nil, 3)
	req, _ := http.NewRequest(http.MethodPost, server.URL, nil)

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Errorf("POST must be sent exactly once, got %d attempts", got)
	}
}

func TestRetryExhaustionReturnsLastResponse(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	transport := newRetryTransport(nil, 2)
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)

	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected the final 503, got %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Errorf("expected initial try plus 2 retries, got %d attempts", got)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := newRetryTransport(nil, 5)
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)

	if _, err := transport.RoundTrip(req); err == nil {
		t.Error("expected a context error")
	}
}

func TestIdempotentMethods(t *testing.T) {
	for _, method := range []string{"GET", "get", "HEAD", "OPTIONS"} {
		if !idempotent(method) {
			t.Errorf("%s should be idempotent", method)
		}
	}
	for _, method := range []string{"POST", "PUT", "PATCH", "DELETE"} {
		if idempotent(method) {
			t.Errorf("%s should not be retried", method)
		}
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	// Jitter adds at most 20%, so each attempt's delay sits in a known
	// window.
	for attempt, base := range map[int]time.Duration{
		1: 100 * time.Millisecond,
		2: 200 * time.Millisecond,
		3: 400 * time.Millisecond,
		9: retryMaxDelay,
	} {
		delay := backoff(attempt)
		if delay < base || delay > base+base/5 {
			t.Errorf("backoff(%d) = %v, expected [%v, %v]", attempt, delay, base, base+base/5)
		}
	}
}

func TestParseRetryAfter(t *testing.T) {
	mkResp := func(value string) *http.Response {
		resp := &http.Response{Header: http.Header{}}
		if value != "" {
			resp.Header.Set("Retry-After", value)
		}
		return resp
	}

	if got := parseRetryAfter(mkResp("3")); got != 3*time.Second {
		t.Errorf("expected 3s from seconds form, got %v", got)
	}
	if got := parseRetryAfter(mkResp("")); got != 0 {
		t.Errorf("expected 0 for missing header, got %v", got)
	}
	if got := parseRetryAfter(mkResp("soon")); got != 0 {
		t.Errorf("expected 0 for junk header, got %v", got)
	}

	at := time.Now().Add(2 * time.Second).UTC().Format(http.TimeFormat)
	if got := parseRetryAfter(mkResp(at)); got <= 0 || got > 2*time.Second {
		t.Errorf("expected a positive delay under 2s from date form, got %v", got)
	}

	if got := parseRetryAfter(mkResp(strconv.Itoa(-1))); got != 0 {
		t.Errorf("expected 0 for negative seconds, got %v", got)
	}
}
