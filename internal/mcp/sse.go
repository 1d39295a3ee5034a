// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/zhubby/moltis/internal/log"
	"github.com/zhubby/moltis/pkg/httpclient"
)

// sseRequestTimeout bounds a single HTTP round trip.
const sseRequestTimeout = 60 * time.Second

// sseLivenessTimeout bounds the IsAlive connectivity probe.
const sseLivenessTimeout = 5 * time.Second

// SSETransport talks JSON-RPC to a remote MCP server over HTTP.
// Each request is a single POST; liveness is probed with HEAD.
type SSETransport struct {
	// serverName identifies the server in logs.
	serverName string

	// httpClient performs all HTTP requests.
	httpClient *http.Client

	// url is the MCP endpoint.
	url string

	// nextID issues monotonically increasing request ids.
	nextID atomic.Uint64

	// logger is used for structured logging.
	logger *slog.Logger

	closed atomic.Bool
}

// SSEConfig configures an SSE transport.
type SSEConfig struct {
	// ServerName identifies the server in logs.
	ServerName string

	// URL is the MCP endpoint.
	URL string

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// NewSSETransport creates a transport pointing at the given MCP server URL.
func NewSSETransport(cfg SSEConfig) (*SSETransport, error) {
	if cfg.URL == "" {
		return nil, ErrInvalidConfig("SSE transport requires a url")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// JSON-RPC calls are POSTs, which the client never retries; HEAD
	// liveness probes still get retry coverage.
	clientCfg := httpclient.DefaultConfig()
	clientCfg.Timeout = sseRequestTimeout
	clientCfg.UserAgent = "moltis-mcp-client/1.0"
	client, err := httpclient.New(clientCfg)
	if err != nil {
		return nil, ErrInvalidConfig(err.Error())
	}

	return &SSETransport{
		serverName: cfg.ServerName,
		httpClient: client,
		url:        cfg.URL,
		logger:     logger.With(log.ServerKey, cfg.ServerName),
	}, nil
}

// Request sends a JSON-RPC request as an HTTP POST and decodes the response.
func (t *SSETransport) Request(ctx context.Context, method string, params any) (*Response, error) {
	id := t.nextID.Add(1)
	req, err := newRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	t.logger.Debug("sse client -> mcp server", log.MethodKey, method, "id", id, "url", t.url)

	body, err := t.post(ctx, req, method)
	if err != nil {
		return nil, err
	}

	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON-RPC response for %s: %w", method, err)
	}
	if resp.Error != nil {
		return nil, ErrRPC(method, resp.Error)
	}
	return &resp, nil
}

// Notify sends a JSON-RPC notification as an HTTP POST. Non-success
// status codes are logged but not returned as errors.
func (t *SSETransport) Notify(ctx context.Context, method string, params any) error {
	notif := Notification{
		JSONRPC: "2.0",
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("failed to marshal params for %s: %w", method, err)
		}
		notif.Params = data
	}

	t.logger.Debug("sse client -> mcp server (notification)", log.MethodKey, method, "url", t.url)

	payload, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build notification request for %s: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("notification POST to %s for %s failed: %w", t.url, method, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		t.logger.Warn("sse notification returned non-success",
			log.MethodKey, method,
			"status", httpResp.StatusCode,
		)
	}
	return nil
}

// post performs the HTTP round trip for a request and returns the
// response body.
func (t *SSETransport) post(ctx context.Context, req *Request, method string) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("POST to %s for %s failed: %w", t.url, method, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxLineBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body for %s: %w", method, err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, fmt.Errorf("MCP server returned HTTP %d for %s: %s", httpResp.StatusCode, method, string(body))
	}
	return body, nil
}

// IsAlive probes connectivity with a HEAD request.
func (t *SSETransport) IsAlive() bool {
	if t.closed.Load() {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), sseLivenessTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodHead, t.url, nil)
	if err != nil {
		return false
	}
	httpResp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return false
	}
	httpResp.Body.Close()
	return true
}

// Kill marks the transport closed. There is no persistent connection
// to tear down.
func (t *SSETransport) Kill() {
	t.closed.Store(true)
}
