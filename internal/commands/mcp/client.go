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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/zhubby/moltis/internal/config"
	"github.com/zhubby/moltis/internal/mcp"
	"github.com/zhubby/moltis/pkg/httpclient"
)

// daemonClient calls the 'moltis serve' HTTP API for live server state.
type daemonClient struct {
	baseURL string
	client  *http.Client
}

func newDaemonClient() *daemonClient {
	listen := config.DefaultSettings().Serve.Listen
	if settings, err := config.LoadSettings(); err == nil {
		listen = settings.Serve.Listen
	}

	// Keep retries low so commands fall back to the registry file
	// quickly when no daemon is running.
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.RetryAttempts = 1
	cfg.UserAgent = "moltis-cli/1.0"
	client, err := httpclient.New(cfg)
	if err != nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	return &daemonClient{
		baseURL: "http://" + listen,
		client:  client,
	}
}

// liveStatuses fetches server statuses from a running daemon.
func (c *daemonClient) liveStatuses(ctx context.Context) ([]mcp.ServerStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/mcp/status", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("daemon request failed with status %d", resp.StatusCode)
	}

	var parsed struct {
		Servers []mcp.ServerStatus `json:"servers"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse daemon response: %w", err)
	}
	return parsed.Servers, nil
}
