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
	"log/slog"
	"sync"
	"time"

	"github.com/zhubby/moltis/internal/log"
)

// State is the lifecycle state of an MCP client connection.
type State int

const (
	// StateConnected means the transport is up but the handshake has
	// not completed.
	StateConnected State = iota
	// StateReady means initialize completed and the initialized
	// notification was sent.
	StateReady
	// StateClosed means the connection was shut down.
	StateClosed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ToolCaller is the subset of Client the tool bridge depends on.
type ToolCaller interface {
	// ServerName returns the unique identifier of the server.
	ServerName() string

	// CallTool executes a tool on the server.
	CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolsCallResult, error)
}

// Client manages the MCP handshake and tool interactions with a single
// server over a Transport.
type Client struct {
	// serverName is the unique identifier for this server.
	serverName string

	// transport is the underlying JSON-RPC connection.
	transport Transport

	// logger is used for structured logging.
	logger *slog.Logger

	mu         sync.RWMutex
	state      State
	serverInfo *InitializeResult
	tools      []ToolDef
}

// ClientConfig configures an MCP client connection over stdio.
type ClientConfig struct {
	// ServerName is the unique identifier for this server.
	ServerName string

	// Command is the executable to run.
	Command string

	// Args are the command-line arguments.
	Args []string

	// Env are environment variables for the server process.
	Env map[string]string

	// Timeout is the per-request response wait (defaults to 30s).
	Timeout time.Duration

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// Connect spawns the server process and performs the MCP handshake.
// On handshake failure the process is killed and an error returned;
// the caller reconnects rather than reusing the client.
func Connect(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.ServerName == "" {
		return nil, ErrInvalidConfig("server name is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	transport, err := SpawnStdio(StdioConfig{
		ServerName: cfg.ServerName,
		Command:    cfg.Command,
		Args:       cfg.Args,
		Env:        cfg.Env,
		Timeout:    cfg.Timeout,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return finishConnect(ctx, cfg.ServerName, transport, logger)
}

// ConnectSSE connects to a remote MCP server over HTTP and performs
// the handshake.
func ConnectSSE(ctx context.Context, serverName, url string, logger *slog.Logger) (*Client, error) {
	if serverName == "" {
		return nil, ErrInvalidConfig("server name is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to mcp server via sse", log.ServerKey, serverName, "url", url)

	transport, err := NewSSETransport(SSEConfig{
		ServerName: serverName,
		URL:        url,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}

	return finishConnect(ctx, serverName, transport, logger)
}

// NewClientWithTransport wraps an existing transport and performs the
// handshake. Tests use this with in-memory transports.
func NewClientWithTransport(ctx context.Context, serverName string, transport Transport, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return finishConnect(ctx, serverName, transport, logger)
}

func finishConnect(ctx context.Context, serverName string, transport Transport, logger *slog.Logger) (*Client, error) {
	c := &Client{
		serverName: serverName,
		transport:  transport,
		logger:     logger.With(log.ServerKey, serverName),
		state:      StateConnected,
	}

	if err := c.initialize(ctx); err != nil {
		c.logger.Warn("mcp initialize handshake failed", log.Error(err))
		transport.Kill()
		return nil, ErrHandshakeFailed(serverName, err)
	}

	serverConnectionsTotal.WithLabelValues(serverName).Inc()
	serversConnected.Inc()

	return c, nil
}

// initialize performs the initialize request and sends the initialized
// notification.
func (c *Client) initialize(ctx context.Context) error {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    ClientCapabilities{},
		ClientInfo: ClientInfo{
			Name:    clientName,
			Version: clientVersion,
		},
	}

	resp, err := c.transport.Request(ctx, "initialize", params)
	if err != nil {
		return err
	}
	if len(resp.Result) == 0 {
		return fmt.Errorf("initialize returned no result")
	}

	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("failed to parse initialize result: %w", err)
	}

	c.logger.Info("mcp server initialized",
		"protocol", result.ProtocolVersion,
		"server_info", result.ServerInfo.Name,
	)

	if err := c.transport.Notify(ctx, "notifications/initialized", nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.serverInfo = &result
	c.state = StateReady
	c.mu.Unlock()

	return nil
}

// ensureReady guards operations that require a completed handshake.
func (c *Client) ensureReady() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateReady {
		return ErrNotReady(c.serverName, c.state)
	}
	return nil
}

// ServerName returns the unique identifier for this server.
func (c *Client) ServerName() string {
	return c.serverName
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ServerInfo returns the initialize result, or nil before the
// handshake completes.
func (c *Client) ServerInfo() *InitializeResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

// Tools returns the most recently fetched tool definitions.
func (c *Client) Tools() []ToolDef {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tools
}

// ListTools fetches the server's tools and caches them.
func (c *Client) ListTools(ctx context.Context) ([]ToolDef, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}

	resp, err := c.transport.Request(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, fmt.Errorf("tools/list returned no result")
	}

	var result ToolsListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to parse tools/list result: %w", err)
	}

	c.logger.Debug("fetched mcp tools", "count", len(result.Tools))

	c.mu.Lock()
	c.tools = result.Tools
	c.mu.Unlock()

	return result.Tools, nil
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any) (*ToolsCallResult, error) {
	if err := c.ensureReady(); err != nil {
		return nil, err
	}

	start := time.Now()
	params := ToolsCallParams{
		Name:      name,
		Arguments: arguments,
	}

	resp, err := c.transport.Request(ctx, "tools/call", params)
	if err != nil {
		toolCallErrorsTotal.WithLabelValues(c.serverName, name).Inc()
		return nil, err
	}
	if len(resp.Result) == 0 {
		toolCallErrorsTotal.WithLabelValues(c.serverName, name).Inc()
		return nil, fmt.Errorf("tools/call returned no result")
	}

	var result ToolsCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		toolCallErrorsTotal.WithLabelValues(c.serverName, name).Inc()
		return nil, fmt.Errorf("failed to parse tools/call result: %w", err)
	}

	toolCallsTotal.WithLabelValues(c.serverName, name).Inc()
	toolCallDuration.WithLabelValues(c.serverName, name).Observe(time.Since(start).Seconds())

	return &result, nil
}

// IsAlive reports whether the underlying transport is usable.
func (c *Client) IsAlive() bool {
	return c.transport.IsAlive()
}

// Shutdown tears down the connection and marks the client closed.
func (c *Client) Shutdown() {
	c.mu.Lock()
	alreadyClosed := c.state == StateClosed
	c.state = StateClosed
	c.mu.Unlock()

	if alreadyClosed {
		return
	}

	c.transport.Kill()
	serversConnected.Dec()
}
