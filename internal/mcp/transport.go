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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zhubby/moltis/internal/log"
)

// DefaultRequestTimeout is the default wait for a JSON-RPC response.
const DefaultRequestTimeout = 30 * time.Second

// maxLineBytes bounds a single JSON-RPC line from the server.
const maxLineBytes = 10 * 1024 * 1024

// Transport abstracts the JSON-RPC connection to an MCP server.
type Transport interface {
	// Request sends a JSON-RPC request and waits for the matching response.
	Request(ctx context.Context, method string, params any) (*Response, error)

	// Notify sends a JSON-RPC notification (no response expected).
	Notify(ctx context.Context, method string, params any) error

	// IsAlive reports whether the underlying connection is usable.
	IsAlive() bool

	// Kill tears down the connection and fails all in-flight requests.
	Kill()
}

// StdioTransport talks JSON-RPC to a child process over newline-delimited
// stdin/stdout.
type StdioTransport struct {
	// serverName identifies the server in logs and metrics.
	serverName string

	// logger is used for structured logging.
	logger *slog.Logger

	// timeout is the per-request response wait.
	timeout time.Duration

	// cmd is the child process. Nil when the transport was built over
	// injected pipes.
	cmd *exec.Cmd

	// stdin is the server's stdin. Writes are serialized by writeMu
	// so concurrent requests never interleave bytes on the wire.
	stdin   io.WriteCloser
	writeMu sync.Mutex

	// nextID issues monotonically increasing request ids.
	nextID atomic.Uint64

	// pending maps request id keys to single-use response channels.
	pendingMu sync.Mutex
	pending   map[string]chan *Response

	// done gates new requests once the transport is killed.
	done     chan struct{}
	killOnce sync.Once
	alive    atomic.Bool
}

// StdioConfig configures a stdio transport.
type StdioConfig struct {
	// ServerName identifies the server in logs and metrics.
	ServerName string

	// Command is the executable to run.
	Command string

	// Args are the command-line arguments.
	Args []string

	// Env are additional environment variables for the process,
	// merged over the parent environment.
	Env map[string]string

	// Timeout is the per-request response wait (defaults to 30s).
	Timeout time.Duration

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// SpawnStdio starts the server process and begins reading its stdout.
func SpawnStdio(cfg StdioConfig) (*StdioTransport, error) {
	if cfg.Command == "" {
		return nil, ErrInvalidConfig("command is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(log.ServerKey, cfg.ServerName)

	logger.Info("spawning mcp server process",
		"command", cfg.Command,
		"args", cfg.Args,
	)

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, ErrSpawnFailed(cfg.Command, err)
	}

	t := newStdioTransport(cfg.ServerName, stdout, stdin, cfg.Timeout, logger)
	t.cmd = cmd

	go t.readStderr(stderr)
	go func() {
		// Reap the process and mark the transport dead when it exits.
		_ = cmd.Wait()
		t.alive.Store(false)
	}()

	return t, nil
}

// newStdioTransport builds a transport over raw pipes and starts the
// reader goroutine. Tests use this directly with in-memory pipes.
func newStdioTransport(serverName string, stdout io.Reader, stdin io.WriteCloser, timeout time.Duration, logger *slog.Logger) *StdioTransport {
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &StdioTransport{
		serverName: serverName,
		logger:     logger,
		timeout:    timeout,
		stdin:      stdin,
		pending:    make(map[string]chan *Response),
		done:       make(chan struct{}),
	}
	t.alive.Store(true)

	go t.readLoop(stdout)

	return t
}

// readStderr logs server stderr lines.
func (t *StdioTransport) readStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		t.logger.Warn("mcp server stderr", "stderr", string(line))
	}
}

// readLoop reads newline-delimited JSON from the server's stdout and
// dispatches responses to their pending request channels.
func (t *StdioTransport) readLoop(stdout io.Reader) {
	defer func() {
		t.alive.Store(false)
		t.failPending()
	}()

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var resp Response
		if err := json.Unmarshal(line, &resp); err != nil || len(resp.ID) == 0 {
			// Notifications and malformed lines are tolerated.
			t.logger.Debug("mcp server sent non-response line", "line", string(line))
			continue
		}

		key := idKey(resp.ID)
		t.pendingMu.Lock()
		ch, ok := t.pending[key]
		if ok {
			delete(t.pending, key)
		}
		t.pendingMu.Unlock()

		if !ok {
			t.logger.Warn("received response for unknown request id", "id", key)
			unmatchedResponsesTotal.WithLabelValues(t.serverName).Inc()
			continue
		}
		ch <- &resp
	}

	if err := scanner.Err(); err != nil {
		t.logger.Warn("error reading from mcp server stdout", log.Error(err))
	} else {
		t.logger.Debug("mcp server stdout closed")
	}
}

// failPending removes and closes every pending channel so blocked
// callers fail promptly.
func (t *StdioTransport) failPending() {
	t.pendingMu.Lock()
	channels := make([]chan *Response, 0, len(t.pending))
	for key, ch := range t.pending {
		channels = append(channels, ch)
		delete(t.pending, key)
	}
	t.pendingMu.Unlock()

	for _, ch := range channels {
		close(ch)
	}
}

// removePending drops a single pending entry, typically after a timeout.
func (t *StdioTransport) removePending(key string) {
	t.pendingMu.Lock()
	delete(t.pending, key)
	t.pendingMu.Unlock()
}

// Request sends a JSON-RPC request and waits for the matching response.
// A response carrying an error object is returned as an error.
func (t *StdioTransport) Request(ctx context.Context, method string, params any) (*Response, error) {
	select {
	case <-t.done:
		return nil, ErrConnectionClosed(method)
	default:
	}

	id := t.nextID.Add(1)
	req, err := newRequest(id, method, params)
	if err != nil {
		return nil, err
	}
	key := idKey(req.ID)

	ch := make(chan *Response, 1)
	t.pendingMu.Lock()
	t.pending[key] = ch
	t.pendingMu.Unlock()

	payload, err := json.Marshal(req)
	if err != nil {
		t.removePending(key)
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	payload = append(payload, '\n')

	t.logger.Debug("client -> mcp server", log.MethodKey, method, "id", id)

	t.writeMu.Lock()
	_, writeErr := t.stdin.Write(payload)
	t.writeMu.Unlock()
	if writeErr != nil {
		t.removePending(key)
		return nil, fmt.Errorf("failed to write request for %s: %w", method, writeErr)
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, ErrConnectionClosed(method)
		}
		if resp.Error != nil {
			return nil, ErrRPC(method, resp.Error)
		}
		return resp, nil
	case <-timer.C:
		t.removePending(key)
		return nil, ErrRequestTimeout(method, int(t.timeout.Seconds()))
	case <-ctx.Done():
		t.removePending(key)
		return nil, ctx.Err()
	}
}

// Notify sends a JSON-RPC notification.
func (t *StdioTransport) Notify(ctx context.Context, method string, params any) error {
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

	payload, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	payload = append(payload, '\n')

	t.logger.Debug("client -> mcp server (notification)", log.MethodKey, method)

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.stdin.Write(payload); err != nil {
		return fmt.Errorf("failed to write notification for %s: %w", method, err)
	}
	return nil
}

// IsAlive reports whether the server process is still running.
func (t *StdioTransport) IsAlive() bool {
	return t.alive.Load()
}

// Kill terminates the server process and fails all in-flight requests.
func (t *StdioTransport) Kill() {
	t.killOnce.Do(func() {
		t.alive.Store(false)
		close(t.done)
		_ = t.stdin.Close()
		if t.cmd != nil && t.cmd.Process != nil {
			_ = t.cmd.Process.Kill()
		}
		t.failPending()
	})
}
