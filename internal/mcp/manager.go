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
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/zhubby/moltis/internal/log"
)

// Server states reported by StatusAll.
const (
	// StateNameRunning means the handshake completed and the transport
	// is alive.
	StateNameRunning = "running"
	// StateNameDead means the handshake completed but the transport
	// died.
	StateNameDead = "dead"
	// StateNameConnecting means the transport is up but the handshake
	// has not completed.
	StateNameConnecting = "connecting"
	// StateNameStopped means no client exists for the server.
	StateNameStopped = "stopped"
)

// ServerStatus is a point-in-time view of a configured server.
type ServerStatus struct {
	// Name is the registry name of the server.
	Name string `json:"name"`

	// State is one of running, dead, connecting, stopped.
	State string `json:"state"`

	// Enabled mirrors the registry flag.
	Enabled bool `json:"enabled"`

	// ToolCount is the number of discovered tools.
	ToolCount int `json:"tool_count"`

	// Command, Args, Env, Transport and URL mirror the registry entry.
	Command   string            `json:"command"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	Transport TransportKind     `json:"transport"`
	URL       string            `json:"url,omitempty"`
}

// StatusProvider is the view of the manager the health monitor needs.
type StatusProvider interface {
	// StatusAll returns the status of every configured server.
	StatusAll() []ServerStatus

	// RestartServer stops and reconnects a server by name.
	RestartServer(ctx context.Context, name string) error
}

// Manager owns the lifecycle of all MCP server connections and keeps
// client state, discovered tools and the registry consistent.
type Manager struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	tools    map[string][]ToolDef
	registry *Registry
	logger   *slog.Logger
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Registry is the persisted server configuration.
	Registry *Registry

	// Logger is used for structured logging (optional).
	Logger *slog.Logger
}

// NewManager creates a manager over the given registry.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		clients:  make(map[string]*Client),
		tools:    make(map[string][]ToolDef),
		registry: cfg.Registry,
		logger:   logger,
	}, nil
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// StartEnabled starts every enabled server from the registry and
// returns the names of the servers that failed to start. Per-server
// errors are logged; one bad server never stops the rest.
func (m *Manager) StartEnabled(ctx context.Context) []string {
	enabled := m.registry.EnabledServers()

	names := make([]string, 0, len(enabled))
	for name := range enabled {
		names = append(names, name)
	}
	sort.Strings(names)

	var failed []string
	for _, name := range names {
		cfg := enabled[name]
		if err := m.StartServer(ctx, name, cfg); err != nil {
			m.logger.Warn("failed to start mcp server", log.ServerKey, name, log.Error(err))
			failed = append(failed, name)
		}
	}
	return failed
}

// StartServer connects to a single server, replacing any existing
// connection. The network work happens outside the manager lock.
func (m *Manager) StartServer(ctx context.Context, name string, cfg ServerConfig) error {
	m.StopServer(name)

	var (
		client *Client
		err    error
	)
	switch cfg.Transport {
	case TransportSSE:
		if cfg.URL == "" {
			return ErrInvalidConfig(fmt.Sprintf("sse transport for '%s' requires a url", name))
		}
		client, err = ConnectSSE(ctx, name, cfg.URL, m.logger)
	default:
		client, err = Connect(ctx, ClientConfig{
			ServerName: name,
			Command:    cfg.Command,
			Args:       cfg.Args,
			Env:        cfg.Env,
			Logger:     m.logger,
		})
	}
	if err != nil {
		return err
	}

	toolDefs, err := client.ListTools(ctx)
	if err != nil {
		client.Shutdown()
		return err
	}

	m.logger.Info("mcp server started",
		log.ServerKey, name,
		"tools", len(toolDefs),
	)

	m.mu.Lock()
	m.clients[name] = client
	m.tools[name] = toolDefs
	m.mu.Unlock()

	return nil
}

// StopServer shuts down a server connection if one exists.
func (m *Manager) StopServer(name string) {
	m.mu.Lock()
	client := m.clients[name]
	delete(m.clients, name)
	delete(m.tools, name)
	m.mu.Unlock()

	if client != nil {
		client.Shutdown()
	}
}

// RestartServer stops and reconnects a server using its registry
// configuration.
func (m *Manager) RestartServer(ctx context.Context, name string) error {
	cfg, ok := m.registry.Get(name)
	if !ok {
		return ErrServerNotFound(name)
	}
	return m.StartServer(ctx, name, cfg)
}

// StatusAll returns the status of every configured server, sorted by
// name.
func (m *Manager) StatusAll() []ServerStatus {
	snapshot := m.registry.Snapshot()

	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]ServerStatus, 0, len(snapshot))
	for name, cfg := range snapshot {
		state := StateNameStopped
		if client, ok := m.clients[name]; ok {
			switch client.State() {
			case StateReady:
				if client.IsAlive() {
					state = StateNameRunning
				} else {
					state = StateNameDead
				}
			case StateConnected:
				state = StateNameConnecting
			case StateClosed:
				state = StateNameStopped
			}
		}

		statuses = append(statuses, ServerStatus{
			Name:      name,
			State:     state,
			Enabled:   cfg.Enabled,
			ToolCount: len(m.tools[name]),
			Command:   cfg.Command,
			Args:      cfg.Args,
			Env:       cfg.Env,
			Transport: cfg.Transport,
			URL:       cfg.URL,
		})
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// Status returns the status of a single server.
func (m *Manager) Status(name string) (ServerStatus, bool) {
	for _, s := range m.StatusAll() {
		if s.Name == name {
			return s, true
		}
	}
	return ServerStatus{}, false
}

// ToolBridges returns bridges for every tool of every connected server.
func (m *Manager) ToolBridges() []*ToolBridge {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var bridges []*ToolBridge
	for name, client := range m.clients {
		bridges = append(bridges, BridgesForServer(name, m.tools[name], client)...)
	}
	return bridges
}

// ServerTools returns the discovered tools for a server.
func (m *Manager) ServerTools(name string) ([]ToolDef, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	defs, ok := m.tools[name]
	return defs, ok
}

// AddServer adds a server to the registry and optionally starts it.
func (m *Manager) AddServer(ctx context.Context, name string, cfg ServerConfig, start bool) error {
	if err := m.registry.Add(name, cfg); err != nil {
		return err
	}
	if start && cfg.Enabled {
		return m.StartServer(ctx, name, cfg)
	}
	return nil
}

// RemoveServer stops a server and removes it from the registry.
func (m *Manager) RemoveServer(name string) (bool, error) {
	m.StopServer(name)
	return m.registry.Remove(name)
}

// EnableServer enables a server in the registry and starts it.
func (m *Manager) EnableServer(ctx context.Context, name string) (bool, error) {
	ok, err := m.registry.Enable(name)
	if err != nil || !ok {
		return ok, err
	}
	cfg, _ := m.registry.Get(name)
	return true, m.StartServer(ctx, name, cfg)
}

// DisableServer stops a server and disables it in the registry.
func (m *Manager) DisableServer(name string) (bool, error) {
	m.StopServer(name)
	return m.registry.Disable(name)
}

// UpdateServer replaces a server's configuration, preserving its
// enabled flag, and restarts it if it was running.
func (m *Manager) UpdateServer(ctx context.Context, name string, cfg ServerConfig) error {
	if existing, ok := m.registry.Get(name); ok {
		cfg.Enabled = existing.Enabled
	}

	m.mu.RLock()
	_, wasRunning := m.clients[name]
	m.mu.RUnlock()

	if err := m.registry.Add(name, cfg); err != nil {
		return err
	}
	if wasRunning {
		return m.RestartServer(ctx, name)
	}
	return nil
}

// Reconcile aligns running servers with the registry file on disk.
// Removed or disabled servers are stopped, new enabled servers are
// started, and servers whose configuration changed are restarted.
func (m *Manager) Reconcile(ctx context.Context) error {
	reloaded, err := LoadRegistry(m.registry.Path(), m.logger)
	if err != nil {
		return err
	}

	previous := m.registry.Snapshot()
	current := reloaded.Snapshot()

	m.registry.replaceAll(current)

	m.mu.RLock()
	running := make(map[string]bool, len(m.clients))
	for name := range m.clients {
		running[name] = true
	}
	m.mu.RUnlock()

	for name := range previous {
		if _, ok := current[name]; !ok {
			m.logger.Info("mcp server removed from registry", log.ServerKey, name)
			m.StopServer(name)
		}
	}

	names := make([]string, 0, len(current))
	for name := range current {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := current[name]
		prev, existed := previous[name]

		switch {
		case !cfg.Enabled && running[name]:
			m.logger.Info("mcp server disabled in registry", log.ServerKey, name)
			m.StopServer(name)
		case cfg.Enabled && !running[name]:
			if err := m.StartServer(ctx, name, cfg); err != nil {
				m.logger.Warn("failed to start mcp server during reconcile", log.ServerKey, name, log.Error(err))
			}
		case cfg.Enabled && existed && !reflect.DeepEqual(prev, cfg):
			m.logger.Info("mcp server configuration changed", log.ServerKey, name)
			if err := m.StartServer(ctx, name, cfg); err != nil {
				m.logger.Warn("failed to restart mcp server during reconcile", log.ServerKey, name, log.Error(err))
			}
		}
	}

	return nil
}

// ShutdownAll stops every running server.
func (m *Manager) ShutdownAll() {
	m.mu.Lock()
	clients := make([]*Client, 0, len(m.clients))
	for _, client := range m.clients {
		clients = append(clients, client)
	}
	m.clients = make(map[string]*Client)
	m.tools = make(map[string][]ToolDef)
	m.mu.Unlock()

	for _, client := range clients {
		client.Shutdown()
	}
}
