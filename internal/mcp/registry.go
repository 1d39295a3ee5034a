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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"

	"github.com/zhubby/moltis/internal/log"
)

// TransportKind selects how a server is reached.
type TransportKind string

const (
	// TransportStdio spawns the server as a child process.
	TransportStdio TransportKind = "stdio"
	// TransportSSE connects to a remote server over HTTP.
	TransportSSE TransportKind = "sse"
)

// serverNamePattern validates registry server names.
var serverNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// ServerConfig is the persisted configuration for a single MCP server.
type ServerConfig struct {
	// Command is the executable to run for stdio transport.
	Command string `json:"command"`

	// Args are the command-line arguments.
	Args []string `json:"args,omitempty"`

	// Env are environment variables for the server process.
	Env map[string]string `json:"env,omitempty"`

	// Enabled controls whether the server is started automatically.
	// Defaults to true when absent from the file.
	Enabled bool `json:"enabled"`

	// Transport selects stdio or sse. Defaults to stdio.
	Transport TransportKind `json:"transport,omitempty"`

	// URL is the endpoint for sse transport.
	URL string `json:"url,omitempty"`
}

// UnmarshalJSON applies defaults for absent fields.
func (c *ServerConfig) UnmarshalJSON(data []byte) error {
	type alias ServerConfig
	aux := struct {
		*alias
		Enabled *bool `json:"enabled"`
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.Enabled = aux.Enabled == nil || *aux.Enabled
	if c.Transport == "" {
		c.Transport = TransportStdio
	}
	return nil
}

// Validate checks the configuration is usable for its transport.
func (c ServerConfig) Validate() error {
	switch c.Transport {
	case TransportSSE:
		if c.URL == "" {
			return ErrInvalidConfig("sse transport requires a url")
		}
	case TransportStdio, "":
		if c.Command == "" {
			return ErrInvalidConfig("stdio transport requires a command")
		}
	default:
		return ErrInvalidConfig(fmt.Sprintf("unknown transport %q", c.Transport))
	}
	return nil
}

// registryFile is the on-disk shape of the registry.
type registryFile struct {
	Servers map[string]ServerConfig `json:"servers"`
}

// Registry is the persisted set of configured MCP servers. Every
// mutation is written back to the registry file.
type Registry struct {
	mu      sync.RWMutex
	path    string
	servers map[string]ServerConfig
	logger  *slog.Logger
}

// LoadRegistry reads the registry file at path. A missing file yields
// an empty registry, not an error.
func LoadRegistry(path string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Registry{
		path:    path,
		servers: make(map[string]ServerConfig),
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("mcp registry file not found, using empty", "path", path)
			return r, nil
		}
		return nil, fmt.Errorf("failed to read mcp registry %s: %w", path, err)
	}

	var file registryFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse mcp registry %s: %w", path, err)
	}
	if file.Servers != nil {
		r.servers = file.Servers
	}

	return r, nil
}

// Path returns the registry file path.
func (r *Registry) Path() string {
	return r.path
}

// save writes the registry to disk atomically. Caller must hold r.mu.
func (r *Registry) save() error {
	file := registryFile{Servers: r.servers}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal mcp registry: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mcp-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close registry file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set registry permissions: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace registry file: %w", err)
	}

	r.logger.Info("saved mcp registry", "path", r.path)
	return nil
}

// Add inserts or replaces a server configuration and saves.
func (r *Registry) Add(name string, config ServerConfig) error {
	if !serverNamePattern.MatchString(name) {
		return ErrInvalidServerName(name)
	}
	if config.Transport == "" {
		config.Transport = TransportStdio
	}
	if err := config.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("adding mcp server", log.ServerKey, name, "command", config.Command)
	r.servers[name] = config
	return r.save()
}

// Remove deletes a server configuration. Returns false when the name
// is unknown; the file is only rewritten when something was removed.
func (r *Registry) Remove(name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.servers[name]; !ok {
		return false, nil
	}
	delete(r.servers, name)
	r.logger.Info("removed mcp server", log.ServerKey, name)
	return true, r.save()
}

// Enable marks a server enabled. Returns false for unknown names.
func (r *Registry) Enable(name string) (bool, error) {
	return r.setEnabled(name, true)
}

// Disable marks a server disabled. Returns false for unknown names.
func (r *Registry) Disable(name string) (bool, error) {
	return r.setEnabled(name, false)
}

func (r *Registry) setEnabled(name string, enabled bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cfg, ok := r.servers[name]
	if !ok {
		return false, nil
	}
	cfg.Enabled = enabled
	r.servers[name] = cfg
	return true, r.save()
}

// List returns all server names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.servers))
	for name := range r.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a server configuration by name.
func (r *Registry) Get(name string) (ServerConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.servers[name]
	return cfg, ok
}

// EnabledServers returns all enabled server configurations keyed by name.
func (r *Registry) EnabledServers() map[string]ServerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	enabled := make(map[string]ServerConfig)
	for name, cfg := range r.servers {
		if cfg.Enabled {
			enabled[name] = cfg
		}
	}
	return enabled
}

// replaceAll swaps the in-memory server set without saving. Used when
// the file on disk is the source of truth.
func (r *Registry) replaceAll(servers map[string]ServerConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.servers = servers
}

// Snapshot returns a copy of all server configurations keyed by name.
func (r *Registry) Snapshot() map[string]ServerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make(map[string]ServerConfig, len(r.servers))
	for name, cfg := range r.servers {
		snapshot[name] = cfg
	}
	return snapshot
}
