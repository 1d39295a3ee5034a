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

// Package tools provides the registry of agent-callable tools.
//
// Tools are discrete functions an LLM agent can invoke during a session.
// Each tool has a name, a description, a JSON Schema for its parameters,
// and an execution function. The registry tracks where each tool came from
// so that externally sourced tools (e.g. MCP bridges) can be replaced
// wholesale when their server restarts.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Tool represents an executable tool that can be called by an agent.
type Tool interface {
	// Name returns the unique identifier for this tool
	Name() string

	// Description returns a human-readable description of what the tool does
	Description() string

	// ParametersSchema returns the JSON Schema describing the tool's input
	ParametersSchema() json.RawMessage

	// Execute runs the tool with the given parameters and returns its result
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// Source identifies where a registered tool came from.
type Source string

const (
	// SourceBuiltin marks tools compiled into the binary.
	SourceBuiltin Source = "builtin"
	// SourceMCP marks tools bridged from an MCP server.
	SourceMCP Source = "mcp"
)

type entry struct {
	tool   Tool
	source Source
	// server is the owning MCP server name, empty for non-MCP tools.
	server string
}

// Registry maintains a collection of registered tools.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]entry
}

// NewRegistry creates a new tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]entry),
	}
}

// Register adds a built-in tool to the registry.
// Returns an error if a tool with the same name is already registered.
func (r *Registry) Register(tool Tool) error {
	return r.register(tool, SourceBuiltin, "")
}

// RegisterMCP adds an MCP-bridged tool, recording the server it came from.
// Unlike Register, an existing tool with the same name is replaced: a server
// restart re-registers its bridges over the previous generation.
func (r *Registry) RegisterMCP(tool Tool, server string) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}
	if tool.Name() == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = entry{tool: tool, source: SourceMCP, server: server}
	return nil
}

func (r *Registry) register(tool Tool, source Source, server string) error {
	if tool == nil {
		return fmt.Errorf("cannot register nil tool")
	}

	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}

	r.tools[name] = entry{tool: tool, source: source, server: server}
	return nil
}

// Unregister removes a tool from the registry.
// Returns false if no tool with that name was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return false
	}
	delete(r.tools, name)
	return true
}

// UnregisterMCP removes every MCP-sourced tool and returns how many were
// removed. Used by the sync pass before re-registering current bridges.
func (r *Registry) UnregisterMCP() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for name, e := range r.tools {
		if e.source == SourceMCP {
			delete(r.tools, name)
			removed++
		}
	}
	return removed
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.tools[name]
	if !exists {
		return nil, false
	}
	return e.tool, true
}

// Has checks if a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

// List returns all registered tool names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListTools returns all registered tools.
func (r *Registry) ListTools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, e := range r.tools {
		tools = append(tools, e.tool)
	}
	return tools
}

// ServerTools returns the names of tools registered for one MCP server.
func (r *Registry) ServerTools(server string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name, e := range r.tools {
		if e.source == SourceMCP && e.server == server {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
