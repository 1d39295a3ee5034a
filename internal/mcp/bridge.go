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
	"strings"
)

// BridgeNamePrefix prefixes every bridged MCP tool name.
const BridgeNamePrefix = "mcp"

// ToolBridge exposes a single MCP tool through the pkg/tools Tool
// interface so agents can call it like a builtin.
type ToolBridge struct {
	// prefixedName is the agent-facing name: mcp__<server>__<tool>.
	prefixedName string

	// originalName is the tool name on the MCP server.
	originalName string

	// serverName is the MCP server this tool belongs to.
	serverName string

	// description falls back to a generated one when the server
	// provides none.
	description string

	// inputSchema is the tool's JSON Schema, passed through verbatim.
	inputSchema json.RawMessage

	// client executes the tool calls.
	client ToolCaller
}

// NewToolBridge creates a bridge for a single MCP tool.
func NewToolBridge(serverName string, def ToolDef, client ToolCaller) *ToolBridge {
	description := def.Description
	if description == "" {
		description = fmt.Sprintf("MCP tool: %s", def.Name)
	}

	return &ToolBridge{
		prefixedName: fmt.Sprintf("%s__%s__%s", BridgeNamePrefix, serverName, def.Name),
		originalName: def.Name,
		serverName:   serverName,
		description:  description,
		inputSchema:  def.InputSchema,
		client:       client,
	}
}

// BridgesForServer creates bridges for all tools of a server.
func BridgesForServer(serverName string, defs []ToolDef, client ToolCaller) []*ToolBridge {
	bridges := make([]*ToolBridge, 0, len(defs))
	for _, def := range defs {
		bridges = append(bridges, NewToolBridge(serverName, def, client))
	}
	return bridges
}

// SplitBridgeName splits a prefixed name into server and tool parts.
// Returns ok=false for names that are not bridged MCP tool names.
func SplitBridgeName(name string) (server, tool string, ok bool) {
	parts := strings.SplitN(name, "__", 3)
	if len(parts) != 3 || parts[0] != BridgeNamePrefix {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// Name returns the prefixed tool name.
func (b *ToolBridge) Name() string {
	return b.prefixedName
}

// OriginalName returns the tool name on the MCP server.
func (b *ToolBridge) OriginalName() string {
	return b.originalName
}

// ServerName returns the MCP server this tool belongs to.
func (b *ToolBridge) ServerName() string {
	return b.serverName
}

// Description returns the tool description.
func (b *ToolBridge) Description() string {
	return b.description
}

// ParametersSchema returns the tool's input schema.
func (b *ToolBridge) ParametersSchema() json.RawMessage {
	return b.inputSchema
}

// Execute calls the tool on the MCP server and flattens the result.
//
// Parameter keys starting with "_" are runtime metadata injected by
// the agent runner, not part of the tool schema, and are stripped
// before the call.
func (b *ToolBridge) Execute(ctx context.Context, params map[string]any) (any, error) {
	arguments := make(map[string]any, len(params))
	for k, v := range params {
		if strings.HasPrefix(k, "_") {
			continue
		}
		arguments[k] = v
	}

	result, err := b.client.CallTool(ctx, b.originalName, arguments)
	if err != nil {
		return nil, err
	}

	texts := result.textContent()

	if result.IsError {
		return nil, fmt.Errorf("MCP tool error: %s", strings.Join(texts, "\n"))
	}

	// A single text item parses as JSON when possible, otherwise it is
	// returned as a plain string. Multiple items are wrapped.
	if len(texts) == 1 {
		var parsed any
		if err := json.Unmarshal([]byte(texts[0]), &parsed); err == nil {
			return parsed, nil
		}
		return texts[0], nil
	}
	return map[string]any{"content": texts}, nil
}
