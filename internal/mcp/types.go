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
	"strconv"
)

// ProtocolVersion is the MCP protocol version this client implements.
const ProtocolVersion = "2024-11-05"

// clientName and clientVersion identify this client during the handshake.
const (
	clientName    = "moltis"
	clientVersion = "0.1.0"
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	// JSONRPC is always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// ID correlates the request with its response. Numeric for
	// requests we originate, but servers may echo strings.
	ID json.RawMessage `json:"id"`

	// Method is the JSON-RPC method name.
	Method string `json:"method"`

	// Params is the raw parameters payload, omitted when nil.
	Params json.RawMessage `json:"params,omitempty"`
}

// newRequest builds a request with a numeric id. A nil params value
// omits the params field entirely.
func newRequest(id uint64, method string, params any) (*Request, error) {
	req := &Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(strconv.FormatUint(id, 10)),
		Method:  method,
	}
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params for %s: %w", method, err)
		}
		req.Params = data
	}
	return req, nil
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	// JSONRPC is always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// ID echoes the id of the request this response answers.
	ID json.RawMessage `json:"id"`

	// Result is the raw result payload on success.
	Result json.RawMessage `json:"result,omitempty"`

	// Error is set when the server rejected the request.
	Error *RPCError `json:"error,omitempty"`
}

// RPCError is the error object of a JSON-RPC 2.0 response.
type RPCError struct {
	// Code is the JSON-RPC error code.
	Code int64 `json:"code"`

	// Message is a short description of the error.
	Message string `json:"message"`

	// Data carries optional additional error information.
	Data json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("code=%d message=%s", e.Code, e.Message)
}

// Notification is a JSON-RPC 2.0 notification (a request without an id).
type Notification struct {
	// JSONRPC is always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// Method is the JSON-RPC method name.
	Method string `json:"method"`

	// Params is the raw parameters payload, omitted when nil.
	Params json.RawMessage `json:"params,omitempty"`
}

// idKey derives the pending-table key from a raw JSON-RPC id.
// Numeric and string ids map to distinct keys.
func idKey(id json.RawMessage) string {
	return string(id)
}

// ClientCapabilities are the capabilities we advertise during initialize.
type ClientCapabilities struct {
	Roots    json.RawMessage `json:"roots,omitempty"`
	Sampling json.RawMessage `json:"sampling,omitempty"`
}

// InitializeParams are the parameters for the initialize request.
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ClientInfo         `json:"clientInfo"`
}

// ClientInfo identifies the client to the server.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the server's response to initialize.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
}

// ServerCapabilities describe what the server supports.
type ServerCapabilities struct {
	Tools     *ToolsCapability `json:"tools,omitempty"`
	Resources json.RawMessage  `json:"resources,omitempty"`
	Prompts   json.RawMessage  `json:"prompts,omitempty"`
}

// ToolsCapability describes tool-related server capabilities.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ServerInfo identifies the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// ToolDef describes a tool exposed by an MCP server.
type ToolDef struct {
	// Name is the tool name on the server.
	Name string `json:"name"`

	// Description is optional human-readable documentation.
	Description string `json:"description,omitempty"`

	// InputSchema is the JSON Schema for the tool's arguments,
	// passed through verbatim.
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolsListResult is the result of a tools/list request.
type ToolsListResult struct {
	Tools []ToolDef `json:"tools"`
}

// ToolsCallParams are the parameters for a tools/call request.
type ToolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolContent is a single content item in a tools/call result.
// The Type field discriminates which other fields are populated:
// "text" uses Text, "image" uses Data and MimeType, "resource"
// uses Resource.
type ToolContent struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	Data     string          `json:"data,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Resource json.RawMessage `json:"resource,omitempty"`
}

// ToolsCallResult is the result of a tools/call request.
type ToolsCallResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// textContent collects the text of all "text" content items. The
// slice is never nil so an empty result flattens to an empty JSON
// array, not null.
func (r *ToolsCallResult) textContent() []string {
	texts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Type == "text" {
			texts = append(texts, c.Text)
		}
	}
	return texts
}
