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
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a category of MCP error.
type ErrorCode string

const (
	// ErrorCodeNotFound indicates a server was not found in the registry.
	ErrorCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrorCodeNotReady indicates a client has not completed the handshake.
	ErrorCodeNotReady ErrorCode = "NOT_READY"
	// ErrorCodeSpawnFailed indicates the server process could not be started.
	ErrorCodeSpawnFailed ErrorCode = "SPAWN_FAILED"
	// ErrorCodeHandshakeFailed indicates the initialize handshake failed.
	ErrorCodeHandshakeFailed ErrorCode = "HANDSHAKE_FAILED"
	// ErrorCodeTimeout indicates a request timed out waiting for a response.
	ErrorCodeTimeout ErrorCode = "TIMEOUT"
	// ErrorCodeConnectionClosed indicates the server connection closed.
	ErrorCodeConnectionClosed ErrorCode = "CONNECTION_CLOSED"
	// ErrorCodeRPC indicates the server returned a JSON-RPC error object.
	ErrorCodeRPC ErrorCode = "RPC_ERROR"
	// ErrorCodeValidation indicates a validation error.
	ErrorCodeValidation ErrorCode = "VALIDATION"
	// ErrorCodeConfig indicates a configuration error.
	ErrorCodeConfig ErrorCode = "CONFIG"
)

// Error is an MCP error that includes suggestions for resolution.
type Error struct {
	// Code is the error category.
	Code ErrorCode
	// Message is the primary error message.
	Message string
	// Detail provides additional context.
	Detail string
	// Suggestions are actionable steps to resolve the error.
	Suggestions []string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var sb strings.Builder

	sb.WriteString(e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}

	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithDetail adds detail to the error.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithSuggestions adds suggestions to the error.
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = suggestions
	return e
}

// WithCause adds an underlying cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// ErrServerNotFound creates an error for when a server is not in the registry.
func ErrServerNotFound(name string) *Error {
	return NewError(ErrorCodeNotFound, fmt.Sprintf("MCP server '%s' not found", name)).
		WithSuggestions(
			"Check the server name: moltis mcp list",
			fmt.Sprintf("Register the server: moltis mcp add %s --command <cmd>", name),
		)
}

// ErrNotReady creates an error for an operation on a client that has not
// completed the handshake.
func ErrNotReady(server string, state State) *Error {
	return NewError(ErrorCodeNotReady, fmt.Sprintf("MCP client for '%s' is not ready", server)).
		WithDetail(fmt.Sprintf("state: %s", state)).
		WithSuggestions(
			fmt.Sprintf("Check server status: moltis mcp status %s", server),
			fmt.Sprintf("Restart the server: moltis mcp restart %s", server),
		)
}

// ErrSpawnFailed creates an error for when a server process fails to start.
func ErrSpawnFailed(command string, cause error) *Error {
	return NewError(ErrorCodeSpawnFailed, fmt.Sprintf("failed to spawn MCP server: %s", command)).
		WithDetail(cause.Error()).
		WithCause(cause).
		WithSuggestions(
			"Verify the command is installed and in your PATH",
			fmt.Sprintf("Use an absolute path: --command /path/to/%s", command),
		)
}

// ErrHandshakeFailed creates an error for a failed initialize handshake.
func ErrHandshakeFailed(server string, cause error) *Error {
	return NewError(ErrorCodeHandshakeFailed, fmt.Sprintf("MCP initialize handshake with '%s' failed", server)).
		WithDetail(cause.Error()).
		WithCause(cause).
		WithSuggestions(
			"Verify the server implements the MCP protocol",
			fmt.Sprintf("Test the server: moltis mcp test %s", server),
		)
}

// ErrRequestTimeout creates an error for a request that received no response.
func ErrRequestTimeout(method string, seconds int) *Error {
	return NewError(ErrorCodeTimeout, fmt.Sprintf("MCP request '%s' timed out after %ds", method, seconds)).
		WithDetail("no response from server").
		WithSuggestions(
			"Check if the server is responding",
			"Check server stderr output for errors",
		)
}

// ErrConnectionClosed creates an error for a request aborted by a closed
// connection.
func ErrConnectionClosed(method string) *Error {
	return NewError(ErrorCodeConnectionClosed, fmt.Sprintf("connection closed while waiting for '%s' response", method)).
		WithSuggestions(
			"Check if the server process is still running: moltis mcp status",
			"Restart the server: moltis mcp restart <server>",
		)
}

// ErrRPC wraps a JSON-RPC error object returned by a server.
func ErrRPC(method string, rpcErr *RPCError) *Error {
	return NewError(ErrorCodeRPC, fmt.Sprintf("MCP error on '%s'", method)).
		WithDetail(rpcErr.Error()).
		WithCause(rpcErr)
}

// ErrInvalidServerName creates an error for an invalid server name.
func ErrInvalidServerName(name string) *Error {
	return NewError(ErrorCodeValidation, fmt.Sprintf("invalid server name '%s'", name)).
		WithDetail("names must start with a letter, contain only letters/numbers/hyphens/underscores, and be at most 64 characters").
		WithSuggestions(
			"Use only letters, numbers, hyphens (-), and underscores (_)",
			"Start the name with a letter",
		)
}

// ErrInvalidConfig creates an error for invalid server configuration.
func ErrInvalidConfig(detail string) *Error {
	return NewError(ErrorCodeConfig, "invalid MCP server configuration").
		WithDetail(detail).
		WithSuggestions(
			"Ensure all required fields are provided",
			"For SSE transport, a --url is required",
		)
}

// CodeOf extracts the ErrorCode from an error chain, or "" if the
// chain contains no *Error.
func CodeOf(err error) ErrorCode {
	var mcpErr *Error
	if errors.As(err, &mcpErr) {
		return mcpErr.Code
	}
	return ""
}
