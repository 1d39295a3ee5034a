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

/*
Package mcp implements the Model Context Protocol (MCP) client side
for Moltis.

MCP lets agents use tools exposed by external servers, reached either
by spawning a child process and speaking JSON-RPC 2.0 over stdio, or
over HTTP for remote servers.

# Overview

The package consists of several components:

  - Transport: JSON-RPC framing, request/response correlation, liveness
  - Client: handshake state machine and tool operations for one server
  - Registry: persisted server configuration (mcp.json)
  - Manager: lifecycle of all server connections
  - ToolBridge: adapts MCP tools to the pkg/tools interface
  - HealthMonitor: polling, status events and auto-restart with backoff
  - Watcher: reconciles the manager when mcp.json changes on disk

# Server Lifecycle

Load the registry and start the enabled servers:

	registry, err := mcp.LoadRegistry(path, logger)
	mgr, err := mcp.NewManager(mcp.ManagerConfig{Registry: registry, Logger: logger})

	failed := mgr.StartEnabled(ctx)

Starting a server spawns the process (or connects over HTTP), performs
the initialize handshake, sends the initialized notification, and
fetches the server's tools.

# Tool Bridging

Each discovered tool becomes a ToolBridge named

	mcp__<server>__<tool>

which implements pkg/tools.Tool. SyncTools registers all bridges into
a tool registry, replacing previously bridged tools and leaving
builtins untouched:

	mcp.SyncTools(mgr, toolRegistry, logger)

# Health Monitoring

The health monitor polls server state, publishes changes on the event
bus under the "mcp.status" topic, and restarts dead servers with
exponential backoff (5s doubling to a 300s cap, giving up after 5
attempts until the server is next seen running).

# Server States

StatusAll reports one of:

  - running: handshake complete, transport alive
  - dead: handshake complete, transport lost
  - connecting: transport up, handshake pending
  - stopped: no connection
*/
package mcp
