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
	"log/slog"

	"github.com/zhubby/moltis/internal/log"
	"github.com/zhubby/moltis/pkg/tools"
)

// SyncTools replaces every MCP tool in the agent tool registry with
// the manager's current bridges. Builtin tools are untouched.
func SyncTools(m *Manager, registry *tools.Registry, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	removed := registry.UnregisterMCP()
	bridges := m.ToolBridges()

	registered := 0
	for _, bridge := range bridges {
		if err := registry.RegisterMCP(bridge, bridge.ServerName()); err != nil {
			logger.Warn("failed to register mcp tool",
				log.ToolKey, bridge.Name(),
				log.Error(err),
			)
			continue
		}
		registered++
	}

	logger.Debug("synced mcp tools",
		"removed", removed,
		"registered", registered,
	)
}
