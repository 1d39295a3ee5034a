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
	"github.com/spf13/cobra"
)

// NewMCPCommand creates the mcp command for MCP server management.
func NewMCPCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use: "mcp",
		Annotations: map[string]string{
			"group": "mcp",
		},
		Short: "Manage MCP (Model Context Protocol) servers",
		Long: `Manage MCP servers that provide tools to the Moltis agent.

Server configurations are stored in ~/.config/moltis/mcp.json.
A running 'moltis serve' daemon picks up registry changes automatically.

Commands:
  add       Register a new MCP server
  remove    Remove an MCP server
  enable    Enable an MCP server
  disable   Disable an MCP server
  list      List all registered MCP servers
  status    Show the status of MCP servers
  tools     List tools available from an MCP server
  test      Test an MCP server by connecting and listing its tools`,
	}

	cmd.AddCommand(newMCPAddCommand())
	cmd.AddCommand(newMCPRemoveCommand())
	cmd.AddCommand(newMCPEnableCommand())
	cmd.AddCommand(newMCPDisableCommand())
	cmd.AddCommand(newMCPListCommand())
	cmd.AddCommand(newMCPStatusCommand())
	cmd.AddCommand(newMCPToolsCommand())
	cmd.AddCommand(newMCPTestCommand())

	return cmd
}
