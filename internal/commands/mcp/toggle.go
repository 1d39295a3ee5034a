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
	"fmt"

	"github.com/spf13/cobra"
)

// newMCPEnableCommand creates the 'mcp enable' command.
func newMCPEnableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable an MCP server",
		Long: `Enable an MCP server.

A running daemon starts the server when it sees the registry change.

Examples:
  moltis mcp enable github`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPToggle(args[0], true)
		},
	}

	return cmd
}

// newMCPDisableCommand creates the 'mcp disable' command.
func newMCPDisableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable an MCP server",
		Long: `Disable an MCP server without removing its configuration.

A running daemon stops the server when it sees the registry change.

Examples:
  moltis mcp disable github`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPToggle(args[0], false)
		},
	}

	return cmd
}

func runMCPToggle(name string, enable bool) error {
	registry, err := openRegistry()
	if err != nil {
		return err
	}

	var changed bool
	if enable {
		changed, err = registry.Enable(name)
	} else {
		changed, err = registry.Disable(name)
	}
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("MCP server '%s' not found", name)
	}

	if enable {
		fmt.Printf("Enabled MCP server: %s\n", name)
	} else {
		fmt.Printf("Disabled MCP server: %s\n", name)
	}
	return nil
}
