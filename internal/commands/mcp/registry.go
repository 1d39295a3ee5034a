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

	"github.com/zhubby/moltis/internal/mcp"
)

// newMCPAddCommand creates the 'mcp add' command.
func newMCPAddCommand() *cobra.Command {
	var (
		command   string
		args      []string
		env       []string
		transport string
		url       string
		disabled  bool
	)

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new MCP server",
		Long: `Register a new MCP server.

The server configuration is saved to ~/.config/moltis/mcp.json. A
running 'moltis serve' daemon picks up the new server automatically.

Examples:
  moltis mcp add github --command npx --args "-y" --args "@modelcontextprotocol/server-github"
  moltis mcp add my-server --command python --args "server.py" --env "DEBUG=true"
  moltis mcp add remote --transport sse --url http://localhost:9200/rpc`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, cmdArgs []string) error {
			return runMCPAdd(cmdArgs[0], command, args, env, transport, url, disabled)
		},
	}

	cmd.Flags().StringVar(&command, "command", "", "Command to run (required for stdio transport)")
	cmd.Flags().StringArrayVar(&args, "args", nil, "Command arguments (can be repeated)")
	cmd.Flags().StringArrayVar(&env, "env", nil, "Environment variables in KEY=VALUE format (can be repeated)")
	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport kind: stdio or sse")
	cmd.Flags().StringVar(&url, "url", "", "Endpoint URL (required for sse transport)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Register without enabling the server")

	return cmd
}

func runMCPAdd(name, command string, args, env []string, transport, url string, disabled bool) error {
	envMap, err := parseEnvVars(env)
	if err != nil {
		return err
	}

	registry, err := openRegistry()
	if err != nil {
		return err
	}

	cfg := mcp.ServerConfig{
		Command:   command,
		Args:      args,
		Env:       envMap,
		Enabled:   !disabled,
		Transport: mcp.TransportKind(transport),
		URL:       url,
	}
	if err := registry.Add(name, cfg); err != nil {
		return err
	}

	fmt.Printf("Registered MCP server: %s\n", name)
	if disabled {
		fmt.Println("\nTo enable the server:")
		fmt.Printf("  moltis mcp enable %s\n", name)
	} else {
		fmt.Println("\nTo verify connectivity:")
		fmt.Printf("  moltis mcp test %s\n", name)
	}

	return nil
}

// newMCPRemoveCommand creates the 'mcp remove' command.
func newMCPRemoveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove an MCP server",
		Long: `Remove an MCP server from the registry.

A running daemon stops the server when it sees the registry change.

Examples:
  moltis mcp remove github`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPRemove(args[0])
		},
	}

	return cmd
}

func runMCPRemove(name string) error {
	registry, err := openRegistry()
	if err != nil {
		return err
	}

	removed, err := registry.Remove(name)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("MCP server '%s' not found", name)
	}

	fmt.Printf("Removed MCP server: %s\n", name)
	return nil
}
