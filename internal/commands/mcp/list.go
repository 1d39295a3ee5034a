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
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhubby/moltis/internal/mcp"
)

// newMCPListCommand creates the 'mcp list' command.
func newMCPListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all registered MCP servers",
		Long: `List all registered MCP servers and their configuration.

See also: moltis mcp add, moltis mcp status`,
		Example: `  # Example 1: List registered MCP servers
  moltis mcp list

  # Example 2: Get server list as JSON
  moltis mcp list --json

  # Example 3: Extract server names for scripting
  moltis mcp list --json | jq -r 'keys[]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPList(asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func runMCPList(asJSON bool) error {
	registry, err := openRegistry()
	if err != nil {
		return err
	}

	servers := registry.Snapshot()

	if asJSON {
		data, err := json.MarshalIndent(servers, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(servers) == 0 {
		fmt.Println("No MCP servers registered.")
		fmt.Println("\nTo add a server:")
		fmt.Println("  moltis mcp add <name> --command <cmd>")
		return nil
	}

	fmt.Printf("%-20s %-10s %-10s %s\n", "NAME", "ENABLED", "TRANSPORT", "TARGET")
	fmt.Println(strings.Repeat("-", 70))

	for _, name := range registry.List() {
		cfg := servers[name]

		enabled := "yes"
		if !cfg.Enabled {
			enabled = "no"
		}

		target := cfg.Command
		if len(cfg.Args) > 0 {
			target += " " + strings.Join(cfg.Args, " ")
		}
		if cfg.Transport == mcp.TransportSSE {
			target = cfg.URL
		}

		fmt.Printf("%-20s %-10s %-10s %s\n",
			truncate(name, 20),
			enabled,
			cfg.Transport,
			truncate(target, 40),
		)
	}

	return nil
}
