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
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhubby/moltis/internal/mcp"
)

// newMCPStatusCommand creates the 'mcp status' command.
func newMCPStatusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status [name]",
		Short: "Show the status of MCP servers",
		Long: `Show the status of MCP servers.

Live state (running, dead, connecting) comes from a running
'moltis serve' daemon. Without one, configured servers are
reported as stopped.

Examples:
  moltis mcp status
  moltis mcp status github
  moltis mcp status --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runMCPStatus(name, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func runMCPStatus(name string, asJSON bool) error {
	statuses, err := fetchStatuses()
	if err != nil {
		return err
	}

	if name != "" {
		var match *mcp.ServerStatus
		for i := range statuses {
			if statuses[i].Name == name {
				match = &statuses[i]
				break
			}
		}
		if match == nil {
			return fmt.Errorf("MCP server '%s' not found", name)
		}
		return printStatus(*match, asJSON)
	}

	if asJSON {
		data, err := json.MarshalIndent(map[string]any{"servers": statuses}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(statuses) == 0 {
		fmt.Println("No MCP servers registered.")
		return nil
	}

	fmt.Printf("%-20s %-12s %-10s %s\n", "NAME", "STATE", "ENABLED", "TOOLS")
	fmt.Println(strings.Repeat("-", 55))
	for _, s := range statuses {
		enabled := "yes"
		if !s.Enabled {
			enabled = "no"
		}
		fmt.Printf("%-20s %-12s %-10s %d\n", truncate(s.Name, 20), s.State, enabled, s.ToolCount)
	}

	return nil
}

// fetchStatuses prefers live state from the daemon and falls back to
// the registry on disk.
func fetchStatuses() ([]mcp.ServerStatus, error) {
	ctx := context.Background()

	if statuses, err := newDaemonClient().liveStatuses(ctx); err == nil {
		return statuses, nil
	}

	registry, err := openRegistry()
	if err != nil {
		return nil, err
	}

	servers := registry.Snapshot()
	statuses := make([]mcp.ServerStatus, 0, len(servers))
	for _, name := range registry.List() {
		cfg := servers[name]
		statuses = append(statuses, mcp.ServerStatus{
			Name:      name,
			State:     mcp.StateNameStopped,
			Enabled:   cfg.Enabled,
			Command:   cfg.Command,
			Args:      cfg.Args,
			Env:       cfg.Env,
			Transport: cfg.Transport,
			URL:       cfg.URL,
		})
	}
	return statuses, nil
}

func printStatus(s mcp.ServerStatus, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("MCP Server: %s\n\n", s.Name)
	fmt.Printf("State:     %s\n", s.State)
	fmt.Printf("Enabled:   %t\n", s.Enabled)
	fmt.Printf("Tools:     %d\n", s.ToolCount)
	fmt.Printf("Transport: %s\n", s.Transport)

	fmt.Println("\nConfiguration:")
	if s.Transport == mcp.TransportSSE {
		fmt.Printf("  URL: %s\n", s.URL)
	} else {
		fmt.Printf("  Command: %s\n", s.Command)
		if len(s.Args) > 0 {
			fmt.Printf("  Args:    %s\n", strings.Join(s.Args, " "))
		}
		if len(s.Env) > 0 {
			keys := make([]string, 0, len(s.Env))
			for k := range s.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Printf("  Env:     %s\n", strings.Join(keys, ", "))
		}
	}

	return nil
}
