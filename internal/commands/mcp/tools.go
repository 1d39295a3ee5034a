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
	"time"

	"github.com/spf13/cobra"

	"github.com/zhubby/moltis/internal/log"
	"github.com/zhubby/moltis/internal/mcp"
)

// newMCPToolsCommand creates the 'mcp tools' command.
func newMCPToolsCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "tools <name>",
		Short: "List tools available from an MCP server",
		Long: `List all tools exposed by an MCP server.

The server is started, queried, and shut down again.

Examples:
  moltis mcp tools github
  moltis mcp tools github --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPTools(args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")

	return cmd
}

func runMCPTools(name string, asJSON bool) error {
	client, err := connectConfigured(name)
	if err != nil {
		return err
	}
	defer client.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	toolDefs, err := client.ListTools(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		data, err := json.MarshalIndent(map[string]any{"tools": toolDefs}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(toolDefs) == 0 {
		fmt.Println("No tools available from this server.")
		return nil
	}

	fmt.Printf("Tools from %s:\n\n", name)
	for _, t := range toolDefs {
		fmt.Printf("  mcp__%s__%s\n", name, t.Name)
		if t.Description != "" {
			desc := wrapText(t.Description, 60)
			for _, line := range strings.Split(desc, "\n") {
				fmt.Printf("    %s\n", line)
			}
		}
		fmt.Println()
	}

	return nil
}

// connectConfigured looks a server up in the registry and connects to
// it over its configured transport.
func connectConfigured(name string) (*mcp.Client, error) {
	registry, err := openRegistry()
	if err != nil {
		return nil, err
	}

	cfg, ok := registry.Get(name)
	if !ok {
		return nil, mcp.ErrServerNotFound(name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := log.New(log.FromEnv())
	if cfg.Transport == mcp.TransportSSE {
		return mcp.ConnectSSE(ctx, name, cfg.URL, logger)
	}
	return mcp.Connect(ctx, mcp.ClientConfig{
		ServerName: name,
		Command:    cfg.Command,
		Args:       cfg.Args,
		Env:        cfg.Env,
		Logger:     logger,
	})
}
