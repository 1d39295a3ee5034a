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
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newMCPTestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <name>",
		Short: "Test MCP server connectivity",
		Long: `Test an MCP server by connecting and verifying it responds.

The test will:
1. Check the server configuration
2. Connect and perform the MCP protocol handshake
3. List available tools
4. Shut the connection down

Examples:
  moltis mcp test github`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCPTest(args[0])
		},
	}

	return cmd
}

func runMCPTest(name string) error {
	fmt.Printf("Testing MCP server: %s\n\n", name)

	fmt.Print("1. Checking server configuration... ")
	registry, err := openRegistry()
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	if _, ok := registry.Get(name); !ok {
		fmt.Println("FAILED")
		return fmt.Errorf("MCP server '%s' not found", name)
	}
	fmt.Println("OK")

	fmt.Print("2. Connecting and performing handshake... ")
	start := time.Now()
	client, err := connectConfigured(name)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	defer client.Shutdown()
	fmt.Printf("OK (%dms)\n", time.Since(start).Milliseconds())

	if info := client.ServerInfo(); info != nil && info.ServerInfo.Name != "" {
		fmt.Printf("   Server: %s %s\n", info.ServerInfo.Name, info.ServerInfo.Version)
	}

	fmt.Print("3. Listing tools... ")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	toolDefs, err := client.ListTools(ctx)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Printf("OK (%d tools found)\n", len(toolDefs))

	if len(toolDefs) > 0 {
		fmt.Println("\n   Available tools:")
		for _, t := range toolDefs {
			desc := t.Description
			if len(desc) > 50 {
				desc = desc[:47] + "..."
			}
			fmt.Printf("   - %s: %s\n", t.Name, desc)
		}
	}

	fmt.Print("\n4. Shutting down... ")
	client.Shutdown()
	fmt.Println("OK")

	fmt.Printf("\nTest PASSED for MCP server: %s\n", name)
	return nil
}
