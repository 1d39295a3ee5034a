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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCaller records tool calls and returns a scripted result.
type fakeCaller struct {
	name         string
	receivedTool string
	receivedArgs map[string]any
	result       *ToolsCallResult
	err          error
}

func (f *fakeCaller) ServerName() string { return f.name }

func (f *fakeCaller) CallTool(_ context.Context, tool string, args map[string]any) (*ToolsCallResult, error) {
	f.receivedTool = tool
	f.receivedArgs = args
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func textResult(texts ...string) *ToolsCallResult {
	result := &ToolsCallResult{}
	for _, text := range texts {
		result.Content = append(result.Content, ToolContent{Type: "text", Text: text})
	}
	return result
}

func newTestBridge(def ToolDef, caller *fakeCaller) *ToolBridge {
	if caller.name == "" {
		caller.name = "fs"
	}
	return NewToolBridge(caller.name, def, caller)
}

func TestBridgeNameFormat(t *testing.T) {
	bridge := newTestBridge(ToolDef{Name: "read_file"}, &fakeCaller{name: "filesystem"})
	assert.Equal(t, "mcp__filesystem__read_file", bridge.Name())
	assert.Equal(t, "read_file", bridge.OriginalName())
	assert.Equal(t, "filesystem", bridge.ServerName())
}

func TestSplitBridgeName(t *testing.T) {
	server, tool, ok := SplitBridgeName("mcp__my-server__read_file")
	require.True(t, ok)
	assert.Equal(t, "my-server", server)
	assert.Equal(t, "read_file", tool)

	// Tool names containing double underscores survive the split.
	_, tool, ok = SplitBridgeName("mcp__srv__weird__tool")
	require.True(t, ok)
	assert.Equal(t, "weird__tool", tool)

	_, _, ok = SplitBridgeName("not_a_bridge")
	assert.False(t, ok)

	_, _, ok = SplitBridgeName("other__srv__tool")
	assert.False(t, ok)
}

func TestBridgeDescriptionFallback(t *testing.T) {
	withDesc := newTestBridge(ToolDef{Name: "read_file", Description: "Read a file"}, &fakeCaller{})
	assert.Equal(t, "Read a file", withDesc.Description())

	withoutDesc := newTestBridge(ToolDef{Name: "read_file"}, &fakeCaller{})
	assert.Equal(t, "MCP tool: read_file", withoutDesc.Description())
}

func TestBridgeSchemaPassthrough(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`)
	bridge := newTestBridge(ToolDef{Name: "read_file", InputSchema: schema}, &fakeCaller{})
	assert.JSONEq(t, string(schema), string(bridge.ParametersSchema()))
}

func TestExecuteStripsInternalMetadataKeys(t *testing.T) {
	caller := &fakeCaller{result: textResult("ok")}
	bridge := newTestBridge(ToolDef{Name: "read_file"}, caller)

	_, err := bridge.Execute(context.Background(), map[string]any{
		"path":             "/tmp/test.txt",
		"encoding":         "utf-8",
		"_session_key":     "abc123",
		"_accept_language": "en",
		"_conn_id":         "conn-42",
	})
	require.NoError(t, err)

	assert.Equal(t, "read_file", caller.receivedTool)
	assert.Equal(t, map[string]any{
		"path":     "/tmp/test.txt",
		"encoding": "utf-8",
	}, caller.receivedArgs)
}

func TestExecuteFlattensSingleJSONText(t *testing.T) {
	caller := &fakeCaller{result: textResult(`{"entries":["a","b"]}`)}
	bridge := newTestBridge(ToolDef{Name: "list"}, caller)

	result, err := bridge.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"entries": []any{"a", "b"}}, result)
}

func TestExecuteReturnsPlainStringForNonJSONText(t *testing.T) {
	caller := &fakeCaller{result: textResult("hello world")}
	bridge := newTestBridge(ToolDef{Name: "echo"}, caller)

	result, err := bridge.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "hello world", result)
}

func TestExecuteWrapsMultipleTexts(t *testing.T) {
	caller := &fakeCaller{result: textResult("one", "two")}
	bridge := newTestBridge(ToolDef{Name: "multi"}, caller)

	result, err := bridge.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"content": []string{"one", "two"}}, result)
}

func TestExecuteEmptyContentYieldsEmptyList(t *testing.T) {
	caller := &fakeCaller{result: &ToolsCallResult{}}
	bridge := newTestBridge(ToolDef{Name: "noop"}, caller)

	result, err := bridge.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"content": []string{}}, result)

	raw, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"content":[]}`, string(raw))
}

func TestExecuteToolErrorBecomesError(t *testing.T) {
	result := textResult("file not found", "check the path")
	result.IsError = true
	caller := &fakeCaller{result: result}
	bridge := newTestBridge(ToolDef{Name: "read_file"}, caller)

	_, err := bridge.Execute(context.Background(), map[string]any{"path": "/nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MCP tool error")
	assert.Contains(t, err.Error(), "file not found")
	assert.Contains(t, err.Error(), "check the path")
}

func TestExecutePropagatesCallError(t *testing.T) {
	caller := &fakeCaller{err: ErrRequestTimeout("tools/call", 30)}
	bridge := newTestBridge(ToolDef{Name: "slow"}, caller)

	_, err := bridge.Execute(context.Background(), nil)
	assert.Equal(t, ErrorCodeTimeout, CodeOf(err))
}

func TestExecuteIgnoresNonTextContent(t *testing.T) {
	caller := &fakeCaller{result: &ToolsCallResult{Content: []ToolContent{
		{Type: "image", Data: "base64data", MimeType: "image/png"},
		{Type: "text", Text: "caption"},
	}}}
	bridge := newTestBridge(ToolDef{Name: "render"}, caller)

	result, err := bridge.Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "caption", result)
}

func TestBridgesForServer(t *testing.T) {
	defs := []ToolDef{{Name: "a"}, {Name: "b"}}
	bridges := BridgesForServer("srv", defs, &fakeCaller{name: "srv"})

	require.Len(t, bridges, 2)
	assert.Equal(t, "mcp__srv__a", bridges[0].Name())
	assert.Equal(t, "mcp__srv__b", bridges[1].Name())
}
