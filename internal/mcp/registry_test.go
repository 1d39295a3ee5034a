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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	registry, err := LoadRegistry(filepath.Join(t.TempDir(), "mcp.json"), testLogger())
	require.NoError(t, err)
	return registry
}

func TestLoadRegistryMissingFileIsEmpty(t *testing.T) {
	registry := testRegistry(t)
	assert.Empty(t, registry.List())
}

func TestRegistryAddAndRoundTrip(t *testing.T) {
	registry := testRegistry(t)

	err := registry.Add("fs", ServerConfig{
		Command: "mcp-server-filesystem",
		Args:    []string{"/tmp"},
		Env:     map[string]string{"FOO": "bar"},
		Enabled: true,
	})
	require.NoError(t, err)

	loaded, err := LoadRegistry(registry.Path(), testLogger())
	require.NoError(t, err)

	cfg, ok := loaded.Get("fs")
	require.True(t, ok)
	assert.Equal(t, "mcp-server-filesystem", cfg.Command)
	assert.Equal(t, []string{"/tmp"}, cfg.Args)
	assert.Equal(t, "bar", cfg.Env["FOO"])
	assert.True(t, cfg.Enabled)
	assert.Equal(t, TransportStdio, cfg.Transport)
}

func TestRegistryRemove(t *testing.T) {
	registry := testRegistry(t)
	require.NoError(t, registry.Add("srv", ServerConfig{Command: "echo", Enabled: true}))

	removed, err := registry.Remove("srv")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = registry.Remove("srv")
	require.NoError(t, err)
	assert.False(t, removed)

	// Removal persists.
	loaded, err := LoadRegistry(registry.Path(), testLogger())
	require.NoError(t, err)
	assert.Empty(t, loaded.List())
}

func TestRegistryEnableDisable(t *testing.T) {
	registry := testRegistry(t)
	require.NoError(t, registry.Add("srv", ServerConfig{Command: "echo", Enabled: true}))

	assert.Len(t, registry.EnabledServers(), 1)

	ok, err := registry.Disable("srv")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, registry.EnabledServers())

	ok, err = registry.Enable("srv")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, registry.EnabledServers(), 1)

	ok, err = registry.Enable("nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistryEnabledDefaultsTrueWhenAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	content := `{"servers":{"legacy":{"command":"echo"}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	registry, err := LoadRegistry(path, testLogger())
	require.NoError(t, err)

	cfg, ok := registry.Get("legacy")
	require.True(t, ok)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, TransportStdio, cfg.Transport)
}

func TestRegistryExplicitDisabledSurvivesLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	content := `{"servers":{"off":{"command":"echo","enabled":false}}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	registry, err := LoadRegistry(path, testLogger())
	require.NoError(t, err)

	cfg, ok := registry.Get("off")
	require.True(t, ok)
	assert.False(t, cfg.Enabled)
}

func TestRegistryCorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadRegistry(path, testLogger())
	assert.Error(t, err)
}

func TestRegistryListSorted(t *testing.T) {
	registry := testRegistry(t)
	require.NoError(t, registry.Add("zeta", ServerConfig{Command: "z", Enabled: true}))
	require.NoError(t, registry.Add("alpha", ServerConfig{Command: "a", Enabled: true}))

	assert.Equal(t, []string{"alpha", "zeta"}, registry.List())
}

func TestRegistryRejectsInvalidNames(t *testing.T) {
	registry := testRegistry(t)

	for _, name := range []string{"", "1abc", "has space", "-dash"} {
		err := registry.Add(name, ServerConfig{Command: "echo", Enabled: true})
		assert.Equal(t, ErrorCodeValidation, CodeOf(err), "name %q", name)
	}
}

func TestRegistryValidatesTransportConfig(t *testing.T) {
	registry := testRegistry(t)

	err := registry.Add("sse-no-url", ServerConfig{Transport: TransportSSE, Enabled: true})
	assert.Equal(t, ErrorCodeConfig, CodeOf(err))

	err = registry.Add("stdio-no-cmd", ServerConfig{Enabled: true})
	assert.Equal(t, ErrorCodeConfig, CodeOf(err))

	err = registry.Add("sse-ok", ServerConfig{Transport: TransportSSE, URL: "http://localhost:9999/mcp", Enabled: true})
	assert.NoError(t, err)
}

func TestRegistrySSEConfigRoundTrip(t *testing.T) {
	registry := testRegistry(t)
	require.NoError(t, registry.Add("remote", ServerConfig{
		Transport: TransportSSE,
		URL:       "http://localhost:9999/mcp",
		Enabled:   true,
	}))

	loaded, err := LoadRegistry(registry.Path(), testLogger())
	require.NoError(t, err)

	cfg, ok := loaded.Get("remote")
	require.True(t, ok)
	assert.Equal(t, TransportSSE, cfg.Transport)
	assert.Equal(t, "http://localhost:9999/mcp", cfg.URL)
}

func TestRegistrySnapshotIsACopy(t *testing.T) {
	registry := testRegistry(t)
	require.NoError(t, registry.Add("srv", ServerConfig{Command: "echo", Enabled: true}))

	snapshot := registry.Snapshot()
	delete(snapshot, "srv")

	_, ok := registry.Get("srv")
	assert.True(t, ok)
}
