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
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWatcher(t *testing.T, manager *Manager, syncTools func()) *Watcher {
	t.Helper()
	watcher, err := NewWatcher(WatcherConfig{
		Manager:       manager,
		SyncTools:     syncTools,
		Logger:        testLogger(),
		DebounceDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = watcher.Close() })
	return watcher
}

func TestWatcherRequiresManager(t *testing.T) {
	_, err := NewWatcher(WatcherConfig{})
	require.Error(t, err)
}

func TestWatcherReconcilesOnExternalWrite(t *testing.T) {
	manager := newTestManager(t)

	var mu sync.Mutex
	synced := 0
	newTestWatcher(t, manager, func() {
		mu.Lock()
		synced++
		mu.Unlock()
	})

	// Disabled so the reconcile registers the server without spawning.
	content := `{"servers":{"fs":{"command":"fs-server","enabled":false}}}`
	require.NoError(t, os.WriteFile(manager.Registry().Path(), []byte(content), 0o600))

	require.Eventually(t, func() bool {
		_, ok := manager.Registry().Get("fs")
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return synced > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherCoalescesBurstsOfWrites(t *testing.T) {
	manager := newTestManager(t)

	var mu sync.Mutex
	synced := 0
	newTestWatcher(t, manager, func() {
		mu.Lock()
		synced++
		mu.Unlock()
	})

	content := `{"servers":{"fs":{"command":"fs-server","enabled":false}}}`
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(manager.Registry().Path(), []byte(content), 0o600))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return synced > 0
	}, 2*time.Second, 10*time.Millisecond)

	// Let any stray debounce timers fire before counting.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, synced, 2, "burst of writes should coalesce")
}

func TestWatcherIgnoresSiblingFiles(t *testing.T) {
	manager := newTestManager(t)

	watcher := newTestWatcher(t, manager, nil)

	assert.False(t, watcher.isRegistryEvent(fsnotify.Event{
		Name: manager.Registry().Path() + ".bak",
		Op:   fsnotify.Write,
	}))
	assert.False(t, watcher.isRegistryEvent(fsnotify.Event{
		Name: manager.Registry().Path(),
		Op:   fsnotify.Chmod,
	}))
	assert.True(t, watcher.isRegistryEvent(fsnotify.Event{
		Name: manager.Registry().Path(),
		Op:   fsnotify.Write,
	}))
	assert.True(t, watcher.isRegistryEvent(fsnotify.Event{
		Name: manager.Registry().Path(),
		Op:   fsnotify.Rename,
	}))
}

func TestWatcherCloseIsClean(t *testing.T) {
	manager := newTestManager(t)
	watcher := newTestWatcher(t, manager, nil)

	require.NoError(t, watcher.Close())
	// Close is tolerated after the watcher already stopped.
	_ = watcher.Close()
}
