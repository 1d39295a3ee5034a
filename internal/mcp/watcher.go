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
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zhubby/moltis/internal/log"
)

// Watcher monitors the registry file for changes and reconciles the
// manager against it. External edits to mcp.json take effect without
// a restart.
type Watcher struct {
	// fsWatcher is the underlying filesystem watcher.
	fsWatcher *fsnotify.Watcher

	// manager is reconciled when the registry file changes.
	manager *Manager

	// syncTools re-registers tool bridges after a reconcile (optional).
	syncTools func()

	// logger is used for structured logging.
	logger *slog.Logger

	// debounceDelay coalesces bursts of file events.
	debounceDelay time.Duration

	// registryPath is the absolute path of the watched file.
	registryPath string

	// pending is the debounce timer for an in-flight reload.
	pending *time.Timer
	mu      sync.Mutex

	// ctx is the watcher's lifecycle context.
	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks the event processing goroutine.
	wg sync.WaitGroup
}

// WatcherConfig configures the registry file watcher.
type WatcherConfig struct {
	// Manager is reconciled when the registry file changes.
	Manager *Manager

	// SyncTools is called after each reconcile (optional).
	SyncTools func()

	// Logger is used for structured logging (optional).
	Logger *slog.Logger

	// DebounceDelay coalesces bursts of file events (defaults to 200ms).
	DebounceDelay time.Duration
}

// NewWatcher creates a watcher for the manager's registry file. The
// parent directory is watched so file replacement via rename is seen.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("manager is required")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	debounceDelay := cfg.DebounceDelay
	if debounceDelay == 0 {
		debounceDelay = 200 * time.Millisecond
	}

	registryPath, err := filepath.Abs(cfg.Manager.Registry().Path())
	if err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to resolve registry path: %w", err)
	}

	if err := fsWatcher.Add(filepath.Dir(registryPath)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch registry directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	w := &Watcher{
		fsWatcher:     fsWatcher,
		manager:       cfg.Manager,
		syncTools:     cfg.SyncTools,
		logger:        logger,
		debounceDelay: debounceDelay,
		registryPath:  registryPath,
		ctx:           ctx,
		cancel:        cancel,
	}

	w.wg.Add(1)
	go w.processEvents()

	w.logger.Debug("watching mcp registry file", "path", registryPath)

	return w, nil
}

// processEvents filters filesystem events down to the registry file
// and schedules debounced reconciles.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRegistryEvent(event) {
				continue
			}
			w.scheduleReconcile()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("registry watcher error", log.Error(err))

		case <-w.ctx.Done():
			return
		}
	}
}

// isRegistryEvent reports whether an event concerns the registry file.
func (w *Watcher) isRegistryEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	return abs == w.registryPath
}

// scheduleReconcile resets the debounce timer.
func (w *Watcher) scheduleReconcile() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceDelay, w.reconcile)
}

// reconcile reloads the registry and aligns running servers with it.
func (w *Watcher) reconcile() {
	w.mu.Lock()
	w.pending = nil
	w.mu.Unlock()

	w.logger.Info("mcp registry file changed, reconciling")

	if err := w.manager.Reconcile(w.ctx); err != nil {
		w.logger.Error("failed to reconcile mcp registry", log.Error(err))
		return
	}
	if w.syncTools != nil {
		w.syncTools()
	}
}

// Close shuts down the watcher.
func (w *Watcher) Close() error {
	w.cancel()

	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
		w.pending = nil
	}
	w.mu.Unlock()

	w.wg.Wait()

	return w.fsWatcher.Close()
}
