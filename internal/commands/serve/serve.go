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

// Package serve implements the moltis daemon: it keeps enabled MCP
// servers connected, monitors their health, watches the registry file,
// and exposes status, metrics, and events over HTTP.
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zhubby/moltis/internal/config"
	"github.com/zhubby/moltis/internal/events"
	"github.com/zhubby/moltis/internal/log"
	"github.com/zhubby/moltis/internal/mcp"
	"github.com/zhubby/moltis/pkg/tools"
)

// NewCommand creates the 'serve' command.
func NewCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Moltis daemon",
		Long: `Run the Moltis daemon.

The daemon starts all enabled MCP servers, restarts them when they
crash, reloads the registry when mcp.json changes, and serves an HTTP
API:

  GET /metrics        Prometheus metrics
  GET /v1/mcp/status  MCP server statuses as JSON
  GET /v1/events      Server-sent events from the internal bus
  GET /healthz        Liveness probe

Examples:
  moltis serve
  moltis serve --listen 0.0.0.0:8844`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), listen)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "Address to bind (default from config.yaml)")

	return cmd
}

func run(ctx context.Context, listenOverride string) error {
	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}

	logger := log.New(&log.Config{
		Level:  settings.Log.Level,
		Format: log.Format(settings.Log.Format),
	})
	slog.SetDefault(logger)

	listen := settings.Serve.Listen
	if listenOverride != "" {
		listen = listenOverride
	}

	registryPath, err := config.RegistryPath()
	if err != nil {
		return err
	}
	registry, err := mcp.LoadRegistry(registryPath, logger)
	if err != nil {
		return err
	}

	manager, err := mcp.NewManager(mcp.ManagerConfig{
		Registry: registry,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer manager.ShutdownAll()

	toolRegistry := tools.NewRegistry()
	bus := events.NewBus()

	syncTools := func() {
		mcp.SyncTools(manager, toolRegistry, logger)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if failed := manager.StartEnabled(ctx); len(failed) > 0 {
		logger.Warn("some mcp servers failed to start", "servers", failed)
	}
	syncTools()

	monitor, err := mcp.NewHealthMonitor(mcp.HealthConfig{
		Provider:           manager,
		Bus:                bus,
		SyncTools:          syncTools,
		Logger:             logger,
		PollInterval:       settings.PollInterval(),
		MaxRestartAttempts: settings.Health.MaxRestartAttempts,
	})
	if err != nil {
		return err
	}
	go monitor.Run(ctx)

	watcher, err := mcp.NewWatcher(mcp.WatcherConfig{
		Manager:   manager,
		SyncTools: syncTools,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	defer watcher.Close()

	server := &http.Server{
		Addr:              listen,
		Handler:           newHandler(manager, bus, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("moltis daemon listening", "addr", listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown incomplete", log.Error(err))
	}

	return nil
}
