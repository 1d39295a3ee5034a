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
	"time"

	"github.com/zhubby/moltis/internal/events"
	"github.com/zhubby/moltis/internal/log"
)

// StatusTopic is the event bus topic for server status changes.
const StatusTopic = "mcp.status"

// Health monitor defaults.
const (
	DefaultPollInterval       = 30 * time.Second
	DefaultMaxRestartAttempts = 5
	DefaultBaseBackoff        = 5 * time.Second
	DefaultMaxBackoff         = 300 * time.Second
)

// restartState tracks auto-restart attempts for one server.
type restartState struct {
	count       int
	lastAttempt time.Time
}

// HealthMonitor polls server health, publishes status changes on the
// event bus, and auto-restarts dead servers with exponential backoff.
type HealthMonitor struct {
	provider StatusProvider
	bus      *events.Bus
	// syncTools re-registers tool bridges after a successful restart.
	syncTools func()
	logger    *slog.Logger

	pollInterval time.Duration
	maxAttempts  int
	baseBackoff  time.Duration
	maxBackoff   time.Duration

	// now is the clock, replaceable in tests.
	now func() time.Time

	prevStates    map[string]string
	restartStates map[string]*restartState
}

// HealthConfig configures a HealthMonitor.
type HealthConfig struct {
	// Provider supplies server statuses and restarts.
	Provider StatusProvider

	// Bus receives status-change events (optional).
	Bus *events.Bus

	// SyncTools is called after a successful auto-restart (optional).
	SyncTools func()

	// Logger is used for structured logging (optional).
	Logger *slog.Logger

	// PollInterval is how often health is checked (defaults to 30s).
	PollInterval time.Duration

	// MaxRestartAttempts limits consecutive restarts (defaults to 5).
	MaxRestartAttempts int

	// BaseBackoff is the first restart delay (defaults to 5s).
	BaseBackoff time.Duration

	// MaxBackoff caps the restart delay (defaults to 300s).
	MaxBackoff time.Duration

	// Now is the clock (defaults to time.Now). Tests inject a fake.
	Now func() time.Time
}

// NewHealthMonitor creates a health monitor.
func NewHealthMonitor(cfg HealthConfig) (*HealthMonitor, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("status provider is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxRestartAttempts == 0 {
		cfg.MaxRestartAttempts = DefaultMaxRestartAttempts
	}
	if cfg.BaseBackoff == 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &HealthMonitor{
		provider:      cfg.Provider,
		bus:           cfg.Bus,
		syncTools:     cfg.SyncTools,
		logger:        logger,
		pollInterval:  cfg.PollInterval,
		maxAttempts:   cfg.MaxRestartAttempts,
		baseBackoff:   cfg.BaseBackoff,
		maxBackoff:    cfg.MaxBackoff,
		now:           cfg.Now,
		prevStates:    make(map[string]string),
		restartStates: make(map[string]*restartState),
	}, nil
}

// Run polls until the context is cancelled. A panic in a single tick
// is recovered so the monitor keeps running.
func (h *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.safeTick(ctx)
		}
	}
}

func (h *HealthMonitor) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic in mcp health tick", "panic", r)
		}
	}()
	h.tick(ctx)
}

// tick performs one health poll over all servers.
func (h *HealthMonitor) tick(ctx context.Context) {
	statuses := h.provider.StatusAll()

	changed := false
	for i := range statuses {
		s := &statuses[i]
		prev, seen := h.prevStates[s.Name]
		if !seen || prev != s.State {
			changed = true

			if prev == StateNameRunning && s.State == StateNameDead && s.Enabled {
				h.maybeRestart(ctx, s)
			}

			if s.State == StateNameRunning {
				delete(h.restartStates, s.Name)
			}
		}
		h.prevStates[s.Name] = s.State
	}

	// Drop tracking for servers no longer configured.
	known := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		known[s.Name] = true
	}
	for name := range h.prevStates {
		if !known[name] {
			delete(h.prevStates, name)
		}
	}
	for name := range h.restartStates {
		if !known[name] {
			delete(h.restartStates, name)
		}
	}

	if changed && h.bus != nil {
		h.bus.Publish(StatusTopic, statuses)
	}
}

// maybeRestart attempts an auto-restart when the backoff window has
// elapsed and the attempt budget is not exhausted.
func (h *HealthMonitor) maybeRestart(ctx context.Context, s *ServerStatus) {
	rs, ok := h.restartStates[s.Name]
	if !ok {
		rs = &restartState{lastAttempt: h.now().Add(-h.maxBackoff)}
		h.restartStates[s.Name] = rs
	}

	if rs.count > h.maxAttempts {
		return
	}
	if rs.count == h.maxAttempts {
		h.logger.Warn("mcp server exceeded max restart attempts, giving up",
			log.ServerKey, s.Name,
		)
		rs.count++ // prevent repeating this warning
		return
	}

	backoff := h.backoffFor(rs.count)
	if h.now().Sub(rs.lastAttempt) < backoff {
		return
	}

	h.logger.Info("auto-restarting dead mcp server",
		log.ServerKey, s.Name,
		"attempt", rs.count+1,
	)
	rs.count++
	rs.lastAttempt = h.now()

	if err := h.provider.RestartServer(ctx, s.Name); err != nil {
		h.logger.Warn("mcp auto-restart failed", log.ServerKey, s.Name, log.Error(err))
		return
	}

	serverRestartsTotal.WithLabelValues(s.Name).Inc()
	if h.syncTools != nil {
		h.syncTools()
	}
	h.logger.Info("mcp server auto-restarted", log.ServerKey, s.Name)
}

// backoffFor returns the restart delay after count prior attempts:
// base * 2^count, capped at the maximum.
func (h *HealthMonitor) backoffFor(count int) time.Duration {
	backoff := h.baseBackoff
	for i := 0; i < count; i++ {
		backoff *= 2
		if backoff >= h.maxBackoff {
			return h.maxBackoff
		}
	}
	if backoff > h.maxBackoff {
		return h.maxBackoff
	}
	return backoff
}
