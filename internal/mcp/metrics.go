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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	serverConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moltis_mcp_server_connections_total",
			Help: "Total successful MCP server connections",
		},
		[]string{"server"},
	)

	serversConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "moltis_mcp_servers_connected",
		Help: "Number of currently connected MCP servers",
	})

	serverRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moltis_mcp_server_restarts_total",
			Help: "Total automatic MCP server restarts",
		},
		[]string{"server"},
	)

	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moltis_mcp_tool_calls_total",
			Help: "Total MCP tool calls",
		},
		[]string{"server", "tool"},
	)

	toolCallErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moltis_mcp_tool_call_errors_total",
			Help: "Total failed MCP tool calls",
		},
		[]string{"server", "tool"},
	)

	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moltis_mcp_tool_call_duration_seconds",
			Help:    "Duration of MCP tool calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"server", "tool"},
	)

	unmatchedResponsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moltis_mcp_unmatched_responses_total",
			Help: "Total responses received for unknown request ids",
		},
		[]string{"server"},
	)
)
