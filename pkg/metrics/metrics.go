// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exports Prometheus counters and gauges for the HTTP
// client pool and agent runs. A nil *Metrics is a valid no-op receiver,
// so callers can wire it in unconditionally and skip construction when
// metrics are disabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every registered collector behind its own Prometheus
// registry, so multiple independent instances (e.g. in tests) never
// collide on the process-wide default registry.
type Metrics struct {
	namespace string
	registry  *prometheus.Registry

	poolMax      *prometheus.GaugeVec
	poolTotal    *prometheus.GaugeVec
	poolActive   *prometheus.GaugeVec
	poolWaiting  *prometheus.GaugeVec
	poolHits     *prometheus.CounterVec
	poolMisses   *prometheus.CounterVec
	poolTimeouts *prometheus.CounterVec

	agentRuns        *prometheus.CounterVec
	agentRunDuration *prometheus.HistogramVec
	agentRunErrors   *prometheus.CounterVec
	agentActiveRuns  *prometheus.GaugeVec
	agentIterations  *prometheus.HistogramVec
}

// PoolStats is the subset of httppool.Stats this package records,
// named independently so pkg/metrics never needs to import pkg/httppool.
type PoolStats struct {
	Max      int
	Total    int
	Active   int
	Waiting  int
	Hits     int
	Misses   int
	Timeouts int
}

// New creates a Metrics instance with its own registry. namespace
// prefixes every metric name (e.g. "agentc"); pass "" to skip the
// namespace.
func New(namespace string) *Metrics {
	m := &Metrics{namespace: namespace, registry: prometheus.NewRegistry()}
	m.initPoolMetrics()
	m.initAgentMetrics()
	return m
}

func (m *Metrics) initPoolMetrics() {
	labels := []string{"pool"}
	m.poolMax = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "httppool", Name: "max_connections",
		Help: "Configured maximum pooled connections",
	}, labels)
	m.poolTotal = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "httppool", Name: "total_connections",
		Help: "Currently allocated pooled connections",
	}, labels)
	m.poolActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "httppool", Name: "active_connections",
		Help: "Pooled connections currently checked out",
	}, labels)
	m.poolWaiting = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "httppool", Name: "waiting_acquirers",
		Help: "Goroutines blocked waiting for a pooled connection",
	}, labels)
	m.poolHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "httppool", Name: "hits_total",
		Help: "Total pool acquisitions served by a reused connection",
	}, labels)
	m.poolMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "httppool", Name: "misses_total",
		Help: "Total pool acquisitions that created a new connection",
	}, labels)
	m.poolTimeouts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "httppool", Name: "timeouts_total",
		Help: "Total pool acquisitions that gave up waiting for a free slot",
	}, labels)

	m.registry.MustRegister(m.poolMax, m.poolTotal, m.poolActive, m.poolWaiting,
		m.poolHits, m.poolMisses, m.poolTimeouts)
}

func (m *Metrics) initAgentMetrics() {
	labels := []string{"agent_name"}
	m.agentRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "agent", Name: "runs_total",
		Help: "Total number of agent Run invocations",
	}, append(labels, "status"))
	m.agentRunDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "agent", Name: "run_duration_seconds",
		Help:    "Agent Run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
	}, labels)
	m.agentRunErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "agent", Name: "run_errors_total",
		Help: "Total number of agent Run calls that returned an error",
	}, labels)
	m.agentActiveRuns = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "agent", Name: "active_runs",
		Help: "Number of agent Run calls currently in flight",
	}, labels)
	m.agentIterations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "agent", Name: "run_iterations",
		Help:    "Number of ReAct iterations a Run call took",
		Buckets: prometheus.LinearBuckets(1, 1, 15),
	}, labels)

	m.registry.MustRegister(m.agentRuns, m.agentRunDuration, m.agentRunErrors,
		m.agentActiveRuns, m.agentIterations)
}

// RecordPoolStats snapshots a pool's current counters into the gauges
// and counters. name labels the pool (e.g. "default") when a process
// runs more than one.
func (m *Metrics) RecordPoolStats(name string, s PoolStats) {
	if m == nil {
		return
	}
	m.poolMax.WithLabelValues(name).Set(float64(s.Max))
	m.poolTotal.WithLabelValues(name).Set(float64(s.Total))
	m.poolActive.WithLabelValues(name).Set(float64(s.Active))
	m.poolWaiting.WithLabelValues(name).Set(float64(s.Waiting))
	m.poolHits.WithLabelValues(name).Add(float64(s.Hits))
	m.poolMisses.WithLabelValues(name).Add(float64(s.Misses))
	m.poolTimeouts.WithLabelValues(name).Add(float64(s.Timeouts))
}

// BeginAgentRun marks one more run in flight for agentName and returns
// a func to call when the run finishes, which records its duration,
// status, iteration count, and (if err != nil) an error.
func (m *Metrics) BeginAgentRun(agentName string) func(status string, iterations int, err error) {
	if m == nil {
		return func(string, int, error) {}
	}
	m.agentActiveRuns.WithLabelValues(agentName).Inc()
	start := time.Now()

	return func(status string, iterations int, err error) {
		m.agentActiveRuns.WithLabelValues(agentName).Dec()
		m.agentRuns.WithLabelValues(agentName, status).Inc()
		m.agentRunDuration.WithLabelValues(agentName).Observe(time.Since(start).Seconds())
		m.agentIterations.WithLabelValues(agentName).Observe(float64(iterations))
		if err != nil {
			m.agentRunErrors.WithLabelValues(agentName).Inc()
		}
	}
}

// Handler returns an http.Handler serving this registry in the
// Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
