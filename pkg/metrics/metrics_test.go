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

package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagentc/agentc/pkg/agent"
)

func TestNilMetricsRecordPoolStatsIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.RecordPoolStats("default", PoolStats{Max: 10}) })
}

func TestRecordPoolStatsSetsGauges(t *testing.T) {
	m := New("agentc")
	m.RecordPoolStats("default", PoolStats{Max: 10, Total: 4, Active: 2, Waiting: 1, Hits: 5, Misses: 3, Timeouts: 1})

	assert.Equal(t, float64(10), testutil.ToFloat64(m.poolMax.WithLabelValues("default")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.poolActive.WithLabelValues("default")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.poolHits.WithLabelValues("default")))
}

func TestBeginAgentRunRecordsDurationAndStatus(t *testing.T) {
	m := New("agentc")
	done := m.BeginAgentRun("assistant")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.agentActiveRuns.WithLabelValues("assistant")))

	time.Sleep(time.Millisecond)
	done("done", 3, nil)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.agentActiveRuns.WithLabelValues("assistant")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.agentRuns.WithLabelValues("assistant", "done")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.agentRunErrors.WithLabelValues("assistant")))
}

func TestBeginAgentRunRecordsErrorCounter(t *testing.T) {
	m := New("agentc")
	done := m.BeginAgentRun("assistant")
	done("error", 1, assert.AnError)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.agentRunErrors.WithLabelValues("assistant")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.agentRuns.WithLabelValues("assistant", "error")))
}

func TestNilMetricsBeginAgentRunReturnsNoOpDone(t *testing.T) {
	var m *Metrics
	done := m.BeginAgentRun("assistant")
	assert.NotPanics(t, func() { done("done", 1, nil) })
}

type stubRunner struct {
	result agent.Result
	err    error
}

func (s stubRunner) Run(ctx context.Context, userInput string) (agent.Result, error) {
	return s.result, s.err
}

func TestInstrumentedRunRecordsStatusFromResult(t *testing.T) {
	m := New("agentc")
	r := stubRunner{result: agent.Result{Status: agent.StatusDone, Iterations: 2}}

	result, err := m.InstrumentedRun(context.Background(), r, "assistant", "hi")
	require.NoError(t, err)
	assert.Equal(t, agent.StatusDone, result.Status)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.agentRuns.WithLabelValues("assistant", "done")))
}

func TestInstrumentedRunRecordsErrorStatusOnFailure(t *testing.T) {
	m := New("agentc")
	r := stubRunner{err: assert.AnError}

	_, err := m.InstrumentedRun(context.Background(), r, "assistant", "hi")
	assert.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.agentRuns.WithLabelValues("assistant", "error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.agentRunErrors.WithLabelValues("assistant")))
}

func TestWatchPoolRecordsSnapshotsUntilCancelled(t *testing.T) {
	m := New("agentc")
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	stats := func() PoolStats {
		calls++
		return PoolStats{Total: calls}
	}

	done := make(chan struct{})
	go func() {
		m.WatchPool(ctx, "default", stats, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchPool did not stop after cancel")
	}
	assert.GreaterOrEqual(t, calls, 1)
}

func TestHandlerServesPrometheusFormat(t *testing.T) {
	m := New("agentc")
	m.RecordPoolStats("default", PoolStats{Max: 5})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "agentc_httppool_max_connections")
}

func TestNilMetricsHandlerReturnsServiceUnavailable(t *testing.T) {
	var m *Metrics
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
