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
	"time"

	"github.com/openagentc/agentc/pkg/agent"
)

// runner is the subset of *agent.Agent that InstrumentedRun needs,
// kept narrow so this package doesn't have to depend on agent.Driver
// construction details.
type runner interface {
	Run(ctx context.Context, userInput string) (agent.Result, error)
}

// InstrumentedRun calls a.Run and records its outcome under
// agentName: active-run gauge, duration histogram, iteration
// histogram, per-status counter, and an error counter when Run itself
// errors (as opposed to finishing with a non-done Status).
func (m *Metrics) InstrumentedRun(ctx context.Context, a runner, agentName, userInput string) (agent.Result, error) {
	done := m.BeginAgentRun(agentName)
	result, err := a.Run(ctx, userInput)

	status := string(result.Status)
	if err != nil {
		status = "error"
	}
	done(status, result.Iterations, err)

	return result, err
}

// WatchPool calls stats every interval until ctx is cancelled,
// recording each snapshot under name. Intended to run in its own
// goroutine for the lifetime of the pool; the caller supplies stats as
// a thin closure over httppool.Pool.Stats so this package never
// depends on pkg/httppool directly:
//
//	go metrics.WatchPool(ctx, "default", func() metrics.PoolStats {
//	    s := pool.Stats()
//	    return metrics.PoolStats{Max: s.Max, Total: s.Total, Active: s.Active,
//	        Waiting: s.Waiting, Hits: s.Hits, Misses: s.Misses, Timeouts: s.Timeouts}
//	}, 5*time.Second)
func (m *Metrics) WatchPool(ctx context.Context, name string, stats func() PoolStats, interval time.Duration) {
	if m == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.RecordPoolStats(name, stats())
		}
	}
}
