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

package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/httpclient"
	"github.com/openagentc/agentc/pkg/sse"
)

// DefaultPendingQueueCapacity bounds the number of unclaimed JSON-RPC
// responses the SSE reader will buffer before dropping newly arrived ones.
const DefaultPendingQueueCapacity = 16

const pollInterval = 50 * time.Millisecond

// SSETransport is the stateful two-channel transport: a persistent GET
// delivers JSON-RPC responses out of band while individual requests are
// sent as separate POSTs to a server-advertised endpoint.
type SSETransport struct {
	baseURL string
	apiKey  string
	client  *httpclient.Client

	mu        sync.Mutex
	endpoint  string
	connected bool
	running   bool
	pending   map[int]string

	readyOnce sync.Once
	ready     chan struct{}
	closeOnce sync.Once
	done      chan struct{}
}

// NewSSE builds an SSE transport against baseURL. Start must be called
// before the first Request.
func NewSSE(baseURL, apiKey string, client *httpclient.Client) *SSETransport {
	if client == nil {
		client = httpclient.New()
	}
	return &SSETransport{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  client,
		pending: make(map[int]string),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the background reader and blocks until the server's
// endpoint event arrives or ctx is done.
func (t *SSETransport) Start(ctx context.Context) error {
	t.mu.Lock()
	t.running = true
	t.mu.Unlock()

	go t.readLoop(context.Background())

	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		return agentcerr.Wrap(agentcerr.KindTimeout, ctx.Err(), "waiting for sse endpoint event")
	case <-t.done:
		return agentcerr.New(agentcerr.KindNotConnected, "sse transport closed before endpoint was discovered")
	}
}

func (t *SSETransport) readLoop(ctx context.Context) {
	for {
		select {
		case <-t.done:
			return
		default:
		}

		if err := t.connectOnce(ctx); err != nil {
			slog.Debug("sse mcp transport disconnected", "url", t.baseURL, "error", err)
		}

		t.mu.Lock()
		t.connected = false
		running := t.running
		t.mu.Unlock()
		if !running {
			return
		}

		select {
		case <-time.After(time.Second):
		case <-t.done:
			return
		}
	}
}

func (t *SSETransport) connectOnce(ctx context.Context) error {
	pr, pw := io.Pipe()
	parserDone := make(chan struct{})

	go func() {
		defer close(parserDone)
		parser := sse.NewParser(bufio.NewReader(pr))
		for {
			ev, err := parser.Next()
			if err != nil {
				return
			}
			t.handleEvent(ev)
		}
	}()

	headers := map[string]string{"Accept": "text/event-stream"}
	if t.apiKey != "" {
		headers["Authorization"] = "Bearer " + t.apiKey
	}

	_, err := t.client.RequestStream(ctx, &httpclient.Request{
		URL:     t.baseURL,
		Method:  "GET",
		Headers: headers,
	}, func(chunk []byte) bool {
		_, werr := pw.Write(chunk)
		return werr == nil
	})
	pw.Close()
	<-parserDone
	return err
}

func (t *SSETransport) handleEvent(ev sse.Event) {
	if ev.Event == "endpoint" {
		resolved := resolveEndpoint(t.baseURL, ev.Data)
		t.mu.Lock()
		t.endpoint = resolved
		t.connected = true
		t.mu.Unlock()
		t.readyOnce.Do(func() { close(t.ready) })
		return
	}

	var probe struct {
		JSONRPC string `json:"jsonrpc"`
		ID      *int   `json:"id"`
	}
	if json.Unmarshal([]byte(ev.Data), &probe) != nil || probe.JSONRPC == "" || probe.ID == nil {
		return
	}
	t.storePending(*probe.ID, ev.Data)
}

func (t *SSETransport) storePending(id int, data string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.pending[id]; !exists && len(t.pending) >= DefaultPendingQueueCapacity {
		slog.Warn("sse mcp transport pending queue full, dropping response", "id", id, "capacity", DefaultPendingQueueCapacity)
		return
	}
	t.pending[id] = data
}

func (t *SSETransport) takePending(id int) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	return v, ok
}

func (t *SSETransport) currentEndpoint() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endpoint
}

func (t *SSETransport) isRunning() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *SSETransport) Request(ctx context.Context, jsonRPC string, requestID int, timeoutMs int) (string, error) {
	endpoint := t.currentEndpoint()
	if endpoint == "" {
		return "", agentcerr.New(agentcerr.KindNotConnected, "sse transport has no endpoint yet")
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if t.apiKey != "" {
		headers["Authorization"] = "Bearer " + t.apiKey
	}

	resp, err := t.client.Do(ctx, &httpclient.Request{
		URL:     endpoint,
		Method:  "POST",
		Headers: headers,
		Body:    []byte(jsonRPC),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Body) > 0 && looksLikeJSONRPCResponse(resp.Body) {
		return string(resp.Body), nil
	}
	if requestID == 0 {
		return "", nil
	}

	elapsed := 0
	for {
		if v, ok := t.takePending(requestID); ok {
			return v, nil
		}
		if !t.isRunning() {
			return "", agentcerr.New(agentcerr.KindNotConnected, "sse transport reader is not running")
		}
		select {
		case <-time.After(pollInterval):
			elapsed += int(pollInterval.Milliseconds())
		case <-ctx.Done():
			return "", agentcerr.Wrap(agentcerr.KindTimeout, ctx.Err(), "waiting for response id %d", requestID)
		}
		if timeoutMs > 0 && elapsed >= timeoutMs {
			return "", agentcerr.New(agentcerr.KindTimeout, "timed out waiting for response id %d", requestID)
		}
	}
}

func (t *SSETransport) Close() error {
	t.mu.Lock()
	t.running = false
	t.mu.Unlock()
	t.closeOnce.Do(func() { close(t.done) })
	return nil
}

func looksLikeJSONRPCResponse(body []byte) bool {
	var probe struct {
		JSONRPC string `json:"jsonrpc"`
	}
	return json.Unmarshal(body, &probe) == nil && probe.JSONRPC != ""
}

func resolveEndpoint(base, endpoint string) string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return endpoint
	}
	epURL, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return baseURL.ResolveReference(epURL).String()
}
