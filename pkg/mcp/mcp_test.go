// Copyright 2025 Kadir Pekel
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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagentc/agentc/pkg/tool"
)

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int            `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

func newEchoToolServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req rpcEnvelope
		require.NoError(t, json.Unmarshal(body, &req))

		if req.ID == nil {
			w.WriteHeader(http.StatusOK)
			return
		}

		var result any
		switch req.Method {
		case "initialize":
			result = map[string]any{
				"protocolVersion": ProtocolVersion,
				"serverInfo":      map[string]any{"name": "echo-server", "version": "1.0.0"},
			}
		case "tools/list":
			result = map[string]any{
				"tools": []map[string]any{
					{
						"name":        "echo",
						"description": "echoes a message",
						"inputSchema": map[string]any{
							"type":       "object",
							"properties": map[string]any{"message": map[string]any{"type": "string"}},
						},
					},
				},
			}
		case "tools/call":
			result = map[string]any{
				"content": []map[string]any{{"type": "text", "text": "hi"}},
			}
		}

		resp, _ := json.Marshal(map[string]any{
			"jsonrpc": "2.0",
			"id":      *req.ID,
			"result":  result,
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write(resp)
	}))
}

func TestClientDiscoversAndCallsTool(t *testing.T) {
	srv := newEchoToolServer(t)
	defer srv.Close()

	client := New(srv.URL, "", 5000)
	require.NoError(t, client.Connect(context.Background()))

	tools, err := client.DiscoverTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)

	out, err := client.CallTool(context.Background(), "echo", `{"message":"hi"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"result":"hi"}`, out)
}

func TestRegistryGrowsByOneAfterAddMCP(t *testing.T) {
	srv := newEchoToolServer(t)
	defer srv.Close()

	client := New(srv.URL, "", 5000)
	require.NoError(t, client.Connect(context.Background()))

	registry := tool.New()
	require.NoError(t, registry.AddMCP(context.Background(), client))
	assert.Equal(t, 1, registry.Count())

	out, isErr := registry.Call(context.Background(), "echo", `{"message":"hi"}`)
	assert.False(t, isErr)
	assert.JSONEq(t, `{"result":"hi"}`, out)
}
