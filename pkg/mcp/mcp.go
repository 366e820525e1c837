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

// Package mcp implements a Model Context Protocol client: connection
// handshake, tool discovery, and tool invocation over either the
// Streamable-HTTP or SSE transport in pkg/mcp/transport.
package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	mcpwire "github.com/mark3labs/mcp-go/mcp"

	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/httpclient"
	"github.com/openagentc/agentc/pkg/mcp/transport"
	"github.com/openagentc/agentc/pkg/tool"
)

// ProtocolVersion is the MCP protocol version this client negotiates.
const ProtocolVersion = "2024-11-05"

// ClientName and ClientVersion identify this client in the initialize
// handshake's clientInfo.
const (
	ClientName    = "agentc"
	ClientVersion = "0.1.0"
)

// DefaultPendingQueueCapacity re-exports the SSE transport's bounded
// pending-response queue size.
const DefaultPendingQueueCapacity = transport.DefaultPendingQueueCapacity

// ToolInfo is one tool discovered on a server.
type ToolInfo struct {
	Name        string
	Description string
	Parameters  string // JSON-stringified inputSchema
}

// Client is a connection to one MCP server.
type Client struct {
	serverURL string
	apiKey    string
	timeoutMs int

	mu        sync.Mutex
	transport transport.Transport
	nextID    int
	tools     []ToolInfo

	serverName    string
	serverVersion string
}

// New builds a Client for serverURL. Connect must be called before any
// other method.
func New(serverURL, apiKey string, timeoutMs int) *Client {
	return &Client{serverURL: serverURL, apiKey: apiKey, timeoutMs: timeoutMs}
}

// Connect opens the transport, performs the initialize handshake, and
// sends the notifications/initialized notification.
func (c *Client) Connect(ctx context.Context) error {
	tr := transport.NewForURL(c.serverURL, c.apiKey, httpclient.New())
	if sseTransport, ok := tr.(*transport.SSETransport); ok {
		if err := sseTransport.Start(ctx); err != nil {
			return agentcerr.Wrap(agentcerr.KindNotConnected, err, "starting sse transport for %s", c.serverURL)
		}
	}
	c.mu.Lock()
	c.transport = tr
	c.mu.Unlock()

	raw, err := c.call(ctx, "initialize", map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{},
		"clientInfo": map[string]any{
			"name":    ClientName,
			"version": ClientVersion,
		},
	})
	if err != nil {
		return agentcerr.Wrap(agentcerr.KindProtocol, err, "initializing mcp session with %s", c.serverURL)
	}

	var result struct {
		ProtocolVersion string                 `json:"protocolVersion"`
		ServerInfo      mcpwire.Implementation `json:"serverInfo"`
	}
	if err := json.Unmarshal(raw, &result); err == nil {
		c.mu.Lock()
		c.serverName = result.ServerInfo.Name
		c.serverVersion = result.ServerInfo.Version
		c.mu.Unlock()
	}

	// Per protocol, this is a notification: no id, and any response is ignored.
	if err := c.notify(ctx, "notifications/initialized", nil); err != nil {
		return agentcerr.Wrap(agentcerr.KindProtocol, err, "sending initialized notification to %s", c.serverURL)
	}
	return nil
}

// DiscoverTools sends tools/list and overwrites the local tool cache.
func (c *Client) DiscoverTools(ctx context.Context) ([]ToolInfo, error) {
	raw, err := c.call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Tools []mcpwire.Tool `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "parsing tools/list result from %s", c.serverURL)
	}

	tools := make([]ToolInfo, 0, len(result.Tools))
	for _, t := range result.Tools {
		params := `{"type":"object","properties":{}}`
		if data, err := json.Marshal(t.InputSchema); err == nil && len(data) > 0 && string(data) != "null" {
			params = string(data)
		}
		tools = append(tools, ToolInfo{Name: t.Name, Description: t.Description, Parameters: params})
	}

	c.mu.Lock()
	c.tools = tools
	c.mu.Unlock()
	return tools, nil
}

// CallTool sends tools/call and collapses the response's content array:
// text-typed items are joined with "\n" and wrapped as {"result": "..."};
// a response with no text content is returned verbatim.
func (c *Client) CallTool(ctx context.Context, name string, argsJSON string) (string, error) {
	var args map[string]any
	if argsJSON != "" {
		_ = json.Unmarshal([]byte(argsJSON), &args)
	}
	if args == nil {
		args = map[string]any{}
	}

	raw, err := c.call(ctx, "tools/call", map[string]any{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		return "", err
	}

	var result mcpwire.CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return string(raw), nil
	}

	var texts []string
	for _, item := range result.Content {
		if text, ok := item.(mcpwire.TextContent); ok {
			texts = append(texts, text.Text)
		}
	}
	if len(texts) == 0 {
		return string(raw), nil
	}
	collapsed, err := json.Marshal(map[string]string{"result": strings.Join(texts, "\n")})
	if err != nil {
		return "", agentcerr.Wrap(agentcerr.KindParse, err, "encoding collapsed tool result")
	}
	return string(collapsed), nil
}

// ListTools satisfies tool.MCPClient, discovering tools and translating
// the cache into tool.MCPToolInfo.
func (c *Client) ListTools(ctx context.Context) ([]tool.MCPToolInfo, error) {
	tools, err := c.DiscoverTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]tool.MCPToolInfo, len(tools))
	for i, t := range tools {
		out[i] = tool.MCPToolInfo{Name: t.Name, Description: t.Description, InputSchema: t.Parameters}
	}
	return out, nil
}

// Disconnect closes the underlying transport.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	tr := c.transport
	c.mu.Unlock()
	if tr == nil {
		return nil
	}
	return tr.Close()
}

func (c *Client) nextRequestID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonRPCError   `json:"error,omitempty"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// call sends a non-notification JSON-RPC request and returns its result.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	tr := c.transport
	timeoutMs := c.timeoutMs
	c.mu.Unlock()
	if tr == nil {
		return nil, agentcerr.New(agentcerr.KindNotConnected, "mcp client %s is not connected", c.serverURL)
	}

	id := c.nextRequestID()
	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindInvalidArg, err, "encoding %s request", method)
	}

	raw, err := tr.Request(ctx, string(body), id, timeoutMs)
	if err != nil {
		return nil, err
	}

	var resp jsonRPCResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "parsing %s response", method)
	}
	if resp.Error != nil {
		return nil, agentcerr.New(agentcerr.KindProtocol, "mcp %s error %d: %s", method, resp.Error.Code, resp.Error.Message)
	}
	return resp.Result, nil
}

// notify sends a JSON-RPC notification (no id) and ignores any response.
func (c *Client) notify(ctx context.Context, method string, params any) error {
	c.mu.Lock()
	tr := c.transport
	timeoutMs := c.timeoutMs
	c.mu.Unlock()
	if tr == nil {
		return agentcerr.New(agentcerr.KindNotConnected, "mcp client %s is not connected", c.serverURL)
	}

	body, err := json.Marshal(jsonRPCRequest{JSONRPC: "2.0", Method: method, Params: params})
	if err != nil {
		return agentcerr.Wrap(agentcerr.KindInvalidArg, err, "encoding %s notification", method)
	}
	_, err = tr.Request(ctx, string(body), 0, timeoutMs)
	return err
}
