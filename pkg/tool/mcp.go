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

package tool

import (
	"context"
	"encoding/json"
)

// MCPToolInfo is one tool an MCP server advertised via tools/list.
type MCPToolInfo struct {
	Name        string
	Description string
	InputSchema string // JSON-Schema, verbatim
}

// MCPClient is the subset of pkg/mcp's client that AddMCP needs. Kept
// as a consumer-side interface here so pkg/tool never imports pkg/mcp.
type MCPClient interface {
	ListTools(ctx context.Context) ([]MCPToolInfo, error)
	CallTool(ctx context.Context, name string, argsJSON string) (string, error)
}

// mcpTool adapts one remote MCP tool into the local Tool interface,
// forwarding Execute to the owning client's CallTool.
type mcpTool struct {
	client MCPClient
	info   MCPToolInfo
}

func (t *mcpTool) Name() string        { return t.info.Name }
func (t *mcpTool) Description() string { return t.info.Description }

func (t *mcpTool) Parameters() Parameters {
	return Parameters{Schema: t.info.InputSchema}
}

func (t *mcpTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	argsJSON, err := marshalArgs(args)
	if err != nil {
		return "", err
	}
	return t.client.CallTool(ctx, t.info.Name, argsJSON)
}

func marshalArgs(args map[string]any) (string, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
