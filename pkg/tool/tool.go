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

// Package tool defines the Tool interface agents invoke and the
// registry that names, schemas, and dispatches to them.
package tool

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/registry"
)

// Field describes one parameter when a tool's schema is synthesized
// from a structured list rather than supplied as a raw JSON-Schema
// string.
type Field struct {
	Name        string
	Type        string // "string", "number", "integer", "boolean", "object", "array"
	Description string
	Required    bool
	Enum        []string
}

// Parameters is a tool's input shape: either a pre-built JSON-Schema
// string (used verbatim) or a Fields list synthesized into one.
type Parameters struct {
	Schema string
	Fields []Field
}

// Tool is one capability an agent can call by name.
type Tool interface {
	Name() string
	Description() string
	Parameters() Parameters

	// Execute runs the tool. Errors are surfaced to the model as an
	// is_error tool_result, never abort the agent loop.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry names, schemas, and dispatches to a set of Tools.
type Registry struct {
	base *registry.BaseRegistry[Tool]
}

// New returns an empty tool registry.
func New() *Registry {
	return &Registry{base: registry.New[Tool]()}
}

// Add registers t. A second registration under the same name is
// rejected, unlike pkg/llm's provider registry.
func (r *Registry) Add(t Tool) error {
	return r.base.Register(t.Name(), t)
}

// AddMCP discovers every tool the client exposes and registers one
// wrapper per tool, whose Execute forwards to client.CallTool.
func (r *Registry) AddMCP(ctx context.Context, client MCPClient) error {
	infos, err := client.ListTools(ctx)
	if err != nil {
		return agentcerr.Wrap(agentcerr.KindBackend, err, "list MCP tools")
	}
	for _, info := range infos {
		if err := r.Add(&mcpTool{client: client, info: info}); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the tool registered under name.
func (r *Registry) Find(name string) (Tool, bool) {
	return r.base.Get(name)
}

// List returns every registered tool, in registration order.
func (r *Registry) List() []Tool {
	return r.base.List()
}

// Count reports how many tools are registered.
func (r *Registry) Count() int {
	return r.base.Count()
}

// schemaEntry is one element of the OpenAI-compatible function array
// Schema() returns.
type schemaEntry struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Schema returns the OpenAI-compatible function-calling array for every
// registered tool, in registration order. Idempotent and deterministic
// for a fixed tool set and insertion order.
func (r *Registry) Schema() ([]byte, error) {
	tools := r.List()
	entries := make([]schemaEntry, 0, len(tools))
	for _, t := range tools {
		params, err := resolveParameters(t.Parameters())
		if err != nil {
			return nil, err
		}
		entries = append(entries, schemaEntry{
			Type: "function",
			Function: functionSpec{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  params,
			},
		})
	}
	return json.Marshal(entries)
}

// resolveParameters returns p.Schema unmarshaled verbatim if set, else
// synthesizes an object schema from p.Fields with additionalProperties
// false.
func resolveParameters(p Parameters) (map[string]any, error) {
	if p.Schema != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(p.Schema), &m); err != nil {
			return nil, agentcerr.Wrap(agentcerr.KindParse, err, "parse tool parameter schema")
		}
		return m, nil
	}

	properties := make(map[string]any, len(p.Fields))
	var required []string
	for _, f := range p.Fields {
		prop := map[string]any{"type": f.Type}
		if f.Description != "" {
			prop["description"] = f.Description
		}
		if len(f.Enum) > 0 {
			prop["enum"] = f.Enum
		}
		properties[f.Name] = prop
		if f.Required {
			required = append(required, f.Name)
		}
	}
	sort.Strings(required)

	m := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		m["required"] = required
	}
	return m, nil
}

// callResult is the JSON shape Call returns to the model on failure
// paths; on success the tool's output is returned as is.
type callResult struct {
	Error string `json:"error,omitempty"`
}

// Call locates the named tool, parses argsJSON (empty string tolerated
// as "{}"), and invokes it. Malformed arguments are replaced by an empty
// object and the tool is still invoked. A missing tool or a handler
// error is captured as a {"error": "..."} string with isError true
// rather than aborting the caller's loop.
func (r *Registry) Call(ctx context.Context, name string, argsJSON string) (result string, isError bool) {
	t, ok := r.Find(name)
	if !ok {
		return mustMarshalError("tool not found"), true
	}

	args := map[string]any{}
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			args = map[string]any{}
		}
	}

	out, err := t.Execute(ctx, args)
	if err != nil {
		return mustMarshalError(err.Error()), true
	}
	return out, false
}

func mustMarshalError(msg string) string {
	b, _ := json.Marshal(callResult{Error: msg})
	return string(b)
}
