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

// Package functiontool wraps a typed Go function as a tool.Tool, with
// its JSON-Schema parameters synthesized from the argument struct's
// field tags instead of hand-built.
//
// Example:
//
//	type SearchArgs struct {
//	    Query string `json:"query" jsonschema:"required,description=search query"`
//	    Limit int    `json:"limit,omitempty" jsonschema:"description=max results,default=10"`
//	}
//
//	t, err := functiontool.New("search", "Search documents", func(ctx context.Context, args SearchArgs) (string, error) {
//	    ...
//	})
package functiontool

import (
	"context"
	"fmt"

	"github.com/openagentc/agentc/pkg/tool"
)

// Func is the signature every wrapped function must satisfy: typed
// arguments in, a result string (already formatted for the model) or
// an error out.
type Func[Args any] func(ctx context.Context, args Args) (string, error)

type functionTool[Args any] struct {
	name        string
	description string
	schema      map[string]any
	fn          Func[Args]
}

// New wraps fn as a tool.Tool named name, synthesizing its schema from
// the Args struct's json/jsonschema tags.
func New[Args any](name, description string, fn Func[Args]) (tool.Tool, error) {
	if name == "" {
		return nil, fmt.Errorf("functiontool: name is required")
	}
	if description == "" {
		return nil, fmt.Errorf("functiontool: description is required")
	}

	schema, err := generateSchema[Args]()
	if err != nil {
		return nil, fmt.Errorf("functiontool: generate schema for %s: %w", name, err)
	}

	return &functionTool[Args]{name: name, description: description, schema: schema, fn: fn}, nil
}

func (t *functionTool[Args]) Name() string        { return t.name }
func (t *functionTool[Args]) Description() string { return t.description }

func (t *functionTool[Args]) Parameters() tool.Parameters {
	return tool.Parameters{Schema: rawSchema(t.schema)}
}

func (t *functionTool[Args]) Execute(ctx context.Context, args map[string]any) (string, error) {
	var typed Args
	if err := mapToStruct(args, &typed); err != nil {
		return "", fmt.Errorf("functiontool: invalid arguments for %s: %w", t.name, err)
	}
	return t.fn(ctx, typed)
}

var _ tool.Tool = (*functionTool[struct{}])(nil)
