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

// Package anthropic implements the Anthropic Messages API driver,
// including extended-thinking blocks and tool_use/tool_result content.
package anthropic

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"

	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/httpclient"
	"github.com/openagentc/agentc/pkg/llm"
	"github.com/openagentc/agentc/pkg/message"
	"github.com/openagentc/agentc/pkg/sse"
)

const (
	defaultAPIBase   = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"
)

// Driver implements llm.Driver against the Messages API.
type Driver struct {
	client *httpclient.Client
}

// New returns an Anthropic driver using a private httpclient.
func New() llm.Driver {
	return &Driver{client: httpclient.New(httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders))}
}

// NewWithClient returns a driver backed by an existing client, e.g. one
// loaned from an httppool.Pool. Pools feeding this driver should build
// their clients with PoolClientOption so the rate-limit-aware retry in
// httpclient.Client has Anthropic's headers to read.
func NewWithClient(c *httpclient.Client) llm.Driver {
	return &Driver{client: c}
}

// PoolClientOption is the httpclient.Option that parses Anthropic's
// rate-limit headers. Pass it to httpclient.New when populating
// httppool.Config.NewClient for a pool this driver will draw from.
var PoolClientOption = httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders)

func (d *Driver) Close() error { return nil }

type wireThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens,omitempty"`
}

type wireContent struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type wireMessage struct {
	Role    string        `json:"role"`
	Content []wireContent `json:"content"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type messagesRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature,omitempty"`
	System      string        `json:"system,omitempty"`
	Stream      bool          `json:"stream"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Thinking    *wireThinking `json:"thinking,omitempty"`
}

type messagesResponse struct {
	ID         string        `json:"id"`
	Model      string        `json:"model"`
	Content    []wireContent `json:"content"`
	StopReason string        `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// streamEvent covers every Anthropic SSE event type the driver handles.
// Fields not relevant to a given Type are left zero.
type streamEvent struct {
	Type         string       `json:"type"`
	Index        int          `json:"index"`
	ContentBlock *wireContent `json:"content_block,omitempty"`
	Delta        *struct {
		Type        string `json:"type"`
		Text        string `json:"text,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
		Thinking    string `json:"thinking,omitempty"`
		StopReason  string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`
	Message *struct {
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	} `json:"message,omitempty"`
	Usage *struct {
		InputTokens  int `json:"input_tokens,omitempty"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

// buildRequest extracts system-role messages into the top-level system
// field (Anthropic never accepts them inline) and converts every other
// message's blocks into Anthropic content blocks.
func buildRequest(params llm.Params, history []*message.Message, tools []llm.ToolSchema, stream bool) messagesRequest {
	var systemParts []string
	if params.Instructions != "" {
		systemParts = append(systemParts, params.Instructions)
	}

	var messages []wireMessage
	for _, m := range history {
		if m.Role == message.RoleSystem {
			if m.Text() != "" {
				systemParts = append(systemParts, m.Text())
			}
			continue
		}
		messages = append(messages, wireMessage{
			Role:    wireRole(m.Role),
			Content: toWireContent(m),
		})
	}

	req := messagesRequest{
		Model:     params.Model,
		Messages:  messages,
		MaxTokens: params.MaxTokens,
		Stream:    stream,
		System:    strings.Join(systemParts, "\n\n"),
	}
	if params.Temperature != 0 {
		req.Temperature = params.Temperature
	}
	if params.Thinking.Enabled {
		req.Thinking = &wireThinking{Type: "enabled", BudgetTokens: params.Thinking.BudgetTokens}
	}
	if len(tools) > 0 {
		req.Tools = make([]wireTool, 0, len(tools))
		for _, t := range tools {
			req.Tools = append(req.Tools, wireTool{
				Name:        t.Name,
				Description: t.Description,
				InputSchema: json.RawMessage(t.Parameters),
			})
		}
	}
	return req
}

func wireRole(r message.Role) string {
	if r == message.RoleTool {
		return "user"
	}
	return string(r)
}

// toWireContent converts one message's blocks into Anthropic content
// blocks. tool_result blocks (which spec.md places on a RoleTool/user
// message) become {type:"tool_result"}; everything else maps 1:1.
func toWireContent(m *message.Message) []wireContent {
	var out []wireContent
	if m.Content != "" && len(m.Blocks) == 0 {
		out = append(out, wireContent{Type: "text", Text: m.Content})
	}
	for _, b := range m.Blocks {
		switch b.Kind {
		case message.BlockText:
			out = append(out, wireContent{Type: "text", Text: b.Text})
		case message.BlockThinking:
			out = append(out, wireContent{Type: "thinking", Text: b.Text})
		case message.BlockToolUse:
			input := b.Input
			if input == "" {
				input = "{}"
			}
			out = append(out, wireContent{Type: "tool_use", ID: b.ID, Name: b.Name, Input: json.RawMessage(input)})
		case message.BlockToolResult:
			out = append(out, wireContent{Type: "tool_result", ToolUseID: b.ID, Content: b.Text, IsError: b.IsError})
		}
	}
	return out
}

func apiBase(params llm.Params) string {
	if params.APIBase != "" {
		return params.APIBase
	}
	return defaultAPIBase
}

func headers(params llm.Params) map[string]string {
	return map[string]string{
		"Content-Type":      "application/json",
		"x-api-key":         params.APIKey,
		"anthropic-version": anthropicVersion,
	}
}

// Chat performs one blocking Messages API request.
func (d *Driver) Chat(ctx context.Context, params llm.Params, history []*message.Message, tools []llm.ToolSchema) (result *llm.Response, err error) {
	ctx, span := llm.StartSpan(ctx, "anthropic", params, false)
	defer func() { llm.EndSpan(span, result, err) }()

	req := buildRequest(params, history, tools, false)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "marshal messages request")
	}

	resp, err := d.client.Do(ctx, &httpclient.Request{
		URL:       apiBase(params) + "/v1/messages",
		Method:    "POST",
		Headers:   headers(params),
		Body:      body,
		TimeoutMs: params.TimeoutMs,
	})
	if err != nil {
		return nil, err
	}

	var parsed messagesResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "decode messages response")
	}

	var blocks []message.Block
	for _, c := range parsed.Content {
		switch c.Type {
		case "text":
			blocks = append(blocks, message.Block{Kind: message.BlockText, Text: c.Text})
		case "thinking":
			blocks = append(blocks, message.Block{Kind: message.BlockThinking, Text: c.Text})
		case "tool_use":
			blocks = append(blocks, message.Block{Kind: message.BlockToolUse, ID: c.ID, Name: c.Name, Input: string(c.Input)})
		}
	}

	return &llm.Response{
		ID:           parsed.ID,
		Model:        parsed.Model,
		Blocks:       blocks,
		FinishReason: mapStopReason(parsed.StopReason),
		Usage: llm.Usage{
			InputTokens:  parsed.Usage.InputTokens,
			OutputTokens: parsed.Usage.OutputTokens,
			TotalTokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

func mapStopReason(s string) llm.FinishReason {
	switch s {
	case "tool_use":
		return llm.FinishToolCalls
	case "max_tokens":
		return llm.FinishLength
	case "end_turn", "stop_sequence", "":
		return llm.FinishStop
	default:
		return llm.FinishReason(s)
	}
}

// openBlock tracks one in-progress content_block_start..stop span. kind
// is fixed at content_block_start; text/thinking accumulate via Text,
// tool_use accumulates its partial_json input via Input.
type openBlock struct {
	kind  message.BlockKind
	id    string
	name  string
	text  strings.Builder
	input strings.Builder
}

// ChatStream performs one streaming Messages API request.
func (d *Driver) ChatStream(ctx context.Context, params llm.Params, history []*message.Message, tools []llm.ToolSchema, onEvent llm.OnEvent) (result *llm.Response, err error) {
	ctx, span := llm.StartSpan(ctx, "anthropic", params, true)
	defer func() { llm.EndSpan(span, result, err) }()

	req := buildRequest(params, history, tools, true)
	body, err := json.Marshal(req)
	if err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "marshal messages request")
	}

	open := make(map[int]*openBlock)
	var finished []message.Block
	var usage llm.Usage
	finish := llm.FinishStop

	pr, pw := io.Pipe()
	parseDone := make(chan struct{})
	aborted := false
	var streamErr error

	apply := func(ev streamEvent) bool {
		switch ev.Type {
		case "message_start":
			if ev.Message != nil {
				usage.InputTokens = ev.Message.Usage.InputTokens
				usage.TotalTokens = usage.InputTokens + usage.OutputTokens
			}
			return onEvent(llm.StreamEvent{Kind: llm.EventMessageStart})

		case "content_block_start":
			ob := &openBlock{}
			if ev.ContentBlock != nil {
				switch ev.ContentBlock.Type {
				case "text":
					ob.kind = message.BlockText
				case "thinking":
					ob.kind = message.BlockThinking
				case "tool_use":
					ob.kind = message.BlockToolUse
					ob.id = ev.ContentBlock.ID
					ob.name = ev.ContentBlock.Name
				}
			}
			open[ev.Index] = ob
			return onEvent(llm.StreamEvent{Kind: llm.EventContentBlockStart, Index: ev.Index, BlockKind: ob.kind, ToolName: ob.name})

		case "content_block_delta":
			ob, ok := open[ev.Index]
			if !ok || ev.Delta == nil {
				return true
			}
			switch ev.Delta.Type {
			case "text_delta":
				ob.text.WriteString(ev.Delta.Text)
				return onEvent(llm.StreamEvent{Kind: llm.EventDelta, Index: ev.Index, BlockKind: message.BlockText, Bytes: ev.Delta.Text})
			case "thinking_delta":
				ob.text.WriteString(ev.Delta.Thinking)
				return onEvent(llm.StreamEvent{Kind: llm.EventDelta, Index: ev.Index, BlockKind: message.BlockThinking, Bytes: ev.Delta.Thinking})
			case "input_json_delta":
				ob.input.WriteString(ev.Delta.PartialJSON)
				return onEvent(llm.StreamEvent{Kind: llm.EventDelta, Index: ev.Index, BlockKind: message.BlockToolUse, Bytes: ev.Delta.PartialJSON})
			}
			return true

		case "content_block_stop":
			ob, ok := open[ev.Index]
			if !ok {
				return true
			}
			delete(open, ev.Index)
			finished = append(finished, finalizeBlock(ob))
			return onEvent(llm.StreamEvent{Kind: llm.EventContentBlockStop, Index: ev.Index, BlockKind: ob.kind})

		case "message_delta":
			if ev.Delta != nil && ev.Delta.StopReason != "" {
				finish = mapStopReason(ev.Delta.StopReason)
			}
			if ev.Usage != nil {
				usage.OutputTokens = ev.Usage.OutputTokens
				usage.TotalTokens = usage.InputTokens + usage.OutputTokens
			}
			u := usage
			return onEvent(llm.StreamEvent{Kind: llm.EventMessageDelta, StopReason: finish, Usage: &u})

		case "message_stop":
			return onEvent(llm.StreamEvent{Kind: llm.EventMessageStop})
		}
		return true
	}

	go func() {
		defer close(parseDone)
		parser := sse.NewParser(bufio.NewReader(pr))
		for {
			e, perr := parser.Next()
			if perr != nil {
				return
			}
			if e.Data == "" {
				continue
			}
			var sev streamEvent
			if err := json.Unmarshal([]byte(e.Data), &sev); err != nil {
				streamErr = agentcerr.Wrap(agentcerr.KindParse, err, "decode stream event")
				aborted = true
				pr.Close()
				return
			}
			if !apply(sev) {
				aborted = true
				pr.Close()
				return
			}
		}
	}()

	_, err = d.client.RequestStream(ctx, &httpclient.Request{
		URL:       apiBase(params) + "/v1/messages",
		Method:    "POST",
		Headers:   headers(params),
		Body:      body,
		TimeoutMs: params.TimeoutMs,
	}, func(chunk []byte) bool {
		if aborted {
			return false
		}
		if _, werr := pw.Write(chunk); werr != nil {
			return false
		}
		return true
	})
	pw.Close()
	<-parseDone

	if streamErr != nil {
		onEvent(llm.StreamEvent{Kind: llm.EventError, Message: streamErr.Error()})
		return nil, streamErr
	}
	if err != nil {
		onEvent(llm.StreamEvent{Kind: llm.EventError, Message: err.Error()})
		return nil, err
	}

	for _, idx := range sortedKeys(open) {
		finished = append(finished, finalizeBlock(open[idx]))
	}

	return &llm.Response{
		Blocks:       finished,
		FinishReason: finish,
		Usage:        usage,
	}, nil
}

// sortedKeys returns a map's keys in ascending order, used to give any
// blocks left open by an aborted or truncated stream a deterministic
// trailing position in the final response.
func sortedKeys(m map[int]*openBlock) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func finalizeBlock(ob *openBlock) message.Block {
	switch ob.kind {
	case message.BlockToolUse:
		input := ob.input.String()
		if input == "" {
			input = "{}"
		}
		return message.Block{Kind: message.BlockToolUse, ID: ob.id, Name: ob.name, Input: input}
	default:
		return message.Block{Kind: ob.kind, Text: ob.text.String()}
	}
}
