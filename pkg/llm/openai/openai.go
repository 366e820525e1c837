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

// Package openai implements the OpenAI Chat Completions driver, and
// doubles as the driver for any OpenAI-compatible endpoint (vLLM,
// Ollama, etc.) reached by overriding Params.APIBase.
package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/httpclient"
	"github.com/openagentc/agentc/pkg/llm"
	"github.com/openagentc/agentc/pkg/message"
	"github.com/openagentc/agentc/pkg/sse"
)

const defaultAPIBase = "https://api.openai.com/v1"

// Driver implements llm.Driver against the Chat Completions API.
type Driver struct {
	client *httpclient.Client
}

// New returns an OpenAI-compatible driver using a private httpclient.
func New() llm.Driver {
	return &Driver{client: httpclient.New(httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders))}
}

// NewWithClient returns a driver backed by an existing client, e.g. one
// loaned from an httppool.Pool. Pools feeding this driver should build
// their clients with PoolClientOption so the rate-limit-aware retry in
// httpclient.Client has OpenAI's headers to read.
func NewWithClient(c *httpclient.Client) llm.Driver {
	return &Driver{client: c}
}

// PoolClientOption is the httpclient.Option that parses OpenAI's
// rate-limit headers. Pass it to httpclient.New when populating
// httppool.Config.NewClient for a pool this driver will draw from.
var PoolClientOption = httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders)

func (d *Driver) Close() error { return nil }

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

type wireToolCall struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     string       `json:"type,omitempty"`
	Function wireFunction `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type wireToolDef struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream"`
	Tools       []wireToolDef `json:"tools,omitempty"`
	ToolChoice  string        `json:"tool_choice,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      wireMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content          string         `json:"content"`
			ReasoningContent string         `json:"reasoning_content"`
			ToolCalls        []wireToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func buildMessages(params llm.Params, history []*message.Message) []wireMessage {
	var out []wireMessage
	if params.Instructions != "" {
		out = append(out, wireMessage{Role: "system", Content: params.Instructions})
	}
	for _, m := range history {
		out = append(out, toWireMessage(m)...)
	}
	return out
}

// toWireMessage can expand to more than one wire message: a tool-result
// message carries one block per tool_result, and Chat Completions wants
// one "tool" role message per result.
func toWireMessage(m *message.Message) []wireMessage {
	if m.Role == message.RoleUser && hasToolResults(m) {
		var out []wireMessage
		for _, b := range m.Blocks {
			if b.Kind == message.BlockToolResult {
				out = append(out, wireMessage{Role: "tool", ToolCallID: b.ID, Content: b.Text})
			}
		}
		return out
	}

	wm := wireMessage{Role: string(m.Role), Content: m.Text()}
	for i, b := range m.Blocks {
		if b.Kind == message.BlockToolUse {
			idx := i
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				Index: &idx,
				ID:    b.ID,
				Type:  "function",
				Function: wireFunction{
					Name:      b.Name,
					Arguments: b.Input,
				},
			})
		}
	}
	return []wireMessage{wm}
}

func hasToolResults(m *message.Message) bool {
	for _, b := range m.Blocks {
		if b.Kind == message.BlockToolResult {
			return true
		}
	}
	return false
}

func buildTools(tools []llm.ToolSchema) []wireToolDef {
	if len(tools) == 0 {
		return nil
	}
	out := make([]wireToolDef, 0, len(tools))
	for _, t := range tools {
		var td wireToolDef
		td.Type = "function"
		td.Function.Name = t.Name
		td.Function.Description = t.Description
		td.Function.Parameters = json.RawMessage(t.Parameters)
		out = append(out, td)
	}
	return out
}

func requestBody(params llm.Params, history []*message.Message, tools []llm.ToolSchema, stream bool) ([]byte, error) {
	req := chatRequest{
		Model:    params.Model,
		Messages: buildMessages(params, history),
		Stream:   stream,
		Tools:    buildTools(tools),
	}
	if params.Temperature != 0 {
		req.Temperature = &params.Temperature
	}
	if params.TopP != 0 {
		req.TopP = &params.TopP
	}
	if params.MaxTokens != 0 {
		req.MaxTokens = &params.MaxTokens
	}
	if len(tools) > 0 {
		req.ToolChoice = "auto"
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "marshal chat completions request")
	}
	return body, nil
}

func apiBase(params llm.Params) string {
	if params.APIBase != "" {
		return params.APIBase
	}
	return defaultAPIBase
}

func headers(params llm.Params) map[string]string {
	return map[string]string{
		"Content-Type":  "application/json",
		"Authorization": "Bearer " + params.APIKey,
	}
}

// Chat performs one blocking Chat Completions request.
func (d *Driver) Chat(ctx context.Context, params llm.Params, history []*message.Message, tools []llm.ToolSchema) (result *llm.Response, err error) {
	ctx, span := llm.StartSpan(ctx, "openai", params, false)
	defer func() { llm.EndSpan(span, result, err) }()

	body, err := requestBody(params, history, tools, false)
	if err != nil {
		return nil, err
	}

	resp, err := d.client.Do(ctx, &httpclient.Request{
		URL:       apiBase(params) + "/chat/completions",
		Method:    "POST",
		Headers:   headers(params),
		Body:      body,
		TimeoutMs: params.TimeoutMs,
	})
	if err != nil {
		return nil, err
	}

	var parsed chatResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "decode chat completions response")
	}
	if len(parsed.Choices) == 0 {
		return nil, agentcerr.New(agentcerr.KindProtocol, "chat completions response has no choices")
	}

	choice := parsed.Choices[0]
	var blocks []message.Block
	if choice.Message.Content != "" {
		blocks = append(blocks, message.Block{Kind: message.BlockText, Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		blocks = append(blocks, message.Block{
			Kind:  message.BlockToolUse,
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: tc.Function.Arguments,
		})
	}

	return &llm.Response{
		ID:           parsed.ID,
		Model:        parsed.Model,
		Blocks:       blocks,
		FinishReason: mapFinishReason(choice.FinishReason),
		Usage: llm.Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
			TotalTokens:  parsed.Usage.TotalTokens,
		},
	}, nil
}

func mapFinishReason(s string) llm.FinishReason {
	switch s {
	case "tool_calls":
		return llm.FinishToolCalls
	case "length":
		return llm.FinishLength
	case "stop", "":
		return llm.FinishStop
	default:
		return llm.FinishReason(s)
	}
}

// openToolCall tracks one in-progress tool_calls[i] delta assembly.
// streamIndex is the provider-neutral event index assigned when the
// call was first seen, fixed for the lifetime of the call.
type openToolCall struct {
	id          string
	name        string
	args        strings.Builder
	streamIndex int
}

// streamState mirrors the teacher's streamingState: per-response block
// assembly bookkeeping threaded through the SSE delta loop. textPos and
// reasoningPos are positions within blocks, fixed at the moment each
// block is opened, so appending text never needs to search for them.
type streamState struct {
	textOpen      bool
	textIndex     int
	textPos       int
	reasoningOpen bool
	reasoningIdx  int
	reasoningPos  int
	nextIndex     int
	toolCalls     map[int]*openToolCall
	toolOrder     []int
	blocks        []message.Block
	usage         llm.Usage
	finish        llm.FinishReason
}

func newStreamState() *streamState {
	return &streamState{toolCalls: make(map[int]*openToolCall)}
}

// ChatStream performs one streaming Chat Completions request.
func (d *Driver) ChatStream(ctx context.Context, params llm.Params, history []*message.Message, tools []llm.ToolSchema, onEvent llm.OnEvent) (result *llm.Response, err error) {
	ctx, span := llm.StartSpan(ctx, "openai", params, true)
	defer func() { llm.EndSpan(span, result, err) }()

	body, err := requestBody(params, history, tools, true)
	if err != nil {
		return nil, err
	}

	st := newStreamState()
	st.finish = llm.FinishStop
	onEvent(llm.StreamEvent{Kind: llm.EventMessageStart})

	// The SSE parser needs a continuous byte stream, but RequestStream
	// delivers arbitrarily-sized chunks that can split a line mid-field.
	// Pipe chunks through to a goroutine running the parser against a
	// single bufio.Reader so partial lines carry over correctly across
	// chunk boundaries.
	pr, pw := io.Pipe()
	parseDone := make(chan struct{})
	aborted := false
	var streamErr error

	go func() {
		defer close(parseDone)
		parser := sse.NewParser(bufio.NewReader(pr))
		for {
			ev, perr := parser.Next()
			if perr != nil {
				return
			}
			if ev.Data == "" || ev.Data == "[DONE]" {
				continue
			}
			var delta chatChunk
			if err := json.Unmarshal([]byte(ev.Data), &delta); err != nil {
				streamErr = agentcerr.Wrap(agentcerr.KindParse, err, "decode stream delta")
				aborted = true
				pr.Close()
				return
			}
			if !st.apply(delta, onEvent) {
				aborted = true
				pr.Close()
				return
			}
		}
	}()

	_, err = d.client.RequestStream(ctx, &httpclient.Request{
		URL:       apiBase(params) + "/chat/completions",
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

	st.closeOpenBlocks(onEvent)

	if streamErr != nil {
		onEvent(llm.StreamEvent{Kind: llm.EventError, Message: streamErr.Error()})
		return nil, streamErr
	}
	if err != nil {
		onEvent(llm.StreamEvent{Kind: llm.EventError, Message: err.Error()})
		return nil, err
	}

	onEvent(llm.StreamEvent{Kind: llm.EventMessageStop})

	if aborted && streamErr == nil {
		st.finish = llm.FinishReason("aborted")
	}

	return &llm.Response{
		Blocks:       st.blocks,
		FinishReason: st.finish,
		Usage:        st.usage,
	}, nil
}

// apply folds one decoded SSE delta into the stream state, emitting the
// corresponding provider-neutral events. A chunk carrying a finish_reason
// or a trailing usage-only chunk (choices omitted, stream_options asked
// for include_usage) emits EventMessageDelta with the finish reason and
// usage known so far. Returns false if onEvent asked to abort.
func (s *streamState) apply(delta chatChunk, onEvent llm.OnEvent) bool {
	var sawFinal bool
	if delta.Usage != nil {
		s.usage = llm.Usage{
			InputTokens:  delta.Usage.PromptTokens,
			OutputTokens: delta.Usage.CompletionTokens,
			TotalTokens:  delta.Usage.TotalTokens,
		}
		sawFinal = true
	}
	if len(delta.Choices) == 0 {
		if sawFinal {
			usage := s.usage
			return onEvent(llm.StreamEvent{Kind: llm.EventMessageDelta, StopReason: s.finish, Usage: &usage})
		}
		return true
	}
	choice := delta.Choices[0]

	if choice.Delta.ReasoningContent != "" {
		if !s.reasoningOpen {
			s.reasoningIdx = s.nextIndex
			s.nextIndex++
			s.reasoningOpen = true
			s.reasoningPos = len(s.blocks)
			s.blocks = append(s.blocks, message.Block{Kind: message.BlockReasoning})
			if !onEvent(llm.StreamEvent{Kind: llm.EventContentBlockStart, Index: s.reasoningIdx, BlockKind: message.BlockReasoning}) {
				return false
			}
		}
		s.blocks[s.reasoningPos].Text += choice.Delta.ReasoningContent
		if !onEvent(llm.StreamEvent{Kind: llm.EventDelta, Index: s.reasoningIdx, BlockKind: message.BlockReasoning, Bytes: choice.Delta.ReasoningContent}) {
			return false
		}
	}

	if choice.Delta.Content != "" {
		if s.reasoningOpen {
			if !onEvent(llm.StreamEvent{Kind: llm.EventContentBlockStop, Index: s.reasoningIdx, BlockKind: message.BlockReasoning}) {
				return false
			}
			s.reasoningOpen = false
		}
		if !s.textOpen {
			s.textIndex = s.nextIndex
			s.nextIndex++
			s.textOpen = true
			s.textPos = len(s.blocks)
			s.blocks = append(s.blocks, message.Block{Kind: message.BlockText})
			if !onEvent(llm.StreamEvent{Kind: llm.EventContentBlockStart, Index: s.textIndex, BlockKind: message.BlockText}) {
				return false
			}
		}
		s.blocks[s.textPos].Text += choice.Delta.Content
		if !onEvent(llm.StreamEvent{Kind: llm.EventDelta, Index: s.textIndex, BlockKind: message.BlockText, Bytes: choice.Delta.Content}) {
			return false
		}
	}

	for _, tc := range choice.Delta.ToolCalls {
		idx := 0
		if tc.Index != nil {
			idx = *tc.Index
		}
		call, ok := s.toolCalls[idx]
		if !ok {
			call = &openToolCall{id: tc.ID, name: tc.Function.Name, streamIndex: s.nextIndex}
			s.nextIndex++
			s.toolCalls[idx] = call
			s.toolOrder = append(s.toolOrder, idx)
			if !onEvent(llm.StreamEvent{Kind: llm.EventContentBlockStart, Index: call.streamIndex, BlockKind: message.BlockToolUse, ToolName: call.name}) {
				return false
			}
		}
		if tc.Function.Arguments != "" {
			call.args.WriteString(tc.Function.Arguments)
			if !onEvent(llm.StreamEvent{Kind: llm.EventDelta, Index: call.streamIndex, BlockKind: message.BlockToolUse, Bytes: tc.Function.Arguments}) {
				return false
			}
		}
	}

	if choice.FinishReason != nil {
		s.finish = mapFinishReason(*choice.FinishReason)
		usage := s.usage
		return onEvent(llm.StreamEvent{Kind: llm.EventMessageDelta, StopReason: s.finish, Usage: &usage})
	}

	return true
}

func (s *streamState) closeOpenBlocks(onEvent llm.OnEvent) {
	if s.reasoningOpen {
		onEvent(llm.StreamEvent{Kind: llm.EventContentBlockStop, Index: s.reasoningIdx, BlockKind: message.BlockReasoning})
		s.reasoningOpen = false
	}
	if s.textOpen {
		onEvent(llm.StreamEvent{Kind: llm.EventContentBlockStop, Index: s.textIndex, BlockKind: message.BlockText})
		s.textOpen = false
	}
	for _, idx := range s.toolOrder {
		call := s.toolCalls[idx]
		s.blocks = append(s.blocks, message.Block{
			Kind:  message.BlockToolUse,
			ID:    call.id,
			Name:  call.name,
			Input: call.args.String(),
		})
		onEvent(llm.StreamEvent{Kind: llm.EventContentBlockStop, Index: call.streamIndex, BlockKind: message.BlockToolUse})
	}
	if len(s.toolOrder) > 0 {
		s.finish = llm.FinishToolCalls
	}
}

