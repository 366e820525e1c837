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

package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagentc/agentc/pkg/llm"
	"github.com/openagentc/agentc/pkg/message"
	"github.com/openagentc/agentc/pkg/tool"
)

// scriptedDriver returns one canned *llm.Response per Chat call, in
// order, and records every history slice it was given.
type scriptedDriver struct {
	responses []*llm.Response
	errs      []error
	calls     int
	seen      [][]*message.Message
	closed    bool
}

func (d *scriptedDriver) Chat(ctx context.Context, params llm.Params, history []*message.Message, tools []llm.ToolSchema) (*llm.Response, error) {
	d.seen = append(d.seen, history)
	i := d.calls
	d.calls++
	var err error
	if i < len(d.errs) {
		err = d.errs[i]
	}
	if i < len(d.responses) {
		return d.responses[i], err
	}
	return &llm.Response{FinishReason: llm.FinishStop}, err
}

func (d *scriptedDriver) ChatStream(ctx context.Context, params llm.Params, history []*message.Message, tools []llm.ToolSchema, onEvent llm.OnEvent) (*llm.Response, error) {
	onEvent(llm.StreamEvent{Kind: llm.EventDelta, Bytes: "x"})
	return d.Chat(ctx, params, history, tools)
}

func (d *scriptedDriver) Close() error {
	d.closed = true
	return nil
}

func textResp(text string) *llm.Response {
	return &llm.Response{Blocks: []message.Block{{Kind: message.BlockText, Text: text}}, FinishReason: llm.FinishStop}
}

func toolUseResp(id, name, input string) *llm.Response {
	return &llm.Response{
		Blocks:       []message.Block{{Kind: message.BlockToolUse, ID: id, Name: name, Input: input}},
		FinishReason: llm.FinishToolCalls,
	}
}

type echoTool struct{}

func (echoTool) Name() string                { return "echo" }
func (echoTool) Description() string         { return "echoes input" }
func (echoTool) Parameters() tool.Parameters { return tool.Parameters{Schema: `{"type":"object"}`} }
func (echoTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	return `{"ok":true}`, nil
}

func TestRunReturnsTextWhenNoToolUse(t *testing.T) {
	driver := &scriptedDriver{responses: []*llm.Response{textResp("hi there")}}
	a := New(Config{Instructions: "be terse"}, driver)

	result, err := a.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, result.Status)
	assert.Equal(t, "hi there", result.Text)
	assert.Equal(t, 1, result.Iterations)

	msgs := a.history.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, message.RoleSystem, msgs[0].Role)
	assert.Equal(t, message.RoleUser, msgs[1].Role)
	assert.Equal(t, message.RoleAssistant, msgs[2].Role)
}

func TestRunExecutesToolThenReturnsFinalAnswer(t *testing.T) {
	driver := &scriptedDriver{responses: []*llm.Response{
		toolUseResp("call-1", "echo", `{"x":1}`),
		textResp("done"),
	}}
	registry := tool.New()
	require.NoError(t, registry.Add(echoTool{}))
	a := New(Config{Registry: registry}, driver)

	result, err := a.Run(context.Background(), "use the tool")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, result.Status)
	assert.Equal(t, "done", result.Text)
	assert.Equal(t, 2, result.Iterations)

	msgs := a.history.Messages()
	// user, assistant(tool_use), user(tool_result), assistant(text)
	require.Len(t, msgs, 4)
	toolResultMsg := msgs[2]
	require.Len(t, toolResultMsg.Blocks, 1)
	assert.Equal(t, message.BlockToolResult, toolResultMsg.Blocks[0].Kind)
	assert.Equal(t, "call-1", toolResultMsg.Blocks[0].ID)
	assert.False(t, toolResultMsg.Blocks[0].IsError)
}

func TestRunUnregisteredToolProducesErrorResultAndContinues(t *testing.T) {
	driver := &scriptedDriver{responses: []*llm.Response{
		toolUseResp("call-1", "missing", `{}`),
		textResp("recovered"),
	}}
	a := New(Config{Registry: tool.New()}, driver)

	result, err := a.Run(context.Background(), "call a tool that doesn't exist")
	require.NoError(t, err)
	assert.Equal(t, StatusDone, result.Status)
	assert.Equal(t, "recovered", result.Text)

	toolResultMsg := a.history.Messages()[2]
	assert.True(t, toolResultMsg.Blocks[0].IsError)
	assert.Contains(t, toolResultMsg.Blocks[0].Text, "tool not found")
}

func TestRunMaxIterationsExhaustedReturnsStatus(t *testing.T) {
	driver := &scriptedDriver{responses: []*llm.Response{
		toolUseResp("1", "echo", `{}`),
		toolUseResp("2", "echo", `{}`),
		toolUseResp("3", "echo", `{}`),
	}}
	registry := tool.New()
	require.NoError(t, registry.Add(echoTool{}))
	a := New(Config{Registry: registry, MaxIterations: 3}, driver)

	result, err := a.Run(context.Background(), "loop forever")
	require.NoError(t, err)
	assert.Equal(t, StatusMaxIterations, result.Status)
	assert.Equal(t, 3, result.Iterations)
}

// TestRunMaxIterationsOneWithToolUseStillExecutesTheTool pins the
// max_iterations=1 decision: a tool_use on the only permitted
// iteration is still executed before the cap is enforced, rather than
// being dropped.
func TestRunMaxIterationsOneWithToolUseStillExecutesTheTool(t *testing.T) {
	driver := &scriptedDriver{responses: []*llm.Response{
		toolUseResp("1", "echo", `{}`),
	}}
	registry := tool.New()
	require.NoError(t, registry.Add(echoTool{}))
	a := New(Config{Registry: registry, MaxIterations: 1}, driver)

	result, err := a.Run(context.Background(), "one shot")
	require.NoError(t, err)
	assert.Equal(t, StatusMaxIterations, result.Status)

	msgs := a.history.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, message.RoleUser, msgs[2].Role)
	assert.Equal(t, message.BlockToolResult, msgs[2].Blocks[0].Kind)
	assert.False(t, msgs[2].Blocks[0].IsError)
}

func TestRunAbortedByOnStreamStopsWithoutFurtherHistoryMutation(t *testing.T) {
	driver := &scriptedDriver{responses: []*llm.Response{textResp("partial")}}
	aborted := false
	a := New(Config{
		LLMParams: llm.Params{Stream: true},
		Callbacks: Callbacks{OnStream: func(ev llm.StreamEvent) bool {
			aborted = true
			return false
		}},
	}, driver)

	result, err := a.Run(context.Background(), "stream then abort")
	require.NoError(t, err)
	assert.True(t, aborted)
	assert.Equal(t, StatusAborted, result.Status)

	msgs := a.history.Messages()
	require.Len(t, msgs, 1) // only the seeded user message; no assistant message appended
	assert.Equal(t, message.RoleUser, msgs[0].Role)
}

func TestRunLLMErrorReturnsStatusError(t *testing.T) {
	boom := assert.AnError
	driver := &scriptedDriver{responses: []*llm.Response{nil}, errs: []error{boom}}
	a := New(Config{}, driver)

	result, err := a.Run(context.Background(), "fail please")
	assert.Error(t, err)
	assert.Equal(t, StatusError, result.Status)
}

func TestInstructionsOnlySeededOnFirstTurn(t *testing.T) {
	driver := &scriptedDriver{responses: []*llm.Response{textResp("one"), textResp("two")}}
	a := New(Config{Instructions: "be terse"}, driver)

	_, err := a.Run(context.Background(), "first")
	require.NoError(t, err)
	_, err = a.Run(context.Background(), "second")
	require.NoError(t, err)

	msgs := a.history.Messages()
	systemCount := 0
	for _, m := range msgs {
		if m.Role == message.RoleSystem {
			systemCount++
		}
	}
	assert.Equal(t, 1, systemCount)
}

func TestCloseClosesDriver(t *testing.T) {
	driver := &scriptedDriver{}
	a := New(Config{}, driver)
	require.NoError(t, a.Close())
	assert.True(t, driver.closed)
}
