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

// Package agent implements the ReAct loop: alternating LLM calls and
// tool executions over a shared message history until the model
// returns a final answer, the iteration budget is exhausted, or the
// caller aborts mid-stream.
package agent

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/llm"
	"github.com/openagentc/agentc/pkg/message"
	"github.com/openagentc/agentc/pkg/tool"
)

// Status classifies how a run ended.
type Status string

const (
	StatusDone Status = "done"
	// StatusMaxIterations is returned when a run exhausts max_iterations
	// without the model producing a final, tool-free answer.
	StatusMaxIterations Status = "max_iterations"
	StatusAborted       Status = "aborted"
	StatusError         Status = "error"
)

// state is the run's internal state machine position, used only for
// logging; Status is what callers see.
type state string

const (
	stateIdle          state = "idle"
	stateCallingLLM    state = "calling_llm"
	stateExecutingTool state = "executing_tools"
	stateDone          state = "done"
	stateAborted       state = "aborted"
	stateError         state = "error"
	stateMaxIter       state = "max_iter"
)

// Callbacks lets a caller observe streaming output and carry opaque
// per-run data through to OnStream.
type Callbacks struct {
	// OnStream is invoked for every streamed event when LLMParams.Stream
	// is true. Returning false aborts the in-flight request.
	OnStream llm.OnEvent
	UserData any
}

// Config configures one Agent. Registry is optional; when it is nil, Run behaves as if no tools were ever
// discoverable (any tool_use block still surfaces as a registry "tool
// not found" error, never a panic).
type Config struct {
	Name          string
	Instructions  string
	LLMParams     llm.Params
	Registry      *tool.Registry
	MaxIterations int
	Callbacks     Callbacks
}

const defaultMaxIterations = 10

// Agent runs one ReAct loop over a persistent message history. Not
// safe for concurrent Run calls; callers needing concurrent runs
// should use one Agent per goroutine.
type Agent struct {
	cfg     Config
	driver  llm.Driver
	history *message.History
	started bool
}

// New builds an Agent bound to driver, performing no I/O. driver is
// owned by the Agent and closed by Close.
func New(cfg Config, driver llm.Driver) *Agent {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaultMaxIterations
	}
	return &Agent{cfg: cfg, driver: driver, history: message.NewHistory()}
}

// Result is the outcome of one Run call.
type Result struct {
	Status     Status
	Text       string
	Iterations int
}

// Close releases the underlying driver's resources.
func (a *Agent) Close() error {
	if a.driver == nil {
		return nil
	}
	return a.driver.Close()
}

// Run executes the ReAct loop for userInput against the agent's
// accumulated history, per spec: seed the system message on the first
// turn, append the user turn, then alternate LLM calls and tool
// executions until a tool-free assistant message, an aborted stream,
// an LLM error, or max_iterations is reached.
func (a *Agent) Run(ctx context.Context, userInput string) (Result, error) {
	runID := uuid.New().String()
	st := stateIdle

	if !a.started && a.cfg.Instructions != "" {
		a.history.Append(&message.Message{Role: message.RoleSystem, Content: a.cfg.Instructions})
	}
	a.started = true
	a.history.Append(&message.Message{Role: message.RoleUser, Content: userInput})

	schemas, err := a.toolSchemas()
	if err != nil {
		return Result{Status: StatusError}, err
	}

	lastText := ""
	for i := 1; i <= a.cfg.MaxIterations; i++ {
		st = stateCallingLLM
		slog.Debug("agent iteration", "run_id", runID, "agent", a.cfg.Name, "iteration", i, "state", st)

		resp, aborted, err := a.callLLM(ctx, schemas)
		if err != nil {
			st = stateError
			slog.Error("agent llm call failed", "run_id", runID, "agent", a.cfg.Name, "iteration", i, "error", err)
			return Result{Status: StatusError, Text: lastText, Iterations: i}, err
		}
		if aborted {
			st = stateAborted
			slog.Info("agent run aborted by stream callback", "run_id", runID, "agent", a.cfg.Name, "iteration", i)
			return Result{Status: StatusAborted, Text: lastText, Iterations: i}, nil
		}

		assistantMsg := &message.Message{Role: message.RoleAssistant, Blocks: resp.Blocks}
		a.history.Append(assistantMsg)
		lastText = assistantMsg.Text()

		toolUses := assistantMsg.ToolUses()
		if len(toolUses) == 0 {
			st = stateDone
			slog.Debug("agent run done", "run_id", runID, "agent", a.cfg.Name, "iterations", i)
			return Result{Status: StatusDone, Text: lastText, Iterations: i}, nil
		}

		st = stateExecutingTool
		resultMsg := a.executeTools(ctx, toolUses)
		a.history.Append(resultMsg)
	}

	st = stateMaxIter
	slog.Info("agent run hit max_iterations", "run_id", runID, "agent", a.cfg.Name, "max_iterations", a.cfg.MaxIterations)
	return Result{Status: StatusMaxIterations, Text: lastText, Iterations: a.cfg.MaxIterations}, nil
}

// callLLM invokes Chat or ChatStream depending on LLMParams.Stream,
// returning (response, aborted, error). aborted is true only when an
// OnStream callback returned false.
func (a *Agent) callLLM(ctx context.Context, schemas []llm.ToolSchema) (*llm.Response, bool, error) {
	msgs := a.history.Messages()
	if !a.cfg.LLMParams.Stream {
		resp, err := a.driver.Chat(ctx, a.cfg.LLMParams, msgs, schemas)
		return resp, false, err
	}

	aborted := false
	onEvent := a.cfg.Callbacks.OnStream
	wrapped := func(ev llm.StreamEvent) bool {
		if onEvent == nil {
			return true
		}
		ok := onEvent(ev)
		if !ok {
			aborted = true
		}
		return ok
	}
	resp, err := a.driver.ChatStream(ctx, a.cfg.LLMParams, msgs, schemas, wrapped)
	if aborted {
		return resp, true, nil
	}
	return resp, false, err
}

// executeTools runs every tool_use block in order and accumulates
// their outcomes into one new user-role message, per spec: a call to
// an unregistered tool, or one with malformed argument JSON, still
// produces a tool_result block rather than aborting the loop.
func (a *Agent) executeTools(ctx context.Context, toolUses []message.Block) *message.Message {
	resultMsg := &message.Message{Role: message.RoleUser}
	for _, tu := range toolUses {
		var text string
		var isError bool
		if a.cfg.Registry == nil {
			text = `{"error":"tool not found"}`
			isError = true
		} else {
			text, isError = a.cfg.Registry.Call(ctx, tu.Name, tu.Input)
		}
		resultMsg.Blocks = append(resultMsg.Blocks, message.Block{
			Kind:    message.BlockToolResult,
			ID:      tu.ID,
			Text:    text,
			IsError: isError,
		})
	}
	return resultMsg
}

// toolSchemas resolves the registry's OpenAI-compatible schema array
// into the per-tool ToolSchema list drivers expect.
func (a *Agent) toolSchemas() ([]llm.ToolSchema, error) {
	if a.cfg.Registry == nil || a.cfg.Registry.Count() == 0 {
		return nil, nil
	}
	raw, err := a.cfg.Registry.Schema()
	if err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "resolving tool schemas")
	}

	var entries []struct {
		Function struct {
			Name        string         `json:"name"`
			Description string         `json:"description"`
			Parameters  map[string]any `json:"parameters"`
		} `json:"function"`
	}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "parsing tool schemas")
	}

	out := make([]llm.ToolSchema, 0, len(entries))
	for _, e := range entries {
		params, err := json.Marshal(e.Function.Parameters)
		if err != nil {
			return nil, agentcerr.Wrap(agentcerr.KindParse, err, "encoding parameters for tool %s", e.Function.Name)
		}
		out = append(out, llm.ToolSchema{
			Name:        e.Function.Name,
			Description: e.Function.Description,
			Parameters:  string(params),
		})
	}
	return out, nil
}
