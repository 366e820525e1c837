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

// Package agentc provides an embeddable runtime for building
// tool-calling LLM agents: arena-backed message history, a
// provider-neutral chat driver interface with OpenAI and Anthropic
// implementations, a pooled HTTP client, an MCP client for
// discovering remote tools, and a ReAct agent loop tying it together.
//
// # Quick Start
//
//	sess, err := session.Open(0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sess.Close()
//
//	driver := openai.New()
//	a, err := sess.CreateAgent(agent.Config{
//	    Name:         "assistant",
//	    Instructions: "You are a helpful assistant.",
//	    LLMParams:    llm.Params{Model: "gpt-4o", APIKey: os.Getenv("OPENAI_API_KEY")},
//	}, driver)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := a.Run(context.Background(), "what's 2+2?")
//
// # Library, not a server
//
// Unlike the framework this runtime is descended from, agentc has no
// built-in server, declarative YAML agent orchestration, or
// agent-to-agent delegation protocol: it is a library whose surface is
// a handful of Go types (session.Session, agent.Agent, mcp.Client,
// tool.Registry) that an application wires together directly.
// pkg/config optionally loads agent/LLM/MCP-server definitions from a
// YAML document, but nothing requires it.
//
// # Packages
//
//   - pkg/arena: fixed-capacity bump allocator
//   - pkg/message: provider-neutral chat message/block types and history
//   - pkg/httpclient, pkg/httppool: pooled HTTP transport
//   - pkg/sse: Server-Sent Events parsing for streaming responses
//   - pkg/llm: the Driver interface plus the OpenAI and Anthropic drivers
//   - pkg/tool: the Tool interface and schema-driven registry
//   - pkg/mcp: a Model Context Protocol client and multi-server config
//   - pkg/agent: the ReAct run loop
//   - pkg/agent/history: token-budget-aware history trimming
//   - pkg/session: ties an arena, agents, and MCP clients to one lifecycle
//   - pkg/config: YAML/JSON configuration loading
//   - pkg/logger: process-wide structured logging
//   - pkg/metrics: Prometheus counters/gauges for the pool and agent runs
package agentc
