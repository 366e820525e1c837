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

// Package config loads the on-disk YAML/JSON description of one or
// more agents, their LLM parameters, and the MCP servers they should
// connect to: parse, expand ${VAR} references, decode into typed
// structs, apply defaults, and validate.
package config

import (
	"github.com/openagentc/agentc/pkg/agent"
	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/llm"
	"github.com/openagentc/agentc/pkg/mcp"
)

// ThinkingSpec mirrors llm.Thinking in the on-disk shape.
type ThinkingSpec struct {
	Enabled      bool `yaml:"enabled"`
	BudgetTokens int  `yaml:"budget_tokens"`
}

// LLMSpec mirrors llm.Params in the on-disk shape.
type LLMSpec struct {
	Provider     string       `yaml:"provider"`
	Compatible   string       `yaml:"compatible"`
	Model        string       `yaml:"model"`
	APIKey       string       `yaml:"api_key"`
	APIBase      string       `yaml:"api_base"`
	Instructions string       `yaml:"instructions"`
	Temperature  float64      `yaml:"temperature"`
	TopP         float64      `yaml:"top_p"`
	TopK         int          `yaml:"top_k"`
	MaxTokens    int          `yaml:"max_tokens"`
	TimeoutMs    int          `yaml:"timeout_ms"`
	Stream       bool         `yaml:"stream"`
	Thinking     ThinkingSpec `yaml:"thinking"`
}

// ToParams converts s to llm.Params.
func (s LLMSpec) ToParams() llm.Params {
	return llm.Params{
		Provider:     s.Provider,
		Compatible:   s.Compatible,
		Model:        s.Model,
		APIKey:       s.APIKey,
		APIBase:      s.APIBase,
		Instructions: s.Instructions,
		Temperature:  s.Temperature,
		TopP:         s.TopP,
		TopK:         s.TopK,
		MaxTokens:    s.MaxTokens,
		TimeoutMs:    s.TimeoutMs,
		Stream:       s.Stream,
		Thinking:     llm.Thinking{Enabled: s.Thinking.Enabled, BudgetTokens: s.Thinking.BudgetTokens},
	}
}

// AgentSpec is one agent's on-disk configuration.
type AgentSpec struct {
	Name          string  `yaml:"name"`
	Instructions  string  `yaml:"instructions"`
	LLM           LLMSpec `yaml:"llm"`
	MaxIterations int     `yaml:"max_iterations"`
}

// ToAgentConfig converts s to an agent.Config. Registry is left nil;
// the caller attaches one after building the tool set.
func (s AgentSpec) ToAgentConfig() agent.Config {
	return agent.Config{
		Name:          s.Name,
		Instructions:  s.Instructions,
		LLMParams:     s.LLM.ToParams(),
		MaxIterations: s.MaxIterations,
	}
}

// MCPServerSpec mirrors mcp.ServerConfig in the on-disk shape.
type MCPServerSpec struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	TimeoutMs int    `yaml:"timeout_ms"`
	Enabled   *bool  `yaml:"enabled"`
}

func (s MCPServerSpec) toServerConfig() mcp.ServerConfig {
	return mcp.ServerConfig{Name: s.Name, URL: s.URL, APIKey: s.APIKey, TimeoutMs: s.TimeoutMs, Enabled: s.Enabled}
}

// Config is the full on-disk document.
type Config struct {
	LogLevel   string          `yaml:"log_level"`
	LogFormat  string          `yaml:"log_format"`
	Agents     []AgentSpec     `yaml:"agents"`
	MCPServers []MCPServerSpec `yaml:"mcp_servers"`
}

// ToMCPFileConfig converts the document's server list into the shape
// mcp.ConnectAll/mcp.WatchConfig expect.
func (c *Config) ToMCPFileConfig() *mcp.FileConfig {
	servers := make([]mcp.ServerConfig, len(c.MCPServers))
	for i, s := range c.MCPServers {
		servers[i] = s.toServerConfig()
	}
	return &mcp.FileConfig{Servers: servers}
}

const (
	defaultLogLevel      = "info"
	defaultLogFormat     = "simple"
	defaultMaxIterations = 10
	defaultTimeoutMs     = 30_000
	defaultMaxTokens     = 4096
)

// SetDefaults fills zero-valued fields with this runtime's defaults.
// Called after decoding, before Validate.
func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = defaultLogFormat
	}
	for i := range c.Agents {
		a := &c.Agents[i]
		if a.MaxIterations <= 0 {
			a.MaxIterations = defaultMaxIterations
		}
		if a.LLM.TimeoutMs <= 0 {
			a.LLM.TimeoutMs = defaultTimeoutMs
		}
		if a.LLM.MaxTokens <= 0 {
			a.LLM.MaxTokens = defaultMaxTokens
		}
	}
}

// Validate reports the first configuration error found: every agent
// needs a name and one of provider/compatible, and agent names must be
// unique within the document.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.Name == "" {
			return agentcerr.New(agentcerr.KindInvalidArg, "config: agent entry missing name")
		}
		if seen[a.Name] {
			return agentcerr.New(agentcerr.KindInvalidArg, "config: duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true
		if a.LLM.Provider == "" && a.LLM.Compatible == "" {
			return agentcerr.New(agentcerr.KindInvalidArg, "config: agent %q needs llm.provider or llm.compatible", a.Name)
		}
	}
	for _, s := range c.MCPServers {
		if s.URL == "" {
			return agentcerr.New(agentcerr.KindInvalidArg, "config: mcp server %q missing url", s.Name)
		}
	}
	return nil
}
