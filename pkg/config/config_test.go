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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestLoadParsesAgentsAndServers(t *testing.T) {
	t.Setenv("OPENAI_KEY", "sk-test-123")

	path := filepath.Join(t.TempDir(), "agentc.yaml")
	writeFile(t, path, `
log_level: debug
agents:
  - name: assistant
    instructions: be terse
    llm:
      provider: openai
      model: gpt-4o
      api_key: ${OPENAI_KEY}
      temperature: 0.2
mcp_servers:
  - name: fs
    url: http://localhost:8090
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Agents, 1)
	assert.Equal(t, "assistant", cfg.Agents[0].Name)
	assert.Equal(t, "sk-test-123", cfg.Agents[0].LLM.APIKey)
	assert.Equal(t, 0.2, cfg.Agents[0].LLM.Temperature)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.Len(t, cfg.MCPServers, 1)
	assert.Equal(t, "http://localhost:8090", cfg.MCPServers[0].URL)
}

func TestLoadExpandsDefaultValueWhenEnvUnset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentc.yaml")
	writeFile(t, path, `
agents:
  - name: a
    llm:
      provider: openai
      api_base: ${AGENTC_BASE:-https://api.openai.com}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com", cfg.Agents[0].LLM.APIBase)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentc.yaml")
	writeFile(t, path, `
agents:
  - name: a
    llm:
      provider: openai
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "simple", cfg.LogFormat)
	assert.Equal(t, defaultMaxIterations, cfg.Agents[0].MaxIterations)
	assert.Equal(t, defaultMaxTokens, cfg.Agents[0].LLM.MaxTokens)
}

func TestLoadRejectsAgentWithoutProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentc.yaml")
	writeFile(t, path, `
agents:
  - name: a
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsDuplicateAgentNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentc.yaml")
	writeFile(t, path, `
agents:
  - name: a
    llm: { provider: openai }
  - name: a
    llm: { provider: anthropic }
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestToMCPFileConfigConvertsServerList(t *testing.T) {
	cfg := &Config{MCPServers: []MCPServerSpec{{Name: "fs", URL: "http://localhost:9000", TimeoutMs: 5000}}}
	fc := cfg.ToMCPFileConfig()
	require.Len(t, fc.Servers, 1)
	assert.Equal(t, "fs", fc.Servers[0].Name)
	assert.Equal(t, 5000, fc.Servers[0].TimeoutMs)
}

func TestAgentSpecToAgentConfigCarriesLLMParams(t *testing.T) {
	spec := AgentSpec{Name: "a", Instructions: "help", LLM: LLMSpec{Provider: "openai", Model: "gpt-4o"}, MaxIterations: 3}
	ac := spec.ToAgentConfig()
	assert.Equal(t, "a", ac.Name)
	assert.Equal(t, 3, ac.MaxIterations)
	assert.Equal(t, "gpt-4o", ac.LLMParams.Model)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentc.yaml")
	writeFile(t, path, `
agents:
  - name: a
    llm: { provider: openai }
`)

	reloaded := make(chan *Config, 1)
	stop, err := Watch(path, func(c *Config) { reloaded <- c })
	require.NoError(t, err)
	defer stop()

	writeFile(t, path, `
agents:
  - name: b
    llm: { provider: anthropic }
`)

	select {
	case cfg := <-reloaded:
		require.Len(t, cfg.Agents, 1)
		assert.Equal(t, "b", cfg.Agents[0].Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
