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

package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openagentc/agentc/pkg/tool"
)

func writeConfig(t *testing.T, path string, cfg FileConfig) {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestLoadConfigParsesServerList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".mcp.json")
	writeConfig(t, path, FileConfig{Servers: []ServerConfig{
		{Name: "a", URL: "http://example.invalid/a"},
		{Name: "b", URL: "http://example.invalid/b", TimeoutMs: 5000},
	}})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 2)
	assert.Equal(t, "a", cfg.Servers[0].Name)
	assert.Equal(t, 5000, cfg.Servers[1].TimeoutMs)
}

func TestLoadConfigMissingFileReturnsError(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestConnectAllSkipsDisabledServers(t *testing.T) {
	srv := newEchoToolServer(t)
	defer srv.Close()

	disabled := false
	cfg := &FileConfig{Servers: []ServerConfig{
		{Name: "live", URL: srv.URL},
		{Name: "off", URL: srv.URL, Enabled: &disabled},
	}}

	registry := tool.New()
	connected := ConnectAll(context.Background(), cfg, registry)
	assert.Equal(t, 1, connected)
	assert.Equal(t, 1, registry.Count())
}

func TestConnectAllSkipsUnreachableServerAndContinues(t *testing.T) {
	srv := newEchoToolServer(t)
	defer srv.Close()

	cfg := &FileConfig{Servers: []ServerConfig{
		{Name: "dead", URL: "http://127.0.0.1:0/nope", TimeoutMs: 200},
		{Name: "live", URL: srv.URL},
	}}

	registry := tool.New()
	connected := ConnectAll(context.Background(), cfg, registry)
	assert.Equal(t, 1, connected)
	assert.Equal(t, 1, registry.Count())
}

func TestWatchConfigReloadsOnWrite(t *testing.T) {
	srv := newEchoToolServer(t)
	defer srv.Close()

	dir := t.TempDir()
	path := filepath.Join(dir, ".mcp.json")
	writeConfig(t, path, FileConfig{Servers: []ServerConfig{}})

	registry := tool.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop, err := WatchConfig(ctx, path, registry)
	require.NoError(t, err)
	defer stop()

	writeConfig(t, path, FileConfig{Servers: []ServerConfig{{Name: "live", URL: srv.URL}}})

	require.Eventually(t, func() bool {
		return registry.Count() == 1
	}, 2*time.Second, 20*time.Millisecond)
}
