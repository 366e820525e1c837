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
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/openagentc/agentc/pkg/agentcerr"
	"github.com/openagentc/agentc/pkg/tool"
)

// ServerConfig is one server entry in a multi-server config file.
type ServerConfig struct {
	Name      string `json:"name,omitempty"`
	URL       string `json:"url"`
	APIKey    string `json:"api_key,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
	Enabled   *bool  `json:"enabled,omitempty"`
}

func (s ServerConfig) enabled() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

func (s ServerConfig) label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// FileConfig is the on-disk shape of a multi-server MCP config file.
type FileConfig struct {
	Servers []ServerConfig `json:"servers"`
}

// LoadConfig reads and parses a multi-server config file.
func LoadConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindIO, err, "reading mcp config %s", path)
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "parsing mcp config %s", path)
	}
	return &cfg, nil
}

// ConnectAll connects every enabled server in cfg and registers its
// discovered tools into registry. A server whose client creation,
// connect, tool discovery, or registration fails is logged and skipped.
// Returns the number of servers whose tools were successfully added.
func ConnectAll(ctx context.Context, cfg *FileConfig, registry *tool.Registry) int {
	connected := 0
	for _, sc := range cfg.Servers {
		if !sc.enabled() {
			continue
		}

		client := New(sc.URL, sc.APIKey, sc.TimeoutMs)
		if err := client.Connect(ctx); err != nil {
			slog.Warn("mcp server connect failed", "server", sc.label(), "error", err)
			continue
		}
		if err := registry.AddMCP(ctx, client); err != nil {
			slog.Warn("mcp server tool registration failed", "server", sc.label(), "error", err)
			client.Disconnect()
			continue
		}
		connected++
	}
	return connected
}

// WatchConfig watches path for changes and re-runs ConnectAll on every
// write, so servers added or enabled in a live-edited config come online
// without a restart. Returns a stop function; ctx cancellation also stops
// the watch.
func WatchConfig(ctx context.Context, path string, registry *tool.Registry) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindBackend, err, "creating mcp config watcher")
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, agentcerr.Wrap(agentcerr.KindIO, err, "watching %s", dir)
	}

	target := filepath.Clean(path)
	const debounce = 200 * time.Millisecond

	go func() {
		defer watcher.Close()
		var timer *time.Timer
		reload := func() {
			cfg, err := LoadConfig(path)
			if err != nil {
				slog.Warn("mcp config reload failed", "path", path, "error", err)
				return
			}
			n := ConnectAll(ctx, cfg, registry)
			slog.Info("reloaded mcp config", "path", path, "connected", n)
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("mcp config watcher error", "path", path, "error", err)
			}
		}
	}()

	return func() error { return watcher.Close() }, nil
}
