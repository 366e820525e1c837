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
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/openagentc/agentc/pkg/agentcerr"
)

// Load reads path, parses it as YAML (falling back to JSON), expands
// ${VAR}/${VAR:-default}/$VAR references against the process
// environment, decodes the result into a Config, applies defaults, and
// validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindIO, err, "reading config %s", path)
	}

	raw, err := parseBytes(data)
	if err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "parsing config %s", path)
	}

	expanded := expandEnvVars(raw)

	cfg := &Config{}
	if err := decodeConfig(expanded, cfg); err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindParse, err, "decoding config %s", path)
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseBytes parses raw bytes into a map, trying YAML first (a
// superset of JSON) and falling back to JSON.
func parseBytes(data []byte) (map[string]any, error) {
	var result map[string]any
	if err := yaml.Unmarshal(data, &result); err == nil {
		return result, nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("not valid YAML or JSON: %w", err)
	}
	return result, nil
}

// decodeConfig decodes input into output using yaml-tagged field names,
// weak typing (numbers/bools arriving as strings from expanded env
// vars still decode), and duration/comma-list hooks.
func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("building decoder: %w", err)
	}
	return decoder.Decode(input)
}

func expandEnvVars(input map[string]any) map[string]any {
	result := make(map[string]any, len(input))
	for k, v := range input {
		result[k] = expandValue(v)
	}
	return result
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnvString(val)
	case map[string]any:
		return expandEnvVars(val)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = expandValue(item)
		}
		return result
	default:
		return v
	}
}

// envVarPattern matches ${VAR}, ${VAR:-default}, and $VAR.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1]
			if idx := strings.Index(inner, ":-"); idx != -1 {
				varName, defaultVal := inner[:idx], inner[idx+2:]
				if val := os.Getenv(varName); val != "" {
					return val
				}
				return defaultVal
			}
			return os.Getenv(inner)
		}
		return os.Getenv(match[1:])
	})
}

// Watch watches path for changes and calls onChange with the freshly
// reloaded Config on every write. A reload that fails validation is
// logged and the previous configuration stays in effect. Returns a
// stop function that ends the watch.
func Watch(path string, onChange func(*Config)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, agentcerr.Wrap(agentcerr.KindBackend, err, "creating config watcher")
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
			cfg, err := Load(path)
			if err != nil {
				slog.Error("config reload failed", "path", path, "error", err)
				return
			}
			onChange(cfg)
		}
		for event := range watcher.Events {
			if filepath.Clean(event.Name) != target {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, reload)
		}
	}()

	return watcher.Close, nil
}
