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

// Package logger configures the process-wide slog.Logger: level
// parsing, third-party log suppression unless the level is debug, and a terminal-
// aware colored text format.
package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

const modulePackagePrefix = "github.com/openagentc/agentc"

// ParseLevel converts a case-insensitive level name to a slog.Level.
// An unrecognized name falls back to warn, matching this package's
// conservative default output.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Format selects how records are rendered.
type Format string

const (
	// FormatSimple renders level + message + attrs, no timestamp.
	FormatSimple Format = "simple"
	// FormatVerbose renders timestamp + level + message + attrs.
	FormatVerbose Format = "verbose"
)

var defaultLogger *slog.Logger

// Init builds the process-wide logger at level, writing to output in
// format, and installs it as slog's default so every package (and any
// third-party library that logs through slog) picks it up. Unless
// level is debug or lower, log records whose call site isn't under this
// module's package prefix are suppressed, so a noisy dependency doesn't drown
// out this runtime's own logs at info/warn/error.
func Init(level slog.Level, output *os.File, format Format) {
	base := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
				return slog.String(slog.LevelKey, "WARN")
			}
			return a
		},
	})

	var handler slog.Handler = base
	if format == FormatSimple || isTerminal(output) {
		handler = &textHandler{next: base, writer: output, color: isTerminal(output), verbose: format == FormatVerbose}
	}

	defaultLogger = slog.New(&suppressThirdPartyHandler{next: handler, minLevel: level})
	slog.SetDefault(defaultLogger)
}

// GetLogger returns the process-wide logger, initializing it at info
// level with the simple format on stderr (colored when stderr is a
// terminal) if Init was never called.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, FormatSimple)
	}
	return defaultLogger
}

// OpenLogFile opens path for appending, creating it if absent, and
// returns the handle plus a close function.
func OpenLogFile(path string) (*os.File, func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// suppressThirdPartyHandler drops every record whose call site isn't
// under this module, so an imported library's chatter at info/warn
// doesn't compete with this runtime's own logs in normal operation;
// when minLevel is debug or lower the filter passes every record.
type suppressThirdPartyHandler struct {
	next     slog.Handler
	minLevel slog.Level
}

func (h *suppressThirdPartyHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *suppressThirdPartyHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || h.fromThisModule(record.PC) {
		return h.next.Handle(ctx, record)
	}
	return nil
}

func (h *suppressThirdPartyHandler) fromThisModule(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(fn.Name(), modulePackagePrefix) || strings.Contains(file, "/agentc/")
}

func (h *suppressThirdPartyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &suppressThirdPartyHandler{next: h.next.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *suppressThirdPartyHandler) WithGroup(name string) slog.Handler {
	return &suppressThirdPartyHandler{next: h.next.WithGroup(name), minLevel: h.minLevel}
}

// textHandler renders a compact, optionally colored single-line form:
// "[time] LEVEL message key=value...". Used instead of slog's own
// TextHandler output whenever a terminal is attached, or FormatSimple
// was requested on a non-terminal (e.g. redirected to a file a human
// still tails).
type textHandler struct {
	next    slog.Handler
	writer  *os.File
	color   bool
	verbose bool
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}

func (h *textHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *textHandler) Handle(ctx context.Context, record slog.Record) error {
	var buf strings.Builder
	if h.verbose && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006-01-02 15:04:05 "))
	}

	levelStr := record.Level.String()
	if levelStr == "WARNING" {
		levelStr = "WARN"
	}
	if h.color {
		buf.WriteString(levelColor(record.Level))
		buf.WriteString(levelStr)
		buf.WriteString("\033[0m")
	} else {
		buf.WriteString(levelStr)
	}
	buf.WriteString(" ")
	buf.WriteString(record.Message)

	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")

	_, err := h.writer.WriteString(buf.String())
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &textHandler{next: h.next.WithAttrs(attrs), writer: h.writer, color: h.color, verbose: h.verbose}
}

func (h *textHandler) WithGroup(name string) slog.Handler {
	return &textHandler{next: h.next.WithGroup(name), writer: h.writer, color: h.color, verbose: h.verbose}
}
