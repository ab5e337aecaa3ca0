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

// Package logger installs a slog.Logger as the process default: a
// filtering handler that mutes third-party library logs below debug
// level, plus a colorized text formatter for terminal output.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

var defaultLogger *slog.Logger

const modulePackagePrefix = "github.com/loopwork-ai/agentrt"

// ParseLevel converts a string log level to slog.Level. Valid levels:
// debug, info, warn, error. Anything else falls back to warn.
func ParseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

// filteringHandler wraps a slog handler and mutes logs from outside this
// module unless the configured level is debug.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel && h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug || h.isOwnPackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func (h *filteringHandler) isOwnPackage(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(fn.Name(), modulePackagePrefix) || strings.Contains(file, "agentrt/")
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

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func normalizeLevel(s string) string {
	if s == "WARNING" {
		return "WARN"
	}
	return s
}

// coloredTextHandler renders level+message+attrs with ANSI color by level,
// used when output is a terminal.
type coloredTextHandler struct {
	writer io.Writer
	simple bool // simple: level+message only; otherwise time+level+message
}

func (h *coloredTextHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *coloredTextHandler) Handle(_ context.Context, record slog.Record) error {
	var buf strings.Builder
	if !h.simple && !record.Time.IsZero() {
		buf.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}
	color := levelColor(record.Level)
	buf.WriteString(color)
	buf.WriteString(strings.ToUpper(normalizeLevel(record.Level.String())))
	buf.WriteString("\033[0m ")
	buf.WriteString(record.Message)
	record.Attrs(func(a slog.Attr) bool {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
		return true
	})
	buf.WriteString("\n")
	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *coloredTextHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *coloredTextHandler) WithGroup(string) slog.Handler      { return h }

// simpleTextHandler renders level+message+attrs with no color, for
// non-terminal simple-format output.
type simpleTextHandler struct {
	writer io.Writer
}

func (h *simpleTextHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *simpleTextHandler) Handle(_ context.Context, record slog.Record) error {
	var buf strings.Builder
	buf.WriteString(strings.ToUpper(normalizeLevel(record.Level.String())))
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
	_, err := h.writer.Write([]byte(buf.String()))
	return err
}

func (h *simpleTextHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *simpleTextHandler) WithGroup(string) slog.Handler      { return h }

// Init installs a slog.Logger as the process default. format is "simple" or
// empty (level + message), "verbose" (time + level + message), or anything else
// for slog's standard text format. Color is used automatically when output
// is a terminal.
func Init(level slog.Level, output *os.File, format string) {
	simple := format == "simple" || format == ""
	verbose := format == "verbose"

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				return slog.String("level", normalizeLevel(a.Value.String()))
			}
			return a
		},
	}

	var handler slog.Handler = slog.NewTextHandler(output, opts)
	switch {
	case isTerminal(output) && (simple || verbose):
		handler = &coloredTextHandler{writer: output, simple: simple}
	case !isTerminal(output) && simple:
		handler = &simpleTextHandler{writer: output}
	}

	defaultLogger = slog.New(&filteringHandler{handler: handler, minLevel: level})
	slog.SetDefault(defaultLogger)
}

// OpenLogFile opens (creating if necessary) a file for append-mode logging.
func OpenLogFile(path string) (*os.File, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// GetLogger returns the process default logger, initializing it at info
// level to stderr in simple format if Init has not been called yet.
func GetLogger() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, "simple")
	}
	return defaultLogger
}
