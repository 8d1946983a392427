// Package config provides the configuration schema, loader, and transcriber
// registry for the shidinn tool server.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/shidinn/internal/mcp"
)

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l to the matching [slog.Level]. Unknown values map to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// TranscriberKind selects the transcriber implementation.
type TranscriberKind string

const (
	// TranscriberDict looks characters up in a local YAML dictionary.
	TranscriberDict TranscriberKind = "dict"

	// TranscriberRemote calls a transcription tool on an external MCP server.
	TranscriberRemote TranscriberKind = "remote"
)

// IsValid reports whether k is a recognised transcriber kind.
func (k TranscriberKind) IsValid() bool {
	return k == TranscriberDict || k == TranscriberRemote
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	MCP         MCPConfig         `yaml:"mcp"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	Tool        ToolConfig        `yaml:"tool"`
}

// ServerConfig holds logging and operational endpoint settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the TCP address serving /metrics and /healthz
	// (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// MCPConfig selects how the registered tools are exposed to MCP clients.
type MCPConfig struct {
	// Transport is stdio or streamable-http.
	Transport mcp.Transport `yaml:"transport"`

	// ListenAddr is the TCP address for the streamable-http transport.
	// Ignored for stdio.
	ListenAddr string `yaml:"listen_addr"`
}

// TranscriberConfig selects and configures the transcriber backend.
type TranscriberConfig struct {
	// Kind is dict or remote.
	Kind TranscriberKind `yaml:"kind"`

	// Dictionary is the path of the YAML dictionary file. Required for dict.
	Dictionary string `yaml:"dictionary"`

	// Server describes the MCP server hosting the transcription tool.
	// Required for remote.
	Server MCPServerConfig `yaml:"server"`

	// Tool is the name of the remote transcription tool.
	Tool string `yaml:"tool"`

	// FallbackDictionary is an optional local dictionary consulted when the
	// remote transcriber fails or its circuit is open. Only valid for remote.
	FallbackDictionary string `yaml:"fallback_dictionary"`

	// Breaker tunes the circuit breaker guarding the remote transcriber.
	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes a circuit breaker. Zero values take the breaker's
// own defaults.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long an open circuit waits before a probe call
	// (e.g., "30s").
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// MCPServerConfig describes how to connect to a single MCP server.
type MCPServerConfig struct {
	// Name is a human-readable identifier for this server (used in logs).
	Name string `yaml:"name"`

	// Transport specifies the connection mechanism.
	Transport mcp.Transport `yaml:"transport"`

	// Command is the executable (with optional arguments) launched when
	// Transport is "stdio". Ignored for streamable-http transport.
	Command string `yaml:"command"`

	// URL is the MCP endpoint address used when Transport is "streamable-http"
	// (e.g., "https://mcp.example.com/mcp"). Ignored for stdio transport.
	URL string `yaml:"url"`

	// Env holds additional environment variables injected into the subprocess
	// when Transport is "stdio". May be nil.
	Env map[string]string `yaml:"env"`
}

// ToolConfig tunes the hanzi_to_xdi8 tool.
type ToolConfig struct {
	// ZiSeparator is passed to the transcriber and separates transcribed
	// words. Nil means the default single space; an explicit "" is kept.
	ZiSeparator *string `yaml:"zi_separator"`

	// Keywords trigger the tool when they appear in recent conversation.
	Keywords []string `yaml:"keywords"`

	// HistoryWindow is how many recent messages the selector inspects.
	HistoryWindow int `yaml:"history_window"`

	// FuzzyThreshold is the minimum Jaro-Winkler score in (0, 1].
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}
