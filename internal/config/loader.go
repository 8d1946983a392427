package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/shidinn/internal/mcp"
)

// Defaults applied by [ApplyDefaults] to unset fields.
const (
	DefaultLogLevel       = LogInfo
	DefaultMCPTransport   = mcp.TransportStdio
	DefaultKind           = TranscriberDict
	DefaultRemoteTool     = "transcribe"
	DefaultServerName     = "xdi8"
	DefaultZiSeparator    = " "
	DefaultHistoryWindow  = 10
	DefaultFuzzyThreshold = 0.9
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults and
// validates the result. Unknown fields are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills every unset field of cfg with its default value.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.MCP.Transport == "" {
		cfg.MCP.Transport = DefaultMCPTransport
	}

	t := &cfg.Transcriber
	if t.Kind == "" {
		t.Kind = DefaultKind
	}
	if t.Kind == TranscriberRemote {
		if t.Tool == "" {
			t.Tool = DefaultRemoteTool
		}
		if t.Server.Name == "" {
			t.Server.Name = DefaultServerName
		}
		if t.Server.Transport == "" {
			t.Server.Transport = mcp.TransportStdio
		}
	}

	if cfg.Tool.ZiSeparator == nil {
		sep := DefaultZiSeparator
		cfg.Tool.ZiSeparator = &sep
	}
	if cfg.Tool.HistoryWindow == 0 {
		cfg.Tool.HistoryWindow = DefaultHistoryWindow
	}
	if cfg.Tool.FuzzyThreshold == 0 {
		cfg.Tool.FuzzyThreshold = DefaultFuzzyThreshold
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// MCP surface
	if cfg.MCP.Transport != "" && !cfg.MCP.Transport.IsValid() {
		errs = append(errs, fmt.Errorf("mcp.transport %q is invalid; valid values: stdio, streamable-http", cfg.MCP.Transport))
	}
	if cfg.MCP.Transport == mcp.TransportStreamableHTTP && cfg.MCP.ListenAddr == "" {
		errs = append(errs, errors.New("mcp.listen_addr is required when transport is streamable-http"))
	}
	if cfg.MCP.ListenAddr != "" && cfg.MCP.ListenAddr == cfg.Server.MetricsAddr {
		errs = append(errs, fmt.Errorf("mcp.listen_addr and server.metrics_addr must differ, both are %q", cfg.MCP.ListenAddr))
	}

	// Transcriber
	t := cfg.Transcriber
	switch t.Kind {
	case "", TranscriberDict:
		if t.Dictionary == "" {
			errs = append(errs, errors.New("transcriber.dictionary is required when kind is dict"))
		}
		if t.Server.Command != "" || t.Server.URL != "" {
			slog.Warn("transcriber.server is ignored when kind is dict")
		}
		if t.FallbackDictionary != "" {
			errs = append(errs, errors.New("transcriber.fallback_dictionary is only valid when kind is remote"))
		}
	case TranscriberRemote:
		srv := t.Server
		prefix := "transcriber.server"
		if srv.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		}
		if srv.Transport != "" && !srv.Transport.IsValid() {
			errs = append(errs, fmt.Errorf("%s.transport %q is invalid; valid values: stdio, streamable-http", prefix, srv.Transport))
		}
		if srv.Transport == mcp.TransportStdio && srv.Command == "" {
			errs = append(errs, fmt.Errorf("%s.command is required when transport is stdio", prefix))
		}
		if srv.Transport == mcp.TransportStreamableHTTP && srv.URL == "" {
			errs = append(errs, fmt.Errorf("%s.url is required when transport is streamable-http", prefix))
		}
	default:
		errs = append(errs, fmt.Errorf("transcriber.kind %q is invalid; valid values: dict, remote", t.Kind))
	}
	if t.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("transcriber.breaker.max_failures %d must not be negative", t.Breaker.MaxFailures))
	}
	if t.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("transcriber.breaker.reset_timeout %s must not be negative", t.Breaker.ResetTimeout))
	}

	// Tool
	if cfg.Tool.HistoryWindow < 0 {
		errs = append(errs, fmt.Errorf("tool.history_window %d must not be negative", cfg.Tool.HistoryWindow))
	}
	if cfg.Tool.FuzzyThreshold < 0 || cfg.Tool.FuzzyThreshold > 1 {
		errs = append(errs, fmt.Errorf("tool.fuzzy_threshold %.2f is out of range (0, 1]", cfg.Tool.FuzzyThreshold))
	}
	for i, kw := range cfg.Tool.Keywords {
		if kw == "" {
			errs = append(errs, fmt.Errorf("tool.keywords[%d] is empty", i))
		}
	}

	return errors.Join(errs...)
}
