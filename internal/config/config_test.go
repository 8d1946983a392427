package config_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/shidinn/internal/config"
	"github.com/MrWong99/shidinn/internal/mcp"
	"github.com/MrWong99/shidinn/pkg/transcriber"
	"github.com/MrWong99/shidinn/pkg/transcriber/mock"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  log_level: debug
  metrics_addr: ":9090"

mcp:
  transport: streamable-http
  listen_addr: ":8080"

transcriber:
  kind: remote
  server:
    name: xdi8-js
    transport: stdio
    command: node xdi8-mcp.js
    env:
      XDI8_DATA: /srv/xdi8
  tool: hanzi

tool:
  zi_separator: "-"
  keywords: ["希顶", "xdi8"]
  history_window: 5
  fuzzy_threshold: 0.8
`

func load(t *testing.T, yaml string) (*config.Config, error) {
	t.Helper()
	return config.LoadFromReader(strings.NewReader(yaml))
}

func mustFail(t *testing.T, yaml, wantSubstr string) {
	t.Helper()
	_, err := load(t, yaml)
	if err == nil {
		t.Fatalf("expected error mentioning %q, got nil", wantSubstr)
	}
	if !strings.Contains(err.Error(), wantSubstr) {
		t.Errorf("error should mention %q, got: %v", wantSubstr, err)
	}
}

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()
	cfg, err := load(t, sampleYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("server.log_level: got %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.MCP.Transport != mcp.TransportStreamableHTTP || cfg.MCP.ListenAddr != ":8080" {
		t.Errorf("mcp: got %+v", cfg.MCP)
	}
	tr := cfg.Transcriber
	if tr.Kind != config.TranscriberRemote || tr.Tool != "hanzi" {
		t.Errorf("transcriber: got kind %q tool %q", tr.Kind, tr.Tool)
	}
	if tr.Server.Command != "node xdi8-mcp.js" || tr.Server.Env["XDI8_DATA"] != "/srv/xdi8" {
		t.Errorf("transcriber.server: got %+v", tr.Server)
	}
	if got := *cfg.Tool.ZiSeparator; got != "-" {
		t.Errorf("tool.zi_separator: got %q, want %q", got, "-")
	}
	if len(cfg.Tool.Keywords) != 2 || cfg.Tool.HistoryWindow != 5 || cfg.Tool.FuzzyThreshold != 0.8 {
		t.Errorf("tool: got %+v", cfg.Tool)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := load(t, "transcriber:\n  dictionary: ./xdi8.yaml\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.LogLevel != config.DefaultLogLevel {
		t.Errorf("log_level default: got %q", cfg.Server.LogLevel)
	}
	if cfg.MCP.Transport != mcp.TransportStdio {
		t.Errorf("mcp.transport default: got %q", cfg.MCP.Transport)
	}
	if cfg.Transcriber.Kind != config.TranscriberDict {
		t.Errorf("transcriber.kind default: got %q", cfg.Transcriber.Kind)
	}
	if cfg.Tool.ZiSeparator == nil || *cfg.Tool.ZiSeparator != " " {
		t.Errorf("zi_separator default: got %v", cfg.Tool.ZiSeparator)
	}
	if cfg.Tool.HistoryWindow != 10 {
		t.Errorf("history_window default: got %d, want 10", cfg.Tool.HistoryWindow)
	}
	if cfg.Tool.FuzzyThreshold != 0.9 {
		t.Errorf("fuzzy_threshold default: got %v, want 0.9", cfg.Tool.FuzzyThreshold)
	}
}

func TestLoadFromReader_RemoteDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := load(t, "transcriber:\n  kind: remote\n  server:\n    command: xdi8-server\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	srv := cfg.Transcriber.Server
	if srv.Name != config.DefaultServerName || srv.Transport != mcp.TransportStdio {
		t.Errorf("remote server defaults: got %+v", srv)
	}
	if cfg.Transcriber.Tool != config.DefaultRemoteTool {
		t.Errorf("remote tool default: got %q", cfg.Transcriber.Tool)
	}
}

func TestLoadFromReader_RemoteFallback(t *testing.T) {
	t.Parallel()
	cfg, err := load(t, "transcriber:\n  kind: remote\n  server:\n    command: xdi8-server\n"+
		"  fallback_dictionary: d.yaml\n  breaker:\n    max_failures: 3\n    reset_timeout: 1m30s\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tc := cfg.Transcriber
	if tc.FallbackDictionary != "d.yaml" {
		t.Errorf("fallback_dictionary: got %q", tc.FallbackDictionary)
	}
	if tc.Breaker.MaxFailures != 3 || tc.Breaker.ResetTimeout != 90*time.Second {
		t.Errorf("breaker: got %+v", tc.Breaker)
	}
}

func TestLoadFromReader_EmptySeparatorKept(t *testing.T) {
	t.Parallel()
	cfg, err := load(t, "transcriber:\n  dictionary: d.yaml\ntool:\n  zi_separator: \"\"\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *cfg.Tool.ZiSeparator != "" {
		t.Errorf("explicit empty zi_separator replaced by %q", *cfg.Tool.ZiSeparator)
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	mustFail(t, "transcriber:\n  dictionary: d.yaml\n  dictonary: typo.yaml\n", "dictonary")
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("transcriber:\n  dictionary: d.yaml\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := config.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) error = %v, want os.ErrNotExist", err)
	}
}

// ── Validation ────────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		yaml       string
		wantSubstr string
	}{
		{
			name:       "invalid log level",
			yaml:       "server:\n  log_level: verbose\ntranscriber:\n  dictionary: d.yaml\n",
			wantSubstr: "log_level",
		},
		{
			name:       "dict without dictionary",
			yaml:       "{}",
			wantSubstr: "transcriber.dictionary",
		},
		{
			name:       "invalid kind",
			yaml:       "transcriber:\n  kind: oracle\n",
			wantSubstr: "transcriber.kind",
		},
		{
			name:       "remote stdio without command",
			yaml:       "transcriber:\n  kind: remote\n",
			wantSubstr: "transcriber.server.command",
		},
		{
			name:       "remote http without url",
			yaml:       "transcriber:\n  kind: remote\n  server:\n    transport: streamable-http\n",
			wantSubstr: "transcriber.server.url",
		},
		{
			name:       "remote invalid transport",
			yaml:       "transcriber:\n  kind: remote\n  server:\n    transport: http\n    url: x\n",
			wantSubstr: "transcriber.server.transport",
		},
		{
			name:       "fallback with dict kind",
			yaml:       "transcriber:\n  dictionary: d.yaml\n  fallback_dictionary: f.yaml\n",
			wantSubstr: "fallback_dictionary",
		},
		{
			name:       "negative breaker failures",
			yaml:       "transcriber:\n  kind: remote\n  server:\n    command: x\n  breaker:\n    max_failures: -1\n",
			wantSubstr: "breaker.max_failures",
		},
		{
			name:       "negative breaker timeout",
			yaml:       "transcriber:\n  kind: remote\n  server:\n    command: x\n  breaker:\n    reset_timeout: -5s\n",
			wantSubstr: "breaker.reset_timeout",
		},
		{
			name:       "invalid mcp transport",
			yaml:       "mcp:\n  transport: websocket\ntranscriber:\n  dictionary: d.yaml\n",
			wantSubstr: "mcp.transport",
		},
		{
			name:       "http without listen addr",
			yaml:       "mcp:\n  transport: streamable-http\ntranscriber:\n  dictionary: d.yaml\n",
			wantSubstr: "mcp.listen_addr",
		},
		{
			name: "listen addr clashes with metrics",
			yaml: "server:\n  metrics_addr: \":8080\"\nmcp:\n  transport: streamable-http\n  listen_addr: \":8080\"\n" +
				"transcriber:\n  dictionary: d.yaml\n",
			wantSubstr: "must differ",
		},
		{
			name:       "threshold out of range",
			yaml:       "transcriber:\n  dictionary: d.yaml\ntool:\n  fuzzy_threshold: 1.5\n",
			wantSubstr: "fuzzy_threshold",
		},
		{
			name:       "negative window",
			yaml:       "transcriber:\n  dictionary: d.yaml\ntool:\n  history_window: -3\n",
			wantSubstr: "history_window",
		},
		{
			name:       "empty keyword",
			yaml:       "transcriber:\n  dictionary: d.yaml\ntool:\n  keywords: [\"xdi8\", \"\"]\n",
			wantSubstr: "tool.keywords[1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			mustFail(t, tt.yaml, tt.wantSubstr)
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	_, err := load(t, "server:\n  log_level: loud\ntool:\n  history_window: -1\n")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "transcriber.dictionary", "history_window"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestLogLevel_Level(t *testing.T) {
	t.Parallel()
	tests := map[config.LogLevel]slog.Level{
		config.LogDebug: slog.LevelDebug,
		config.LogInfo:  slog.LevelInfo,
		config.LogWarn:  slog.LevelWarn,
		config.LogError: slog.LevelError,
		"":              slog.LevelInfo,
	}
	for in, want := range tests {
		if got := in.Level(); got != want {
			t.Errorf("LogLevel(%q).Level() = %v, want %v", in, got, want)
		}
	}
}

// ── Registry ──────────────────────────────────────────────────────────────────

func TestRegistry_Unknown(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	_, err := reg.CreateTranscriber(context.Background(), config.TranscriberConfig{Kind: config.TranscriberDict})
	if !errors.Is(err, config.ErrTranscriberNotRegistered) {
		t.Errorf("expected ErrTranscriberNotRegistered, got %v", err)
	}
}

func TestRegistry_Registered(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	want := &mock.Transcriber{}
	var gotCfg config.TranscriberConfig
	reg.RegisterTranscriber(config.TranscriberDict, func(_ context.Context, cfg config.TranscriberConfig) (transcriber.Transcriber, error) {
		gotCfg = cfg
		return want, nil
	})

	cfg := config.TranscriberConfig{Kind: config.TranscriberDict, Dictionary: "d.yaml"}
	got, err := reg.CreateTranscriber(context.Background(), cfg)
	if err != nil {
		t.Fatalf("CreateTranscriber: %v", err)
	}
	if got != want {
		t.Error("CreateTranscriber returned a different transcriber")
	}
	if gotCfg.Dictionary != "d.yaml" {
		t.Errorf("factory received %+v", gotCfg)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	wantErr := errors.New("factory boom")
	reg.RegisterTranscriber(config.TranscriberRemote, func(context.Context, config.TranscriberConfig) (transcriber.Transcriber, error) {
		return nil, wantErr
	})
	_, err := reg.CreateTranscriber(context.Background(), config.TranscriberConfig{Kind: config.TranscriberRemote})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected factory error %v, got %v", wantErr, err)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	t.Parallel()
	cfg, err := config.Load(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("configs/example.yaml does not load: %v", err)
	}
	if cfg.Transcriber.Kind != config.TranscriberDict {
		t.Errorf("example transcriber.kind = %q, want dict", cfg.Transcriber.Kind)
	}
}
