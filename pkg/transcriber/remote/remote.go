// Package remote implements [transcriber.Transcriber] by calling a
// transcription tool on an external MCP server.
//
// The server must expose a tool (default name "transcribe") that accepts
//
//	{"text": "<hanzi>", "zi_separator": " "}
//
// and returns a single text content holding a JSON array of segments in the
// format read by [transcriber.DecodeSegments].
package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/shidinn/internal/mcp"
	"github.com/MrWong99/shidinn/pkg/transcriber"
)

// DefaultTool is the tool name called when Config.Tool is empty.
const DefaultTool = "transcribe"

// Config describes how to reach the transcription server.
type Config struct {
	// Name identifies the server in logs and errors.
	Name string

	// Transport selects stdio (spawn Command) or streamable-http (dial URL).
	Transport mcp.Transport

	// Command is the executable and arguments for the stdio transport,
	// split on whitespace.
	Command string

	// URL is the endpoint for the streamable-http transport.
	URL string

	// Env holds additional environment variables for the stdio subprocess.
	Env map[string]string

	// Tool is the name of the transcription tool. Default: [DefaultTool].
	Tool string
}

// Transcriber calls a remote MCP tool for every transcription. It is safe for
// concurrent use; the underlying session multiplexes requests.
type Transcriber struct {
	session *mcpsdk.ClientSession
	tool    string
}

// Compile-time check: Transcriber must implement transcriber.Transcriber.
var _ transcriber.Transcriber = (*Transcriber)(nil)

// Dial connects to the server described by cfg and checks that it exposes
// the transcription tool.
func Dial(ctx context.Context, cfg Config) (*Transcriber, error) {
	if cfg.Name == "" {
		return nil, errors.New("remote: server config must have a non-empty name")
	}
	if !cfg.Transport.IsValid() {
		return nil, fmt.Errorf("remote: unknown transport %q for server %q", cfg.Transport, cfg.Name)
	}

	var transport mcpsdk.Transport
	switch cfg.Transport {
	case mcp.TransportStdio:
		executable, args := splitCommand(cfg.Command)
		if executable == "" {
			return nil, fmt.Errorf("remote: stdio server %q requires a non-empty command", cfg.Name)
		}
		// The subprocess outlives ctx; it is stopped by Close.
		cmd := exec.Command(executable, args...)
		if len(cfg.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range cfg.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcpsdk.CommandTransport{Command: cmd}

	case mcp.TransportStreamableHTTP:
		if cfg.URL == "" {
			return nil, fmt.Errorf("remote: streamable-http server %q requires a non-empty url", cfg.Name)
		}
		transport = &mcpsdk.StreamableClientTransport{Endpoint: cfg.URL}
	}

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "shidinn-remote", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: failed to connect to server %q: %w", cfg.Name, err)
	}

	t, err := New(ctx, session, cfg.Tool)
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("remote: server %q: %w", cfg.Name, err)
	}
	return t, nil
}

// New wraps an established session. It lists the server's tools and fails
// when tool (or [DefaultTool] if empty) is not among them.
func New(ctx context.Context, session *mcpsdk.ClientSession, tool string) (*Transcriber, error) {
	if session == nil {
		return nil, errors.New("remote: session must not be nil")
	}
	if tool == "" {
		tool = DefaultTool
	}

	var names []string
	for t, err := range session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("remote: failed to list tools: %w", err)
		}
		names = append(names, t.Name)
	}
	if !slices.Contains(names, tool) {
		return nil, fmt.Errorf("remote: tool %q not offered (have %v)", tool, names)
	}

	return &Transcriber{session: session, tool: tool}, nil
}

// Transcribe sends text to the remote tool and decodes the returned segments.
func (t *Transcriber) Transcribe(ctx context.Context, text string, opts transcriber.Options) ([]transcriber.Segment, error) {
	res, err := t.session.CallTool(ctx, &mcpsdk.CallToolParams{
		Name: t.tool,
		Arguments: map[string]any{
			"text":         text,
			"zi_separator": opts.ZiSeparator,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("remote: call to tool %q failed: %w", t.tool, err)
	}

	var sb strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			sb.WriteString(tc.Text)
		}
	}
	if res.IsError {
		return nil, fmt.Errorf("remote: tool %q returned error: %s", t.tool, sb.String())
	}

	segs, err := transcriber.DecodeSegments([]byte(sb.String()))
	if err != nil {
		return nil, fmt.Errorf("remote: tool %q: %w", t.tool, err)
	}
	return segs, nil
}

// Close terminates the session and, for stdio servers, the subprocess.
func (t *Transcriber) Close() error {
	if err := t.session.Close(); err != nil {
		return fmt.Errorf("remote: close session: %w", err)
	}
	return nil
}

// splitCommand splits a command string into executable and arguments.
// e.g. "/bin/foo --bar baz" → ("/bin/foo", ["--bar", "baz"]).
func splitCommand(command string) (executable string, args []string) {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return "", nil
	}
	return parts[0], parts[1:]
}
