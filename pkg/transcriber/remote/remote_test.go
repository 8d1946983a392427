package remote

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/shidinn/internal/mcp"
	"github.com/MrWong99/shidinn/pkg/transcriber"
)

// fakeServer records the arguments of every transcribe call and answers
// with reply.
type fakeServer struct {
	mu      sync.Mutex
	calls   []map[string]string
	reply   string
	isError bool
}

func (f *fakeServer) handle(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args map[string]string
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, args)
	reply, isError := f.reply, f.isError
	f.mu.Unlock()

	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: reply}},
		IsError: isError,
	}, nil
}

// connect starts an in-memory MCP server exposing toolName and returns a
// client session to it.
func connect(t *testing.T, f *fakeServer, toolName string) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "fake-xdi8", Version: "0.0.1"}, nil)
	server.AddTool(&mcpsdk.Tool{
		Name:        toolName,
		Description: "transcribes hanzi",
		InputSchema: map[string]any{"type": "object"},
	}, f.handle)

	serverT, clientT := mcpsdk.NewInMemoryTransports()
	ss, err := server.Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server Connect: %v", err)
	}
	t.Cleanup(func() { _ = ss.Close() })

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0.0.1"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client Connect: %v", err)
	}
	return cs
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	f := &fakeServer{reply: `["你",[{"content":[{"h":"好","v":"xo"}]}],{"h":"们","v":"mun"}]`}
	tr, err := New(context.Background(), connect(t, f, DefaultTool), "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })

	got, err := tr.Transcribe(context.Background(), "你好们", transcriber.Options{ZiSeparator: " "})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	want := []transcriber.Segment{
		transcriber.Text("你"),
		transcriber.AlternativeSet{{Content: []transcriber.CharMapping{{H: "好", V: "xo"}}}},
		transcriber.Rendered{H: "们", V: "mun"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Transcribe() =\n%#v\nwant\n%#v", got, want)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) != 1 {
		t.Fatalf("server calls = %d, want 1", len(f.calls))
	}
	if f.calls[0]["text"] != "你好们" || f.calls[0]["zi_separator"] != " " {
		t.Errorf("server received %v", f.calls[0])
	}
}

func TestTranscribe_CustomToolName(t *testing.T) {
	t.Parallel()

	f := &fakeServer{reply: `["x"]`}
	tr, err := New(context.Background(), connect(t, f, "hanzi"), "hanzi")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = tr.Close() })

	if _, err := tr.Transcribe(context.Background(), "x", transcriber.Options{}); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
}

func TestTranscribe_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		server        *fakeServer
		wantMalformed bool
		wantSubstr    string
	}{
		{
			name:       "tool reports error",
			server:     &fakeServer{reply: "dictionary not loaded", isError: true},
			wantSubstr: "dictionary not loaded",
		},
		{
			name:          "malformed segment",
			server:        &fakeServer{reply: `["ok", 42]`},
			wantMalformed: true,
		},
		{
			name:       "not json",
			server:     &fakeServer{reply: "oops"},
			wantSubstr: "decode segments",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tr, err := New(context.Background(), connect(t, tt.server, DefaultTool), "")
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			t.Cleanup(func() { _ = tr.Close() })

			_, err = tr.Transcribe(context.Background(), "你", transcriber.Options{ZiSeparator: " "})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if tt.wantMalformed != errors.Is(err, transcriber.ErrMalformedSegment) {
				t.Errorf("errors.Is(err, ErrMalformedSegment) = %v, want %v (err=%v)",
					!tt.wantMalformed, tt.wantMalformed, err)
			}
			if tt.wantSubstr != "" && !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("error %q does not contain %q", err, tt.wantSubstr)
			}
		})
	}
}

func TestNew_MissingTool(t *testing.T) {
	t.Parallel()

	cs := connect(t, &fakeServer{}, "something_else")
	t.Cleanup(func() { _ = cs.Close() })

	_, err := New(context.Background(), cs, "")
	if err == nil {
		t.Fatal("expected error when the server lacks the transcribe tool")
	}
	if !strings.Contains(err.Error(), DefaultTool) {
		t.Errorf("error %q should name the missing tool", err)
	}
}

func TestNew_NilSession(t *testing.T) {
	t.Parallel()
	if _, err := New(context.Background(), nil, ""); err == nil {
		t.Error("New(nil session) expected error, got nil")
	}
}

func TestDial_InvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty name", Config{Transport: mcp.TransportStdio, Command: "xdi8"}},
		{"bad transport", Config{Name: "x", Transport: "carrier-pigeon"}},
		{"stdio without command", Config{Name: "x", Transport: mcp.TransportStdio}},
		{"http without url", Config{Name: "x", Transport: mcp.TransportStreamableHTTP}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Dial(context.Background(), tt.cfg)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.HasPrefix(err.Error(), "remote:") {
				t.Errorf("error %q should be prefixed with 'remote:'", err)
			}
		})
	}
}

func TestSplitCommand(t *testing.T) {
	t.Parallel()

	exe, args := splitCommand("  node  xdi8-mcp.js --stdio ")
	if exe != "node" || !reflect.DeepEqual(args, []string{"xdi8-mcp.js", "--stdio"}) {
		t.Errorf("splitCommand = %q %v", exe, args)
	}
	if exe, _ := splitCommand("   "); exe != "" {
		t.Errorf("splitCommand(blank) executable = %q, want empty", exe)
	}
}
