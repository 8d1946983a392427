// Package mcphost provides a concrete implementation of the [mcp.Host] interface.
//
// It keeps a concurrent-safe in-memory registry of built-in tools, offers
// each tool only when its selector accepts the conversation, runs calls
// in-process under the tool's declared latency ceiling, and serves the
// registry to MCP clients using the official MCP Go SDK
// (github.com/modelcontextprotocol/go-sdk).
//
// Typical usage:
//
//	h := mcphost.New()
//
//	translator, _ := xdi8.New(tr)
//	if err := h.Register(translator.Tool(xdi8.NewSelector())); err != nil {
//	    return err
//	}
//
//	// Tools relevant to the conversation so far.
//	defs := h.SelectTools(history)
//
//	// Execute a tool.
//	result, err := h.ExecuteTool(ctx, "hanzi_to_xdi8", `{"input":"你好"}`)
//
//	// Or expose every tool over MCP stdio.
//	err = h.ServeStdio(ctx)
//
//	h.Close()
package mcphost

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/shidinn/internal/mcp"
	"github.com/MrWong99/shidinn/internal/mcp/tools"
	"github.com/MrWong99/shidinn/internal/observe"
	"github.com/MrWong99/shidinn/pkg/types"
)

// toolEntry holds all metadata for a single registered tool.
type toolEntry struct {
	def           types.ToolDefinition
	declaredP50Ms int64
	declaredMaxMs int64
	handler       func(ctx context.Context, args string) (string, error)
	selector      func(history []types.Message) bool
}

// Option is a functional option for configuring a [Host].
type Option func(*Host)

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(h *Host) {
		h.metrics = m
	}
}

// Host is a concrete implementation of [mcp.Host].
//
// The zero value is NOT usable; create instances with [New].
type Host struct {
	mu     sync.RWMutex
	tools  map[string]toolEntry // key: tool name
	closed bool

	metrics *observe.Metrics
}

// Compile-time check: Host must implement mcp.Host.
var _ mcp.Host = (*Host)(nil)

// New creates and returns a ready-to-use Host.
func New(opts ...Option) *Host {
	h := &Host{
		tools: make(map[string]toolEntry),
	}
	for _, o := range opts {
		o(h)
	}
	if h.metrics == nil {
		h.metrics = observe.DefaultMetrics()
	}
	return h
}

// Register adds a built-in tool that is called in-process.
//
// If a tool with the same name is already registered it is replaced.
// Register is safe for concurrent use.
func (h *Host) Register(tool tools.Tool) error {
	if tool.Definition.Name == "" {
		return fmt.Errorf("mcp host: tool must have a non-empty name")
	}
	if tool.Handler == nil {
		return fmt.Errorf("mcp host: tool %q must have a non-nil handler", tool.Definition.Name)
	}
	if tool.DeclaredMax < 0 {
		return fmt.Errorf("mcp host: tool %q has negative DeclaredMax %d", tool.Definition.Name, tool.DeclaredMax)
	}

	entry := toolEntry{
		def:           tool.Definition,
		declaredP50Ms: tool.DeclaredP50,
		declaredMaxMs: tool.DeclaredMax,
		handler:       tool.Handler,
		selector:      tool.Selector,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return fmt.Errorf("mcp host: register %q: host is closed", tool.Definition.Name)
	}
	h.tools[tool.Definition.Name] = entry
	return nil
}

// snapshot returns a copy of all entries sorted by tool name.
func (h *Host) snapshot() []toolEntry {
	h.mu.RLock()
	entries := make([]toolEntry, 0, len(h.tools))
	for _, e := range h.tools {
		entries = append(entries, e)
	}
	h.mu.RUnlock()

	slices.SortFunc(entries, func(a, b toolEntry) int {
		return strings.Compare(a.def.Name, b.def.Name)
	})
	return entries
}

// AvailableTools returns every registered tool, sorted by name.
func (h *Host) AvailableTools() []types.ToolDefinition {
	entries := h.snapshot()
	defs := make([]types.ToolDefinition, 0, len(entries))
	for _, e := range entries {
		defs = append(defs, e.def)
	}
	return defs
}

// SelectTools returns the tools whose selector accepts history, sorted by
// name. Tools registered without a selector are always selected. Selectors
// run outside the registry lock.
func (h *Host) SelectTools(history []types.Message) []types.ToolDefinition {
	var defs []types.ToolDefinition
	for _, e := range h.snapshot() {
		if e.selector == nil || e.selector(history) {
			defs = append(defs, e.def)
		}
	}
	return defs
}

// ExecuteTool calls the named tool with JSON-encoded args and returns the
// result. name must exactly match a [types.ToolDefinition.Name] returned by
// [Host.AvailableTools].
//
// When the tool declares a DeclaredMax latency the handler runs under a
// context deadline of that many milliseconds. A handler error, including a
// missed deadline, is reported as a [mcp.ToolResult] with IsError set. A Go
// error is returned only when the tool does not exist.
func (h *Host) ExecuteTool(ctx context.Context, name string, args string) (*mcp.ToolResult, error) {
	h.mu.RLock()
	entry, ok := h.tools[name]
	h.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("mcp host: tool %q not found", name)
	}

	ctx, span := observe.StartSpan(ctx, "mcphost.execute",
		trace.WithAttributes(attribute.String("tool", name)))
	defer span.End()

	if entry.declaredMaxMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(entry.declaredMaxMs)*time.Millisecond)
		defer cancel()
	}

	start := time.Now()
	output, err := entry.handler(ctx, args)
	elapsed := time.Since(start)

	status := observe.StatusOK
	result := &mcp.ToolResult{Content: output, DurationMs: elapsed.Milliseconds()}
	if err != nil {
		status = observe.StatusError
		result.Content = err.Error()
		result.IsError = true
		observe.FailSpan(span, err)
		observe.Logger(ctx).Warn("mcp host: tool returned error", "tool", name, "err", err)
	}
	h.metrics.RecordToolCall(ctx, name, status, elapsed)

	return result, nil
}

// Close clears the tool registry. After Close returns the Host must not be
// used again.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tools = make(map[string]toolEntry)
	h.closed = true
	return nil
}
