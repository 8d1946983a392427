// Package mcp defines the interface for the chat-bot tool host.
//
// The host keeps a catalogue of built-in tools, decides which of them to
// offer to the chat model for a given conversation, executes tool calls, and
// exposes the catalogue to MCP clients.
//
// Lifecycle:
//
//  1. Register tools (see mcphost.Host.Register).
//  2. Use [Host.SelectTools] to pick the tools relevant to a conversation.
//  3. Use [Host.ExecuteTool] to run a tool on behalf of the chat model.
//  4. Call [Host.Close] to release resources.
//
// All methods must be safe for concurrent use.
package mcp

import (
	"context"

	"github.com/MrWong99/shidinn/pkg/types"
)

// Host routes tool calls and decides tool visibility.
//
// Implementations must be safe for concurrent use.
type Host interface {
	// AvailableTools returns every registered tool, sorted by name.
	AvailableTools() []types.ToolDefinition

	// SelectTools returns the tools whose selector accepts history, sorted by
	// name. Tools without a selector are always selected.
	SelectTools(history []types.Message) []types.ToolDefinition

	// ExecuteTool calls the named tool with JSON-encoded args and returns the
	// result.
	//
	// A non-nil *ToolResult is returned on success even when
	// [ToolResult.IsError] is true (application-level error). A Go error is
	// returned only when the tool does not exist.
	ExecuteTool(ctx context.Context, name string, args string) (*ToolResult, error)

	// Close releases all resources. After Close returns the Host must not be
	// used again.
	Close() error
}
