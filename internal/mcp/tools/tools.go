// Package tools defines the shared [Tool] type used by all built-in tool
// packages. Each sub-package exports a constructor that returns one or more
// [Tool] values ready for registration with the tool host.
package tools

import (
	"context"

	"github.com/MrWong99/shidinn/pkg/types"
)

// Tool represents a built-in tool ready for registration with the host.
//
// Each Tool carries its model-facing schema ([types.ToolDefinition])
// together with the handler invoked when the model calls the tool, and an
// optional selector deciding whether the tool is worth offering at all for
// the current conversation.
type Tool struct {
	// Definition is the tool's model-facing schema including its name,
	// description, and JSON Schema parameter specification.
	Definition types.ToolDefinition

	// Handler executes the tool with JSON-encoded args and returns the
	// textual result on success, or a descriptive error.
	// Implementations must be safe for concurrent use and must respect
	// context cancellation.
	Handler func(ctx context.Context, args string) (string, error)

	// Selector reports whether the tool should be offered given the
	// conversation history (oldest first). A nil Selector means always.
	Selector func(history []types.Message) bool

	// DeclaredP50 is the tool author's declared median execution latency in
	// milliseconds.
	DeclaredP50 int64

	// DeclaredMax is the tool author's declared p99 upper-bound latency in
	// milliseconds. The host uses it as a hard timeout; zero disables it.
	DeclaredMax int64
}
