package mcp

// Transport selects the connection mechanism for an MCP endpoint, both for
// the tools this process serves and for upstream servers it calls.
type Transport string

const (
	// TransportStdio communicates over stdin/stdout (of this process when
	// serving, of a spawned subprocess when calling out).
	TransportStdio Transport = "stdio"

	// TransportStreamableHTTP communicates via the MCP Streamable HTTP protocol.
	TransportStreamableHTTP Transport = "streamable-http"
)

// IsValid reports whether t is a recognised transport.
func (t Transport) IsValid() bool {
	return t == TransportStdio || t == TransportStreamableHTTP
}

// ToolResult holds the outcome of a single tool execution.
type ToolResult struct {
	// Content is the tool's textual output, ready for insertion into a chat
	// model's context window.
	Content string

	// IsError indicates that the tool returned an application-level error
	// (as opposed to a host failure returned via the Go error return value).
	// When IsError is true, Content contains the error message.
	IsError bool

	// DurationMs is the wall-clock execution time in milliseconds.
	DurationMs int64
}
