// Package xdi8 provides the built-in "hanzi_to_xdi8" tool, which transcribes
// Simplified Chinese into the Chat Alphabet form of Shidinn (xdi8).
//
// The tool calls a [transcriber.Transcriber] once per request and formats
// its output: plain text is punctuation-normalised, unambiguous characters
// are inlined, and ambiguous characters get the first candidate inline plus
// a numbered footnote listing every candidate. Repeated ambiguous substrings
// share one footnote.
//
// Every failure (transcriber errors, malformed segments, panics) is contained
// inside [Translator.Translate]: it is logged and counted, and the caller only
// ever sees [FailureMessage].
package xdi8

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/shidinn/internal/mcp/tools"
	"github.com/MrWong99/shidinn/internal/observe"
	"github.com/MrWong99/shidinn/pkg/transcriber"
	"github.com/MrWong99/shidinn/pkg/types"
)

const (
	// ToolName is the tool's registered name.
	ToolName = "hanzi_to_xdi8"

	// FailureMessage is the only text returned to callers when translation
	// fails for any reason.
	FailureMessage = "An unknown error occurred"

	// DefaultZiSeparator is passed to the transcriber unless overridden.
	DefaultZiSeparator = " "
)

// toolDescription is shown to the chat model.
const toolDescription = "This takes a piece of Chinese text and tries to translate it, " +
	"character by character, to Shidinn, and returns the result in Chat Alphabet. " +
	"Input must be in Simplified Chinese. Untranslatable characters are kept as is." +
	"When different translations are possible for a single Chinese character, " +
	"one is picked while a footnote indicating all possible translations for the character is provided. " +
	"Carefully examine each footnote. " +
	"Replace the word with another translation from the footnote if the automatically picked one seems incorrect."

// ErrTranscriberFailure wraps any error returned by the transcriber.
var ErrTranscriberFailure = errors.New("xdi8: transcriber failure")

// errPanic wraps a recovered panic.
var errPanic = errors.New("xdi8: panic")

// Outcome is the result of one translation: either a formatted response or
// the generic failure marker. Err is for diagnostics only and must not be
// shown to end users.
type Outcome struct {
	text string
	err  error
}

// OK reports whether the translation succeeded.
func (o Outcome) OK() bool { return o.err == nil }

// Err returns the internal failure cause, or nil on success.
func (o Outcome) Err() error { return o.err }

// String returns the user-facing response: the formatted translation on
// success, [FailureMessage] otherwise.
func (o Outcome) String() string {
	if o.err != nil {
		return FailureMessage
	}
	return o.text
}

// Option is a functional option for configuring a [Translator].
type Option func(*Translator)

// WithZiSeparator sets the separator passed to the transcriber.
// Default: [DefaultZiSeparator].
func WithZiSeparator(sep string) Option {
	return func(t *Translator) {
		t.ziSeparator = sep
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(t *Translator) {
		t.metrics = m
	}
}

// Translator runs the transcribe-and-format pipeline. It holds no per-request
// state and is safe for concurrent use.
type Translator struct {
	transcriber transcriber.Transcriber
	ziSeparator string
	metrics     *observe.Metrics
}

// New returns a Translator backed by tr.
func New(tr transcriber.Transcriber, opts ...Option) (*Translator, error) {
	if tr == nil {
		return nil, errors.New("xdi8: transcriber must not be nil")
	}
	t := &Translator{
		transcriber: tr,
		ziSeparator: DefaultZiSeparator,
	}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t, nil
}

// Translate transcribes input and formats the result. It never returns a
// partial translation: on any failure the Outcome carries only the cause.
func (t *Translator) Translate(ctx context.Context, input string) (out Outcome) {
	ctx, span := observe.StartSpan(ctx, "xdi8.translate")
	defer span.End()

	log := observe.Logger(ctx)
	log.Debug("call", "input", input)

	defer func() {
		if r := recover(); r != nil {
			out = t.fail(ctx, span, "panic", fmt.Errorf("%w: %v", errPanic, r))
		}
	}()

	segs, err := t.transcribe(ctx, input)
	if err != nil {
		return t.fail(ctx, span, "transcriber", fmt.Errorf("%w: %w", ErrTranscriberFailure, err))
	}

	tr, err := Render(Flatten(segs))
	if err != nil {
		return t.fail(ctx, span, "malformed", err)
	}

	resp := tr.String()
	t.metrics.RecordFootnotes(ctx, len(tr.Footnotes))
	log.Debug("response", "response", resp)
	return Outcome{text: resp}
}

// transcribe makes the single transcriber call for a request.
func (t *Translator) transcribe(ctx context.Context, input string) ([]transcriber.Segment, error) {
	ctx, span := observe.StartSpan(ctx, "xdi8.transcribe")
	defer span.End()

	start := time.Now()
	defer func() { t.metrics.RecordTranscription(ctx, time.Since(start)) }()
	return t.transcriber.Transcribe(ctx, input, transcriber.Options{ZiSeparator: t.ziSeparator})
}

func (t *Translator) fail(ctx context.Context, span trace.Span, kind string, err error) Outcome {
	observe.Logger(ctx).Error("xdi8: translation failed", "kind", kind, "err", err)
	t.metrics.RecordTranscriptionFailure(ctx, kind)
	observe.FailSpan(span, err)
	return Outcome{err: err}
}

// args is the JSON-decoded input for the tool.
type args struct {
	// Input is the Simplified Chinese text to transcribe.
	Input string `json:"input"`
}

// handle implements the tool handler. Only malformed call arguments are
// reported as errors; translation failures surface as [FailureMessage].
func (t *Translator) handle(ctx context.Context, raw string) (string, error) {
	var a args
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return "", fmt.Errorf("xdi8: failed to parse arguments: %w", err)
	}
	return t.Translate(ctx, a.Input).String(), nil
}

// Tool returns the "hanzi_to_xdi8" tool ready for registration with the host.
// sel decides when the tool is offered; nil offers it unconditionally.
func (t *Translator) Tool(sel *Selector) tools.Tool {
	tool := tools.Tool{
		Definition: types.ToolDefinition{
			Name:        ToolName,
			Description: toolDescription,
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"input": map[string]any{
						"type":        "string",
						"description": "Simplified Chinese text to translate to Shidinn.",
					},
				},
				"required": []string{"input"},
			},
			EstimatedDurationMs: 5,
			MaxDurationMs:       2000,
			Idempotent:          true,
		},
		Handler:     t.handle,
		DeclaredP50: 5,
		DeclaredMax: 2000,
	}
	if sel != nil {
		tool.Selector = func(history []types.Message) bool {
			return sel.Select(history)
		}
	}
	return tool
}
