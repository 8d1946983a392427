// Package transcriber defines the interface for Hanzi → Shidinn (xdi8)
// transcription backends and the segment types they produce.
//
// A transcription is an ordered sequence of [Segment] values. Each segment is
// one of:
//
//   - [Text]: literal text the transcriber left untouched.
//   - [AlternativeSet]: competing translations for one source substring.
//   - [Rendered]: a single source/rendered pair already resolved upstream.
//
// Segments are immutable once returned; consumers must not modify the slices
// they receive.
//
// Implementations must be safe for concurrent use.
package transcriber

import (
	"context"
	"errors"
	"strings"
)

// ErrMalformedSegment is returned (wrapped) when a segment does not match any
// of the known segment shapes.
var ErrMalformedSegment = errors.New("transcriber: malformed segment")

// Options controls a single transcription call.
type Options struct {
	// ZiSeparator is inserted between consecutive transcribed words.
	ZiSeparator string
}

// Transcriber converts Chinese text to Shidinn segments.
type Transcriber interface {
	// Transcribe converts text into an ordered sequence of segments.
	// It returns an error if the backend fails; partial results are never
	// returned alongside an error.
	Transcribe(ctx context.Context, text string, opts Options) ([]Segment, error)
}

// Segment is one unit of transcription output. The concrete type is one of
// [Text], [AlternativeSet] or [Rendered].
type Segment interface {
	isSegment()
}

// Text is literal text passed through by the transcriber.
type Text string

// AlternativeSet lists the candidate translations for one source substring,
// in the transcriber's order of preference.
type AlternativeSet []Alternation

// Rendered is a segment whose translation was resolved upstream. It is
// rendered verbatim.
type Rendered CharMapping

func (Text) isSegment()           {}
func (AlternativeSet) isSegment() {}
func (Rendered) isSegment()       {}

// CharMapping maps one source unit to its rendered form.
type CharMapping struct {
	// H is the source Hanzi.
	H string `json:"h" yaml:"h"`

	// V is the rendered Chat Alphabet value.
	V string `json:"v" yaml:"v"`
}

// Alternation is one candidate translation for a source substring.
type Alternation struct {
	// Content is the ordered list of character mappings making up this
	// candidate. May be empty.
	Content []CharMapping `json:"content"`

	// Legacy marks a deprecated, low-priority candidate.
	Legacy bool `json:"legacy,omitempty"`

	// Note is an optional free-text annotation. May contain newlines.
	Note string `json:"note,omitempty"`
}

// Source returns the concatenated source characters of a.
func (a Alternation) Source() string {
	var sb strings.Builder
	for _, c := range a.Content {
		sb.WriteString(c.H)
	}
	return sb.String()
}

// Value returns the concatenated rendered values of a.
func (a Alternation) Value() string {
	var sb strings.Builder
	for _, c := range a.Content {
		sb.WriteString(c.V)
	}
	return sb.String()
}
