package xdi8

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/MrWong99/shidinn/pkg/transcriber"
)

// ErrorMarker is rendered in place of a collapsed alternative set that has no
// usable content.
const ErrorMarker = "[ERROR]"

// FootnoteGroup collects every candidate translation of one distinct
// ambiguous source substring within a single formatting pass.
type FootnoteGroup struct {
	// Seq is the 1-based footnote number, assigned at first occurrence.
	Seq int

	// Source is the concatenated source characters of the first candidate.
	Source string

	// Alternatives are the surviving candidates, in transcriber order.
	Alternatives []transcriber.Alternation
}

// Transcript is the rendered result of one formatting pass.
type Transcript struct {
	// Text is the annotated body with [^N] footnote markers, trailing
	// whitespace removed.
	Text string

	// Footnotes are ordered by Seq.
	Footnotes []FootnoteGroup
}

// String renders the user-facing response:
//
//	Translation: <text>
//
//	Footnotes:
//	1. "<source>" possible translations:
//	* <value> (<note>)
//
// The footnote section is omitted when there are no footnotes.
func (t Transcript) String() string {
	var sb strings.Builder
	sb.WriteString("Translation: ")
	sb.WriteString(t.Text)
	if len(t.Footnotes) == 0 {
		return sb.String()
	}

	sb.WriteString("\n\nFootnotes:\n")
	for i, g := range t.Footnotes {
		if i > 0 {
			sb.WriteByte('\n')
		}
		writeFootnote(&sb, g)
	}
	return sb.String()
}

func writeFootnote(sb *strings.Builder, g FootnoteGroup) {
	sb.WriteString(strconv.Itoa(g.Seq))
	sb.WriteString(`. "`)
	sb.WriteString(g.Source)
	sb.WriteString(`" possible translations:`)
	for _, alt := range g.Alternatives {
		sb.WriteString("\n* ")
		sb.WriteString(alt.Value())
		if alt.Note != "" {
			sb.WriteString(" (")
			sb.WriteString(strings.ReplaceAll(alt.Note, "\n", ". "))
			sb.WriteString(")")
		}
	}
}

// Format flattens and renders segs into the user-facing response string.
func Format(segs []transcriber.Segment) (string, error) {
	t, err := Render(Flatten(segs))
	if err != nil {
		return "", err
	}
	return t.String(), nil
}

// Flatten resolves alternative sets that do not need a footnote.
//
// Legacy candidates are dropped whenever at least one non-legacy candidate
// remains. A set left with a single candidate collapses into one
// [transcriber.Rendered] segment per character mapping, or into
// [ErrorMarker] text when there is nothing to render. Sets with two or more
// candidates and all other segments are passed through.
//
// segs is not modified; the returned slice is newly allocated.
func Flatten(segs []transcriber.Segment) []transcriber.Segment {
	out := make([]transcriber.Segment, 0, len(segs))
	for _, seg := range segs {
		set, ok := seg.(transcriber.AlternativeSet)
		if !ok {
			out = append(out, seg)
			continue
		}

		if current := withoutLegacy(set); len(current) > 0 {
			set = current
		}
		if len(set) > 1 {
			out = append(out, set)
			continue
		}
		if len(set) == 0 || len(set[0].Content) == 0 {
			out = append(out, transcriber.Text(ErrorMarker))
			continue
		}
		for _, c := range set[0].Content {
			out = append(out, transcriber.Rendered(c))
		}
	}
	return out
}

// withoutLegacy returns a new set holding only the non-legacy candidates.
func withoutLegacy(set transcriber.AlternativeSet) transcriber.AlternativeSet {
	var out transcriber.AlternativeSet
	for _, alt := range set {
		if !alt.Legacy {
			out = append(out, alt)
		}
	}
	return out
}

// Render assembles flattened segments into a [Transcript].
//
// Text is punctuation-normalised, Rendered segments contribute their value,
// and each remaining alternative set contributes its first candidate followed
// by a [^N] marker. Sets sharing a source key share one footnote.
//
// Any other segment type yields an error wrapping
// [transcriber.ErrMalformedSegment].
func Render(segs []transcriber.Segment) (Transcript, error) {
	groups := orderedmap.New[string, *FootnoteGroup]()
	var sb strings.Builder

	for i, seg := range segs {
		switch s := seg.(type) {
		case transcriber.Text:
			sb.WriteString(NormalizePunctuation(string(s)))

		case transcriber.AlternativeSet:
			if len(s) == 0 {
				return Transcript{}, fmt.Errorf("xdi8: segment %d: %w: empty alternative set", i, transcriber.ErrMalformedSegment)
			}
			source := s[0].Source()
			g, ok := groups.Get(source)
			if !ok {
				g = &FootnoteGroup{Seq: groups.Len() + 1, Source: source, Alternatives: s}
				groups.Set(source, g)
			}
			sb.WriteString(s[0].Value())
			sb.WriteString("[^")
			sb.WriteString(strconv.Itoa(g.Seq))
			sb.WriteString("]")

		case transcriber.Rendered:
			sb.WriteString(s.V)

		default:
			return Transcript{}, fmt.Errorf("xdi8: segment %d: %w: %T", i, transcriber.ErrMalformedSegment, seg)
		}
	}

	t := Transcript{
		Text:      strings.TrimRightFunc(sb.String(), unicode.IsSpace),
		Footnotes: make([]FootnoteGroup, 0, groups.Len()),
	}
	for pair := groups.Oldest(); pair != nil; pair = pair.Next() {
		t.Footnotes = append(t.Footnotes, *pair.Value)
	}
	return t, nil
}
