package transcriber

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeSegments parses a JSON array of segments.
//
// Each element is decoded by shape:
//
//	"text"                                   → Text
//	[{"content":[{"h":..,"v":..}], ...}, …]  → AlternativeSet
//	{"h":..,"v":..}                          → Rendered
//
// Any other element (numbers, booleans, null, objects without "v") yields an
// error wrapping [ErrMalformedSegment].
func DecodeSegments(data []byte) ([]Segment, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("transcriber: decode segments: %w", err)
	}

	segs := make([]Segment, 0, len(raw))
	for i, r := range raw {
		seg, err := decodeSegment(r)
		if err != nil {
			return nil, fmt.Errorf("transcriber: segment %d: %w", i, err)
		}
		segs = append(segs, seg)
	}
	return segs, nil
}

func decodeSegment(r json.RawMessage) (Segment, error) {
	r = bytes.TrimSpace(r)
	if len(r) == 0 {
		return nil, ErrMalformedSegment
	}

	switch r[0] {
	case '"':
		var s string
		if err := json.Unmarshal(r, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSegment, err)
		}
		return Text(s), nil

	case '[':
		var alts []Alternation
		if err := json.Unmarshal(r, &alts); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSegment, err)
		}
		return AlternativeSet(alts), nil

	case '{':
		var m struct {
			H *string `json:"h"`
			V *string `json:"v"`
		}
		if err := json.Unmarshal(r, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSegment, err)
		}
		if m.V == nil {
			return nil, fmt.Errorf("%w: object without \"v\"", ErrMalformedSegment)
		}
		var h string
		if m.H != nil {
			h = *m.H
		}
		return Rendered{H: h, V: *m.V}, nil
	}

	return nil, fmt.Errorf("%w: unexpected JSON %s", ErrMalformedSegment, truncate(r, 32))
}

// EncodeSegments is the inverse of [DecodeSegments].
func EncodeSegments(segs []Segment) ([]byte, error) {
	out := make([]any, 0, len(segs))
	for i, s := range segs {
		switch v := s.(type) {
		case Text:
			out = append(out, string(v))
		case AlternativeSet:
			alts := []Alternation(v)
			if alts == nil {
				alts = []Alternation{}
			}
			out = append(out, alts)
		case Rendered:
			out = append(out, CharMapping(v))
		default:
			return nil, fmt.Errorf("transcriber: segment %d: %w: %T", i, ErrMalformedSegment, s)
		}
	}
	return json.Marshal(out)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
