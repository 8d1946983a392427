// Package dict implements [transcriber.Transcriber] with an in-process
// dictionary of Hanzi → Shidinn entries.
//
// The dictionary is a YAML document of the form:
//
//	entries:
//	  好:
//	    - v: xo
//	  行:
//	    - v: xin
//	      note: "to walk\nto be OK"
//	    - v: hang
//	    - v: hhang
//	      legacy: true
//
// Keys may be single characters or multi-character words. Transcription uses
// greedy longest-match from left to right; characters with no entry are
// passed through as [transcriber.Text]. Every dictionary hit produces an
// [transcriber.AlternativeSet] (even when only one candidate exists) so that
// downstream formatting decides how to present it.
//
// A [Dictionary] is read-only after construction and safe for concurrent use.
package dict

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/shidinn/pkg/transcriber"
)

// Entry is one candidate translation of a dictionary key.
type Entry struct {
	// V is the rendered Chat Alphabet value. Must not be empty.
	V string `yaml:"v"`

	// Legacy marks a deprecated candidate.
	Legacy bool `yaml:"legacy"`

	// Note is an optional annotation shown in footnotes.
	Note string `yaml:"note"`
}

// file is the on-disk YAML shape.
type file struct {
	Entries map[string][]Entry `yaml:"entries"`
}

// Dictionary is a longest-match dictionary transcriber.
type Dictionary struct {
	entries map[string]transcriber.AlternativeSet
	maxLen  int // longest key, in runes
}

// Compile-time check: Dictionary must implement transcriber.Transcriber.
var _ transcriber.Transcriber = (*Dictionary)(nil)

// Load reads the YAML dictionary at path.
func Load(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dict: open %q: %w", path, err)
	}
	defer f.Close()

	d, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("dict: parse %q: %w", path, err)
	}
	return d, nil
}

// Parse decodes a YAML dictionary from r.
func Parse(r io.Reader) (*Dictionary, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("dict: decode yaml: %w", err)
	}
	return New(f.Entries)
}

// New builds a Dictionary from entries. It returns a joined error listing
// every empty key, key without candidates, and candidate without a value.
func New(entries map[string][]Entry) (*Dictionary, error) {
	var errs []error
	d := &Dictionary{entries: make(map[string]transcriber.AlternativeSet, len(entries))}

	for key, cands := range entries {
		if key == "" {
			errs = append(errs, errors.New("dict: empty key"))
			continue
		}
		if len(cands) == 0 {
			errs = append(errs, fmt.Errorf("dict: key %q has no entries", key))
			continue
		}

		set := make(transcriber.AlternativeSet, 0, len(cands))
		for i, c := range cands {
			if c.V == "" {
				errs = append(errs, fmt.Errorf("dict: key %q entry %d has an empty value", key, i))
				continue
			}
			set = append(set, transcriber.Alternation{
				Content: []transcriber.CharMapping{{H: key, V: c.V}},
				Legacy:  c.Legacy,
				Note:    c.Note,
			})
		}
		d.entries[key] = set
		d.maxLen = max(d.maxLen, utf8.RuneCountInString(key))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return d, nil
}

// Len returns the number of dictionary keys.
func (d *Dictionary) Len() int {
	return len(d.entries)
}

// Transcribe implements [transcriber.Transcriber].
//
// opts.ZiSeparator is emitted as a Text segment between two consecutive
// dictionary hits; it is never inserted next to untranslated text.
func (d *Dictionary) Transcribe(ctx context.Context, text string, opts transcriber.Options) ([]transcriber.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dict: %w", err)
	}

	runes := []rune(text)
	var (
		segs    []transcriber.Segment
		pending strings.Builder
		lastHit bool
	)

	flush := func() {
		if pending.Len() > 0 {
			segs = append(segs, transcriber.Text(pending.String()))
			pending.Reset()
		}
	}

	for i := 0; i < len(runes); {
		key, set := d.longestMatch(runes[i:])
		if set == nil {
			pending.WriteRune(runes[i])
			lastHit = false
			i++
			continue
		}

		flush()
		if lastHit && opts.ZiSeparator != "" {
			segs = append(segs, transcriber.Text(opts.ZiSeparator))
		}
		segs = append(segs, cloneSet(set))
		lastHit = true
		i += utf8.RuneCountInString(key)
	}
	flush()

	return segs, nil
}

// longestMatch returns the longest dictionary key that prefixes runes.
func (d *Dictionary) longestMatch(runes []rune) (string, transcriber.AlternativeSet) {
	for n := min(d.maxLen, len(runes)); n > 0; n-- {
		key := string(runes[:n])
		if set, ok := d.entries[key]; ok {
			return key, set
		}
	}
	return "", nil
}

// cloneSet copies set so that callers cannot alias dictionary storage.
func cloneSet(set transcriber.AlternativeSet) transcriber.AlternativeSet {
	out := make(transcriber.AlternativeSet, len(set))
	for i, a := range set {
		out[i] = a
		out[i].Content = append([]transcriber.CharMapping(nil), a.Content...)
	}
	return out
}
