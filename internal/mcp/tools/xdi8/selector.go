package xdi8

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/MrWong99/shidinn/pkg/types"
)

const (
	defaultHistoryWindow  = 10
	defaultFuzzyThreshold = 0.90
)

// DefaultKeywords trigger the tool when they appear (or nearly appear) in
// recent conversation.
var DefaultKeywords = []string{"希顶", "xdi8", "shidinn"}

// SelectorOption is a functional option for configuring a [Selector].
type SelectorOption func(*Selector)

// WithKeywords replaces the trigger keywords. Default: [DefaultKeywords].
func WithKeywords(keywords ...string) SelectorOption {
	return func(s *Selector) {
		s.keywords = normalizeKeywords(keywords)
	}
}

// WithHistoryWindow sets how many of the most recent messages are inspected.
// Default: 10.
func WithHistoryWindow(n int) SelectorOption {
	return func(s *Selector) {
		s.window = n
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for a near match.
// Default: 0.90.
func WithFuzzyThreshold(threshold float64) SelectorOption {
	return func(s *Selector) {
		s.threshold = threshold
	}
}

// Selector decides whether the tool is relevant to a conversation by fuzzy
// keyword matching over recent messages. It is read-only after construction
// and safe for concurrent use.
type Selector struct {
	keywords  []string
	window    int
	threshold float64
}

// NewSelector returns a Selector configured with the supplied options.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{
		keywords:  normalizeKeywords(DefaultKeywords),
		window:    defaultHistoryWindow,
		threshold: defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	if s.window <= 0 {
		s.window = defaultHistoryWindow
	}
	return s
}

// Select reports whether any of the last window messages in history matches
// a keyword.
func (s *Selector) Select(history []types.Message) bool {
	if len(history) > s.window {
		history = history[len(history)-s.window:]
	}
	for _, m := range history {
		if s.Matches(m.Content) {
			return true
		}
	}
	return false
}

// Matches reports whether content contains a keyword, either literally
// (case-insensitive) or as a token or token slice whose Jaro-Winkler
// similarity to the keyword reaches the threshold.
func (s *Selector) Matches(content string) bool {
	content = strings.ToLower(content)
	for _, kw := range s.keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}

	tokens := strings.FieldsFunc(content, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, kw := range s.keywords {
		n := utf8.RuneCountInString(kw)
		for _, tok := range tokens {
			if s.tokenMatches(tok, kw, n) {
				return true
			}
		}
	}
	return false
}

// tokenMatches compares kw (n runes) against tok as a whole when their
// lengths are close, and against every n-rune window of longer tokens.
// The windows catch keywords inside unsegmented Chinese text.
func (s *Selector) tokenMatches(tok, kw string, n int) bool {
	runes := []rune(tok)
	if abs(len(runes)-n) <= 1 && matchr.JaroWinkler(tok, kw, false) >= s.threshold {
		return true
	}
	for i := 0; i+n <= len(runes) && len(runes) > n; i++ {
		if matchr.JaroWinkler(string(runes[i:i+n]), kw, false) >= s.threshold {
			return true
		}
	}
	return false
}

func normalizeKeywords(kws []string) []string {
	out := make([]string, 0, len(kws))
	for _, kw := range kws {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
