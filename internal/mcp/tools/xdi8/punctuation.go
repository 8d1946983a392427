package xdi8

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/width"
)

// punctRun matches a run of full-width Chinese punctuation followed by at
// most one whitespace character. \p{Zs} covers the ideographic space.
var punctRun = regexp.MustCompile(`[。！，：；？…]+[\s\p{Zs}]?`)

// ellipsis rewrites the punctuation that has no single half-width
// counterpart. "……" is listed first so it wins over two single "…".
var ellipsis = strings.NewReplacer("……", "...", "…", "...", "。", ".")

// NormalizePunctuation rewrites full-width Chinese punctuation into
// half-width Western punctuation followed by exactly one space.
//
// Each run of 。！，：；？… is converted character by character ("……" and
// "…" become "...", "。" becomes ".", the rest map to their half-width
// forms). A whitespace character directly after the run is kept; when there
// is none a single space is inserted.
func NormalizePunctuation(s string) string {
	return punctRun.ReplaceAllStringFunc(s, func(m string) string {
		run, ws := splitTrailingSpace(m)
		if ws == "" {
			ws = " "
		}
		return width.Narrow.String(ellipsis.Replace(run)) + ws
	})
}

// splitTrailingSpace separates the optional trailing whitespace rune from a
// punctRun match.
func splitTrailingSpace(m string) (run, ws string) {
	r, size := utf8.DecodeLastRuneInString(m)
	if strings.ContainsRune("。！，：；？…", r) {
		return m, ""
	}
	return m[:len(m)-size], m[len(m)-size:]
}
