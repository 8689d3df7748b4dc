// Package textspan locates quoted passages inside extracted page text so
// note anchors can be expressed as character offsets.
package textspan

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Invisible characters that PDF extractors frequently leak into page text.
// Loose matching strips them from both haystack and needle.
var invisibleRunes = map[rune]bool{
	'\u00AD': true, // soft hyphen
	'\u200B': true, // zero-width space
	'\uFEFF': true, // byte order mark
}

// Normalize applies NFC normalization, collapses runs of whitespace into a
// single space, and trims the result. Page text and quotes must pass through
// the same normalization before offsets are comparable.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func stripInvisible(s string) string {
	return strings.Map(func(r rune) rune {
		if invisibleRunes[r] {
			return -1
		}
		return r
	}, s)
}

// FindSpan returns the [start, end) character offsets of quote inside text.
// Both inputs are normalized first. When loose is set, invisible characters
// are removed before matching, which rescues quotes copied across soft
// hyphens and zero-width breaks. Returns (-1, -1) when the quote does not
// occur in the text.
func FindSpan(text, quote string, loose bool) (int, int) {
	text = Normalize(text)
	quote = Normalize(quote)
	if loose {
		text = stripInvisible(text)
		quote = stripInvisible(quote)
	}
	if quote == "" {
		return -1, -1
	}
	byteIdx := strings.Index(text, quote)
	if byteIdx < 0 {
		return -1, -1
	}
	// Offsets are rune counts so they survive round trips through clients
	// that index strings by character.
	start := len([]rune(text[:byteIdx]))
	end := start + len([]rune(quote))
	return start, end
}
