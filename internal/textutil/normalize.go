package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// NormalizeTitle lowercases text, removes diacritics, turns punctuation and
// symbols into separators, and collapses runs of whitespace.
//
//	"Bob Dylan!!"     -> "bob dylan"
//	"  Beyoncé:  LIVE" -> "beyonce live"
func NormalizeTitle(title string) string {
	stripped, _, err := transform.String(
		transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		title,
	)
	if err != nil {
		stripped = title
	}
	folded := folder.String(stripped)

	var b strings.Builder
	b.Grow(len(folded))
	pendingSpace := false
	for _, r := range folded {
		// Apostrophes join contractions ("don't" -> "dont") rather than splitting them.
		if r == '\'' || r == '’' {
			continue
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
			continue
		}
		pendingSpace = true
	}
	return b.String()
}

// Tokens splits a title into normalized tokens.
func Tokens(title string) []string {
	return strings.Fields(NormalizeTitle(title))
}
