package sepa

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// germanLetters are spelled out before accents are stripped so that
// "Müller" becomes "Mueller" and not "Muller".
var germanLetters = strings.NewReplacer(
	"Ä", "Ae", "Ö", "Oe", "Ü", "Ue",
	"ä", "ae", "ö", "oe", "ü", "ue",
	"ß", "ss", "&", "+",
)

// CleanText reduces s to the SEPA Latin character set:
//
//	a-z A-Z 0-9 / - ? : ( ) . , ' + and space
//
// Accents are removed, other characters become spaces and runs of spaces are
// collapsed.
func CleanText(s string) string {
	s = germanLetters.Replace(s)

	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = stripped
	}

	var b strings.Builder
	for _, r := range s {
		if allowed(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("/-?:().,'+ ", r)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return strings.TrimSpace(s[:limit])
}
