// Package textnorm folds free text for comparison and repairs UTF-8 that was
// decoded as Windows-1252 somewhere upstream.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// mojibakeMarkers are lead bytes of two-byte UTF-8 sequences as they appear
// once misread as Windows-1252.
var mojibakeMarkers = []string{"Ã", "Â"}

// FixMojibake re-decodes s when it looks like UTF-8 that was read as
// Windows-1252 ("AvaliaÃ§Ã£o" -> "Avaliação"). Strings that do not
// round-trip cleanly are returned unchanged.
func FixMojibake(s string) string {
	if !LooksMojibake(s) {
		return s
	}
	raw, err := charmap.Windows1252.NewEncoder().String(s)
	if err != nil || !utf8.ValidString(raw) {
		return s
	}
	return raw
}

// LooksMojibake reports whether s carries the tell-tale Ã/Â sequences.
func LooksMojibake(s string) bool {
	for _, m := range mojibakeMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Fold lowercases s, strips diacritics and control characters, and collapses
// whitespace, so "  Avaliação " and "AVALIACAO" compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), runes.Remove(runes.In(unicode.Cc)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// FoldKey folds s after repairing mojibake. Use it for dedup keys and header
// comparison where both encodings of the same text must collide.
func FoldKey(s string) string {
	return Fold(FixMojibake(s))
}
