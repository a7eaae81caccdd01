package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldDiacritics removes diacritical marks ("Jiří" -> "Jiri").
func foldDiacritics(s string) string {
	result, _, err := transform.String(stripMarks, s)
	if err != nil {
		return s
	}
	return result
}

// NormalizeName folds a person name into the form stored for search:
// lowercase, no diacritics, dashes and underscores as spaces, single spaces.
func NormalizeName(name string) string {
	name = strings.ToLower(foldDiacritics(name))
	name = strings.NewReplacer("-", " ", "_", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
