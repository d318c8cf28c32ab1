package author

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folder     = cases.Fold()
)

// NameSlug folds a display name into its matching key:
// "José García" -> "jose_garcia", "John O'Brien" -> "john_obrien".
func NameSlug(name string) string {
	s, _, err := transform.String(stripMarks, name)
	if err != nil {
		s = name
	}
	s = folder.String(s)

	var b strings.Builder
	pendingSpace := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			if pendingSpace {
				b.WriteByte('_')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
