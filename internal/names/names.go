// Package names cleans member display names of characters used to hoist them
// to the top of the member list or to disguise them.
package names

import (
	"strings"
	"unicode"

	"github.com/glotchimo/keeper/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Placeholder replaces names that clean down to nothing.
const Placeholder = "Unnamed"

// maxNormalizePasses bounds the fixed-point loop in Normalize. Removing marks
// can make previously blocked characters adjacent, which one more NFKC pass
// then composes.
const maxNormalizePasses = 4

func isHoist(r rune) bool {
	return r < '0' ||
		unicode.IsPunct(r) ||
		unicode.IsSymbol(r) ||
		unicode.IsSpace(r) ||
		unicode.In(r, unicode.Cc, unicode.Cf, unicode.Mn, unicode.Me)
}

func isMark(r rune) bool {
	return unicode.In(r, unicode.Mn, unicode.Me)
}

// Dehoist strips the leading run of characters that sort before digits.
func Dehoist(name string) string {
	name = strings.TrimLeftFunc(name, isHoist)
	if name == "" {
		return Placeholder
	}
	return name
}

// Normalize applies NFKC and drops combining marks.
func Normalize(name string) string {
	for range maxNormalizePasses {
		t := transform.Chain(norm.NFKC, runes.Remove(runes.Predicate(isMark)))
		next, _, err := transform.String(t, name)
		if err != nil || next == name {
			break
		}
		name = next
	}

	if strings.TrimSpace(name) == "" {
		return Placeholder
	}
	return name
}

// Clean applies the enabled transforms, normalizing first so compatibility
// forms of hoisting characters are caught by Dehoist.
func Clean(name string, flags models.AutoClean) string {
	if flags.Normalize {
		name = Normalize(name)
	}
	if flags.Dehoist {
		name = Dehoist(name)
	}
	return name
}
