package decl

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Ident normalizes an identifier to NFC so that visually identical names
// compare equal regardless of how the front-end composed them.
func Ident(name string) string {
	name = strings.TrimSpace(name)
	if norm.NFC.IsNormalString(name) {
		return name
	}
	return norm.NFC.String(name)
}

// SameIdent reports whether two identifiers are equal after normalization.
func SameIdent(a, b string) bool {
	return Ident(a) == Ident(b)
}

// Capitalize upper-cases the first rune of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
