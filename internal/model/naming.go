package model

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var title = cases.Title(language.English, cases.NoLower)

// Camel joins snake_case chunks into camelCase, keeping the case of the first
// chunk: max_retries becomes maxRetries.
func Camel(name string) string {
	chunks := strings.FieldsFunc(name, func(r rune) bool { return r == '_' })
	if len(chunks) == 0 {
		return name
	}
	for i := 1; i < len(chunks); i++ {
		chunks[i] = title.String(chunks[i])
	}
	return strings.Join(chunks, "")
}

// UpperFirst upper-cases the first letter.
func UpperFirst(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if n == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}

// LowerFirst lower-cases a leading initialism as a whole: URLPath becomes
// urlPath and ID becomes id.
func LowerFirst(s string) string {
	runes := []rune(s)
	i := 0
	for i < len(runes) && unicode.IsUpper(runes[i]) {
		i++
	}
	switch {
	case i == 0:
		return s
	case i == 1 || i == len(runes):
	default:
		// Keep the last upper-case rune; it starts the next word.
		if unicode.IsLower(runes[i]) {
			i--
		}
	}
	for j := 0; j < i; j++ {
		runes[j] = unicode.ToLower(runes[j])
	}
	return string(runes)
}

// SetCase makes name exported or unexported.
func SetCase(name string, exported bool) string {
	if exported {
		return UpperFirst(name)
	}
	return LowerFirst(name)
}

// Singular returns the singular form of a plural word, keeping the case of
// its first letter.
func Singular(name string) string {
	s := inflection.Singular(name)
	if s == "" {
		return name
	}
	return s
}
