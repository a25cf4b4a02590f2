// Package textcase holds the label transforms applied to facet keys and
// filter values: humanize, titleize, underscore, dasherize and parameterize.
package textcase

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	acronymBoundary = regexp.MustCompile(`([A-Z\d]+)([A-Z][a-z])`)
	camelBoundary   = regexp.MustCompile(`([a-z\d])([A-Z])`)
	nonSlug         = regexp.MustCompile(`(?i)[^a-z0-9\-_]+`)

	lower = cases.Lower(language.Und)
	title = cases.Title(language.English)
)

// Underscore converts CamelCase or dashed words to snake_case.
// "JournalArticle" and "Journal_Article" both become "journal_article".
func Underscore(s string) string {
	s = strings.ReplaceAll(s, "::", "/")
	s = acronymBoundary.ReplaceAllString(s, "${1}_${2}")
	s = camelBoundary.ReplaceAllString(s, "${1}_${2}")
	s = strings.ReplaceAll(s, "-", "_")
	return lower.String(s)
}

// Dasherize replaces underscores with dashes.
func Dasherize(s string) string {
	return strings.ReplaceAll(s, "_", "-")
}

// ResourceTypeID is the machine form of a resource type name,
// e.g. "Journal_Article" or "JournalArticle" to "journal-article".
func ResourceTypeID(s string) string {
	return Dasherize(Underscore(s))
}

// Humanize turns "computer_and_information_sciences" into
// "Computer and information sciences". A trailing "_id" is dropped.
func Humanize(s string) string {
	s = strings.TrimSuffix(s, "_id")
	s = strings.TrimLeft(s, "_")
	s = strings.ReplaceAll(s, "_", " ")
	s = lower.String(s)
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// Titleize capitalizes every word of the humanized string.
func Titleize(s string) string {
	return title.String(Humanize(Underscore(s)))
}

// Parameterize produces an ASCII slug joined by sep. Accents are stripped,
// runs of other characters collapse into one separator.
func Parameterize(s, sep string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if ascii, _, err := transform.String(t, s); err == nil {
		s = ascii
	}
	s = nonSlug.ReplaceAllString(s, sep)
	if sep != "" {
		doubled := sep + sep
		for strings.Contains(s, doubled) {
			s = strings.ReplaceAll(s, doubled, sep)
		}
		s = strings.TrimPrefix(strings.TrimSuffix(s, sep), sep)
	}
	return lower.String(s)
}
