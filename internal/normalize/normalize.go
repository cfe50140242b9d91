// Package normalize provides text normalization shared by search, filtering
// and book metadata cleanup.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Matches any run of non-alphanumeric characters.
	nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)
	// Matches runs of whitespace.
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Fold returns s case-folded for case-insensitive comparison.
// "Straße" and "STRASSE" fold to the same string.
func Fold(s string) string {
	return cases.Fold().String(s)
}

// ContainsFold reports whether substr is within s, ignoring case.
// An empty substr always matches.
func ContainsFold(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(Fold(s), Fold(substr))
}

// EqualFold reports whether a and b are equal under Unicode case folding.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// Slugify converts a string to a URL-safe slug.
// "Science Fiction" -> "science-fiction".
// "Café Society" -> "cafe-society".
// "Sci-Fi/Fantasy" -> "sci-fi-fantasy".
func Slugify(s string) string {
	// Decompose, then drop combining marks so accented letters keep their base.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	stripped = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, stripped)

	slug := nonAlphanumeric.ReplaceAllString(strings.ToLower(stripped), "-")
	return strings.Trim(slug, "-")
}

// Text trims s, collapses internal whitespace and removes null bytes.
func Text(s string) string {
	s = sanitizeString(s)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// sanitizeString removes null bytes, which break JSON and SQLite text columns.
func sanitizeString(s string) string {
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, s)
}
