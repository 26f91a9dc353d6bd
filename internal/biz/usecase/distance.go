package usecase

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// EditDistance returns the Levenshtein distance between a and b, counted in runes.
// Case folding is the caller's job.
func EditDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// WithinDistance reports whether EditDistance(a, b) <= max.
// Pairs whose lengths differ by more than max are rejected without computing the distance.
func WithinDistance(a, b string, max int) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if diff > max {
		return false
	}
	return EditDistance(a, b) <= max
}
