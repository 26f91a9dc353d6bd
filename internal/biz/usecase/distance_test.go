package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEditDistance_BaseCases(t *testing.T) {
	assert.Equal(t, 3, EditDistance("", "abc"))
	assert.Equal(t, 3, EditDistance("abc", ""))
	assert.Equal(t, 0, EditDistance("", ""))
	assert.Equal(t, 3, EditDistance("kitten", "sitting"))
	assert.Equal(t, 2, EditDistance("left", "lfet"))
	assert.Equal(t, 1, EditDistance("héllo", "hello"), "counted in runes")
}

func TestEditDistance_Symmetric(t *testing.T) {
	words := []string{
		"", "a", "up", "left", "lfet", "right", "rihgt", "democracy", "demokracy",
		"anarchy", "héllo", "hello", "ຈل͜ຈ", "select", "start", "wait",
	}
	for _, a := range words {
		assert.Equal(t, 0, EditDistance(a, a), "distance(%q, %q)", a, a)
		for _, b := range words {
			assert.Equal(t, EditDistance(a, b), EditDistance(b, a), "symmetry for %q, %q", a, b)
		}
	}
}

func TestWithinDistance(t *testing.T) {
	tests := []struct {
		a, b string
		max  int
		want bool
	}{
		{"left", "lfet", 2, true},
		{"democracy", "democrazy", 2, true},
		{"up", "upupup", 2, false},
		{"start", "stat", 2, true},
		{"start", "stop", 2, false},
		{"select", "played", 2, false},
		{"a", "", 1, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WithinDistance(tt.a, tt.b, tt.max), "WithinDistance(%q, %q, %d)", tt.a, tt.b, tt.max)
	}
}
