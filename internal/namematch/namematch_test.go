package namematch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	v := NewVerifier()

	tests := []struct {
		name    string
		claimed string
		actual  string
		want    bool
	}{
		{"exact match", "Jean Dupont", "Jean Dupont", true},
		{"case insensitive", "jean dupont", "JEAN DUPONT", true},
		{"word order irrelevant", "Dupont Jean", "Jean Dupont", true},
		{"diacritics stripped", "Rémi Müller", "Remi Muller", true},
		{"y maps to i", "Yasmina Smith", "Iasmina Smith", true},
		{"w maps to v", "Wladimir Kowalski", "Vladimir Kovalski", true},
		{"punctuation ignored", "Jean-Pierre O'Neil", "JeanPierre ONeil", true},
		{"one edit in six letters", "Dupond Jean", "Dupont Jean", true},
		{"two edits in six letters rejected", "Dupend Jean", "Dupont Jean", false},
		{"longer words tolerate more edits", "Bartholomew Smith", "Bartolomeu Smith", true},
		{"completely different", "Jean Dupont", "Marie Curie", false},
		{"subset of longer name", "Jean Dupont", "Jean Michel Dupont", true},
		{"superset of shorter name", "Jean Michel Dupont", "Jean Dupont", true},
		{"disjoint extra word", "Jean Xavier", "Jean Michel Dupont", false},
		{"both blank", "", "", true},
		{"blank claimed vs real name", "", "Jean Dupont", false},
		{"real name vs blank actual", "Jean Dupont", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Matches(tt.claimed, tt.actual))
		})
	}
}

// For equal-size word sets the check only requires that every claimed word
// has a similar actual word; a single actual word may account for several
// claimed words. The relation is deliberately not symmetric.
func TestMatchesEqualSizeAsymmetry(t *testing.T) {
	v := NewVerifier()

	// "anna" and "anne" are both within distance 1 of "anna", so every word
	// of the claimed name finds a partner. The reverse direction fails:
	// nothing on the left resembles "victor".
	assert.True(t, v.Matches("anna anne", "anna victor"))
	assert.False(t, v.Matches("anna victor", "anna anne"))

	// Repeated coverage: both claimed words lean on the single similar
	// actual word even though the other actual word is unrelated.
	assert.True(t, v.Matches("marc mark", "marc ulysse"))
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"dupont", "dupond", 1},
		{"flaw", "lawn", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%s vs %s", tt.a, tt.b)
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []string{"jean", "dupont"}, tokenize(normalize("  Jean   Dupont  ")))
	assert.Equal(t, "remi", normalize("Rémi"))
	assert.Equal(t, "iasmina", normalize("Yasmina"))
	assert.Equal(t, "vladimir", normalize("Wladimir"))
	assert.Equal(t, "oneil", normalize("O'Neil 42"))
}
