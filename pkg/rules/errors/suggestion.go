package errors

import (
	"fmt"
	"sort"
)

// maxSuggestionDistance is the largest edit distance still offered as a typo fix.
const maxSuggestionDistance = 2

// SuggestAttribute suggests the closest known attribute name for an unknown one.
// It returns an empty string when nothing is close enough.
func SuggestAttribute(unknown string, known []string) string {
	if len(known) == 0 {
		return ""
	}

	// Sorted so ties resolve the same way regardless of map iteration order
	candidates := append([]string(nil), known...)
	sort.Strings(candidates)

	best := ""
	bestDistance := maxSuggestionDistance + 1
	for _, name := range candidates {
		if d := levenshteinDistance(unknown, name); d < bestDistance {
			bestDistance = d
			best = name
		}
	}

	if best == "" {
		return ""
	}
	return fmt.Sprintf("Did you mean '%s'?", best)
}

// levenshteinDistance computes the edit distance between two strings.
func levenshteinDistance(s1, s2 string) int {
	if s1 == s2 {
		return 0
	}

	r1 := []rune(s1)
	r2 := []rune(s2)

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // Deletion
				curr[j-1]+1,    // Insertion
				prev[j-1]+cost, // Substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r2)]
}
