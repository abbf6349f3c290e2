// "Did you mean" suggestions for unknown recipe names.

package main

import (
	"sort"

	"github.com/agnivade/levenshtein"
)

const maxSuggestionDistance = 2

// closestMatch returns the candidate within edit distance 2 of name,
// preferring smaller distances and breaking ties alphabetically. Empty
// when nothing is close enough.
func closestMatch(name string, candidates []string) string {
	sort.Strings(candidates)
	best := ""
	bestDistance := maxSuggestionDistance + 1
	for _, candidate := range candidates {
		distance := levenshtein.ComputeDistance(name, candidate)
		if distance < bestDistance {
			best = candidate
			bestDistance = distance
		}
	}
	return best
}
