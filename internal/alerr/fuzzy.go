package alerr

import (
	"fmt"
	"strings"
)

// maxEdits caps how far a role or kind name may be from a candidate to be suggested.
const maxEdits = 3

// editDistance is the Levenshtein distance between a and b, counted in runes.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i, ca := range ra {
		curr[0] = i + 1
		for j, cb := range rb {
			sub := prev[j]
			if ca != cb {
				sub++
			}
			curr[j+1] = min(curr[j]+1, prev[j+1]+1, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// tolerance is the number of edits allowed against candidate. Short names
// get less slack so "user" is not offered for "guest".
func tolerance(candidate string) int {
	return min(maxEdits, max(1, len([]rune(candidate))/3))
}

// Closest returns the candidate nearest to input, ignoring case and
// surrounding space. Ties go to the earlier candidate.
func Closest(input string, candidates []string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(input))

	best, bestDist := "", -1
	for _, c := range candidates {
		d := editDistance(needle, strings.ToLower(c))
		if d > tolerance(c) {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist >= 0
}

// Suggest returns "did you mean 'X'?" for the closest candidate, or "".
func Suggest(input string, candidates []string) string {
	if match, ok := Closest(input, candidates); ok {
		return fmt.Sprintf("did you mean '%s'?", match)
	}
	return ""
}
