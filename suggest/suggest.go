// Package suggest finds near matches for user provided names, used to
// attach "did you mean" hints to diagnostics.
package suggest

import "github.com/agext/levenshtein"

// String returns the candidate closest to want, or an empty string if no
// candidate is close enough to be a likely typo.
//
// The allowed distance scales with the length of want, so short names only
// match near-exact candidates.
func String(want string, candidates []string) string {
	maxDist := len(want) / 5
	if maxDist == 0 {
		maxDist = 1
	}

	best := ""
	bestDist := maxDist + 1
	for _, cand := range candidates {
		if cand == want {
			return want
		}
		if d := levenshtein.Distance(want, cand, nil); d < bestDist {
			best = cand
			bestDist = d
		}
	}
	if bestDist > maxDist {
		return ""
	}
	return best
}
