// Package suggest finds the closest known name for "did you mean" hints.
package suggest

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Closest returns the candidate that best matches target, or "" when no
// candidate is close enough.
func Closest(target string, candidates []string) string {
	if target == "" || len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) == 0 {
		// fuzzy matching needs target to be a subsequence; also try the
		// other direction so that typos like "eahc" still find "each".
		for _, c := range candidates {
			if fuzzy.MatchFold(c, target) || fuzzy.LevenshteinDistance(c, target) <= 2 {
				ranks = append(ranks, fuzzy.Rank{Source: target, Target: c, Distance: fuzzy.LevenshteinDistance(c, target)})
			}
		}
	}
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}
