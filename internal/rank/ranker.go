package rank

import (
	"sort"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/engine"
)

// Selects the top n tokens for one window out of a per-cycle store view.
// Order is count descending; ties break by mint ascending so two runs over
// the same state always produce the same board.
func TopN(view []engine.TokenCounts, windowIdx, n int) []domain.RankingEntry {
	entries := make([]domain.RankingEntry, 0, len(view))
	for _, tc := range view {
		entries = append(entries, domain.RankingEntry{
			Mint:  tc.Mint,
			Name:  tc.Name,
			Count: tc.ByWindow[windowIdx],
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Mint < entries[j].Mint
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}

// Distinct mints across several boards; drives which tokens get a peak
// update each cycle
func Union(boards ...[]domain.RankingEntry) []domain.RankingEntry {
	seen := make(map[string]struct{}, 32)
	var out []domain.RankingEntry
	for _, board := range boards {
		for _, e := range board {
			if _, dup := seen[e.Mint]; dup {
				continue
			}
			seen[e.Mint] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}
