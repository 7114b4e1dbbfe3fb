package rank

import (
	"fmt"
	"testing"

	"pumpwatch/internal/domain"
	"pumpwatch/internal/engine"
)

func counts(mint string, byWindow ...int) engine.TokenCounts {
	return engine.TokenCounts{Mint: mint, Name: mint, ByWindow: byWindow}
}

// 30 tokens with distinct counts: top 25, strictly descending.
func TestTopN_DistinctCounts(t *testing.T) {
	t.Parallel()

	view := make([]engine.TokenCounts, 0, 30)
	for i := 0; i < 30; i++ {
		view = append(view, counts(fmt.Sprintf("mint%02d", i), i))
	}

	got := TopN(view, 0, 25)
	if len(got) != 25 {
		t.Fatalf("len = %d, want 25", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Count >= got[i-1].Count {
			t.Fatalf("board not strictly descending at %d: %d >= %d", i, got[i].Count, got[i-1].Count)
		}
	}
	if got[0].Count != 29 {
		t.Fatalf("leader count = %d, want 29", got[0].Count)
	}
}

// Ties break by mint ascending, deterministically.
func TestTopN_TieBreakByMint(t *testing.T) {
	t.Parallel()

	view := []engine.TokenCounts{
		counts("bbb", 3),
		counts("aaa", 3),
		counts("ccc", 5),
	}

	got := TopN(view, 0, 3)
	want := []string{"ccc", "aaa", "bbb"}
	for i, m := range want {
		if got[i].Mint != m {
			t.Fatalf("position %d = %s, want %s", i, got[i].Mint, m)
		}
	}
}

// Zero-count tokens still in the store are ranked.
func TestTopN_KeepsZeroCounts(t *testing.T) {
	t.Parallel()

	view := []engine.TokenCounts{
		counts("aaa", 0),
		counts("bbb", 2),
	}

	got := TopN(view, 0, 5)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[1].Mint != "aaa" || got[1].Count != 0 {
		t.Fatalf("zero-count token missing from board: %+v", got)
	}
}

func TestTopN_WindowSelection(t *testing.T) {
	t.Parallel()

	view := []engine.TokenCounts{
		counts("aaa", 1, 9),
		counts("bbb", 5, 2),
	}

	if got := TopN(view, 0, 1); got[0].Mint != "bbb" {
		t.Fatalf("window 0 leader = %s, want bbb", got[0].Mint)
	}
	if got := TopN(view, 1, 1); got[0].Mint != "aaa" {
		t.Fatalf("window 1 leader = %s, want aaa", got[0].Mint)
	}
}

func TestUnion(t *testing.T) {
	t.Parallel()

	a := []domain.RankingEntry{{Mint: "x"}, {Mint: "y"}}
	b := []domain.RankingEntry{{Mint: "y"}, {Mint: "z"}}

	got := Union(a, b)
	if len(got) != 3 {
		t.Fatalf("union len = %d, want 3", len(got))
	}
	seen := map[string]bool{}
	for _, e := range got {
		if seen[e.Mint] {
			t.Fatalf("duplicate %s in union", e.Mint)
		}
		seen[e.Mint] = true
	}
}
