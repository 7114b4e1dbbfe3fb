package engine

import (
	"testing"
	"time"

	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// Re-delivery of the same account/token pair never changes the rate.
func TestStore_RecordIsIdempotentPerAccount(t *testing.T) {
	t.Parallel()

	s := NewStore(newTestLogger())

	if !s.Record("T2", "X", "TWO", t0) {
		t.Fatalf("first interaction must be recorded")
	}
	for i := 1; i < 16; i++ {
		if s.Record("T2", "X", "TWO", t0.Add(time.Duration(i)*time.Second)) {
			t.Fatalf("repeat interaction %d must be a no-op", i)
		}
	}

	if got := s.Rate("T2", time.Minute, t0.Add(10*time.Second)); got != 1 {
		t.Fatalf("rate = %d, want 1 (single unique account)", got)
	}
}

// First interactions from A,B,C at 0s,10s,70s: the 60s window sees only B at
// t=65s and only C at t=75s.
func TestStore_RateTrailingWindow(t *testing.T) {
	t.Parallel()

	s := NewStore(newTestLogger())
	s.Record("T1", "A", "ONE", t0)
	s.Record("T1", "B", "ONE", t0.Add(10*time.Second))

	if got := s.Rate("T1", time.Minute, t0.Add(65*time.Second)); got != 1 {
		t.Fatalf("rate at t=65s = %d, want 1 (only B)", got)
	}

	s.Record("T1", "C", "ONE", t0.Add(70*time.Second))

	if got := s.Rate("T1", time.Minute, t0.Add(75*time.Second)); got != 1 {
		t.Fatalf("rate at t=75s = %d, want 1 (only C)", got)
	}
	if got := s.Rate("T1", 5*time.Minute, t0.Add(75*time.Second)); got != 3 {
		t.Fatalf("5m rate at t=75s = %d, want 3", got)
	}
}

func TestStore_RateUnknownToken(t *testing.T) {
	t.Parallel()

	s := NewStore(newTestLogger())
	if got := s.Rate("nope", time.Minute, t0); got != 0 {
		t.Fatalf("rate for untracked token = %d, want 0", got)
	}
}

// Pruning at the max window never changes what smaller windows observe.
func TestStore_PruneAtMaxWindowIsSafe(t *testing.T) {
	t.Parallel()

	s := NewStore(newTestLogger())
	s.Record("T1", "A", "ONE", t0)
	s.Record("T1", "B", "ONE", t0.Add(3*time.Minute))
	s.Record("T1", "C", "ONE", t0.Add(4*time.Minute))

	now := t0.Add(6 * time.Minute)
	before1m := s.Rate("T1", time.Minute, now)
	before3m := s.Rate("T1", 3*time.Minute, now)

	s.Prune(5*time.Minute, now)

	if got := s.Rate("T1", time.Minute, now); got != before1m {
		t.Fatalf("1m rate changed by prune: %d != %d", got, before1m)
	}
	if got := s.Rate("T1", 3*time.Minute, now); got != before3m {
		t.Fatalf("3m rate changed by prune: %d != %d", got, before3m)
	}
}

// Tokens whose sequences run empty disappear from the store entirely.
func TestStore_PruneRemovesEmptyTokens(t *testing.T) {
	t.Parallel()

	s := NewStore(newTestLogger())
	s.Record("old", "A", "OLD", t0)
	s.Record("hot", "B", "HOT", t0.Add(10*time.Minute))

	pairs, tokens := s.Prune(5*time.Minute, t0.Add(10*time.Minute))
	if pairs != 1 || tokens != 1 {
		t.Fatalf("prune removed (%d pairs, %d tokens), want (1, 1)", pairs, tokens)
	}
	if s.Len() != 1 {
		t.Fatalf("store len = %d, want 1", s.Len())
	}
	if got := s.Rate("hot", 5*time.Minute, t0.Add(10*time.Minute)); got != 1 {
		t.Fatalf("surviving token rate = %d, want 1", got)
	}
}

// View computes every window from one consistent state.
func TestStore_View(t *testing.T) {
	t.Parallel()

	s := NewStore(newTestLogger())
	s.Record("T1", "A", "ONE", t0)
	s.Record("T1", "B", "ONE", t0.Add(2*time.Minute))
	s.Record("T2", "A", "TWO", t0.Add(2*time.Minute))

	windows := []time.Duration{time.Minute, 3 * time.Minute, 5 * time.Minute}
	view := s.View(windows, t0.Add(2*time.Minute))

	if len(view) != 2 {
		t.Fatalf("view has %d tokens, want 2", len(view))
	}
	byMint := make(map[string]TokenCounts, 2)
	for _, tc := range view {
		byMint[tc.Mint] = tc
	}

	one := byMint["T1"]
	if one.Name != "ONE" {
		t.Fatalf("T1 name = %q, want ONE", one.Name)
	}
	if one.ByWindow[0] != 1 || one.ByWindow[1] != 2 || one.ByWindow[2] != 2 {
		t.Fatalf("T1 counts = %v, want [1 2 2]", one.ByWindow)
	}
	if two := byMint["T2"]; two.ByWindow[0] != 1 {
		t.Fatalf("T2 1m count = %d, want 1", two.ByWindow[0])
	}
}

func TestStore_Reset(t *testing.T) {
	t.Parallel()

	s := NewStore(newTestLogger())
	s.Record("T1", "A", "ONE", t0)
	s.Reset()

	if s.Len() != 0 {
		t.Fatalf("store len after reset = %d, want 0", s.Len())
	}

	// the account contributes again in the new epoch
	if !s.Record("T1", "A", "ONE", t0.Add(time.Second)) {
		t.Fatalf("first interaction of the new epoch must be recorded")
	}
}

func TestStore_UniqueAccounts(t *testing.T) {
	t.Parallel()

	s := NewStore(newTestLogger())
	s.Record("T1", "A", "ONE", t0)
	s.Record("T1", "B", "ONE", t0)
	s.Record("T2", "A", "TWO", t0)

	if got := s.UniqueAccounts(); got != 2 {
		t.Fatalf("unique accounts = %d, want 2", got)
	}
}
