package engine

import (
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

/*
	Canonical per-token state: the set of accounts whose first interaction has
	been observed this epoch plus the ordered timestamps of those first
	interactions. Repeat interactions from a known account never mutate the
	state - the engine measures wallet breadth, not transfer volume.
*/

type Store struct {
	log logger.Logger

	mu     sync.RWMutex
	tokens map[string]*tokenState
}

type tokenState struct {
	name      string
	seen      map[string]struct{} // accounts with a recorded first interaction
	accounts  []string            // arrival order, parallel to firstSeen
	firstSeen []time.Time
}

// Per-token counts for one consistent view of the store; ByWindow is indexed
// like the windows slice passed to View
type TokenCounts struct {
	Mint     string
	Name     string
	ByWindow []int
}

func NewStore(log logger.Logger) *Store {
	return &Store{
		log:    log,
		tokens: make(map[string]*tokenState, 1024),
	}
}

// Records account's first interaction with mint at now. No-op (false) when
// the account already contributed this epoch; creates the token record with
// the given display name when absent.
func (s *Store) Record(mint, account, name string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts, ok := s.tokens[mint]
	if !ok {
		ts = &tokenState{
			name: name,
			seen: make(map[string]struct{}, 8),
		}
		s.tokens[mint] = ts
	}

	if _, dup := ts.seen[account]; dup {
		return false
	}

	ts.seen[account] = struct{}{}
	ts.accounts = append(ts.accounts, account)
	ts.firstSeen = append(ts.firstSeen, now)

	s.log.Debugf("New interaction: %s (%s) account=%s", ts.name, mint, account)
	return true
}

// Count of first interactions with mint inside [now-window, now]. Raw count
// of qualifying timestamps, not normalized by the window length.
func (s *Store) Rate(mint string, window time.Duration, now time.Time) int {
	cutoff := now.Add(-window)

	s.mu.RLock()
	defer s.mu.RUnlock()

	ts, ok := s.tokens[mint]
	if !ok {
		return 0
	}
	return countSince(ts.firstSeen, cutoff)
}

// Counts for every tracked token across all given windows under a single
// read lock, so ranking and peak updates within one cycle observe the same
// store state.
func (s *Store) View(windows []time.Duration, now time.Time) []TokenCounts {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TokenCounts, 0, len(s.tokens))
	for mint, ts := range s.tokens {
		tc := TokenCounts{
			Mint:     mint,
			Name:     ts.name,
			ByWindow: make([]int, len(windows)),
		}
		for i, w := range windows {
			tc.ByWindow[i] = countSince(ts.firstSeen, now.Add(-w))
		}
		out = append(out, tc)
	}
	return out
}

// Drops (account, timestamp) pairs older than retention and removes tokens
// whose sequence ran empty. Bounds memory independent of ingestion rate;
// must run with retention >= the largest ranking window.
func (s *Store) Prune(retention time.Duration, now time.Time) (removedPairs, removedTokens int) {
	cutoff := now.Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	for mint, ts := range s.tokens {
		keptAcc := ts.accounts[:0]
		keptSeen := ts.firstSeen[:0]
		for i, t := range ts.firstSeen {
			if t.Before(cutoff) {
				delete(ts.seen, ts.accounts[i])
				removedPairs++
				continue
			}
			keptAcc = append(keptAcc, ts.accounts[i])
			keptSeen = append(keptSeen, t)
		}
		ts.accounts = keptAcc
		ts.firstSeen = keptSeen

		if len(ts.firstSeen) == 0 {
			delete(s.tokens, mint)
			removedTokens++
		}
	}

	if removedPairs > 0 || removedTokens > 0 {
		s.log.Debugf("Pruned %d old interactions, removed %d empty tokens, %d remaining",
			removedPairs, removedTokens, len(s.tokens))
	}
	return removedPairs, removedTokens
}

// Clears the whole store; used for full-epoch resets
func (s *Store) Reset() {
	s.mu.Lock()
	s.tokens = make(map[string]*tokenState, 1024)
	s.mu.Unlock()
}

// Number of tracked tokens
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

// Distinct accounts across all tokens; stats logging only
func (s *Store) UniqueAccounts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make(map[string]struct{}, 1024)
	for _, ts := range s.tokens {
		for acc := range ts.seen {
			all[acc] = struct{}{}
		}
	}
	return len(all)
}

func countSince(seq []time.Time, cutoff time.Time) int {
	n := 0
	for _, t := range seq {
		if !t.Before(cutoff) {
			n++
		}
	}
	return n
}
