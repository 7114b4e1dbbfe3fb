package spam

import (
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

// Per-account trailing-window activity counter. An account whose pruned
// activity exceeds the threshold is spamming and its whole transaction must
// be discarded by the caller.
type Guard struct {
	log       logger.Logger
	window    time.Duration
	threshold int

	mu       sync.Mutex
	activity map[string][]time.Time
}

func NewGuard(log logger.Logger, window time.Duration, threshold int) *Guard {
	return &Guard{
		log:       log,
		window:    window,
		threshold: threshold,
		activity:  make(map[string][]time.Time, 1024),
	}
}

// Appends now to the account's activity, prunes entries older than the
// window and reports whether the account is spamming. The append is
// unconditional: a flagged event still counts against future windows.
func (g *Guard) Record(account string, now time.Time) bool {
	cutoff := now.Add(-g.window)

	g.mu.Lock()
	defer g.mu.Unlock()

	seq := append(g.activity[account], now)

	kept := seq[:0]
	for _, t := range seq {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	g.activity[account] = kept

	if len(kept) > g.threshold {
		g.log.Debugf("Spam detected from account=%s, events=%d in window", account, len(kept))
		return true
	}
	return false
}

// Count active accounts; read side for stats logging
func (g *Guard) Accounts() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.activity)
}

// Drop all activity; called on epoch reset
func (g *Guard) Reset() {
	g.mu.Lock()
	g.activity = make(map[string][]time.Time, 1024)
	g.mu.Unlock()
}
