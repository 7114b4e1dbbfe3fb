package peaks

import (
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	"pumpwatch/internal/domain"
)

// Consumes peak snapshots; append-only, a new row per improvement
type Sink interface {
	Append(rec domain.PeakRecord) error
}

/*
	Tracks the highest window rates ever observed per token and fans
	improvements out to the configured sinks. Peaks deliberately outlive
	epoch resets of the interaction store; they reset only with the process.
*/

type Tracker struct {
	log   logger.Logger
	sinks []Sink

	mu      sync.RWMutex
	records map[string]domain.PeakRecord
}

func NewTracker(log logger.Logger, sinks ...Sink) *Tracker {
	return &Tracker{
		log:     log,
		sinks:   sinks,
		records: make(map[string]domain.PeakRecord, 256),
	}
}

// Compares the current rates against the stored peak. The first observation
// for a token always persists. Afterwards a write happens iff any single
// window improved, and the persisted snapshot is all three current values
// with the timestamp set to now - not the per-window historical maxima.
// Returns whether a write occurred.
func (t *Tracker) Update(mint, name string, rate1m, rate3m, rate5m int, now time.Time) bool {
	rec := domain.PeakRecord{
		Mint:   mint,
		Name:   name,
		PeakAt: now,
		Rate1m: rate1m,
		Rate3m: rate3m,
		Rate5m: rate5m,
	}

	t.mu.Lock()
	prev, exists := t.records[mint]
	improved := !exists ||
		rate1m > prev.Rate1m || rate3m > prev.Rate3m || rate5m > prev.Rate5m
	if improved {
		t.records[mint] = rec
	}
	t.mu.Unlock()

	if !improved {
		return false
	}

	for _, sink := range t.sinks {
		if err := sink.Append(rec); err != nil {
			// a failed sink never aborts the cycle
			t.log.Errorf("Failed to persist peak for %s: %v", mint, err)
		}
	}
	return true
}

// Current peak for one token
func (t *Tracker) Get(mint string) (domain.PeakRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[mint]
	return rec, ok
}

// Copy of all tracked peaks for read-only consumers
func (t *Tracker) All() []domain.PeakRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]domain.PeakRecord, 0, len(t.records))
	for _, rec := range t.records {
		out = append(out, rec)
	}
	return out
}

// Timestamp layout of the durable peak record: 12-hour UTC clock, zero-padded
// day/minute/second, no padding on the hour. Downstream tooling parses this
// exact shape.
func FormatPeakTimestamp(ts time.Time) string {
	return ts.UTC().Format("Jan 02 3:04:05 PM") + " UTC"
}
