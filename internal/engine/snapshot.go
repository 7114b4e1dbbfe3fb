package engine

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"time"
)

// Serializable snapshot of the whole store plus the epoch start instant.
// Saved to redis on an interval so a restarted monitor warm-starts instead
// of losing the trailing windows.
type Snapshot struct {
	Version    int
	TakenAt    time.Time
	EpochStart time.Time
	Tokens     []snapshotToken
}

type snapshotToken struct {
	Mint      string
	Name      string
	Accounts  []string
	FirstSeen []time.Time
}

// Serializes the current state with gob
func (s *Store) Snapshot(epochStart time.Time) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Version:    1,
		TakenAt:    time.Now().UTC(),
		EpochStart: epochStart,
		Tokens:     make([]snapshotToken, 0, len(s.tokens)),
	}

	for mint, ts := range s.tokens {
		snap.Tokens = append(snap.Tokens, snapshotToken{
			Mint:      mint,
			Name:      ts.name,
			Accounts:  append([]string(nil), ts.accounts...),
			FirstSeen: append([]time.Time(nil), ts.firstSeen...),
		})
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}

	s.log.Debugf("Created snapshot: %d tokens, %d bytes", len(snap.Tokens), buf.Len())
	return buf.Bytes(), nil
}

// Replaces the store state from a snapshot and returns the saved epoch
// start. Tokens with mismatched account/timestamp sequences are skipped
// rather than trusted.
func (s *Store) Restore(data []byte) (time.Time, error) {
	if len(data) == 0 {
		return time.Time{}, errors.New("empty snapshot data")
	}

	var snap Snapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != 1 {
		return time.Time{}, fmt.Errorf("unsupported snapshot version: %d", snap.Version)
	}

	tokens := make(map[string]*tokenState, len(snap.Tokens))
	for _, st := range snap.Tokens {
		if len(st.Accounts) != len(st.FirstSeen) {
			s.log.Warnf("Skipping corrupt snapshot token %s: %d accounts vs %d timestamps",
				st.Mint, len(st.Accounts), len(st.FirstSeen))
			continue
		}

		ts := &tokenState{
			name:      st.Name,
			seen:      make(map[string]struct{}, len(st.Accounts)),
			accounts:  st.Accounts,
			firstSeen: st.FirstSeen,
		}
		for _, acc := range st.Accounts {
			ts.seen[acc] = struct{}{}
		}
		tokens[st.Mint] = ts
	}

	s.mu.Lock()
	s.tokens = tokens
	s.mu.Unlock()

	s.log.Infof("Restored snapshot: %d tokens, epoch_start=%s", len(tokens), snap.EpochStart)
	return snap.EpochStart, nil
}
