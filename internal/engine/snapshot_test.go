package engine

import (
	"testing"
	"time"
)

func TestSnapshot_Roundtrip(t *testing.T) {
	t.Parallel()

	s := NewStore(newTestLogger())
	s.Record("T1", "A", "ONE", t0)
	s.Record("T1", "B", "ONE", t0.Add(30*time.Second))
	s.Record("T2", "C", "Unknown1", t0.Add(time.Minute))

	epochStart := t0.Add(-time.Hour)
	data, err := s.Snapshot(epochStart)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}

	restored := NewStore(newTestLogger())
	gotEpoch, err := restored.Restore(data)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !gotEpoch.Equal(epochStart) {
		t.Fatalf("epoch start = %s, want %s", gotEpoch, epochStart)
	}

	now := t0.Add(time.Minute)
	if got := restored.Rate("T1", 5*time.Minute, now); got != 2 {
		t.Fatalf("restored T1 rate = %d, want 2", got)
	}
	if got := restored.Rate("T2", time.Minute, now); got != 1 {
		t.Fatalf("restored T2 rate = %d, want 1", got)
	}

	// dedup state survives: A must not contribute twice
	if restored.Record("T1", "A", "ONE", now) {
		t.Fatalf("account A must still be deduplicated after restore")
	}
}

func TestRestore_RejectsGarbage(t *testing.T) {
	t.Parallel()

	s := NewStore(newTestLogger())
	if _, err := s.Restore(nil); err == nil {
		t.Fatalf("empty data must be rejected")
	}
	if _, err := s.Restore([]byte("not a gob stream")); err == nil {
		t.Fatalf("corrupt data must be rejected")
	}
}
