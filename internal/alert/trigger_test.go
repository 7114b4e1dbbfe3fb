package alert

import (
	"sync"
	"testing"
	"time"

	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"

	"pumpwatch/internal/domain"
)

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{
		Level:  "error",
		Format: "json",
	})
}

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func TestTrigger_BelowThresholdIsSilent(t *testing.T) {
	t.Parallel()

	tr := NewTrigger(newTestLogger(), 5, time.Second, 100*time.Millisecond, nil)
	defer tr.Close()

	if ev := tr.MaybeTrigger("FOO", 4, now); ev != nil {
		t.Fatalf("rate below threshold must not fire, got %+v", ev)
	}
	if tr.State().Active {
		t.Fatalf("no alert must be active")
	}
}

func TestTrigger_FiresAtThreshold(t *testing.T) {
	t.Parallel()

	var fired []domain.AlertEvent
	var mu sync.Mutex
	onFire := func(ev domain.AlertEvent) {
		mu.Lock()
		fired = append(fired, ev)
		mu.Unlock()
	}

	tr := NewTrigger(newTestLogger(), 5, time.Second, 100*time.Millisecond, onFire)
	defer tr.Close()

	ev := tr.MaybeTrigger("FOO", 5, now)
	if ev == nil {
		t.Fatalf("rate at threshold must fire")
	}
	if ev.Name != "FOO" || ev.Rate != 5 || !ev.StartedAt.Equal(now) {
		t.Fatalf("unexpected event: %+v", ev)
	}

	st := tr.State()
	if !st.Active || !st.FlashOn {
		t.Fatalf("alert must start active and flashing, got %+v", st)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 1 {
		t.Fatalf("onFire calls = %d, want 1", len(fired))
	}
}

// Re-triggering restarts the lifecycle instead of stacking a second timer.
func TestTrigger_RetriggerRestarts(t *testing.T) {
	t.Parallel()

	tr := NewTrigger(newTestLogger(), 5, 150*time.Millisecond, 10*time.Millisecond, nil)
	defer tr.Close()

	tr.MaybeTrigger("FOO", 5, now)
	time.Sleep(100 * time.Millisecond)

	restart := now.Add(time.Second)
	tr.MaybeTrigger("FOO", 7, restart)

	// 100ms after the restart the original timer would already have expired
	time.Sleep(100 * time.Millisecond)

	st := tr.State()
	if !st.Active {
		t.Fatalf("alert must still be active after restart")
	}
	if !st.Event.StartedAt.Equal(restart) || st.Event.Rate != 7 {
		t.Fatalf("active event not replaced: %+v", st.Event)
	}
}

func TestTrigger_AutoExpires(t *testing.T) {
	t.Parallel()

	tr := NewTrigger(newTestLogger(), 5, 60*time.Millisecond, 10*time.Millisecond, nil)
	defer tr.Close()

	tr.MaybeTrigger("FOO", 6, now)

	time.Sleep(150 * time.Millisecond)

	st := tr.State()
	if st.Active || st.FlashOn {
		t.Fatalf("alert must have expired, got %+v", st)
	}
}

func TestTrigger_FlashToggles(t *testing.T) {
	t.Parallel()

	tr := NewTrigger(newTestLogger(), 5, time.Second, 20*time.Millisecond, nil)
	defer tr.Close()

	tr.MaybeTrigger("FOO", 6, now)

	initial := tr.State().FlashOn
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if tr.State().FlashOn != initial {
			return // observed a toggle
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("flash flag never toggled")
}

func TestTrigger_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	tr := NewTrigger(newTestLogger(), 5, time.Second, 10*time.Millisecond, nil)
	tr.MaybeTrigger("FOO", 6, now)

	tr.Close()
	tr.Close()

	if tr.State().Active {
		t.Fatalf("alert must be cleared after close")
	}
}
