package alert

import (
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	"pumpwatch/internal/domain"
)

// Point-in-time view of the alert slot for read-only consumers
type State struct {
	Active  bool              `json:"active"`
	FlashOn bool              `json:"flash_on"`
	Event   domain.AlertEvent `json:"event,omitempty"`
}

/*
	Single-slot flashing alert. Fires when the 1-minute leader crosses the
	threshold, toggles its flash flag on a fixed cadence and auto-expires.
	A new trigger cancels the previous timer goroutine before starting its
	own, so timers never stack or leak.
*/

type Trigger struct {
	log           logger.Logger
	threshold     int
	duration      time.Duration
	flashInterval time.Duration
	onFire        func(domain.AlertEvent) // optional fan-out hook

	mu      sync.Mutex
	active  *domain.AlertEvent
	flashOn bool
	cancel  chan struct{}
}

func NewTrigger(log logger.Logger, threshold int, duration, flashInterval time.Duration, onFire func(domain.AlertEvent)) *Trigger {
	return &Trigger{
		log:           log,
		threshold:     threshold,
		duration:      duration,
		flashInterval: flashInterval,
		onFire:        onFire,
	}
}

// Fires (or restarts) the alert when rate crosses the threshold. Returns the
// emitted event, or nil when the rate is below the threshold.
func (tr *Trigger) MaybeTrigger(name string, rate int, now time.Time) *domain.AlertEvent {
	if rate < tr.threshold {
		return nil
	}

	ev := domain.AlertEvent{Name: name, Rate: rate, StartedAt: now}

	tr.mu.Lock()
	if tr.cancel != nil {
		close(tr.cancel)
	}
	cancel := make(chan struct{})
	tr.cancel = cancel
	tr.active = &ev
	tr.flashOn = true
	tr.mu.Unlock()

	tr.log.Infof("Alert: %s pumping at rate %d/min", name, rate)

	go tr.run(cancel)

	if tr.onFire != nil {
		tr.onFire(ev)
	}
	return &ev
}

// Flash toggle loop for one activation; ends on expiry or when a newer
// activation cancels it
func (tr *Trigger) run(cancel chan struct{}) {
	ticker := time.NewTicker(tr.flashInterval)
	defer ticker.Stop()
	expire := time.NewTimer(tr.duration)
	defer expire.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			tr.mu.Lock()
			if tr.cancel == cancel {
				tr.flashOn = !tr.flashOn
			}
			tr.mu.Unlock()
		case <-expire.C:
			tr.mu.Lock()
			if tr.cancel == cancel {
				tr.active = nil
				tr.flashOn = false
				tr.cancel = nil
			}
			tr.mu.Unlock()
			return
		}
	}
}

func (tr *Trigger) State() State {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.active == nil {
		return State{}
	}
	return State{Active: true, FlashOn: tr.flashOn, Event: *tr.active}
}

// Cancels any active alert; used on shutdown
func (tr *Trigger) Close() {
	tr.mu.Lock()
	if tr.cancel != nil {
		close(tr.cancel)
		tr.cancel = nil
	}
	tr.active = nil
	tr.flashOn = false
	tr.mu.Unlock()
}
