// Package monitor tracks consecutive failed payment attempts per customer
// and raises an alert when an identity crosses the configured threshold.
//
// State is process-local: it does not survive a restart and is not shared
// between instances. A multi-instance deployment would need to move this
// map into a shared store.
package monitor

import (
	"context"
	"sync"
	"time"

	"epcbooks.org/internal/obs"
)

// DefaultThreshold matches the storefront's historical alerting threshold.
const DefaultThreshold = 3

// Alerter receives the side-effect when an identity crosses the threshold.
type Alerter interface {
	Alert(ctx context.Context, identity string, attempts int) error
}

// Tracker counts failed payment attempts per identity.
type Tracker struct {
	mu        sync.Mutex
	failures  map[string]int
	threshold int
	alerter   Alerter
}

// NewTracker creates a Tracker. A nil alerter disables alert dispatch.
func NewTracker(threshold int, alerter Alerter) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{
		failures:  make(map[string]int),
		threshold: threshold,
		alerter:   alerter,
	}
}

// Threshold returns the configured alert/lockout threshold.
func (t *Tracker) Threshold() int { return t.threshold }

// RecordFailure increments the identity's counter and returns the new value.
// The alert fires exactly once, when the counter reaches the threshold;
// further failures above it do not re-alert until the counter resets.
func (t *Tracker) RecordFailure(identity string) int {
	t.mu.Lock()
	count := t.failures[identity] + 1
	t.failures[identity] = count
	t.mu.Unlock()

	if count == t.threshold && t.alerter != nil {
		// Fire-and-forget: alerting must never delay the caller's response.
		go t.dispatchAlert(identity, count)
	}
	return count
}

// RecordSuccess clears the identity's counter.
func (t *Tracker) RecordSuccess(identity string) {
	t.mu.Lock()
	delete(t.failures, identity)
	t.mu.Unlock()
}

// Count returns the current counter for an identity (0 if absent).
func (t *Tracker) Count(identity string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures[identity]
}

// Locked reports whether the identity has reached the threshold.
func (t *Tracker) Locked(identity string) bool {
	return t.Count(identity) >= t.threshold
}

// ResetAll unconditionally clears every counter.
func (t *Tracker) ResetAll() {
	t.mu.Lock()
	t.failures = make(map[string]int)
	t.mu.Unlock()
	obs.Log("info", "failed_payments_reset", nil)
}

// StartScheduledReset runs ResetAll on the given cadence until the returned
// stop function is called. The reset runs regardless of request traffic.
func (t *Tracker) StartScheduledReset(interval time.Duration) func() {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.ResetAll()
			}
		}
	}()
	return cancel
}

func (t *Tracker) dispatchAlert(identity string, attempts int) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := t.alerter.Alert(ctx, identity, attempts); err != nil {
		obs.Log("error", "payment_alert_failed", map[string]any{
			"identity": identity,
			"attempts": attempts,
			"error":    err.Error(),
		})
		return
	}
	obs.CountPaymentAlert()
	obs.Log("info", "payment_alert_sent", map[string]any{
		"identity": identity,
		"attempts": attempts,
	})
}
