package monitor

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingAlerter struct {
	mu    sync.Mutex
	calls []int
	fired chan struct{}
}

func newRecordingAlerter() *recordingAlerter {
	return &recordingAlerter{fired: make(chan struct{}, 16)}
}

func (a *recordingAlerter) Alert(ctx context.Context, identity string, attempts int) error {
	a.mu.Lock()
	a.calls = append(a.calls, attempts)
	a.mu.Unlock()
	a.fired <- struct{}{}
	return nil
}

func (a *recordingAlerter) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

func (a *recordingAlerter) waitForAlert(t *testing.T) {
	t.Helper()
	select {
	case <-a.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for alert dispatch")
	}
}

func TestAlertFiresExactlyAtThreshold(t *testing.T) {
	alerter := newRecordingAlerter()
	tr := NewTracker(3, alerter)

	if n := tr.RecordFailure("a@b.com"); n != 1 {
		t.Fatalf("unexpected count: %d", n)
	}
	tr.RecordFailure("a@b.com")
	// Two failures: below threshold, no alert yet.
	if alerter.callCount() != 0 {
		t.Fatal("alert fired below threshold")
	}

	if n := tr.RecordFailure("a@b.com"); n != 3 {
		t.Fatalf("unexpected count: %d", n)
	}
	alerter.waitForAlert(t)
	if alerter.callCount() != 1 {
		t.Fatalf("expected exactly one alert, got %d", alerter.callCount())
	}

	// Fourth failure stays above the threshold but must not re-alert.
	tr.RecordFailure("a@b.com")
	time.Sleep(50 * time.Millisecond)
	if alerter.callCount() != 1 {
		t.Fatalf("alert re-fired above threshold: %d calls", alerter.callCount())
	}
}

func TestRecordSuccessClearsCounter(t *testing.T) {
	tr := NewTracker(3, nil)
	for i := 0; i < 5; i++ {
		tr.RecordFailure("a@b.com")
	}
	if tr.Count("a@b.com") != 5 {
		t.Fatalf("unexpected count: %d", tr.Count("a@b.com"))
	}
	if !tr.Locked("a@b.com") {
		t.Fatal("expected identity to be locked")
	}

	tr.RecordSuccess("a@b.com")
	if tr.Count("a@b.com") != 0 {
		t.Fatalf("counter not cleared: %d", tr.Count("a@b.com"))
	}
	if tr.Locked("a@b.com") {
		t.Fatal("identity still locked after success")
	}
}

func TestResetAllClearsEveryIdentity(t *testing.T) {
	tr := NewTracker(3, nil)
	tr.RecordFailure("a@b.com")
	tr.RecordFailure("c@d.com")
	tr.ResetAll()
	if tr.Count("a@b.com") != 0 || tr.Count("c@d.com") != 0 {
		t.Fatal("counters survived ResetAll")
	}
}

func TestConcurrentFailuresDoNotLoseIncrements(t *testing.T) {
	tr := NewTracker(1000, nil)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				tr.RecordFailure("a@b.com")
			}
		}()
	}
	wg.Wait()
	if got := tr.Count("a@b.com"); got != 1000 {
		t.Fatalf("lost increments: got %d, want 1000", got)
	}
}

func TestScheduledResetRuns(t *testing.T) {
	tr := NewTracker(3, nil)
	tr.RecordFailure("a@b.com")

	stop := tr.StartScheduledReset(20 * time.Millisecond)
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if tr.Count("a@b.com") == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("scheduled reset never ran")
}
