package admission

import (
	"context"
	"testing"
	"time"
)

func TestSweep_BlocksRepeatOffenders(t *testing.T) {
	clock := newFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ctrl := testController(testLimits())
	ctrl.now = clock.Now
	id := identityFor("u3")

	// Five operation-limit violations
	for i := 0; i < 5; i++ {
		d := ctrl.CheckAdmission(id, OpReadFile, OperationContext{"file_size": uint64(1 << 40)})
		if d.Allowed {
			t.Fatalf("violation %d unexpectedly allowed", i+1)
		}
	}

	ctrl.Sweep()

	d := ctrl.CheckAdmission(id, OpReadFile, nil)
	if d.Allowed {
		t.Fatal("expected denial after enforcement block")
	}
	if d.Reason != DenyBlocked {
		t.Errorf("expected reason %q, got %q", DenyBlocked, d.Reason)
	}
	// 15 minute block: the immediate retry hint is ~900 seconds
	if d.RetryAfterSeconds < 895 || d.RetryAfterSeconds > 900 {
		t.Errorf("expected retry hint ~900s, got %d", d.RetryAfterSeconds)
	}

	// Subsequent checks see a monotonically decreasing hint
	clock.Advance(30 * time.Second)
	if d2 := ctrl.CheckAdmission(id, OpReadFile, nil); d2.RetryAfterSeconds >= d.RetryAfterSeconds {
		t.Errorf("retry hint should decrease: %d then %d", d.RetryAfterSeconds, d2.RetryAfterSeconds)
	}

	// After expiry the identity is admitted and not instantly re-blocked
	clock.Advance(15 * time.Minute)
	if d := ctrl.CheckAdmission(id, OpReadFile, nil); !d.Allowed {
		t.Fatalf("expected allow after block expiry, got %s", d.Message)
	}
	ctrl.Sweep()
	if d := ctrl.CheckAdmission(id, OpReadFile, nil); !d.Allowed {
		t.Fatalf("identity must not be re-blocked after the counter reset, got %s", d.Message)
	}
}

func TestSweep_BelowThresholdNotBlocked(t *testing.T) {
	ctrl := testController(testLimits())
	id := identityFor("u1")

	for i := 0; i < 4; i++ {
		ctrl.CheckAdmission(id, OpReadFile, OperationContext{"file_size": uint64(1 << 40)})
	}
	ctrl.Sweep()

	if d := ctrl.CheckAdmission(id, OpReadFile, nil); !d.Allowed {
		t.Fatalf("4 violations must not trigger a block, got %s", d.Message)
	}
}

func TestSweep_EvictsIdleRecords(t *testing.T) {
	clock := newFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ctrl := testController(testLimits())
	ctrl.now = clock.Now

	idle := identityFor("idle")
	busy := identityFor("busy")

	ctrl.CheckAdmission(idle, OpReadFile, nil)
	ctrl.BeginRequest(busy, OpReadFile) // concurrency 1, never ends

	clock.Advance(25 * time.Hour)
	ctrl.Sweep()

	remaining := ctrl.Usage()
	if len(remaining) != 1 {
		t.Fatalf("expected 1 surviving record, got %d", len(remaining))
	}
	if remaining[0].Identity.UserID != "busy" {
		t.Errorf("record with in-flight work must survive, got %q", remaining[0].Identity.UserID)
	}
}

func TestSweep_TrimsStaleLogEntries(t *testing.T) {
	clock := newFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	ctrl := testController(testLimits())
	ctrl.now = clock.Now
	id := identityFor("u1")

	ctrl.BeginRequest(id, OpReadFile) // never ended
	clock.Advance(25 * time.Hour)
	ctrl.BeginRequest(id, OpReadFile)

	ctrl.Sweep()

	if got := ctrl.PendingOperations(); got != 1 {
		t.Errorf("expected stale entry trimmed, %d pending", got)
	}
}

func TestRunSweeper_StopsOnContextCancel(t *testing.T) {
	ctrl := testController(testLimits())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ctrl.RunSweeper(ctx, 10*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
