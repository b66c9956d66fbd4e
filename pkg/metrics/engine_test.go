package metrics_test

import (
	"testing"
	"time"

	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
)

func TestRecordSuccessUpdatesCountersAndLatency(t *testing.T) {
	e := metrics.NewEngine("test-success")

	e.RecordSuccess(10)
	e.RecordSuccess(20)
	e.RecordSuccess(30)

	snap := e.Snapshot()
	if snap.TotalMessages != 3 || snap.SuccessCount != 3 {
		t.Fatalf("expected 3 total/success, got %+v", snap)
	}
	if snap.AvgLatencyMs != 20 {
		t.Errorf("expected avg 20, got %v", snap.AvgLatencyMs)
	}
}

func TestSnapshotCountersIndependentOfLatency(t *testing.T) {
	e := metrics.NewEngine("test-counters")

	e.RecordFailure()
	e.RecordDuplicate()
	e.RecordOrderViolation()
	e.RecordDlq()
	e.IncUncommitted()
	e.IncUncommitted()
	e.DecUncommitted()

	snap := e.Snapshot()
	if snap.FailCount != 1 {
		t.Errorf("FailCount = %d, want 1", snap.FailCount)
	}
	if snap.DuplicateCount != 1 {
		t.Errorf("DuplicateCount = %d, want 1", snap.DuplicateCount)
	}
	if snap.OrderViolationCount != 1 {
		t.Errorf("OrderViolationCount = %d, want 1", snap.OrderViolationCount)
	}
	if snap.DlqCount != 1 {
		t.Errorf("DlqCount = %d, want 1", snap.DlqCount)
	}
	if snap.UncommittedCount != 1 {
		t.Errorf("UncommittedCount = %d, want 1", snap.UncommittedCount)
	}
	if snap.TotalMessages != 1 {
		t.Errorf("TotalMessages = %d, want 1 (only RecordFailure bumps total)", snap.TotalMessages)
	}
}

func TestPercentileOverKnownDistribution(t *testing.T) {
	e := metrics.NewEngine("test-percentile")

	for i := 1; i <= 100; i++ {
		e.RecordSuccess(uint64(i))
	}

	snap := e.Snapshot()
	if snap.P95LatencyMs != 95 {
		t.Errorf("P95LatencyMs = %d, want 95", snap.P95LatencyMs)
	}
	if snap.P99LatencyMs != 99 {
		t.Errorf("P99LatencyMs = %d, want 99", snap.P99LatencyMs)
	}
}

func TestResetAllZeroesEverything(t *testing.T) {
	e := metrics.NewEngine("test-reset")

	e.RecordSuccess(50)
	e.RecordFailure()
	e.IncUncommitted()
	e.ResetAll()

	snap := e.Snapshot()
	want := metrics.DTO{}
	if snap != want {
		t.Errorf("ResetAll left non-zero DTO: %+v", snap)
	}
}

func TestWindowSnapshotPrunesOldSamples(t *testing.T) {
	e := metrics.NewEngine("test-window")

	e.RecordSuccess(5)
	e.RecordSuccess(15)

	snap := e.WindowSnapshot(60000)
	if snap.AvgLatencyMs != 10 {
		t.Errorf("window avg = %v, want 10", snap.AvgLatencyMs)
	}

	time.Sleep(5 * time.Millisecond)
	tiny := e.WindowSnapshot(0)
	if tiny.TotalMessages != snap.TotalMessages {
		t.Errorf("window counters should mirror cumulative counters")
	}
	if tiny.AvgLatencyMs != 0 || tiny.P95LatencyMs != 0 {
		t.Errorf("samples older than the 1ms window should be pruned, got avg=%v p95=%d", tiny.AvgLatencyMs, tiny.P95LatencyMs)
	}
}
