package dlq_test

import (
	"testing"
	"time"

	"github.com/ehgkals/realtime-fin-mq/pkg/dlq"
	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
	"github.com/ehgkals/realtime-fin-mq/pkg/types"
)

func TestAddRecordsDlqEvent(t *testing.T) {
	m := metrics.NewEngine("test-dlq-add")
	d := dlq.New(2, m)

	d.Add(types.Message{ID: "1"})

	snap := m.Snapshot()
	if snap.DlqCount != 1 {
		t.Errorf("DlqCount = %d, want 1", snap.DlqCount)
	}
	if snap.FailCount != 0 {
		t.Errorf("FailCount = %d, want 0", snap.FailCount)
	}
}

func TestAddOnFullDlqRecordsFailureNotDlq(t *testing.T) {
	m := metrics.NewEngine("test-dlq-full")
	d := dlq.New(1, m)

	d.Add(types.Message{ID: "1"})
	d.Add(types.Message{ID: "2"})

	snap := m.Snapshot()
	if snap.DlqCount != 1 {
		t.Errorf("DlqCount = %d, want 1 (capacity is 1)", snap.DlqCount)
	}
	if snap.FailCount != 1 {
		t.Errorf("FailCount = %d, want 1 (overflow counts as failure)", snap.FailCount)
	}
}

func TestPollReturnsAddedMessage(t *testing.T) {
	m := metrics.NewEngine("test-dlq-poll")
	d := dlq.New(2, m)

	d.Add(types.Message{ID: "only"})

	msg, ok := d.Poll(10 * time.Millisecond)
	if !ok || msg.ID != "only" {
		t.Fatalf("expected to poll back the added message, got %+v ok=%v", msg, ok)
	}
}
