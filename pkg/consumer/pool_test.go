package consumer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ehgkals/realtime-fin-mq/pkg/broker"
	"github.com/ehgkals/realtime-fin-mq/pkg/consumer"
	"github.com/ehgkals/realtime-fin-mq/pkg/dlq"
	"github.com/ehgkals/realtime-fin-mq/pkg/idempotency"
	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
	"github.com/ehgkals/realtime-fin-mq/pkg/queue"
	"github.com/ehgkals/realtime-fin-mq/pkg/replication"
	"github.com/ehgkals/realtime-fin-mq/pkg/types"
	"github.com/ehgkals/realtime-fin-mq/pkg/wal"
)

func newTestRig(t *testing.T) (*broker.Broker, *idempotency.Store, *metrics.Engine) {
	t.Helper()
	w, err := wal.Open(t.TempDir() + "/test.wal")
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	m := metrics.NewEngine("test-consumer")
	idem := idempotency.New(false)
	b := broker.New(queue.New(1000), dlq.New(100, m), w, idem, m, replication.New(nil), 1)
	return b, idem, m
}

func TestPoolProcessesMessagesAndReleasesUncommitted(t *testing.T) {
	b, idem, m := newTestRig(t)

	var mu sync.Mutex
	var seen []string
	pool := consumer.New(b, idem, m, 1, 5, func(msg types.Message) error {
		mu.Lock()
		seen = append(seen, msg.ID)
		mu.Unlock()
		return nil
	})
	pool.Start()
	defer pool.Stop()

	seq := uint64(1)
	// Broker.Enqueue leaves the uncommitted increment to its caller; do what
	// the producer does for an accepted message.
	m.IncUncommitted()
	b.Enqueue(context.Background(), types.Message{ID: "1", Payload: "x", Timestamp: time.Now().UnixMilli(), Sequence: &seq})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "1" {
		t.Fatalf("expected message 1 to be processed, got %v", seen)
	}

	snap := m.Snapshot()
	if snap.SuccessCount != 1 {
		t.Errorf("SuccessCount = %d, want 1", snap.SuccessCount)
	}
	if snap.UncommittedCount != 0 {
		t.Errorf("UncommittedCount = %d, want 0", snap.UncommittedCount)
	}
}

func TestPoolOrderViolation(t *testing.T) {
	b, idem, m := newTestRig(t)

	pool := consumer.New(b, idem, m, 1, 5, nil)
	pool.Start()
	defer pool.Stop()

	seqs := []uint64{1, 2, 3}
	for _, s := range seqs {
		s := s
		b.Enqueue(context.Background(), types.Message{ID: string(rune('a' + s)), Key: "k", Timestamp: time.Now().UnixMilli(), Sequence: &s})
	}
	lower := uint64(2)
	b.Enqueue(context.Background(), types.Message{ID: "violator", Key: "k", Timestamp: time.Now().UnixMilli(), Sequence: &lower})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.Snapshot().SuccessCount >= 4 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if m.Snapshot().OrderViolationCount != 1 {
		t.Errorf("OrderViolationCount = %d, want 1", m.Snapshot().OrderViolationCount)
	}
}
