// Package dlq implements the broker's dead-letter queue: a bounded overflow
// sink for messages the main pipeline could not durably admit.
package dlq

import (
	"time"

	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
	"github.com/ehgkals/realtime-fin-mq/pkg/queue"
	"github.com/ehgkals/realtime-fin-mq/pkg/types"
)

// DLQ wraps a bounded queue of its own and records its own metrics, the
// same way the original Dlq.add() accounted for drops: a DLQ add that
// overflows is a failure, not a DLQ event, so the DLQ count never exceeds
// its own capacity.
type DLQ struct {
	q       *queue.Queue
	metrics *metrics.Engine
}

// New builds a DLQ with the given capacity, recording events on m.
func New(capacity int, m *metrics.Engine) *DLQ {
	return &DLQ{q: queue.New(capacity), metrics: m}
}

// Add enqueues msg. If the DLQ itself is full, the message is dropped and
// counted as a processing failure instead of a DLQ event.
func (d *DLQ) Add(msg types.Message) {
	if d.q.Offer(msg) {
		d.metrics.RecordDlq()
		return
	}
	d.metrics.RecordFailure()
}

// Poll blocks up to timeout for a dead-lettered message, for monitoring or
// reprocessing tooling.
func (d *DLQ) Poll(timeout time.Duration) (types.Message, bool) {
	return d.q.Poll(timeout)
}

func (d *DLQ) Size() int      { return d.q.Size() }
func (d *DLQ) IsEmpty() bool  { return d.q.IsEmpty() }
func (d *DLQ) IsFull() bool   { return d.q.IsFull() }
