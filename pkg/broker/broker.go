// Package broker orchestrates admission of a message through idempotency
// checking, write-ahead logging, peer replication and quorum, and the
// bounded main queue, falling back to the dead-letter queue when quorum or
// queue capacity rejects a message (duplicates are rejected without one).
package broker

import (
	"context"
	"time"

	"github.com/ehgkals/realtime-fin-mq/pkg/dlq"
	"github.com/ehgkals/realtime-fin-mq/pkg/idempotency"
	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
	"github.com/ehgkals/realtime-fin-mq/pkg/queue"
	"github.com/ehgkals/realtime-fin-mq/pkg/replication"
	"github.com/ehgkals/realtime-fin-mq/pkg/types"
	"github.com/ehgkals/realtime-fin-mq/pkg/wal"
	"github.com/ehgkals/realtime-fin-mq/util"
)

// RejectReason tags why Enqueue refused a message.
type RejectReason string

const (
	ReasonNone     RejectReason = ""
	ReasonDuplicate RejectReason = "duplicate"
	ReasonQuorum    RejectReason = "quorum"
	ReasonFull      RejectReason = "full"
	ReasonError     RejectReason = "error"
)

// Result is the small tagged outcome of an admission call, replacing
// exception control flow with an explicit, single-exit value.
type Result struct {
	Accepted bool
	Reason   RejectReason
}

func accepted() Result { return Result{Accepted: true} }
func rejected(reason RejectReason) Result { return Result{Accepted: false, Reason: reason} }

// Broker holds references to its dependencies only; nothing points back at
// the broker.
type Broker struct {
	queue   *queue.Queue
	dlq     *dlq.DLQ
	wal     *wal.WAL
	idem    *idempotency.Store
	metrics *metrics.Engine
	repl    *replication.Client
	quorum  int
}

// New wires a Broker from its already-constructed collaborators. quorum is
// the configured acknowledgement requirement; it is clamped at call time to
// [1, 1+peerCount].
func New(q *queue.Queue, d *dlq.DLQ, w *wal.WAL, idem *idempotency.Store, m *metrics.Engine, repl *replication.Client, quorum int) *Broker {
	return &Broker{queue: q, dlq: d, wal: w, idem: idem, metrics: m, repl: repl, quorum: quorum}
}

// Enqueue runs the producer-side admission pipeline: admit, durability,
// replicate, quorum, offer.
func (b *Broker) Enqueue(ctx context.Context, msg types.Message) Result {
	if b.idem.AlreadyProcessed(msg.ID) {
		util.Warn("[broker] duplicate message detected id=%s", msg.ID)
		b.metrics.RecordDuplicate()
		return rejected(ReasonDuplicate)
	}

	b.wal.Append(msg)

	acks := b.repl.Replicate(ctx, msg)
	needed := b.effectiveQuorum(b.repl.PeerCount())
	if acks < needed {
		util.Warn("[broker] replication quorum failed id=%s acks=%d needed=%d", msg.ID, acks, needed)
		b.dlq.Add(msg)
		return rejected(ReasonQuorum)
	}

	if !b.queue.Offer(msg) {
		util.Warn("[broker] queue full, routing to dlq id=%s", msg.ID)
		b.dlq.Add(msg)
		return rejected(ReasonFull)
	}

	return accepted()
}

// EnqueueFromPeer is the replica-ingest path: same admission check and WAL
// write as Enqueue, but skips replication and quorum since the message
// already arrived via another node's replication fan-out. On success it
// increments uncommitted, since peer ingestion is new work the local
// consumer pool must still drain; producer-initiated admission increments
// uncommitted itself so the broker never double-counts.
func (b *Broker) EnqueueFromPeer(msg types.Message) Result {
	if b.idem.AlreadyProcessed(msg.ID) {
		util.Warn("[broker] (peer) duplicate message detected id=%s", msg.ID)
		b.metrics.RecordDuplicate()
		return rejected(ReasonDuplicate)
	}

	b.wal.Append(msg)

	if !b.queue.Offer(msg) {
		util.Warn("[broker] (peer) queue full, routing to dlq id=%s", msg.ID)
		b.dlq.Add(msg)
		return rejected(ReasonFull)
	}

	b.metrics.IncUncommitted()
	return accepted()
}

// Poll delegates to the main queue.
func (b *Broker) Poll(timeout time.Duration) (types.Message, bool) {
	return b.queue.Poll(timeout)
}

// effectiveQuorum clamps the configured quorum to [1, 1+peerCount].
func (b *Broker) effectiveQuorum(peerCount int) int {
	total := 1 + peerCount
	if b.quorum <= 0 {
		return 1
	}
	if b.quorum > total {
		return total
	}
	return b.quorum
}
