// Package producer assigns identity and ordering metadata to outbound
// messages and forwards them to the broker.
package producer

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehgkals/realtime-fin-mq/pkg/broker"
	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
	"github.com/ehgkals/realtime-fin-mq/pkg/types"
	"github.com/ehgkals/realtime-fin-mq/util"
)

// ErrEmptyPayload is returned by Publish when called with an empty payload.
var ErrEmptyPayload = errors.New("producer: payload must not be empty")

// defaultKeyBuckets is the fallback partitioning fan-out used by
// DeriveKey when the caller doesn't supply one.
const defaultKeyBuckets = 16

// Producer assigns IDs, per-key sequence numbers and timestamps, then
// forwards to the broker.
type Producer struct {
	broker  *broker.Broker
	metrics *metrics.Engine

	seqMu    sync.Mutex
	seqByKey map[string]uint64
}

// New builds a Producer over the given broker and metrics engine.
func New(b *broker.Broker, m *metrics.Engine) *Producer {
	return &Producer{broker: b, metrics: m, seqByKey: make(map[string]uint64)}
}

// DeriveKey buckets payload into one of buckets partitions, giving callers
// that don't care about ordering a stable default key instead of the
// literal default. buckets defaults to 16 when non-positive.
func DeriveKey(payload string, buckets int) string {
	if buckets <= 0 {
		buckets = defaultKeyBuckets
	}
	return "key-" + strconv.Itoa(util.Hash(payload)%buckets)
}

// Publish builds a message from key and payload and enqueues it through
// the broker. An empty key defaults to "key-default". On acceptance the
// producer increments uncommitted; any rejection is reported as an error.
func (p *Producer) Publish(ctx context.Context, key, payload string) error {
	if payload == "" {
		return ErrEmptyPayload
	}
	if key == "" {
		key = "key-default"
	}

	seq := p.nextSeq(key)
	msg := types.Message{
		ID:        uuid.NewString(),
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
		Key:       key,
		Sequence:  &seq,
	}

	res := p.broker.Enqueue(ctx, msg)
	if !res.Accepted {
		util.Warn("[producer] publish rejected id=%s reason=%s", msg.ID, res.Reason)
		return errors.New("producer: publish rejected: " + string(res.Reason))
	}

	p.metrics.IncUncommitted()
	return nil
}

func (p *Producer) nextSeq(key string) uint64 {
	p.seqMu.Lock()
	defer p.seqMu.Unlock()
	p.seqByKey[key]++
	return p.seqByKey[key]
}
