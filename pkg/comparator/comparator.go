// Package comparator defines the contract letting the dashboard drive load
// and read metrics symmetrically against MyMQ and Kafka.
package comparator

import (
	"context"

	"github.com/ehgkals/realtime-fin-mq/pkg/consumer"
	"github.com/ehgkals/realtime-fin-mq/pkg/idempotency"
	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
	"github.com/ehgkals/realtime-fin-mq/pkg/producer"
)

// Comparator is implemented by the MyMQ side (wrapping Producer +
// MetricsEngine) and the Kafka side (wrapping a real Kafka client).
type Comparator interface {
	Publish(ctx context.Context, key, payload string) error
	Metrics() metrics.DTO
	WindowMetrics(windowMs int64) metrics.DTO
	ResetAll()
	ResetLatencyWindow()
}

// MyMQ adapts the full broker-side pipeline to the Comparator contract, so
// a reset clears not just counters but every piece of state a rerun needs
// zeroed: the idempotency store and the consumer pool's dedup window and
// per-key sequence map.
type MyMQ struct {
	producer *producer.Producer
	metrics  *metrics.Engine
	idem     *idempotency.Store
	pool     *consumer.Pool
}

// NewMyMQ builds the MyMQ-side comparator.
func NewMyMQ(p *producer.Producer, m *metrics.Engine, idem *idempotency.Store, pool *consumer.Pool) *MyMQ {
	return &MyMQ{producer: p, metrics: m, idem: idem, pool: pool}
}

func (c *MyMQ) Publish(ctx context.Context, key, payload string) error {
	return c.producer.Publish(ctx, key, payload)
}

func (c *MyMQ) Metrics() metrics.DTO { return c.metrics.Snapshot() }

func (c *MyMQ) WindowMetrics(windowMs int64) metrics.DTO { return c.metrics.WindowSnapshot(windowMs) }

func (c *MyMQ) ResetAll() {
	c.metrics.ResetAll()
	c.idem.Clear()
	c.pool.ResetState()
}

func (c *MyMQ) ResetLatencyWindow() { c.metrics.ResetLatencyWindow() }
