// Package kafkacompare wraps a real Kafka client as a Comparator, so the
// dashboard can drive load against Kafka and read metrics shaped exactly
// like the MyMQ side. It is explicitly a thin pass-through: no partition
// administration, no exactly-once, no consumer-group rebalancing logic of
// its own beyond what sarama already does.
package kafkacompare

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"

	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
	"github.com/ehgkals/realtime-fin-mq/pkg/types"
	"github.com/ehgkals/realtime-fin-mq/util"
)

var errEmptyPayload = errors.New("kafkacompare: payload must not be empty")

// Comparator publishes to and consumes from a single Kafka topic,
// recording the same success/failure/latency shape the MyMQ consumer pool
// records. If no broker is reachable at construction, it degrades to a
// stub that publishes nowhere and reports zeroed metrics, since the
// dashboard must render with or without a live Kafka cluster.
type Comparator struct {
	metrics  *metrics.Engine
	topic    string
	producer sarama.SyncProducer
	group    sarama.ConsumerGroup
	stub     bool
	cancel   context.CancelFunc
}

// New connects to brokers and starts a background consumer-group loop over
// topic. On any connection error it logs a warning and returns a stub
// comparator instead of failing process bootstrap.
func New(brokers []string, topic, groupID string, m *metrics.Engine) *Comparator {
	c := &Comparator{metrics: m, topic: topic}

	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		util.Warn("[kafkacompare] brokers unreachable, degrading to stub: %v", err)
		c.stub = true
		return c
	}

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		util.Warn("[kafkacompare] consumer group unreachable, degrading to stub: %v", err)
		producer.Close()
		c.stub = true
		return c
	}

	c.producer = producer
	c.group = group

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.consumeLoop(ctx)

	return c
}

func (c *Comparator) consumeLoop(ctx context.Context) {
	handler := &groupHandler{metrics: c.metrics}
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.group.Consume(ctx, []string{c.topic}, handler); err != nil {
			util.Warn("[kafkacompare] consume loop error: %v", err)
		}
	}
}

// Publish sends a message to the Kafka topic synchronously. It does not
// record success itself; the consumer-group loop records success/latency
// when the message is actually consumed back, the same way the MyMQ
// consumer pool does.
func (c *Comparator) Publish(ctx context.Context, key, payload string) error {
	if c.stub {
		return nil
	}
	if payload == "" {
		return errEmptyPayload
	}

	msg := types.Message{
		ID:        uuid.NewString(),
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
		Key:       key,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		c.metrics.RecordFailure()
		return err
	}

	c.metrics.IncUncommitted()
	_, _, err = c.producer.SendMessage(&sarama.ProducerMessage{
		Topic: c.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		c.metrics.DecUncommitted()
		c.metrics.RecordFailure()
		util.Warn("[kafkacompare] publish failed: %v", err)
		return err
	}
	return nil
}

func (c *Comparator) Metrics() metrics.DTO { return c.metrics.Snapshot() }

func (c *Comparator) WindowMetrics(windowMs int64) metrics.DTO {
	return c.metrics.WindowSnapshot(windowMs)
}

func (c *Comparator) ResetAll() { c.metrics.ResetAll() }

func (c *Comparator) ResetLatencyWindow() { c.metrics.ResetLatencyWindow() }

// Close releases the producer and consumer group.
func (c *Comparator) Close() {
	if c.stub {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.producer.Close()
	c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler, recording success
// and latency for each message it reads back.
type groupHandler struct {
	metrics *metrics.Engine
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.handle(msg)
			session.MarkMessage(msg, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

func (h *groupHandler) handle(raw *sarama.ConsumerMessage) {
	var msg types.Message
	if err := json.Unmarshal(raw.Value, &msg); err != nil {
		h.metrics.RecordFailure()
		h.metrics.DecUncommitted()
		return
	}

	latency := time.Now().UnixMilli() - msg.Timestamp
	if latency < 0 {
		latency = 0
	}
	h.metrics.RecordSuccess(uint64(latency))
	h.metrics.DecUncommitted()
}
