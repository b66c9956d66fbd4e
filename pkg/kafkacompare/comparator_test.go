package kafkacompare_test

import (
	"context"
	"testing"

	"github.com/ehgkals/realtime-fin-mq/pkg/comparator"
	"github.com/ehgkals/realtime-fin-mq/pkg/kafkacompare"
	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
)

// With no reachable brokers, New must degrade to a stub rather than panic
// or block, since the dashboard has to render without a live Kafka
// cluster.
func TestNewDegradesToStubWithoutBrokers(t *testing.T) {
	m := metrics.NewEngine("test-kafka-stub")
	c := kafkacompare.New([]string{"127.0.0.1:1"}, "topic", "group", m)

	var _ comparator.Comparator = c

	if err := c.Publish(context.Background(), "k", "payload"); err != nil {
		t.Errorf("stub Publish should not error, got %v", err)
	}

	snap := c.Metrics()
	if snap.TotalMessages != 0 {
		t.Errorf("stub should report zeroed metrics, got %+v", snap)
	}
}
