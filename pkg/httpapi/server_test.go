package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ehgkals/realtime-fin-mq/pkg/broker"
	"github.com/ehgkals/realtime-fin-mq/pkg/comparator"
	"github.com/ehgkals/realtime-fin-mq/pkg/consumer"
	"github.com/ehgkals/realtime-fin-mq/pkg/dlq"
	"github.com/ehgkals/realtime-fin-mq/pkg/httpapi"
	"github.com/ehgkals/realtime-fin-mq/pkg/idempotency"
	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
	"github.com/ehgkals/realtime-fin-mq/pkg/producer"
	"github.com/ehgkals/realtime-fin-mq/pkg/queue"
	"github.com/ehgkals/realtime-fin-mq/pkg/replication"
	"github.com/ehgkals/realtime-fin-mq/pkg/wal"
)

type stubKafka struct{ m *metrics.Engine }

func (s *stubKafka) Publish(ctx context.Context, key, payload string) error { return nil }
func (s *stubKafka) Metrics() metrics.DTO                                   { return s.m.Snapshot() }
func (s *stubKafka) WindowMetrics(windowMs int64) metrics.DTO               { return s.m.WindowSnapshot(windowMs) }
func (s *stubKafka) ResetAll()                                              { s.m.ResetAll() }
func (s *stubKafka) ResetLatencyWindow()                                    { s.m.ResetLatencyWindow() }

func newTestServer(t *testing.T) *httpapi.Server {
	t.Helper()
	w, err := wal.Open(t.TempDir() + "/test.wal")
	if err != nil {
		t.Fatalf("wal.Open: %v", err)
	}
	m := metrics.NewEngine("test-http-mymq")
	idem := idempotency.New(false)
	b := broker.New(queue.New(100), dlq.New(10, m), w, idem, m, replication.New(nil), 1)
	pool := consumer.New(b, idem, m, 1, 5, nil)
	p := producer.New(b, m)
	mymq := comparator.NewMyMQ(p, m, idem, pool)

	kafka := &stubKafka{m: metrics.NewEngine("test-http-kafka")}

	return httpapi.New(mymq, kafka, b, func() bool { return true })
}

func TestHealthzReturnsOK(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	s.Mux().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestSendMyMQReportsSentCount(t *testing.T) {
	s := newTestServer(t)
	mux := s.Mux()

	req := httptest.NewRequest(http.MethodPost, "/metrics/mymq/send?n=3", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Sent int `json:"sent"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Sent != 3 {
		t.Errorf("sent = %d, want 3", body.Sent)
	}
}

func TestResetClearsMetrics(t *testing.T) {
	s := newTestServer(t)
	mux := s.Mux()

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/metrics/mymq/send?n=2", nil))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics/reset?scope=all", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	metricsRec := httptest.NewRecorder()
	mux.ServeHTTP(metricsRec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	var dto struct {
		MyMQ metrics.DTO `json:"mymq"`
	}
	if err := json.Unmarshal(metricsRec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if dto.MyMQ.TotalMessages != 0 {
		t.Errorf("TotalMessages after reset = %d, want 0", dto.MyMQ.TotalMessages)
	}
}
