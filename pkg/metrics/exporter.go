package metrics

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/ehgkals/realtime-fin-mq/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus mirror of the engine counters, labelled by comparator side
// ("mymq" or "kafka") so a single scrape reports both. This is additive
// instrumentation only; DTOs never read from it.
var (
	promTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mymq_messages_total",
		Help: "Total messages counted as success or failure, by comparator side",
	}, []string{"engine"})

	promSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mymq_messages_success_total",
		Help: "Successfully processed messages, by comparator side",
	}, []string{"engine"})

	promFail = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mymq_messages_fail_total",
		Help: "Failed messages, by comparator side",
	}, []string{"engine"})

	promDuplicate = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mymq_messages_duplicate_total",
		Help: "Duplicate messages rejected, by comparator side",
	}, []string{"engine"})

	promOrderViolation = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mymq_order_violations_total",
		Help: "Per-key sequence order violations observed, by comparator side",
	}, []string{"engine"})

	promDlq = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mymq_dlq_total",
		Help: "Messages routed to the dead-letter queue, by comparator side",
	}, []string{"engine"})

	promUncommitted = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "mymq_uncommitted",
		Help: "Admitted but not yet released messages, by comparator side",
	}, []string{"engine"})

	promLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mymq_latency_ms",
		Help:    "End-to-end publish-to-consume latency in milliseconds, by comparator side",
		Buckets: prometheus.ExponentialBuckets(1, 2, 14),
	}, []string{"engine"})
)

var registerOnce sync.Once

func registerPromVecs() {
	registerOnce.Do(func() {
		prometheus.MustRegister(promTotal, promSuccess, promFail, promDuplicate, promOrderViolation, promDlq, promUncommitted, promLatency)
	})
}

// promMirror funnels one Engine's counter updates onto the package-level
// Prometheus vectors under a fixed "engine" label.
type promMirror struct {
	label string
}

func newPromMirror(label string) *promMirror {
	registerPromVecs()
	return &promMirror{label: label}
}

func (m *promMirror) observeSuccess(latencyMs uint64) {
	promTotal.WithLabelValues(m.label).Inc()
	promSuccess.WithLabelValues(m.label).Inc()
	promLatency.WithLabelValues(m.label).Observe(float64(latencyMs))
}

func (m *promMirror) incFailure() {
	promTotal.WithLabelValues(m.label).Inc()
	promFail.WithLabelValues(m.label).Inc()
}

func (m *promMirror) incDuplicate() {
	promDuplicate.WithLabelValues(m.label).Inc()
}

func (m *promMirror) incOrderViolation() {
	promOrderViolation.WithLabelValues(m.label).Inc()
}

func (m *promMirror) incDlq() {
	promDlq.WithLabelValues(m.label).Inc()
}

func (m *promMirror) setUncommitted(v int64) {
	promUncommitted.WithLabelValues(m.label).Set(float64(v))
}

// StartMetricsServer serves the Prometheus scrape endpoint on its own
// listener, independent of the main HTTP surface's mux.
func StartMetricsServer(port int) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics/prom", promhttp.Handler())
		addr := fmt.Sprintf(":%d", port)
		util.Info("[metrics] Prometheus exporter listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			util.Warn("[metrics] exporter server stopped: %v", err)
		}
	}()
}
