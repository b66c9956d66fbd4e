// Package httpapi exposes the broker, producer, metrics and comparators
// over a thin net/http surface. No handler contains business logic beyond
// argument parsing and DTO marshaling; every decision is delegated to the
// wired collaborators.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ehgkals/realtime-fin-mq/pkg/broker"
	"github.com/ehgkals/realtime-fin-mq/pkg/comparator"
	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
	"github.com/ehgkals/realtime-fin-mq/pkg/producer"
	"github.com/ehgkals/realtime-fin-mq/pkg/types"
	"github.com/ehgkals/realtime-fin-mq/util"
)

const defaultWindowMs = 60000

// Server wires every HTTP route in the external interface to its
// collaborators.
type Server struct {
	mymq  comparator.Comparator
	kafka comparator.Comparator
	bro   *broker.Broker
	ready func() bool
}

// New builds a Server. ready reports whether the broker, WAL and consumer
// pool have finished construction, for /healthz.
func New(mymq, kafka comparator.Comparator, bro *broker.Broker, ready func() bool) *Server {
	return &Server{mymq: mymq, kafka: kafka, bro: bro, ready: ready}
}

// Mux builds the configured request router.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.HandleFunc("GET /metrics/window", s.handleWindowMetrics)
	mux.HandleFunc("POST /metrics/mymq/send", s.handleSendMyMQ)
	mux.HandleFunc("POST /metrics/kafka/send", s.handleSendKafka)
	mux.HandleFunc("POST /metrics/both/send", s.handleSendBoth)
	mux.HandleFunc("POST /metrics/reset", s.handleReset)
	mux.HandleFunc("POST /_replicate", s.handleReplicate)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	return mux
}

type bothDTO struct {
	MyMQ  metrics.DTO `json:"mymq"`
	Kafka metrics.DTO `json:"kafka"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, bothDTO{MyMQ: s.mymq.Metrics(), Kafka: s.kafka.Metrics()})
}

func (s *Server) handleWindowMetrics(w http.ResponseWriter, r *http.Request) {
	windowMs := queryInt(r, "windowMs", defaultWindowMs)
	writeJSON(w, http.StatusOK, bothDTO{
		MyMQ:  s.mymq.WindowMetrics(int64(windowMs)),
		Kafka: s.kafka.WindowMetrics(int64(windowMs)),
	})
}

type sendResult struct {
	Sent    int         `json:"sent"`
	Target  string      `json:"target"`
	Metrics metrics.DTO `json:"metrics"`
}

func (s *Server) handleSendMyMQ(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "n", 1)
	key := r.URL.Query().Get("key")
	buckets := queryInt(r, "keyBuckets", 16)

	sent := s.fireN(r.Context(), s.mymq, n, key, buckets)
	writeJSON(w, http.StatusOK, sendResult{Sent: sent, Target: "mymq", Metrics: s.mymq.Metrics()})
}

func (s *Server) handleSendKafka(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "n", 1)

	sent := s.fireN(r.Context(), s.kafka, n, "", 16)
	writeJSON(w, http.StatusOK, sendResult{Sent: sent, Target: "kafka", Metrics: s.kafka.Metrics()})
}

type sendBothResult struct {
	SentKafka int     `json:"sentKafka"`
	SentMyMQ  int     `json:"sentMyMq"`
	Target    string  `json:"target"`
	Metrics   bothDTO `json:"metrics"`
}

func (s *Server) handleSendBoth(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "n", 1)

	sentMyMQ := s.fireN(r.Context(), s.mymq, n, "", 16)
	sentKafka := s.fireN(r.Context(), s.kafka, n, "", 16)

	writeJSON(w, http.StatusOK, sendBothResult{
		SentKafka: sentKafka,
		SentMyMQ:  sentMyMQ,
		Target:    "both",
		Metrics:   bothDTO{MyMQ: s.mymq.Metrics(), Kafka: s.kafka.Metrics()},
	})
}

// fireN buckets each payload across keyBuckets derived keys when the caller
// didn't pin one, so a load test exercises more than a single partition.
func (s *Server) fireN(ctx context.Context, c comparator.Comparator, n int, key string, buckets int) int {
	sent := 0
	for i := 0; i < n; i++ {
		payload := "load-" + strconv.Itoa(i)
		effectiveKey := key
		if effectiveKey == "" {
			effectiveKey = producer.DeriveKey(payload, buckets)
		}
		if err := c.Publish(ctx, effectiveKey, payload); err != nil {
			util.Warn("[httpapi] publish %d/%d failed: %v", i+1, n, err)
			continue
		}
		sent++
	}
	return sent
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	scope := r.URL.Query().Get("scope")
	if scope == "" {
		scope = "all"
	}

	for _, c := range []comparator.Comparator{s.mymq, s.kafka} {
		if scope == "latency" {
			c.ResetLatencyWindow()
		} else {
			c.ResetAll()
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"scope": scope})
}

func (s *Server) handleReplicate(w http.ResponseWriter, r *http.Request) {
	var msg types.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message body"})
		return
	}

	res := s.bro.EnqueueFromPeer(msg)
	if !res.Accepted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": string(res.Reason)})
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil && !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		util.Warn("[httpapi] failed to write JSON response: %v", err)
	}
}
