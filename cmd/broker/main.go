package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/ehgkals/realtime-fin-mq/pkg/broker"
	"github.com/ehgkals/realtime-fin-mq/pkg/comparator"
	"github.com/ehgkals/realtime-fin-mq/pkg/config"
	"github.com/ehgkals/realtime-fin-mq/pkg/consumer"
	"github.com/ehgkals/realtime-fin-mq/pkg/dlq"
	"github.com/ehgkals/realtime-fin-mq/pkg/httpapi"
	"github.com/ehgkals/realtime-fin-mq/pkg/idempotency"
	"github.com/ehgkals/realtime-fin-mq/pkg/kafkacompare"
	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
	"github.com/ehgkals/realtime-fin-mq/pkg/producer"
	"github.com/ehgkals/realtime-fin-mq/pkg/queue"
	"github.com/ehgkals/realtime-fin-mq/pkg/replication"
	"github.com/ehgkals/realtime-fin-mq/pkg/types"
	"github.com/ehgkals/realtime-fin-mq/pkg/wal"
	"github.com/ehgkals/realtime-fin-mq/util"
)

const promPort = 9090

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	fmt.Printf("🚀 Starting mymq broker: %s\n", cfg)
	fmt.Printf("🧠 Kafka comparator enabled: %v\n", cfg.KafkaEnabled)

	// WAL and admission pipeline
	w, err := wal.Open(cfg.WalPath)
	if err != nil {
		log.Fatalf("❌ Failed to open WAL %s: %v", cfg.WalPath, err)
	}

	mymqMetrics := metrics.NewEngine("mymq")
	kafkaMetrics := metrics.NewEngine("kafka")

	q := queue.New(cfg.QueueSize)
	d := dlq.New(cfg.DlqSize, mymqMetrics)
	idem := idempotency.New(cfg.IdempotencyPermanent)
	repl := replication.New(cfg.Peers)

	bro := broker.New(q, d, w, idem, mymqMetrics, repl, cfg.Quorum)

	replayed := 0
	if err := w.Replay(func(msg types.Message) {
		if bro.EnqueueFromPeer(msg).Accepted {
			replayed++
		}
	}); err != nil {
		util.Warn("[main] WAL replay failed, starting from empty queue: %v", err)
	}
	util.Info("[main] replayed %d message(s) from WAL", replayed)

	// Consumer pool and producer
	pool := consumer.New(bro, idem, mymqMetrics, cfg.NumConsumers, cfg.PollIntervalMs, nil)
	pool.Start()

	p := producer.New(bro, mymqMetrics)
	mymqComparator := comparator.NewMyMQ(p, mymqMetrics, idem, pool)

	// Kafka comparator, degrading to a stub when disabled or unreachable
	var kafkaComparator comparator.Comparator
	if cfg.KafkaEnabled {
		kc := kafkacompare.New(cfg.KafkaBootstrapServers, cfg.KafkaTopic, cfg.KafkaGroupID, kafkaMetrics)
		defer kc.Close()
		kafkaComparator = kc
	} else {
		kafkaComparator = kafkacompare.New(nil, cfg.KafkaTopic, cfg.KafkaGroupID, kafkaMetrics)
	}

	var ready atomic.Bool
	ready.Store(true)

	srv := httpapi.New(mymqComparator, kafkaComparator, bro, ready.Load)

	metrics.StartMetricsServer(promPort)
	util.Info("[main] prometheus exporter listening on :%d/metrics/prom", promPort)

	httpServer := &http.Server{Addr: cfg.HTTPListenAddr, Handler: srv.Mux()}

	go func() {
		util.Info("[main] http surface listening on %s", cfg.HTTPListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ HTTP server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ready.Store(false)
	util.Info("[main] shutdown signal received, draining")

	pool.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		util.Warn("[main] http server shutdown error: %v", err)
	}

	util.Info("[main] shutdown complete")
}
