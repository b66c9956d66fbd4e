// Package consumer runs a pool of worker goroutines draining the broker's
// queue, performing post-admission dedup, per-key order checking and
// message processing.
package consumer

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ehgkals/realtime-fin-mq/pkg/broker"
	"github.com/ehgkals/realtime-fin-mq/pkg/idempotency"
	"github.com/ehgkals/realtime-fin-mq/pkg/metrics"
	"github.com/ehgkals/realtime-fin-mq/pkg/types"
	"github.com/ehgkals/realtime-fin-mq/util"
)

// dedupeWindowSize bounds the post-admission dedup structure: at-least-once
// delivery can replay an already-processed id, and this window catches it
// after the idempotency store has already released it.
const dedupeWindowSize = 100_000

// pollTimeout bounds each Broker.Poll call; on empty poll the worker parks
// for the configured interval before retrying.
const pollTimeout = 50 * time.Millisecond

// ProcessFunc is the user extension point invoked for each message that
// passes dedup. The default is a no-op "accept".
type ProcessFunc func(types.Message) error

func defaultProcess(types.Message) error { return nil }

// Pool runs numWorkers goroutines against a shared broker, each polling
// independently; there is no shared poll cursor.
type Pool struct {
	broker         *broker.Broker
	idem           *idempotency.Store
	metrics        *metrics.Engine
	numWorkers     int
	pollIntervalMs int
	process        ProcessFunc

	dedupe *lru.Cache

	seqMu       sync.Mutex
	lastSeqByKey map[string]uint64

	wg      sync.WaitGroup
	stop    chan struct{}
	stopped sync.Once
}

// New builds a consumer pool. numWorkers is clamped to at least 1.
// pollIntervalMs is the park duration between empty polls, clamped to at
// least 1ms. A nil process hook defaults to a no-op accept.
func New(b *broker.Broker, idem *idempotency.Store, m *metrics.Engine, numWorkers, pollIntervalMs int, process ProcessFunc) *Pool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if pollIntervalMs <= 0 {
		pollIntervalMs = 1
	}
	if process == nil {
		process = defaultProcess
	}

	dedupe, err := lru.New(dedupeWindowSize)
	if err != nil {
		// Only returns an error for a non-positive size, which cannot
		// happen given the constant above.
		panic(err)
	}

	return &Pool{
		broker:         b,
		idem:           idem,
		metrics:        m,
		numWorkers:     numWorkers,
		pollIntervalMs: pollIntervalMs,
		process:        process,
		dedupe:         dedupe,
		lastSeqByKey:   make(map[string]uint64),
		stop:           make(chan struct{}),
	}
}

// Start launches the worker goroutines. They run until Stop is called.
func (p *Pool) Start() {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	util.Info("[consumer] %d worker(s) started", p.numWorkers)
}

// Stop signals every worker to exit and waits up to 5 seconds for them to
// drain their current iteration.
func (p *Pool) Stop() {
	p.stopped.Do(func() { close(p.stop) })

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		util.Warn("[consumer] timed out waiting for workers to stop")
	}
	util.Info("[consumer] workers stopped")
}

func (p *Pool) workerLoop() {
	defer p.wg.Done()

	park := time.Duration(p.pollIntervalMs) * time.Millisecond

	for {
		select {
		case <-p.stop:
			return
		default:
		}

		msg, ok := p.broker.Poll(pollTimeout)
		if !ok {
			time.Sleep(park)
			continue
		}

		p.handle(msg)
	}
}

func (p *Pool) handle(msg types.Message) {
	decremented := false
	dec := func() {
		if !decremented {
			p.metrics.DecUncommitted()
			decremented = true
		}
	}
	defer dec()
	defer func() {
		if r := recover(); r != nil {
			p.metrics.RecordFailure()
			util.Error("[consumer] recovered panic while handling id=%s: %v", msg.ID, r)
		}
	}()

	now := time.Now().UnixMilli()
	latency := now - msg.Timestamp
	if latency < 0 {
		latency = 0
	}

	if p.dedupe.Contains(msg.ID) {
		p.metrics.RecordDuplicate()
		util.Warn("[consumer] post-admission duplicate dropped id=%s", msg.ID)
		return
	}
	p.dedupe.Add(msg.ID, struct{}{})

	p.checkOrder(msg)

	if err := p.process(msg); err != nil {
		p.metrics.RecordFailure()
		util.Error("[consumer] processing failed id=%s: %v", msg.ID, err)
		return
	}

	p.metrics.RecordSuccess(uint64(latency))
	p.idem.RemoveProcessed(msg.ID)
}

// ResetState clears the dedupe window and the per-key sequence map,
// matching the broader ResetAll behavior at the comparator level.
func (p *Pool) ResetState() {
	p.dedupe.Purge()
	p.seqMu.Lock()
	p.lastSeqByKey = make(map[string]uint64)
	p.seqMu.Unlock()
}

// checkOrder records an order violation whenever a key/sequence pair
// arrives out of order relative to the highest sequence previously seen
// for that key. Messages without a key or sequence skip the check.
func (p *Pool) checkOrder(msg types.Message) {
	if !msg.HasKey() || !msg.HasSequence() {
		return
	}
	seq := msg.SequenceValue()

	p.seqMu.Lock()
	defer p.seqMu.Unlock()

	prev, seen := p.lastSeqByKey[msg.Key]
	if seen && seq <= prev {
		p.metrics.RecordOrderViolation()
		util.Warn("[consumer] order violation key=%s prev=%d curr=%d", msg.Key, prev, seq)
	}
	if !seen || seq > prev {
		p.lastSeqByKey[msg.Key] = seq
	}
}
