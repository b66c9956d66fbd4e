package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ehgkals/realtime-fin-mq/util"
)

// latBufSize is the capacity of the cumulative latency ring. Older samples
// are overwritten once the ring wraps.
const latBufSize = 10000

type windowSample struct {
	eventTs   int64
	latencyMs uint64
}

// Engine is a concurrent metrics accumulator for one side of the dashboard
// comparison (mymq or kafka). Counters are lock-free; the sliding window is
// guarded by a single mutex. Counter updates other than the recovery
// time/message counters are additionally mirrored onto a Prometheus
// registry, but the DTO returned by Snapshot and WindowSnapshot always reads
// the atomic/ring state directly.
type Engine struct {
	label string

	total          atomic.Int64
	success        atomic.Int64
	fail           atomic.Int64
	duplicate      atomic.Int64
	orderViolation atomic.Int64
	uncommitted    atomic.Int64
	dlq            atomic.Int64
	recoveredMsgs  atomic.Int64
	recoveryTimeMs atomic.Int64

	totalLatencyMs atomic.Int64
	samples        atomic.Int64

	writeIdx atomic.Uint64
	ring     [latBufSize]atomic.Uint64

	windowMu sync.Mutex
	window   []windowSample

	mirror *promMirror
}

// NewEngine builds an engine labelled for Prometheus export ("mymq" or
// "kafka"). The label is purely observational; it never changes behavior.
func NewEngine(label string) *Engine {
	return &Engine{
		label:  label,
		mirror: newPromMirror(label),
	}
}

func (e *Engine) RecordSuccess(latencyMs uint64) {
	e.total.Add(1)
	e.success.Add(1)
	e.totalLatencyMs.Add(int64(latencyMs))
	e.samples.Add(1)

	idx := e.writeIdx.Add(1) - 1
	e.ring[idx%latBufSize].Store(latencyMs)

	now := time.Now().UnixMilli()
	e.windowMu.Lock()
	e.window = append(e.window, windowSample{eventTs: now, latencyMs: latencyMs})
	e.windowMu.Unlock()

	e.mirror.observeSuccess(latencyMs)
}

func (e *Engine) RecordFailure() {
	e.total.Add(1)
	e.fail.Add(1)
	e.mirror.incFailure()
}

func (e *Engine) RecordDuplicate() {
	e.duplicate.Add(1)
	e.mirror.incDuplicate()
}

func (e *Engine) RecordOrderViolation() {
	e.orderViolation.Add(1)
	e.mirror.incOrderViolation()
}

func (e *Engine) RecordDlq() {
	e.dlq.Add(1)
	e.mirror.incDlq()
}

func (e *Engine) IncUncommitted() {
	v := e.uncommitted.Add(1)
	e.mirror.setUncommitted(v)
}

func (e *Engine) DecUncommitted() {
	v := e.uncommitted.Add(-1)
	if v < 0 {
		util.Warn("[metrics:%s] uncommitted went negative (%d), upstream balance bug", e.label, v)
	}
	e.mirror.setUncommitted(v)
}

func (e *Engine) RecordRecoveryTime(ms int64) {
	e.recoveryTimeMs.Store(ms)
}

func (e *Engine) RecordRecoveryMessage() {
	e.recoveredMsgs.Add(1)
}

// Snapshot returns a cumulative DTO computed from the counters and the
// full ring.
func (e *Engine) Snapshot() DTO {
	samples := e.samples.Load()
	avg := 0.0
	if samples > 0 {
		avg = float64(e.totalLatencyMs.Load()) / float64(samples)
	}

	p95, p99 := e.ringPercentiles()

	return DTO{
		TotalMessages:       e.total.Load(),
		SuccessCount:        e.success.Load(),
		FailCount:           e.fail.Load(),
		AvgLatencyMs:        avg,
		P95LatencyMs:        p95,
		P99LatencyMs:        p99,
		DuplicateCount:      e.duplicate.Load(),
		OrderViolationCount: e.orderViolation.Load(),
		UncommittedCount:    e.uncommitted.Load(),
		DlqCount:            e.dlq.Load(),
		RecoveryTimeMs:      e.recoveryTimeMs.Load(),
		RecoveredMessages:   e.recoveredMsgs.Load(),
	}
}

// WindowSnapshot returns a DTO whose latency percentiles/average are
// computed only from samples observed within the last windowMs
// milliseconds; older samples are pruned as a side effect. Counters other
// than the latency fields mirror the cumulative snapshot, matching the
// teacher's convention that only latency is ever windowed.
func (e *Engine) WindowSnapshot(windowMs int64) DTO {
	if windowMs < 1 {
		windowMs = 1
	}
	cutoff := time.Now().UnixMilli() - windowMs

	e.windowMu.Lock()
	i := 0
	for i < len(e.window) && e.window[i].eventTs < cutoff {
		i++
	}
	if i > 0 {
		e.window = e.window[i:]
	}
	latencies := make([]uint64, len(e.window))
	for j, s := range e.window {
		latencies[j] = s.latencyMs
	}
	e.windowMu.Unlock()

	dto := e.Snapshot()
	dto.AvgLatencyMs = average(latencies)
	dto.P95LatencyMs = percentile(latencies, 0.95)
	dto.P99LatencyMs = percentile(latencies, 0.99)
	return dto
}

func (e *Engine) ringPercentiles() (p95, p99 uint64) {
	n := e.writeIdx.Load()
	if n > latBufSize {
		n = latBufSize
	}
	values := make([]uint64, n)
	for i := uint64(0); i < n; i++ {
		values[i] = e.ring[i].Load()
	}
	return percentile(values, 0.95), percentile(values, 0.99)
}

// ResetAll zeroes every counter, the ring and the sliding window.
func (e *Engine) ResetAll() {
	e.total.Store(0)
	e.success.Store(0)
	e.fail.Store(0)
	e.duplicate.Store(0)
	e.orderViolation.Store(0)
	e.uncommitted.Store(0)
	e.dlq.Store(0)
	e.recoveredMsgs.Store(0)
	e.recoveryTimeMs.Store(0)
	e.ResetLatencyWindow()
}

// ResetLatencyWindow zeroes only the latency ring, the sliding window and
// the running average inputs.
func (e *Engine) ResetLatencyWindow() {
	e.totalLatencyMs.Store(0)
	e.samples.Store(0)
	e.writeIdx.Store(0)
	for i := range e.ring {
		e.ring[i].Store(0)
	}
	e.windowMu.Lock()
	e.window = nil
	e.windowMu.Unlock()
}

// percentile implements the nearest-rank approximation used throughout
// this package: sort ascending, take index max(0, floor(n*q)-1).
func percentile(values []uint64, q float64) uint64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]uint64, n)
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(n)*q) - 1
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}

func average(values []uint64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
