package metrics

// DTO is the JSON-serializable snapshot returned by both the HTTP surface
// and unit tests. Every field is always populated; an empty engine yields a
// DTO of zeroes rather than a partial one.
type DTO struct {
	TotalMessages       int64   `json:"totalMessages"`
	SuccessCount        int64   `json:"successCount"`
	FailCount           int64   `json:"failCount"`
	AvgLatencyMs        float64 `json:"avgLatencyMs"`
	P95LatencyMs        uint64  `json:"p95LatencyMs"`
	P99LatencyMs        uint64  `json:"p99LatencyMs"`
	DuplicateCount      int64   `json:"duplicateCount"`
	OrderViolationCount int64   `json:"orderViolationCount"`
	UncommittedCount    int64   `json:"uncommittedCount"`
	DlqCount            int64   `json:"dlqCount"`
	RecoveryTimeMs      int64   `json:"recoveryTimeMs"`
	RecoveredMessages   int64   `json:"recoveredMessages"`
}
