package extract

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"
)

// Operation names what a model call was for.
type Operation string

const (
	OpVerify  Operation = "verify"
	OpPropose Operation = "propose"
	OpOther   Operation = "other"
)

type opKey struct{}

// WithOperation tags ctx so a stats-enabled client files the call under op.
func WithOperation(ctx context.Context, op Operation) context.Context {
	return context.WithValue(ctx, opKey{}, op)
}

func operationOf(ctx context.Context) Operation {
	if op, ok := ctx.Value(opKey{}).(Operation); ok {
		return op
	}
	return OpOther
}

type call struct {
	at        time.Time
	op        Operation
	ms        int64
	failed    bool
	throttled bool
}

// Latency aggregates a set of calls. Failed calls count toward the
// percentiles too.
type Latency struct {
	Count     int     `json:"count"`
	Errors    int     `json:"errors"`
	Throttled int     `json:"throttled"`
	MinMs     int64   `json:"min_ms"`
	MaxMs     int64   `json:"max_ms"`
	AvgMs     float64 `json:"avg_ms"`
	P50Ms     float64 `json:"p50_ms"`
	P95Ms     float64 `json:"p95_ms"`
	P99Ms     float64 `json:"p99_ms"`
}

// StatsSnapshot is the window total plus a breakdown per operation.
type StatsSnapshot struct {
	Latency
	Window      string                `json:"window"`
	ByOperation map[Operation]Latency `json:"by_operation,omitempty"`
}

// LLMStats keeps model calls from a rolling window.
type LLMStats struct {
	mu     sync.Mutex
	calls  []call
	window time.Duration
	now    func() time.Time
}

func NewLLMStats(window time.Duration) *LLMStats {
	if window <= 0 {
		window = time.Hour
	}
	return &LLMStats{window: window, now: time.Now}
}

// Record adds one call. Rate limits and overloads (a *RetryableError) are
// counted as throttled as well as failed.
func (s *LLMStats) Record(op Operation, durationMs int64, err error) {
	c := call{op: op, ms: max(durationMs, 0), failed: err != nil}
	var re *RetryableError
	c.throttled = errors.As(err, &re)

	s.mu.Lock()
	defer s.mu.Unlock()
	c.at = s.now()
	s.expireLocked(c.at)
	s.calls = append(s.calls, c)
}

func (s *LLMStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	s.expireLocked(s.now())
	calls := slices.Clone(s.calls)
	s.mu.Unlock()

	snap := StatsSnapshot{Window: s.window.String()}
	if len(calls) == 0 {
		return snap
	}
	snap.Latency = summarize(calls)

	byOp := make(map[Operation][]call)
	for _, c := range calls {
		byOp[c.op] = append(byOp[c.op], c)
	}
	snap.ByOperation = make(map[Operation]Latency, len(byOp))
	for op, cs := range byOp {
		snap.ByOperation[op] = summarize(cs)
	}
	return snap
}

// expireLocked drops calls older than the window. Calls are appended in time
// order so the expired ones form a prefix.
func (s *LLMStats) expireLocked(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.calls) && s.calls[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.calls = slices.Delete(s.calls, 0, i)
	}
}

func summarize(calls []call) Latency {
	ms := make([]int64, len(calls))
	var l Latency
	var sum int64
	for i, c := range calls {
		ms[i] = c.ms
		sum += c.ms
		if c.failed {
			l.Errors++
		}
		if c.throttled {
			l.Throttled++
		}
	}
	slices.Sort(ms)

	l.Count = len(ms)
	l.MinMs = ms[0]
	l.MaxMs = ms[len(ms)-1]
	l.AvgMs = float64(sum) / float64(len(ms))
	l.P50Ms = percentile(ms, 50)
	l.P95Ms = percentile(ms, 95)
	l.P99Ms = percentile(ms, 99)
	return l
}

// percentile interpolates linearly between the closest ranks of sorted.
func percentile(sorted []int64, pct float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := float64(len(sorted)-1) * min(max(pct, 0), 100) / 100
	lo := int(pos)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := pos - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
