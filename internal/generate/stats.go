package generate

import (
	"slices"
	"sync"
	"time"
)

// StatsSnapshot aggregates the recent calls of one operation.
type StatsSnapshot struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

type call struct {
	at     time.Time
	ms     int64
	failed bool
}

// Stats keeps model call latencies per operation within a rolling window.
type Stats struct {
	mu     sync.Mutex
	maxAge time.Duration
	calls  map[Op][]call
	now    func() time.Time
}

func NewStats(maxAge time.Duration) *Stats {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Stats{
		maxAge: maxAge,
		calls:  make(map[Op][]call),
		now:    time.Now,
	}
}

// Record adds one call. Failed calls count toward Errors only.
func (s *Stats) Record(op Op, d time.Duration, err error) {
	ms := max(d.Milliseconds(), 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls[op] = append(prune(s.calls[op], now.Add(-s.maxAge)), call{at: now, ms: ms, failed: err != nil})
}

// Snapshot returns the aggregate of every operation seen within the window.
func (s *Stats) Snapshot() map[Op]StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.maxAge)
	out := make(map[Op]StatsSnapshot, len(s.calls))
	for op, calls := range s.calls {
		calls = prune(calls, cutoff)
		s.calls[op] = calls
		if len(calls) == 0 {
			continue
		}
		out[op] = summarize(calls)
	}
	return out
}

func prune(calls []call, cutoff time.Time) []call {
	i := 0
	for i < len(calls) && calls[i].at.Before(cutoff) {
		i++
	}
	return calls[i:]
}

func summarize(calls []call) StatsSnapshot {
	var snap StatsSnapshot
	values := make([]int64, 0, len(calls))
	var sum int64
	for _, c := range calls {
		if c.failed {
			snap.Errors++
			continue
		}
		values = append(values, c.ms)
		sum += c.ms
	}
	snap.Count = len(values)
	if len(values) == 0 {
		return snap
	}

	slices.Sort(values)
	snap.MinMs = values[0]
	snap.MaxMs = values[len(values)-1]
	snap.AvgMs = float64(sum) / float64(len(values))
	snap.P50Ms = percentile(values, 50)
	snap.P95Ms = percentile(values, 95)
	snap.P99Ms = percentile(values, 99)
	return snap
}

// percentile interpolates linearly between the closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}

	rank := float64(len(sorted)-1) * pct / 100
	lo := int(rank)
	if lo+1 >= len(sorted) {
		return float64(sorted[lo])
	}
	frac := rank - float64(lo)
	return float64(sorted[lo]) + frac*float64(sorted[lo+1]-sorted[lo])
}
