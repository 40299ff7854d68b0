package quotes

import (
	"context"
	"sync"
	"time"
)

// rotationSources is the fixed rotation order: Tushare first (richest
// fields, quota-gated), then the two AKShare backends.
var rotationSources = []string{"tushare", "akshare_eastmoney", "akshare_sina"}

// Rotator advances a round-robin index over rotationSources. One call to
// Next per tick; no cross-provider fallback inside a tick — that's what
// the next tick, six minutes later by default, is for.
type Rotator struct {
	mu    sync.Mutex
	index int
}

func NewRotator() *Rotator { return &Rotator{} }

// Next returns the source name for this tick and advances the index.
func (r *Rotator) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	source := rotationSources[r.index]
	r.index = (r.index + 1) % len(rotationSources)
	return source
}

// TushareQuota gates calls to the premium Tushare rt_k endpoint. Premium
// accounts are ungated; free-tier accounts get a rolling 1-hour window
// of at most two calls, mirroring quotes_ingestion_service.py's
// _can_call_tushare/_record_tushare_call pair.
type TushareQuota struct {
	mu         sync.Mutex
	premium    bool
	checked    bool
	hourlyCap  int
	callTimes  []time.Time
	clock      func() time.Time
}

func NewTushareQuota() *TushareQuota {
	return &TushareQuota{hourlyCap: 2, clock: time.Now}
}

// SetPremium records the outcome of a one-time premium probe.
func (q *TushareQuota) SetPremium(premium bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.premium = premium
	q.checked = true
}

// Checked reports whether SetPremium has been called at least once.
func (q *TushareQuota) Checked() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.checked
}

// Admit reports whether a Tushare call is currently permitted. It does
// not record the call; callers record via RecordCall only after a
// successful fetch, matching the original's "admission gate, separate
// bookkeeping" split.
func (q *TushareQuota) Admit() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.premium {
		return true
	}
	cutoff := q.clock().Add(-time.Hour)
	q.callTimes = dropBefore(q.callTimes, cutoff)
	return len(q.callTimes) < q.hourlyCap
}

func (q *TushareQuota) RecordCall() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.callTimes = append(q.callTimes, q.clock())
}

func dropBefore(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && times[i].Before(cutoff) {
		i++
	}
	return times[i:]
}

// probePremium lets the pipeline lazily run the one-time Tushare
// permission probe on the first trading-time tick, whichever source that
// tick then selects.
func probePremium(ctx context.Context, quota *TushareQuota, probe func(ctx context.Context) bool) {
	if quota.Checked() {
		return
	}
	quota.SetPremium(probe(ctx))
}
