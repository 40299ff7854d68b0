// Package ingestion implements the basics/historical/financial sync jobs
// that own the StockBasics, MarketQuote, HistoricalBar, FinancialStatement
// and SyncStatus collections (spec.md §3's ownership rule), grounded on
// the teacher's reliability package's job-runner shape (a struct holding
// its dependencies and a zerolog.Logger tagged with the job name) and on
// original_source's basics_sync_service.py / historical_data_service.py
// for the sync algorithm itself.
package ingestion

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/store"
)

// runLock is the in-process advisory guard spec.md §5 describes ("an
// async mutex"); the SyncStatus document underneath is the authoritative
// cross-process signal when workers are distributed.
type runLock struct {
	mu      sync.Mutex
	running map[string]bool
}

func newRunLock() *runLock { return &runLock{running: make(map[string]bool)} }

// tryAcquire returns true and marks job running iff it wasn't already,
// unless force is set (force always acquires).
func (r *runLock) tryAcquire(job string, force bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[job] && !force {
		return false
	}
	r.running[job] = true
	return true
}

func (r *runLock) release(job string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, job)
}

// recordRunning upserts a SyncStatus=running row, keyed by job alone per
// the grounding ledger's resolution of the data_type-as-partition-key
// open question (data_type is a denormalized tag, not part of the upsert
// key).
func recordRunning(ctx context.Context, st *store.Store, job, dataType, source string) error {
	now := time.Now().UTC()
	_, err := st.SyncStatuses().UpdateOne(ctx,
		bson.M{"job": job},
		bson.M{"$set": bson.M{
			"job":         job,
			"data_type":   dataType,
			"status":      domain.SyncRunning,
			"source":      source,
			"started_at":  now,
			"finished_at": nil,
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

func recordTerminal(ctx context.Context, st *store.Store, job string, status domain.SyncStatusState, recordsCount, errorCount int, errorMessage string) error {
	now := time.Now().UTC()
	_, err := st.SyncStatuses().UpdateOne(ctx,
		bson.M{"job": job},
		bson.M{"$set": bson.M{
			"status":        status,
			"records_count": recordsCount,
			"error_count":   errorCount,
			"error_message": errorMessage,
			"finished_at":   now,
		}},
		options.Update(),
	)
	return err
}

// IsStale reports whether a running SyncStatus older than threshold
// should be treated as crashed and eligible for takeover (spec.md §3).
func IsStale(ctx context.Context, st *store.Store, job string, threshold time.Duration) (bool, error) {
	var doc domain.SyncStatus
	err := st.SyncStatuses().FindOne(ctx, bson.M{"job": job}).Decode(&doc)
	if err != nil {
		return false, nil // no prior run recorded, not stale
	}
	return doc.IsStale(time.Now().UTC(), threshold), nil
}
