package scheduler

import (
	"context"
	"time"

	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/ingestion"
	"github.com/marketpulse/ingestor/internal/quotes"
	"github.com/marketpulse/ingestor/internal/taskqueue"
)

// jobTimeout bounds every scheduled run so a hung provider call can never
// wedge the cron goroutine indefinitely.
const jobTimeout = 10 * time.Minute

// QuotePipelineJob wraps quotes.Pipeline.RunOnce for scheduling, adapting
// the service method into the scheduler.Job interface the way the
// teacher's adapters.go wraps module services into its Job-compatible
// interfaces.
type QuotePipelineJob struct {
	pipeline *quotes.Pipeline
}

func NewQuotePipelineJob(p *quotes.Pipeline) *QuotePipelineJob { return &QuotePipelineJob{pipeline: p} }

func (j *QuotePipelineJob) Name() string { return "quote_pipeline" }

func (j *QuotePipelineJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	return j.pipeline.RunOnce(ctx)
}

// BasicsSyncJob wraps ingestion.BasicsSync for scheduling.
type BasicsSyncJob struct {
	sync *ingestion.BasicsSync
}

func NewBasicsSyncJob(s *ingestion.BasicsSync) *BasicsSyncJob { return &BasicsSyncJob{sync: s} }

func (j *BasicsSyncJob) Name() string { return "basics_sync" }

func (j *BasicsSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	return j.sync.Run(ctx, false)
}

// MultiSourceBasicsSyncJob wraps ingestion.MultiSourceBasicsSync for
// scheduling, always running with force=false and no source preference so
// the scheduled cadence behaves the same as an un-parameterized manual
// trigger.
type MultiSourceBasicsSyncJob struct {
	sync *ingestion.MultiSourceBasicsSync
}

func NewMultiSourceBasicsSyncJob(s *ingestion.MultiSourceBasicsSync) *MultiSourceBasicsSyncJob {
	return &MultiSourceBasicsSyncJob{sync: s}
}

func (j *MultiSourceBasicsSyncJob) Name() string { return "multi_source_basics_sync" }

func (j *MultiSourceBasicsSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	return j.sync.Run(ctx, false, nil)
}

// FinancialSyncJob wraps ingestion.FinancialSync for scheduling.
type FinancialSyncJob struct {
	sync *ingestion.FinancialSync
}

func NewFinancialSyncJob(s *ingestion.FinancialSync) *FinancialSyncJob {
	return &FinancialSyncJob{sync: s}
}

func (j *FinancialSyncJob) Name() string { return "financial_sync" }

func (j *FinancialSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	return j.sync.Run(ctx)
}

// HistoricalSyncJob wraps ingestion.HistoricalSync for a single adapter,
// symbol and period — a caller registers one instance per (adapter,
// symbol, period) combination it wants refreshed on a cadence, since
// HistoricalSync.Run is parameterized per call rather than owning a fixed
// universe the way BasicsSync does. cmd/server's registerJobs registers
// none.
type HistoricalSyncJob struct {
	name    string
	sync    *ingestion.HistoricalSync
	adapter clients.Adapter
	symbol  string
	period  string
}

func NewHistoricalSyncJob(name string, s *ingestion.HistoricalSync, adapter clients.Adapter, symbol, period string) *HistoricalSyncJob {
	return &HistoricalSyncJob{name: name, sync: s, adapter: adapter, symbol: symbol, period: period}
}

func (j *HistoricalSyncJob) Name() string { return j.name }

func (j *HistoricalSyncJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	return j.sync.Run(ctx, j.adapter, j.symbol, j.period, ingestion.ModeIncremental, 0, false)
}

// ZombieSweepJob wraps taskqueue.Queue.SweepExpired for scheduling as a
// cron-driven alternative/companion to taskqueue.Sweeper's own ticker
// loop — useful when an operator wants the sweep to also run on a fixed
// clock-aligned cadence (e.g. every market open) rather than purely on
// the Sweeper's interval.
type ZombieSweepJob struct {
	queue *taskqueue.Queue
}

func NewZombieSweepJob(q *taskqueue.Queue) *ZombieSweepJob { return &ZombieSweepJob{queue: q} }

func (j *ZombieSweepJob) Name() string { return "zombie_sweep" }

func (j *ZombieSweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	_, err := j.queue.SweepExpired(ctx)
	return err
}
