// Package di is the composition root: it wires the document store, the
// provider adapters, the Redis-backed task queue, the orchestrator, the
// notification service, the HTTP server and the cron scheduler into one
// Container. Grounded on the teacher's internal/di/wire.go and types.go:
// a plain struct grouping dependencies by layer (store/clients, services,
// jobs), built in stages by separate New*/Initialize* functions, with
// manual cleanup of already-opened resources if a later stage fails.
package di

import (
	"github.com/redis/go-redis/v9"

	"github.com/marketpulse/ingestor/internal/cache"
	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/clients/akshare"
	"github.com/marketpulse/ingestor/internal/clients/tushare"
	"github.com/marketpulse/ingestor/internal/datasource"
	"github.com/marketpulse/ingestor/internal/ingestion"
	"github.com/marketpulse/ingestor/internal/notify"
	"github.com/marketpulse/ingestor/internal/orchestrator"
	"github.com/marketpulse/ingestor/internal/quotes"
	"github.com/marketpulse/ingestor/internal/ratelimit"
	"github.com/marketpulse/ingestor/internal/scheduler"
	"github.com/marketpulse/ingestor/internal/server"
	"github.com/marketpulse/ingestor/internal/store"
	"github.com/marketpulse/ingestor/internal/taskqueue"
	"github.com/marketpulse/ingestor/internal/wsfanout"
)

// Container holds every long-lived dependency the server and scheduler
// need. Fields are grouped the way the teacher's Container groups
// databases/clients/repositories/services, scaled down to this module's
// far smaller dependency graph.
type Container struct {
	Store       *store.Store
	Redis       *redis.Client
	FileCache   *cache.FileCache

	Adapters []clients.Adapter
	Manager  *datasource.Manager

	BasicsSync            *ingestion.BasicsSync
	MultiSourceBasicsSync *ingestion.MultiSourceBasicsSync
	FinancialSync         *ingestion.FinancialSync
	HistoricalSync        *ingestion.HistoricalSync
	QuotePipeline         *quotes.Pipeline

	Queue        *taskqueue.Queue
	Sweeper      *taskqueue.Sweeper
	Hub          *wsfanout.Hub
	Notify       *notify.Service
	Orchestrator *orchestrator.Orchestrator
	RateLimiter  *ratelimit.Limiter

	Scheduler *scheduler.Scheduler
	Server    *server.Server

	// Unexported: concrete adapter handles a few services need by
	// concrete type rather than through the clients.Adapter interface
	// (FinancialSync needs tushare.Client's extra fina_indicator calls,
	// the quote pipeline needs all three single-market adapters by name
	// for its rotation logic).
	tushareAdapterRef *tushare.Adapter
	tushareClientRef  *tushare.Client
	eastmoneyRef      *akshare.EastmoneyAdapter
	sinaRef           *akshare.SinaAdapter
}
