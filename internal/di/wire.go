package di

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/marketpulse/ingestor/internal/cache"
	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/clients/akshare"
	"github.com/marketpulse/ingestor/internal/clients/baostock"
	"github.com/marketpulse/ingestor/internal/clients/finnhub"
	"github.com/marketpulse/ingestor/internal/clients/tushare"
	"github.com/marketpulse/ingestor/internal/clients/yfinance"
	"github.com/marketpulse/ingestor/internal/config"
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

// Wire builds a fully-constructed Container in the teacher's staged
// order: store connection first, then provider clients, then services
// that depend on both, then the HTTP/scheduler front ends. A failure at
// any stage tears down everything opened so far rather than leaking a
// half-open Mongo/Redis connection.
func Wire(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Container, error) {
	st, err := store.New(ctx, store.Config{
		URI: cfg.MongoURI, Database: cfg.MongoDB,
		MinPoolSize: uint64(cfg.MongoMinConnections), MaxPoolSize: uint64(cfg.MongoMaxConnections),
		ConnectTimeout: time.Duration(cfg.MongoConnectTimeoutMS) * time.Millisecond,
		SocketTimeout:  time.Duration(cfg.MongoSocketTimeoutMS) * time.Millisecond,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("di: connect store: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		st.Close(ctx)
		return nil, fmt.Errorf("di: parse redis url: %w", err)
	}
	redisOpts.PoolSize = cfg.RedisMaxConnections
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		st.Close(ctx)
		return nil, fmt.Errorf("di: connect redis: %w", err)
	}

	fileCache, err := cache.NewFileCache(cfg.ResultsDir + "/.cache")
	if err != nil {
		st.Close(ctx)
		redisClient.Close()
		return nil, fmt.Errorf("di: init file cache: %w", err)
	}

	c := &Container{Store: st, Redis: redisClient, FileCache: fileCache}

	c.wireAdapters(cfg, log)
	c.Manager = datasource.NewManager(c.Adapters, st, log)
	c.Manager.LoadPriorities(ctx, "a_shares")

	c.wireIngestion(cfg, log)
	c.wireTaskQueue(cfg, log)
	c.wireOrchestration(cfg, log)
	c.wireScheduler(log)
	c.wireServer(cfg, log)

	log.Info().Msg("dependency injection wiring completed")
	return c, nil
}

// wireAdapters builds every provider adapter from the examples' pack
// that this module's config can configure, following the teacher's
// one-client-per-provider construction (NewAdapter(token), NewAdapter(),
// NewAdapter(market, log)).
func (c *Container) wireAdapters(cfg *config.Config, log zerolog.Logger) {
	tushareAdapter := tushare.NewAdapter(cfg.TushareToken, cfg.TushareToken != "")
	tushareClient := tushare.NewClient(cfg.TushareToken)
	eastmoney := akshare.NewEastmoneyAdapter()
	sina := akshare.NewSinaAdapter()
	bao := baostock.NewAdapter("")
	hk := yfinance.NewAdapter(yfinance.MarketHK, log)
	us := yfinance.NewAdapter(yfinance.MarketUS, log)

	c.Adapters = []clients.Adapter{tushareAdapter, eastmoney, sina, bao, hk, us}
	if apiKey := finnhubAPIKey(); apiKey != "" {
		c.Adapters = append(c.Adapters, finnhub.NewAdapter(apiKey))
	}

	c.tushareAdapterRef = tushareAdapter
	c.tushareClientRef = tushareClient
	c.eastmoneyRef = eastmoney
	c.sinaRef = sina
}

func (c *Container) wireIngestion(cfg *config.Config, log zerolog.Logger) {
	c.BasicsSync = ingestion.NewBasicsSync(c.Store, c.tushareAdapterRef, log)
	c.MultiSourceBasicsSync = ingestion.NewMultiSourceBasicsSync(c.Store, c.Manager, log)
	c.FinancialSync = ingestion.NewFinancialSync(c.Store, c.tushareClientRef, log)
	c.HistoricalSync = ingestion.NewHistoricalSync(c.Store, log)

	c.QuotePipeline = quotes.New(c.Store, c.Manager, c.tushareAdapterRef, c.eastmoneyRef, c.sinaRef, quotes.Config{
		Interval:             time.Duration(cfg.QuotesIngestIntervalSeconds) * time.Second,
		RotationEnabled:      cfg.QuotesRotationEnabled,
		BackfillOnOffHours:   cfg.QuotesBackfillOnOffhours,
		AutoDetectPermission: cfg.QuotesAutoDetectTushare,
		Timezone:             cfg.Timezone,
	}, log)
}

func (c *Container) wireTaskQueue(cfg *config.Config, log zerolog.Logger) {
	c.Queue = taskqueue.New(c.Redis, taskqueue.Limits{
		UserConcurrent:   cfg.UserConcurrentLimit,
		GlobalConcurrent: cfg.GlobalConcurrentLimit,
		VisibilityTTL:    cfg.VisibilityTimeout,
	})
	c.Sweeper = taskqueue.NewSweeper(c.Queue, cfg.ZombieSweepInterval, log)
}

func (c *Container) wireOrchestration(cfg *config.Config, log zerolog.Logger) {
	c.Hub = wsfanout.New()
	c.Notify = notify.New(c.Store, c.Hub, log)
	c.Orchestrator = orchestrator.NewDefault(c.Store, c.Manager, c.Queue, c.Hub, c.Notify, orchestrator.Config{
		ResultsDir: cfg.ResultsDir,
	}, log)
	c.RateLimiter = ratelimit.New(c.Redis, ratelimit.HeaderUserID, cfg.DailyAnalysisQuota, log)
}

func (c *Container) wireScheduler(log zerolog.Logger) {
	c.Scheduler = scheduler.New(log)
}

func (c *Container) wireServer(cfg *config.Config, log zerolog.Logger) {
	c.Server = server.New(server.Config{
		Log: log, Port: cfg.Port, DevMode: cfg.DevMode,
		Store: c.Store, Orchestrator: c.Orchestrator, Notify: c.Notify,
		Queue: c.Queue, Hub: c.Hub, DatasourceManager: c.Manager,
		MultiSourceBasics: c.MultiSourceBasicsSync, RateLimiter: c.RateLimiter,
	})
}

// Close tears down every resource Wire opened, in reverse order.
func (c *Container) Close(ctx context.Context) {
	if c.Redis != nil {
		c.Redis.Close()
	}
	if c.Store != nil {
		c.Store.Close(ctx)
	}
}

func finnhubAPIKey() string {
	return os.Getenv("FINNHUB_API_KEY")
}
