package quotes

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/clients/akshare"
	"github.com/marketpulse/ingestor/internal/clients/tushare"
	"github.com/marketpulse/ingestor/internal/datasource"
	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/store"
)

// Config controls the pipeline's clock and quota behaviour; a zero-value
// Timezone or Interval falls back to the default Config.ApplyOverrides
// documents.
type Config struct {
	Timezone              string
	Interval              time.Duration
	RotationEnabled       bool
	BackfillOnOffHours    bool
	AutoDetectPermission  bool
}

// ApplyOverrides fills a zero-value Timezone and Interval with the system
// defaults (Asia/Shanghai, 360s interval); the boolean fields are left as
// given. It mirrors the teacher's Config struct's tag-driven defaulting
// but applied at construction time since these values gate live network
// calls rather than being parsed once from the environment.
func (c Config) ApplyOverrides() Config {
	if c.Timezone == "" {
		c.Timezone = "Asia/Shanghai"
	}
	if c.Interval == 0 {
		c.Interval = 360 * time.Second
	}
	return c
}

// Pipeline is the quote rotation pipeline described in spec.md §4.5: a
// ticker-driven loop that rotates the provider used each tick, gates
// Tushare behind TushareQuota, and backfills MarketQuote when the market
// is closed and the collection is empty or stale.
type Pipeline struct {
	store    *store.Store
	manager  *datasource.Manager
	tushare  *tushare.Adapter
	eastmoney *akshare.EastmoneyAdapter
	sina     *akshare.SinaAdapter
	rotator  *Rotator
	quota    *TushareQuota
	cfg      Config
	loc      *time.Location
	log      zerolog.Logger
}

func New(st *store.Store, manager *datasource.Manager, ts *tushare.Adapter, em *akshare.EastmoneyAdapter, sina *akshare.SinaAdapter, cfg Config, log zerolog.Logger) *Pipeline {
	cfg = cfg.ApplyOverrides()
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Pipeline{
		store: st, manager: manager, tushare: ts, eastmoney: em, sina: sina,
		rotator: NewRotator(), quota: NewTushareQuota(), cfg: cfg, loc: loc,
		log: log.With().Str("component", "quotes_pipeline").Logger(),
	}
}

// RunOnce executes a single tick: trading-hours gate, provider rotation
// or offhours backfill, bulk-upsert, SyncStatus recording.
func (p *Pipeline) RunOnce(ctx context.Context) error {
	now := time.Now().In(p.loc)
	if !IsTradingTime(now) {
		if p.cfg.BackfillOnOffHours {
			return p.backfillIfNeeded(ctx)
		}
		p.log.Debug().Msg("non-trading time, skip quote round")
		return nil
	}

	if p.cfg.AutoDetectPermission && !p.quota.Checked() {
		probePremium(ctx, p.quota, func(ctx context.Context) bool {
			p.tushare.ProbePremium(ctx)
			return p.tushare.IsPremium()
		})
	}

	source := "tushare"
	if p.cfg.RotationEnabled {
		source = p.rotator.Next()
	}

	quotesMap, resolvedSource, err := p.fetchFromSource(ctx, source)
	if err != nil || len(quotesMap) == 0 {
		msg := "no quote data returned"
		if err != nil {
			msg = err.Error()
		}
		_ = recordTerminal(ctx, p.store, domain.SyncFailed, resolvedSource, 0, msg)
		return nil
	}

	tradeDate := p.resolveTradeDate(ctx)
	written := p.bulkUpsert(ctx, quotesMap, tradeDate)
	return recordTerminal(ctx, p.store, domain.SyncSuccess, resolvedSource, written, "")
}

// errTushareQuotaExhausted is returned by fetchFromSource instead of a
// bare empty result so the SyncStatus recorded by RunOnce carries a
// reason an operator (or §8's burst scenario) can distinguish from a
// provider call that simply returned no data.
var errTushareQuotaExhausted = errors.New("tushare free-tier hourly quota exhausted")

// fetchFromSource dispatches by rotation source name, matching
// quotes_ingestion_service.py's _fetch_quotes_from_source/_get_next_source
// split: Tushare is admission-gated, AKShare's two backends are not.
// When the selected source is gated or skipped, the tick takes no action
// — by design, since falling through to the next provider inside one tick
// would defeat the point of the rotation.
func (p *Pipeline) fetchFromSource(ctx context.Context, source string) (map[string]clients.RealtimeQuote, string, error) {
	switch source {
	case "tushare":
		if !p.quota.Admit() {
			p.log.Warn().Msg("tushare free-tier hourly quota exhausted, skipping to next tick")
			return nil, "tushare", errTushareQuotaExhausted
		}
		q, err := p.tushare.RealtimeQuotes(ctx, nil)
		if err != nil {
			return nil, "tushare", err
		}
		p.quota.RecordCall()
		return q, "tushare", nil
	case "akshare_eastmoney":
		q, err := p.eastmoney.RealtimeQuotes(ctx, nil)
		return q, "akshare_eastmoney", err
	case "akshare_sina":
		// Sina requires an explicit code list; use the last-known universe
		// from MarketQuote itself so the rotation can still run cold.
		codes, err := p.knownCodes(ctx)
		if err != nil || len(codes) == 0 {
			return nil, "akshare_sina", err
		}
		q, err := p.sina.RealtimeQuotes(ctx, codes)
		return q, "akshare_sina", err
	default:
		return nil, source, nil
	}
}

func (p *Pipeline) knownCodes(ctx context.Context) ([]string, error) {
	cur, err := p.store.MarketQuotes().Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"code": 1}).SetLimit(5000))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var codes []string
	for cur.Next(ctx) {
		var doc struct {
			Code string `bson:"code"`
		}
		if err := cur.Decode(&doc); err == nil && doc.Code != "" {
			codes = append(codes, doc.Code)
		}
	}
	return codes, nil
}

func (p *Pipeline) resolveTradeDate(ctx context.Context) string {
	if p.manager != nil {
		if td := p.manager.FindLatestTradeDateWithFallback(ctx, nil, ""); td != "" {
			return td
		}
	}
	return time.Now().In(p.loc).Format("20060102")
}

func (p *Pipeline) bulkUpsert(ctx context.Context, quotesMap map[string]clients.RealtimeQuote, tradeDate string) int {
	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(quotesMap))
	for code, q := range quotesMap {
		code6 := domain.NormalizeCode(code)
		if len(code6) != 6 {
			continue
		}
		doc := bson.M{
			"code": code6, "symbol": code6,
			"close": q.Close, "open": q.Open, "high": q.High, "low": q.Low,
			"pre_close": q.PreClose, "pct_chg": q.PctChg,
			"volume": q.Volume, "amount": q.Amount,
			"trade_date": tradeDate, "updated_at": now,
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"code": code6}).SetUpdate(bson.M{"$set": doc}).SetUpsert(true))
	}
	written, _ := store.BulkUpsert(ctx, p.store.MarketQuotes(), models, store.Backoff{Base: 2 * time.Second, Attempts: 3})
	return written
}
