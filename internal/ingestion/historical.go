package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/reliability"
	"github.com/marketpulse/ingestor/internal/store"
)

const jobHistorical = "historical_data"

// HistoricalMode selects how far back HistoricalSync pulls bars for each
// symbol, grounded on historical_data_service.py's fixed/all-history/
// incremental modes.
type HistoricalMode int

const (
	ModeFixedDays HistoricalMode = iota
	ModeAllHistory
	ModeIncremental
)

const allHistoryDays = 3650

// HistoricalSync upserts OHLCV bars into HistoricalBar and derives
// pre_close for HK/US data that omits it (spec.md §3, §4.4). Tushare unit
// conversion is not done here: the Tushare adapter's Kline applies it.
type HistoricalSync struct {
	store *store.Store
	log   zerolog.Logger
	lock  *runLock
}

func NewHistoricalSync(st *store.Store, log zerolog.Logger) *HistoricalSync {
	return &HistoricalSync{store: st, log: log.With().Str("job", jobHistorical).Logger(), lock: newRunLock()}
}

// Run pulls bars for symbol from adapter and upserts them, unique on
// (symbol, trade_date, data_source, period).
func (s *HistoricalSync) Run(ctx context.Context, adapter clients.Adapter, symbol, period string, mode HistoricalMode, fixedDays int, force bool) error {
	job := jobHistorical + ":" + symbol + ":" + period
	if !s.lock.tryAcquire(job, force) {
		return nil
	}
	defer s.lock.release(job)

	if err := recordRunning(ctx, s.store, job, "stock_daily_quotes", adapter.Name()); err != nil {
		s.log.Warn().Err(err).Msg("failed to record running status")
	}

	limit := fixedDays
	switch mode {
	case ModeAllHistory:
		limit = allHistoryDays
	case ModeIncremental:
		// start_date = last-known trade date + 1 day per symbol (spec.md §4.4);
		// the Adapter interface has no start_date parameter, so incremental
		// mode pulls the full history and relies on the upsert key (symbol,
		// trade_date, data_source, period) to make re-ingestion a no-op for
		// bars already stored.
		limit = allHistoryDays
		if _, err := s.lastKnownTradeDate(ctx, symbol, adapter.Name(), period); err != nil {
			s.log.Debug().Str("symbol", symbol).Msg("no prior bar found, incremental sync behaves like all-history")
		}
	}

	bars, err := adapter.Kline(ctx, symbol, period, limit, "")
	if err != nil {
		_ = recordTerminal(ctx, s.store, job, domain.SyncFailed, 0, 1, err.Error())
		return err
	}

	source := adapter.Name()
	isHKUS := strings.HasPrefix(source, "yfinance_") || source == "finnhub"

	models := make([]mongo.WriteModel, 0, len(bars))
	prevClose := 0.0
	for i, bar := range bars {
		doc := bson.M{
			"symbol":      domain.NormalizeCode(symbol),
			"trade_date":  bar.TradeDate,
			"data_source": adapter.Name(),
			"period":      period,
			"open":        bar.Open,
			"high":        bar.High,
			"low":         bar.Low,
			"close":       bar.Close,
			"volume":      bar.Volume,
			"amount":      bar.Amount,
			"created_at":  time.Now().UTC(),
		}
		// Kline already applies the Tushare hands/thousands conversion at
		// the adapter boundary; this pass only fills a missing pre_close
		// for HK/US bars by shifting the prior row's close down one.
		preClose := bar.PreClose
		if preClose == 0 && isHKUS && i > 0 {
			preClose = prevClose
		}
		doc["pre_close"] = preClose
		prevClose = bar.Close

		filter := bson.M{"symbol": doc["symbol"], "trade_date": bar.TradeDate, "data_source": adapter.Name(), "period": period}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(bson.M{"$set": doc}).SetUpsert(true))
	}

	written, failedChunks := store.BulkUpsert(ctx, s.store.HistoricalBars(), models, toStoreBackoff(reliability.HistoricalBackoff))

	status := domain.SyncSuccess
	if failedChunks > 0 {
		status = domain.SyncSuccessWithErrors
	}
	return recordTerminal(ctx, s.store, job, status, written, failedChunks, "")
}

func (s *HistoricalSync) lastKnownTradeDate(ctx context.Context, symbol, source, period string) (string, error) {
	var doc struct {
		TradeDate string `bson:"trade_date"`
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "trade_date", Value: -1}})
	err := s.store.HistoricalBars().FindOne(ctx,
		bson.M{"symbol": domain.NormalizeCode(symbol), "data_source": source, "period": period}, opts).Decode(&doc)
	if err != nil {
		return "", fmt.Errorf("no prior bar: %w", err)
	}
	return doc.TradeDate, nil
}
