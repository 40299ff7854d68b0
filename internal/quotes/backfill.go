package quotes

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/store"
)

// backfillIfNeeded runs outside trading hours: empty MarketQuote backfills
// from the latest historical bars, a stale one backfills from a one-shot
// realtime snapshot. Both paths skip silently if nothing useful is found,
// matching backfill_last_close_snapshot_if_needed's "best effort" shape.
func (p *Pipeline) backfillIfNeeded(ctx context.Context) error {
	empty, err := p.collectionEmpty(ctx)
	if err != nil {
		return nil
	}
	if empty {
		return p.backfillFromHistorical(ctx)
	}

	latestTradeDate := p.resolveTradeDate(ctx)
	stale, err := p.collectionStale(ctx, latestTradeDate)
	if err != nil || !stale {
		return nil
	}
	return p.backfillFromSnapshot(ctx)
}

func (p *Pipeline) collectionEmpty(ctx context.Context) (bool, error) {
	count, err := p.store.MarketQuotes().EstimatedDocumentCount(ctx)
	if err != nil {
		return true, err
	}
	return count == 0, nil
}

func (p *Pipeline) collectionStale(ctx context.Context, latestTradeDate string) (bool, error) {
	if latestTradeDate == "" {
		return false, nil
	}
	var doc struct {
		TradeDate string `bson:"trade_date"`
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "trade_date", Value: -1}})
	err := p.store.MarketQuotes().FindOne(ctx, bson.M{}, opts).Decode(&doc)
	if err != nil {
		return true, nil
	}
	return doc.TradeDate < latestTradeDate, nil
}

// backfillFromHistorical imports the latest daily bars from HistoricalBar
// into MarketQuote when the quote collection is empty — a cold-start
// import, not a source for ongoing ticks.
func (p *Pipeline) backfillFromHistorical(ctx context.Context) error {
	latestTradeDate := p.resolveTradeDate(ctx)
	if latestTradeDate == "" {
		return nil
	}

	cur, err := p.store.HistoricalBars().Find(ctx, bson.M{"trade_date": latestTradeDate, "period": "daily"})
	if err != nil {
		_ = recordTerminal(ctx, p.store, domain.SyncFailed, "historical_data", 0, err.Error())
		return nil
	}
	defer cur.Close(ctx)

	now := time.Now().UTC()
	var models []mongo.WriteModel
	for cur.Next(ctx) {
		var bar domain.HistoricalBar
		if err := cur.Decode(&bar); err != nil {
			continue
		}
		code := domain.NormalizeCode(bar.Symbol)
		if len(code) != 6 {
			continue
		}
		doc := bson.M{
			"code": code, "symbol": code,
			"close": bar.Close, "open": bar.Open, "high": bar.High, "low": bar.Low,
			"pre_close": bar.PreClose, "volume": bar.Volume, "amount": bar.Amount,
			"trade_date": latestTradeDate, "updated_at": now,
		}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"code": code}).SetUpdate(bson.M{"$set": doc}).SetUpsert(true))
	}

	if len(models) == 0 {
		p.log.Warn().Str("trade_date", latestTradeDate).Msg("no historical bars found, cannot seed MarketQuote")
		return nil
	}

	written, _ := store.BulkUpsert(ctx, p.store.MarketQuotes(), models, store.Backoff{Base: 2 * time.Second, Attempts: 3})
	return recordTerminal(ctx, p.store, domain.SyncSuccess, "historical_data", written, "")
}

// backfillFromSnapshot takes one realtime (or final-close, during the
// post-close buffer) snapshot via the fallback manager and upserts it,
// matching the resolved Open Question that the closing buffer prefers
// the realtime snapshot over the just-closed K-line.
func (p *Pipeline) backfillFromSnapshot(ctx context.Context) error {
	if p.manager == nil {
		return nil
	}
	quotesMap, source, err := p.manager.RealtimeQuotesWithFallback(ctx, nil, nil)
	if err != nil || len(quotesMap) == 0 {
		return nil
	}
	tradeDate := p.resolveTradeDate(ctx)
	written := p.bulkUpsert(ctx, quotesMap, tradeDate)
	return recordTerminal(ctx, p.store, domain.SyncSuccess, source, written, "")
}
