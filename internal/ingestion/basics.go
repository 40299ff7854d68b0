package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/datasource"
	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/reliability"
	"github.com/marketpulse/ingestor/internal/store"
)

const jobStockBasics = "stock_basics"

// BasicsSync runs the single-source (Tushare) stock basics job, grounded
// on original_source/app/services/basics_sync_service.py: fetch
// stock_basic, enrich with one daily_basic snapshot (market cap, PE/PB/PS,
// turnover), upsert unique on (code, source). It does no ROE enrichment:
// fina_indicator is not called and no roe field is written.
type BasicsSync struct {
	store   *store.Store
	adapter clients.Adapter // must be the Tushare adapter; basics sync is single-source
	log     zerolog.Logger
	lock    *runLock
}

func NewBasicsSync(st *store.Store, tushare clients.Adapter, log zerolog.Logger) *BasicsSync {
	return &BasicsSync{store: st, adapter: tushare, log: log.With().Str("job", jobStockBasics).Logger(), lock: newRunLock()}
}

// Run executes the full sync. If already running in this process and
// force is false, it returns immediately without error.
func (s *BasicsSync) Run(ctx context.Context, force bool) error {
	if !s.lock.tryAcquire(jobStockBasics, force) {
		s.log.Info().Msg("stock basics sync already running, skip")
		return nil
	}
	defer s.lock.release(jobStockBasics)

	if err := recordRunning(ctx, s.store, jobStockBasics, "stock_basic_info", s.adapter.Name()); err != nil {
		s.log.Warn().Err(err).Msg("failed to record running status")
	}

	rows, err := s.adapter.StockList(ctx)
	if err != nil {
		_ = recordTerminal(ctx, s.store, jobStockBasics, domain.SyncFailed, 0, 1, err.Error())
		return err
	}

	latestDate, err := s.adapter.FindLatestTradeDate(ctx)
	if err != nil {
		latestDate = time.Now().Format("20060102")
	}

	basicRows, _ := s.adapter.DailyBasic(ctx, latestDate)
	basicByCode := make(map[string]clients.DailyBasicRow, len(basicRows))
	for _, b := range basicRows {
		basicByCode[b.Code] = b
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(rows))
	errorCount := 0
	for _, row := range rows {
		code := domain.NormalizeCode(row.Symbol)
		if len(code) != 6 {
			errorCount++
			continue
		}

		doc := bson.M{
			"code":        code,
			"source":      s.adapter.Name(),
			"name":        row.Name,
			"industry":    row.Industry,
			"market":      row.Market,
			"list_date":   row.ListDate,
			"full_symbol": domain.FullSymbol(code),
			"updated_at":  now,
		}
		if b, ok := basicByCode[code]; ok {
			// total_mv/circ_mv arrive from Tushare in 万元; the system's
			// canonical market-cap unit is 亿元 (spec.md §4.4: divide by 10000).
			setIfValid(doc, "total_mv", divideBy(b.TotalMV, 10000))
			setIfValid(doc, "circ_mv", divideBy(b.CircMV, 10000))
			setIfValid(doc, "pe", b.PE)
			setIfValid(doc, "pe_ttm", b.PETTM)
			setIfValid(doc, "pb", b.PB)
			setIfValid(doc, "ps", b.PS)
			setIfValid(doc, "turnover_rate", b.TurnoverRate)
		}

		filter := bson.M{"code": code, "source": s.adapter.Name()}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(bson.M{"$set": doc}).SetUpsert(true))
	}

	written, failedChunks := store.BulkUpsert(ctx, s.store.StockBasics(), models, toStoreBackoff(reliability.BasicsBackoff))
	errorCount += failedChunks

	status := domain.SyncSuccess
	if errorCount > 0 {
		status = domain.SyncSuccessWithErrors
	}
	return recordTerminal(ctx, s.store, jobStockBasics, status, written, errorCount, "")
}

func setIfValid(doc bson.M, key string, v *float64) {
	if v == nil {
		return
	}
	doc[key] = *v
}

func divideBy(v *float64, divisor float64) *float64 {
	if v == nil {
		return nil
	}
	r := *v / divisor
	return &r
}

func toStoreBackoff(b reliability.Policy) store.Backoff {
	return store.Backoff{Base: b.Base, Attempts: b.Attempts}
}

// MultiSourceBasicsSync is the preferred-sources-aware variant of
// BasicsSync: it consults the datasource Manager instead of a single
// adapter, and never writes source="multi_source" — the literal winning
// provider name is authoritative (spec.md §4.4).
type MultiSourceBasicsSync struct {
	store   *store.Store
	manager *datasource.Manager
	log     zerolog.Logger
	lock    *runLock
}

func NewMultiSourceBasicsSync(st *store.Store, mgr *datasource.Manager, log zerolog.Logger) *MultiSourceBasicsSync {
	return &MultiSourceBasicsSync{store: st, manager: mgr, log: log.With().Str("job", jobStockBasics+"_multi").Logger(), lock: newRunLock()}
}

func (s *MultiSourceBasicsSync) Run(ctx context.Context, force bool, preferredSources []string) error {
	job := jobStockBasics + "_multi"
	if !s.lock.tryAcquire(job, force) {
		s.log.Info().Msg("multi-source basics sync already running, skip")
		return nil
	}
	defer s.lock.release(job)

	if err := recordRunning(ctx, s.store, job, "stock_basic_info", ""); err != nil {
		s.log.Warn().Err(err).Msg("failed to record running status")
	}

	rows, source, err := s.manager.StockListWithFallback(ctx, preferredSources)
	if err != nil {
		_ = recordTerminal(ctx, s.store, job, domain.SyncFailed, 0, 1, err.Error())
		return err
	}

	latestDate := s.manager.FindLatestTradeDateWithFallback(ctx, preferredSources, time.Now().AddDate(0, 0, -1).Format("20060102"))
	basicRows, basicSource, _ := s.manager.DailyBasicWithFallback(ctx, latestDate, preferredSources)
	basicByCode := make(map[string]clients.DailyBasicRow, len(basicRows))
	for _, b := range basicRows {
		basicByCode[b.Code] = b
	}

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(rows))
	errorCount := 0
	for _, row := range rows {
		code := domain.NormalizeCode(row.Symbol)
		if len(code) != 6 {
			errorCount++
			continue
		}
		rowSource := source
		doc := bson.M{
			"code":        code,
			"source":      rowSource,
			"name":        row.Name,
			"industry":    row.Industry,
			"market":      row.Market,
			"list_date":   row.ListDate,
			"full_symbol": domain.FullSymbol(code),
			"updated_at":  now,
		}
		if b, ok := basicByCode[code]; ok && basicSource != "" {
			// Tushare reports total_mv/circ_mv in 万元; convert to 亿元 as
			// BasicsSync does. Other providers' values are stored as returned.
			mvDivisor := 1.0
			if basicSource == "tushare" {
				mvDivisor = 10000
			}
			setIfValid(doc, "total_mv", divideBy(b.TotalMV, mvDivisor))
			setIfValid(doc, "circ_mv", divideBy(b.CircMV, mvDivisor))
			setIfValid(doc, "pe", b.PE)
			setIfValid(doc, "pe_ttm", b.PETTM)
			setIfValid(doc, "pb", b.PB)
			setIfValid(doc, "ps", b.PS)
			setIfValid(doc, "turnover_rate", b.TurnoverRate)
		}

		filter := bson.M{"code": code, "source": rowSource}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(bson.M{"$set": doc}).SetUpsert(true))
	}

	written, failedChunks := store.BulkUpsert(ctx, s.store.StockBasics(), models, toStoreBackoff(reliability.BasicsBackoff))
	errorCount += failedChunks

	status := domain.SyncSuccess
	if errorCount > 0 {
		status = domain.SyncSuccessWithErrors
	}
	return recordTerminal(ctx, s.store, job, status, written, errorCount, "")
}
