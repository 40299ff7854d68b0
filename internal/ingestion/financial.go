package ingestion

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/reliability"
	"github.com/marketpulse/ingestor/internal/store"
	"github.com/marketpulse/ingestor/internal/clients/tushare"
)

const jobFinancial = "financial_statements"

// FinancialRow is one instrument's balance-sheet snapshot for a report
// period, the shape the valuation recomputer's total-equity lookup reads
// back (spec.md §4.6 step 8).
type FinancialRow struct {
	Code         string
	ReportPeriod string
	TotalEquity  *float64
	NetProfitTTM *float64
	Revenue      *float64
}

// FinancialSync upserts FinancialStatement documents, unique on
// (code, report_period), from the Tushare fina_indicator/balancesheet/
// income APIs called through tushare.Client.FinaIndicator.
type FinancialSync struct {
	store  *store.Store
	client *tushare.Client
	log    zerolog.Logger
	lock   *runLock
}

func NewFinancialSync(st *store.Store, client *tushare.Client, log zerolog.Logger) *FinancialSync {
	return &FinancialSync{store: st, client: client, log: log.With().Str("job", jobFinancial).Logger(), lock: newRunLock()}
}

// MultiPeriodSync runs FinancialSync for every report period in periods,
// continuing past a single period's failure (spec.md §7: provider errors
// are counted, not fatal to the run).
func (s *FinancialSync) MultiPeriodSync(ctx context.Context, codes []string, periods []string, force bool) error {
	job := jobFinancial + "_multi_period"
	if !s.lock.tryAcquire(job, force) {
		return nil
	}
	defer s.lock.release(job)

	if err := recordRunning(ctx, s.store, job, "financial_statements", "tushare"); err != nil {
		s.log.Warn().Err(err).Msg("failed to record running status")
	}

	totalWritten, totalErrors := 0, 0
	for _, period := range periods {
		written, errs := s.syncPeriod(ctx, codes, period)
		totalWritten += written
		totalErrors += errs
	}

	status := domain.SyncSuccess
	if totalErrors > 0 {
		status = domain.SyncSuccessWithErrors
	}
	return recordTerminal(ctx, s.store, job, status, totalWritten, totalErrors, "")
}

func (s *FinancialSync) syncPeriod(ctx context.Context, codes []string, period string) (written int, errorCount int) {
	models := make([]mongo.WriteModel, 0, len(codes))
	now := time.Now().UTC()
	for _, code := range codes {
		row, err := s.fetchIndicator(ctx, code, period)
		if err != nil {
			errorCount++
			continue
		}
		doc := bson.M{
			"code":          code,
			"report_period": period,
			"source":        "tushare",
			"updated_at":    now,
		}
		// total_hldr_eqy_exc_min_int arrives from Tushare's balancesheet API
		// in yuan; FinancialStatement.TotalEquity is canonically 亿元.
		setIfValid(doc, "total_equity", divideBy(row.TotalEquity, 1e8))
		setIfValid(doc, "net_profit_ttm", row.NetProfitTTM)
		setIfValid(doc, "revenue", row.Revenue)

		filter := bson.M{"code": code, "report_period": period}
		models = append(models, mongo.NewUpdateOneModel().SetFilter(filter).SetUpdate(bson.M{"$set": doc}).SetUpsert(true))
	}

	w, failedChunks := store.BulkUpsert(ctx, s.store.Financials(), models, toStoreBackoff(reliability.BasicsBackoff))
	return w, errorCount + failedChunks
}

func (s *FinancialSync) fetchIndicator(ctx context.Context, code, period string) (FinancialRow, error) {
	ind, err := s.client.FinaIndicator(ctx, code, period)
	if err != nil {
		return FinancialRow{}, err
	}
	return FinancialRow{
		Code:         code,
		ReportPeriod: period,
		TotalEquity:  ind.TotalEquity,
		NetProfitTTM: ind.NetProfitTTM,
		Revenue:      ind.Revenue,
	}, nil
}
