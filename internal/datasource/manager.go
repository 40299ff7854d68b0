// Package datasource orchestrates the provider Adapters in internal/clients
// behind a single priority-ordered facade, grounded on the teacher's
// capability-set dispatch style (internal/clients.Adapter callers never
// branch on concrete adapter type) and on original_source's
// DataSourceManager (app/services/data_sources/manager.py): per-market
// priority lists loaded from the document store, "with_fallback" methods
// that walk adapters in priority order and skip to the next one on any
// error or empty result, and an optional consistency-checked daily_basic
// path.
package datasource

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/store"
)

// Manager dispatches to the highest-priority available adapter for a
// market, falling back to the next on any adapter error, whatever its
// kind (transient errors included), and retrying in place nowhere.
type Manager struct {
	adapters   []clients.Adapter
	priority   map[string]int // adapter name -> priority, higher runs first
	store      *store.Store
	log        zerolog.Logger
	consistency *ConsistencyChecker
}

const defaultMarketCategory = "a_shares"

func NewManager(adapters []clients.Adapter, st *store.Store, log zerolog.Logger) *Manager {
	m := &Manager{
		adapters: adapters,
		priority: make(map[string]int, len(adapters)),
		store:    st,
		log:      log.With().Str("component", "datasource_manager").Logger(),
		consistency: NewConsistencyChecker(),
	}
	for _, a := range adapters {
		m.priority[a.Name()] = 0
	}
	return m
}

// LoadPriorities reads per-market priority overrides from
// DataSourceGroupings; adapters absent from the grouping keep priority 0.
// Errors are logged and swallowed — default priority order still works.
func (m *Manager) LoadPriorities(ctx context.Context, marketCategoryID string) {
	if marketCategoryID == "" {
		marketCategoryID = defaultMarketCategory
	}
	cur, err := m.store.DataSourceGroupings().Find(ctx, bson.M{"market_category_id": marketCategoryID})
	if err != nil {
		m.log.Warn().Err(err).Str("market_category", marketCategoryID).Msg("falling back to default adapter priority")
		return
	}
	defer cur.Close(ctx)

	var groupings []domain.DataSourceGrouping
	if err := cur.All(ctx, &groupings); err != nil {
		m.log.Warn().Err(err).Msg("failed to decode data source groupings, falling back to default priority")
		return
	}
	for _, g := range groupings {
		m.priority[g.DataSourceName] = g.Priority
	}
}

// Adapters returns every configured adapter, in no particular order —
// used by connectivity probes (SUPPLEMENTED FEATURES' /sync/multi-source
// /test-sources) that need to report on every provider, not just the
// ones a fallback chain would actually reach.
func (m *Manager) Adapters() []clients.Adapter {
	return m.adapters
}

// availableAdapters returns adapters in descending priority order,
// filtered to those reporting Availability.Available.
func (m *Manager) availableAdapters(ctx context.Context, preferred []string) []clients.Adapter {
	available := make([]clients.Adapter, 0, len(m.adapters))
	for _, a := range m.adapters {
		if a.Availability(ctx).Available {
			available = append(available, a)
		} else {
			m.log.Warn().Str("source", a.Name()).Msg("data source unavailable")
		}
	}

	preferredIdx := make(map[string]int, len(preferred))
	for i, name := range preferred {
		preferredIdx[name] = i
	}

	sort.SliceStable(available, func(i, j int) bool {
		pi, iPreferred := preferredIdx[available[i].Name()]
		pj, jPreferred := preferredIdx[available[j].Name()]
		if iPreferred && jPreferred {
			return pi < pj
		}
		if iPreferred != jPreferred {
			return iPreferred
		}
		return m.priority[available[i].Name()] > m.priority[available[j].Name()]
	})
	return available
}

// StockListWithFallback tries adapters in priority order, returning the
// first non-empty result.
func (m *Manager) StockListWithFallback(ctx context.Context, preferred []string) ([]clients.StockListRow, string, error) {
	var lastErr error
	for _, a := range m.availableAdapters(ctx, preferred) {
		rows, err := a.StockList(ctx)
		if err != nil {
			m.log.Warn().Err(err).Str("source", a.Name()).Msg("stock_list failed, trying next source")
			lastErr = err
			continue
		}
		if len(rows) > 0 {
			return rows, a.Name(), nil
		}
	}
	return nil, "", firstNonNil(lastErr, domain.NewAdapterError("datasource_manager", "stock_list", domain.KindEmpty, nil))
}

// DailyBasicWithFallback is the plain fallback path (no consistency check).
func (m *Manager) DailyBasicWithFallback(ctx context.Context, tradeDate string, preferred []string) ([]clients.DailyBasicRow, string, error) {
	var lastErr error
	for _, a := range m.availableAdapters(ctx, preferred) {
		rows, err := a.DailyBasic(ctx, tradeDate)
		if err != nil {
			lastErr = err
			continue
		}
		if len(rows) > 0 {
			return rows, a.Name(), nil
		}
	}
	return nil, "", firstNonNil(lastErr, domain.NewAdapterError("datasource_manager", "daily_basic", domain.KindEmpty, nil))
}

// DailyBasicWithConsistencyCheck compares the top two available adapters'
// daily_basic responses and reports a ConsistencyReport alongside the
// chosen data, per spec.md §4.3. With fewer than two available adapters it
// degrades to the plain fallback path and returns a nil report.
func (m *Manager) DailyBasicWithConsistencyCheck(ctx context.Context, tradeDate string) ([]clients.DailyBasicRow, string, *ConsistencyReport, error) {
	available := m.availableAdapters(ctx, nil)
	if len(available) < 2 {
		rows, source, err := m.DailyBasicWithFallback(ctx, tradeDate, nil)
		return rows, source, nil, err
	}

	primary, secondary := available[0], available[1]

	var primaryRows, secondaryRows []clients.DailyBasicRow
	var primaryErr, secondaryErr error
	done := make(chan struct{}, 2)
	go func() { primaryRows, primaryErr = primary.DailyBasic(ctx, tradeDate); done <- struct{}{} }()
	go func() { secondaryRows, secondaryErr = secondary.DailyBasic(ctx, tradeDate); done <- struct{}{} }()
	<-done
	<-done

	if primaryErr != nil || len(primaryRows) == 0 {
		m.log.Warn().Str("source", primary.Name()).Msg("primary source failed consistency check, falling back")
		rows, source, err := m.DailyBasicWithFallback(ctx, tradeDate, nil)
		return rows, source, nil, err
	}
	if secondaryErr != nil || len(secondaryRows) == 0 {
		m.log.Warn().Str("source", secondary.Name()).Msg("secondary source unavailable, using primary source only")
		return primaryRows, primary.Name(), nil, nil
	}

	report := m.consistency.CheckDailyBasic(primaryRows, secondaryRows, primary.Name(), secondary.Name())
	m.log.Info().Str("primary", primary.Name()).Str("secondary", secondary.Name()).
		Float64("confidence", report.ConfidenceScore).Str("action", string(report.RecommendedAction)).
		Msg("data consistency check complete")
	return primaryRows, primary.Name(), report, nil
}

// FindLatestTradeDateWithFallback walks adapters in priority order; if
// none answer, it falls back to "yesterday" exactly as the original
// system does, since a trading calendar gap must never block ingestion.
func (m *Manager) FindLatestTradeDateWithFallback(ctx context.Context, preferred []string, yesterday string) string {
	for _, a := range m.availableAdapters(ctx, preferred) {
		date, err := a.FindLatestTradeDate(ctx)
		if err != nil || date == "" {
			continue
		}
		return date
	}
	return yesterday
}

func (m *Manager) RealtimeQuotesWithFallback(ctx context.Context, codes []string, preferred []string) (map[string]clients.RealtimeQuote, string, error) {
	var lastErr error
	for _, a := range m.availableAdapters(ctx, preferred) {
		quotes, err := a.RealtimeQuotes(ctx, codes)
		if err != nil {
			lastErr = err
			continue
		}
		if len(quotes) > 0 {
			return quotes, a.Name(), nil
		}
	}
	return nil, "", firstNonNil(lastErr, domain.NewAdapterError("datasource_manager", "realtime_quotes", domain.KindEmpty, nil))
}

func (m *Manager) KlineWithFallback(ctx context.Context, code, period string, limit int, adjust string, preferred []string) ([]clients.KlineBar, string, error) {
	var lastErr error
	for _, a := range m.availableAdapters(ctx, preferred) {
		bars, err := a.Kline(ctx, code, period, limit, adjust)
		if err != nil {
			lastErr = err
			continue
		}
		if len(bars) > 0 {
			return bars, a.Name(), nil
		}
	}
	return nil, "", firstNonNil(lastErr, domain.NewAdapterError("datasource_manager", "kline", domain.KindEmpty, nil))
}

func (m *Manager) NewsWithFallback(ctx context.Context, code string, days, limit int, includeAnnouncements bool, preferred []string) ([]clients.NewsItem, string, error) {
	var lastErr error
	for _, a := range m.availableAdapters(ctx, preferred) {
		items, err := a.News(ctx, code, days, limit, includeAnnouncements)
		if err != nil {
			lastErr = err
			continue
		}
		if len(items) > 0 {
			return items, a.Name(), nil
		}
	}
	return nil, "", firstNonNil(lastErr, domain.NewAdapterError("datasource_manager", "news", domain.KindEmpty, nil))
}

func firstNonNil(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
