// Package baostock adapts clients.Adapter to BaoStock, grounded on
// original_source/app/services/data_sources/baostock_adapter.py. The
// original wraps a Python-only TCP client library (bs.login/bs.query_*)
// with no HTTP equivalent; it already treats most capabilities as
// best-effort, returning None for realtime quotes, kline and news so the
// Manager falls through to the next source. This adapter preserves that
// shape: the sync-only capabilities it can serve (stock_basic's two
// queries, daily valuation via query_history_k_data_plus) are modeled
// as permanently unavailable until a Go BaoStock protocol client exists,
// and find_latest_trade_date keeps the original's "use yesterday"
// heuristic, the one capability that needs no network call at all.
package baostock

import (
	"context"
	"fmt"
	"time"

	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/domain"
)

type Adapter struct {
	endpoint string // host:port of a bsrpc bridge process, empty when none configured
}

var _ clients.Adapter = (*Adapter)(nil)

// NewAdapter builds a BaoStock adapter. endpoint is the address of an
// optional bridge process speaking BaoStock's login/query TCP protocol;
// with no endpoint configured the adapter reports itself unavailable,
// mirroring the original's is_available() import-probe.
func NewAdapter(endpoint string) *Adapter {
	return &Adapter{endpoint: endpoint}
}

func (a *Adapter) Name() string { return "baostock" }

func (a *Adapter) Availability(ctx context.Context) clients.AvailabilityInfo {
	return clients.AvailabilityInfo{Available: a.endpoint != "", Provenance: "requires_bridge_endpoint"}
}

func (a *Adapter) unavailable(op string) error {
	return domain.NewAdapterError(a.Name(), op, domain.KindUnavailable, fmt.Errorf("no baostock bridge endpoint configured"))
}

func (a *Adapter) StockList(ctx context.Context) ([]clients.StockListRow, error) {
	return nil, a.unavailable("stock_list")
}

func (a *Adapter) DailyBasic(ctx context.Context, tradeDate string) ([]clients.DailyBasicRow, error) {
	return nil, a.unavailable("daily_basic")
}

// FindLatestTradeDate needs no bridge call: BaoStock's own adapter in the
// original system answers with "yesterday" unconditionally.
func (a *Adapter) FindLatestTradeDate(ctx context.Context) (string, error) {
	return time.Now().AddDate(0, 0, -1).Format("20060102"), nil
}

func (a *Adapter) RealtimeQuotes(ctx context.Context, codes []string) (map[string]clients.RealtimeQuote, error) {
	return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindPermanent, fmt.Errorf("baostock adapter does not provide full-market realtime snapshots"))
}

func (a *Adapter) Kline(ctx context.Context, code string, period string, limit int, adjust string) ([]clients.KlineBar, error) {
	return nil, domain.NewAdapterError(a.Name(), "kline", domain.KindPermanent, fmt.Errorf("not used for kline in this deployment"))
}

func (a *Adapter) News(ctx context.Context, code string, days int, limit int, includeAnnouncements bool) ([]clients.NewsItem, error) {
	return nil, domain.NewAdapterError(a.Name(), "news", domain.KindPermanent, fmt.Errorf("baostock does not provide news"))
}
