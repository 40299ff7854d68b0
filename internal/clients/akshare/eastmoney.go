// Package akshare adapts clients.Adapter to the public HTTP endpoints the
// akshare Python library wraps, grounded on original_source/app/services/
// data_sources/akshare_adapter.py's usage (stock list + daily valuation
// snapshot, no kline/news support) and on this module's tushare client for
// the thin-HTTP-wrapper shape. Eastmoney and Sina are kept as two distinct
// Adapter implementations, mirroring quotes_ingestion_service.py's
// "akshare_eastmoney" / "akshare_sina" rotation entries.
package akshare

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/domain"
)

const defaultBaseURL = "https://82.push2.eastmoney.com/api/qt/clist/get"

// clistResponse is the Eastmoney "clist" endpoint envelope: a paginated
// list of instrument snapshot rows keyed by short numeric field codes
// (f12=code, f14=name, f2=price, f9=pe, f23=pb, f20=total_mv, f21=circ_mv,
// f8=turnover_rate).
type clistResponse struct {
	Data struct {
		Total int `json:"total"`
		Diff  []struct {
			F12 string  `json:"f12"`
			F14 string  `json:"f14"`
			F2  float64 `json:"f2"`
			F9  float64 `json:"f9"`
			F23 float64 `json:"f23"`
			F20 float64 `json:"f20"`
			F21 float64 `json:"f21"`
			F8  float64 `json:"f8"`
			F13 int     `json:"f13"` // market id: 0 = SZ, 1 = SH
		} `json:"diff"`
	} `json:"data"`
}

// EastmoneyAdapter wraps Eastmoney's public clist HTTP endpoint.
type EastmoneyAdapter struct {
	baseURL    string
	httpClient *http.Client
}

var _ clients.Adapter = (*EastmoneyAdapter)(nil)

func NewEastmoneyAdapter() *EastmoneyAdapter {
	return &EastmoneyAdapter{baseURL: defaultBaseURL, httpClient: &http.Client{Timeout: 20 * time.Second}}
}

func (a *EastmoneyAdapter) Name() string { return "akshare_eastmoney" }

func (a *EastmoneyAdapter) Availability(ctx context.Context) clients.AvailabilityInfo {
	return clients.AvailabilityInfo{Available: true, Provenance: "no_token_required"}
}

func (a *EastmoneyAdapter) fetchSnapshot(ctx context.Context, pageSize int) (*clistResponse, error) {
	q := url.Values{}
	q.Set("pn", "1")
	q.Set("pz", strconv.Itoa(pageSize))
	q.Set("po", "1")
	q.Set("np", "1")
	q.Set("fltt", "2")
	q.Set("invt", "2")
	q.Set("fs", "m:0 t:6,m:0 t:80,m:1 t:2,m:1 t:23")
	q.Set("fields", "f2,f8,f9,f12,f13,f14,f20,f21,f23")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out clistResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode eastmoney response: %w", err)
	}
	return &out, nil
}

func (a *EastmoneyAdapter) StockList(ctx context.Context) ([]clients.StockListRow, error) {
	snap, err := a.fetchSnapshot(ctx, 6000)
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "stock_list", domain.KindUnavailable, err)
	}
	if len(snap.Data.Diff) == 0 {
		return nil, domain.NewAdapterError(a.Name(), "stock_list", domain.KindEmpty, nil)
	}
	out := make([]clients.StockListRow, 0, len(snap.Data.Diff))
	for _, r := range snap.Data.Diff {
		out = append(out, clients.StockListRow{
			Symbol: domain.NormalizeCode(r.F12),
			Name:   r.F14,
			Market: marketName(r.F13),
		})
	}
	return out, nil
}

func (a *EastmoneyAdapter) DailyBasic(ctx context.Context, tradeDate string) ([]clients.DailyBasicRow, error) {
	snap, err := a.fetchSnapshot(ctx, 6000)
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "daily_basic", domain.KindUnavailable, err)
	}
	if len(snap.Data.Diff) == 0 {
		return nil, domain.NewAdapterError(a.Name(), "daily_basic", domain.KindEmpty, nil)
	}
	out := make([]clients.DailyBasicRow, 0, len(snap.Data.Diff))
	for _, r := range snap.Data.Diff {
		totalMV := r.F20
		circMV := r.F21
		pe := r.F9
		pb := r.F23
		turnover := r.F8
		out = append(out, clients.DailyBasicRow{
			Code:         domain.NormalizeCode(r.F12),
			TotalMV:      &totalMV,
			CircMV:       &circMV,
			PE:           &pe,
			PB:           &pb,
			TurnoverRate: &turnover,
		})
	}
	return out, nil
}

// FindLatestTradeDate is not supported: Eastmoney's realtime snapshot
// carries no trading-calendar field, only current values.
func (a *EastmoneyAdapter) FindLatestTradeDate(ctx context.Context) (string, error) {
	return "", domain.NewAdapterError(a.Name(), "find_latest_trade_date", domain.KindPermanent, fmt.Errorf("akshare snapshot has no trading calendar"))
}

func (a *EastmoneyAdapter) RealtimeQuotes(ctx context.Context, codes []string) (map[string]clients.RealtimeQuote, error) {
	snap, err := a.fetchSnapshot(ctx, 6000)
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindUnavailable, err)
	}
	wanted := make(map[string]bool, len(codes))
	for _, c := range codes {
		wanted[domain.NormalizeCode(c)] = true
	}
	out := make(map[string]clients.RealtimeQuote)
	for _, r := range snap.Data.Diff {
		code := domain.NormalizeCode(r.F12)
		if len(wanted) > 0 && !wanted[code] {
			continue
		}
		out[code] = clients.RealtimeQuote{Close: r.F2}
	}
	if len(out) == 0 {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindEmpty, nil)
	}
	return out, nil
}

// Kline is not implemented: the quote-snapshot endpoint this adapter
// wraps carries no historical series, and the historical sync path is
// satisfied by the Tushare daily/weekly/monthly APIs instead.
func (a *EastmoneyAdapter) Kline(ctx context.Context, code string, period string, limit int, adjust string) ([]clients.KlineBar, error) {
	return nil, domain.NewAdapterError(a.Name(), "kline", domain.KindPermanent, fmt.Errorf("not supported by akshare adapter"))
}

func (a *EastmoneyAdapter) News(ctx context.Context, code string, days int, limit int, includeAnnouncements bool) ([]clients.NewsItem, error) {
	return nil, domain.NewAdapterError(a.Name(), "news", domain.KindPermanent, fmt.Errorf("not supported by akshare adapter"))
}

func marketName(marketID int) string {
	if marketID == 1 {
		return "SH"
	}
	return "SZ"
}
