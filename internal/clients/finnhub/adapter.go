// Package finnhub adapts clients.Adapter to the Finnhub REST API, the US
// market alternative data source original_source/app/worker/us_data_service.py
// names alongside yfinance. Grounded on this module's tushare client for
// the thin-HTTP-wrapper shape and on Finnhub's public quote/company-news
// REST endpoints.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/domain"
)

const defaultBaseURL = "https://finnhub.io/api/v1"

type quoteResponse struct {
	C  float64 `json:"c"` // current price
	O  float64 `json:"o"`
	H  float64 `json:"h"`
	L  float64 `json:"l"`
	PC float64 `json:"pc"` // previous close
}

type newsItem struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Datetime int64  `json:"datetime"`
}

type Adapter struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

var _ clients.Adapter = (*Adapter)(nil)

func NewAdapter(apiKey string) *Adapter {
	return &Adapter{apiKey: apiKey, baseURL: defaultBaseURL, httpClient: &http.Client{Timeout: 15 * time.Second}}
}

func (a *Adapter) Name() string { return "finnhub" }

func (a *Adapter) Availability(ctx context.Context) clients.AvailabilityInfo {
	provenance := "token_source=env"
	return clients.AvailabilityInfo{Available: a.apiKey != "", Provenance: provenance}
}

func (a *Adapter) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("token", a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("finnhub %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// StockList is not supported: Finnhub's /stock/symbol endpoint is
// exchange-scoped and not needed for the A-share universe this adapter
// pool primarily serves; US symbol discovery is out of this spec's scope.
func (a *Adapter) StockList(ctx context.Context) ([]clients.StockListRow, error) {
	return nil, domain.NewAdapterError(a.Name(), "stock_list", domain.KindPermanent, fmt.Errorf("not supported by finnhub adapter"))
}

func (a *Adapter) DailyBasic(ctx context.Context, tradeDate string) ([]clients.DailyBasicRow, error) {
	return nil, domain.NewAdapterError(a.Name(), "daily_basic", domain.KindPermanent, fmt.Errorf("finnhub has no bulk valuation snapshot"))
}

func (a *Adapter) FindLatestTradeDate(ctx context.Context) (string, error) {
	return "", domain.NewAdapterError(a.Name(), "find_latest_trade_date", domain.KindPermanent, fmt.Errorf("not supported by finnhub adapter"))
}

func (a *Adapter) RealtimeQuotes(ctx context.Context, codes []string) (map[string]clients.RealtimeQuote, error) {
	out := make(map[string]clients.RealtimeQuote, len(codes))
	for _, code := range codes {
		var q quoteResponse
		if err := a.get(ctx, "/quote", url.Values{"symbol": []string{code}}, &q); err != nil {
			continue
		}
		if q.C == 0 {
			continue
		}
		out[code] = clients.RealtimeQuote{Close: q.C, Open: q.O, High: q.H, Low: q.L, PreClose: q.PC}
	}
	if len(out) == 0 {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindEmpty, nil)
	}
	return out, nil
}

func (a *Adapter) Kline(ctx context.Context, code string, period string, limit int, adjust string) ([]clients.KlineBar, error) {
	return nil, domain.NewAdapterError(a.Name(), "kline", domain.KindPermanent, fmt.Errorf("not supported by finnhub adapter, candle endpoint is premium-gated"))
}

func (a *Adapter) News(ctx context.Context, code string, days int, limit int, includeAnnouncements bool) ([]clients.NewsItem, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -days)
	var items []newsItem
	params := url.Values{
		"symbol": []string{code},
		"from":   []string{from.Format("2006-01-02")},
		"to":     []string{to.Format("2006-01-02")},
	}
	if err := a.get(ctx, "/company-news", params, &items); err != nil {
		return nil, domain.NewAdapterError(a.Name(), "news", domain.KindUnavailable, err)
	}
	if len(items) == 0 {
		return nil, domain.NewAdapterError(a.Name(), "news", domain.KindEmpty, nil)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	out := make([]clients.NewsItem, 0, len(items))
	for _, it := range items {
		out = append(out, clients.NewsItem{
			Kind:      clients.NewsKindNews,
			Title:     it.Headline,
			Content:   it.Summary,
			PublishAt: time.Unix(it.Datetime, 0),
		})
	}
	return out, nil
}
