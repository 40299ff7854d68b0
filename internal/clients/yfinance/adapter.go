// Package yfinance adapts clients.Adapter to Yahoo Finance, for the
// Hong Kong and US instrument universes spec.md §1 carves out as
// "non-A-share markets". Grounded on the teacher's
// internal/clients/yahoo.NativeClient, which wraps the same
// github.com/wnjoon/go-yfinance ticker/multi/lookup packages; adapted
// here from Tradernet-symbol resolution to plain HK/US code suffixing.
package yfinance

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/multi"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/domain"
)

// Market selects the suffix convention this adapter instance serves.
type Market string

const (
	MarketHK Market = "HK"
	MarketUS Market = "US"
)

type Adapter struct {
	market Market
	log    zerolog.Logger
}

var _ clients.Adapter = (*Adapter)(nil)

func NewAdapter(market Market, log zerolog.Logger) *Adapter {
	return &Adapter{market: market, log: log.With().Str("client", "yfinance").Str("market", string(market)).Logger()}
}

func (a *Adapter) Name() string { return "yfinance_" + strings.ToLower(string(a.market)) }

func (a *Adapter) Availability(ctx context.Context) clients.AvailabilityInfo {
	return clients.AvailabilityInfo{Available: true, Provenance: "no_token_required"}
}

// toYahooSymbol converts a bare instrument code into the suffixed form
// go-yfinance expects: HK codes are 4/5-digit and suffixed .HK, US codes
// pass through unchanged.
func (a *Adapter) toYahooSymbol(code string) string {
	code = strings.ToUpper(code)
	if a.market == MarketHK {
		if !strings.HasSuffix(code, ".HK") {
			return code + ".HK"
		}
	}
	return code
}

// StockList is not supported: go-yfinance has no instrument-universe
// listing endpoint, only per-symbol lookups.
func (a *Adapter) StockList(ctx context.Context) ([]clients.StockListRow, error) {
	return nil, domain.NewAdapterError(a.Name(), "stock_list", domain.KindPermanent, fmt.Errorf("yfinance has no universe listing endpoint"))
}

func (a *Adapter) DailyBasic(ctx context.Context, tradeDate string) ([]clients.DailyBasicRow, error) {
	return nil, domain.NewAdapterError(a.Name(), "daily_basic", domain.KindPermanent, fmt.Errorf("yfinance daily_basic requires a symbol, not a bulk pull"))
}

func (a *Adapter) FindLatestTradeDate(ctx context.Context) (string, error) {
	return "", domain.NewAdapterError(a.Name(), "find_latest_trade_date", domain.KindPermanent, fmt.Errorf("yfinance has no trading calendar endpoint"))
}

func (a *Adapter) RealtimeQuotes(ctx context.Context, codes []string) (map[string]clients.RealtimeQuote, error) {
	if len(codes) == 0 {
		return map[string]clients.RealtimeQuote{}, nil
	}
	symbols := make([]string, 0, len(codes))
	toCode := make(map[string]string, len(codes))
	for _, c := range codes {
		s := a.toYahooSymbol(c)
		symbols = append(symbols, s)
		toCode[s] = c
	}

	params := models.DefaultDownloadParams()
	params.Symbols = symbols
	params.Period = "5d"
	params.Interval = "1d"

	result, err := multi.Download(symbols, &params)
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindUnavailable, err)
	}

	out := make(map[string]clients.RealtimeQuote, len(codes))
	for symbol, code := range toCode {
		bars, ok := result.Data[symbol]
		if !ok || len(bars) == 0 {
			continue
		}
		last := bars[len(bars)-1]
		prev := last
		if len(bars) > 1 {
			prev = bars[len(bars)-2]
		}
		out[code] = clients.RealtimeQuote{
			Close:    last.Close,
			Open:     last.Open,
			High:     last.High,
			Low:      last.Low,
			PreClose: prev.Close,
			Volume:   float64(last.Volume),
		}
	}
	if len(out) == 0 {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindEmpty, nil)
	}
	return out, nil
}

func (a *Adapter) Kline(ctx context.Context, code string, period string, limit int, adjust string) ([]clients.KlineBar, error) {
	symbol := a.toYahooSymbol(code)
	t, err := ticker.New(symbol)
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "kline", domain.KindUnavailable, err)
	}
	defer t.Close()

	historyParams := models.HistoryParams{
		Period:     yahooPeriod(period, limit),
		Interval:   "1d",
		AutoAdjust: adjust != "none",
	}
	bars, err := t.History(historyParams)
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "kline", domain.KindTransient, err)
	}
	if len(bars) == 0 {
		return nil, domain.NewAdapterError(a.Name(), "kline", domain.KindEmpty, nil)
	}

	out := make([]clients.KlineBar, 0, len(bars))
	prevClose := 0.0
	for _, bar := range bars {
		out = append(out, clients.KlineBar{
			TradeDate: bar.Date.Format("20060102"),
			Open:      bar.Open,
			High:      bar.High,
			Low:       bar.Low,
			Close:     bar.Close,
			PreClose:  prevClose,
			Volume:    float64(bar.Volume),
		})
		prevClose = bar.Close
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// News is not implemented by this adapter: go-yfinance's news surface is
// not wired by the teacher's NativeClient either, and the notification
// pipeline's provenance requirement (spec.md §4.8) is satisfied by the
// dedicated news-capable providers instead.
func (a *Adapter) News(ctx context.Context, code string, days int, limit int, includeAnnouncements bool) ([]clients.NewsItem, error) {
	return nil, domain.NewAdapterError(a.Name(), "news", domain.KindPermanent, fmt.Errorf("not supported by yfinance adapter"))
}

func yahooPeriod(period string, limit int) string {
	switch period {
	case "weekly":
		return "2y"
	case "monthly":
		return "5y"
	default:
		if limit > 250 {
			return "2y"
		}
		return "1y"
	}
}
