// Package clients holds one adapter package per market data provider
// (tushare, akshare, baostock, yfinance, finnhub). Every adapter
// implements Adapter, the closed capability set spec.md §4.1 defines:
// availability, stock_list, daily_basic, find_latest_trade_date,
// realtime_quotes, kline, news. A capability an adapter doesn't support
// returns a *domain.AdapterError{Kind: domain.KindPermanent}, distinct
// from "supported but failed" (KindUnavailable/KindTransient). The
// Manager in internal/datasource moves on to the next adapter on any
// error, whatever its kind.
package clients

import (
	"context"
	"time"
)

// StockListRow is one row of a provider's instrument universe.
type StockListRow struct {
	Symbol   string // 6-digit code
	Name     string
	Industry string
	Market   string
	ListDate string
}

// DailyBasicRow is one instrument's market-cap/valuation snapshot for a
// trade date. Pointer fields may be nil ("null fields" per spec.md §4.1).
type DailyBasicRow struct {
	Code         string
	TotalMV      *float64 // 亿元 or provider-native unit; normalized by the caller
	CircMV       *float64
	PE           *float64
	PETTM        *float64
	PB           *float64
	PS           *float64
	TurnoverRate *float64
}

// RealtimeQuote is one instrument's near-realtime snapshot.
type RealtimeQuote struct {
	Close    float64
	Open     float64
	High     float64
	Low      float64
	PreClose float64
	PctChg   float64
	Volume   float64
	Amount   float64
}

// KlineBar is one OHLCV bar, part of an oldest-first ordered series.
type KlineBar struct {
	TradeDate string
	Open      float64
	High      float64
	Low       float64
	Close     float64
	PreClose  float64
	Volume    float64
	Amount    float64
}

// NewsKind distinguishes ordinary news from exchange/company announcements.
type NewsKind string

const (
	NewsKindNews         NewsKind = "news"
	NewsKindAnnouncement NewsKind = "announcement"
)

// NewsItem is one headline/announcement.
type NewsItem struct {
	Kind      NewsKind
	Title     string
	Content   string
	PublishAt time.Time
}

// AvailabilityInfo is the result of a cheap, non-network-failing
// availability probe.
type AvailabilityInfo struct {
	Available bool
	// Provenance is an optional tag describing how the adapter decided
	// (e.g. "token_source=env" vs "token_source=database" for Tushare).
	Provenance string
}

// Adapter is the capability set every provider implements. Name returns
// the provider's stable identifier used as the "source" field written to
// every document (StockBasics.Source, MarketQuote.Source, ...).
type Adapter interface {
	Name() string

	// Availability is synchronous, cheap, and must not make a network
	// call that can fail noisily.
	Availability(ctx context.Context) AvailabilityInfo

	StockList(ctx context.Context) ([]StockListRow, error)
	DailyBasic(ctx context.Context, tradeDate string) ([]DailyBasicRow, error)
	FindLatestTradeDate(ctx context.Context) (string, error)

	// RealtimeQuotes returns a mapping from 6-digit code to snapshot for
	// the given codes. Expensive/premium-gated providers must gate
	// themselves internally (see internal/quotes for Tushare's policy).
	RealtimeQuotes(ctx context.Context, codes []string) (map[string]RealtimeQuote, error)

	Kline(ctx context.Context, code string, period string, limit int, adjust string) ([]KlineBar, error)
	News(ctx context.Context, code string, days int, limit int, includeAnnouncements bool) ([]NewsItem, error)
}

// ConnectivityTimeout bounds every provider call per spec.md §5.
const ConnectivityTimeout = 10 * time.Second
