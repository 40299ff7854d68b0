// Package valuation recomputes PE/PB against the realtime MarketQuote
// price instead of Tushare's yesterday-close-based static values,
// grounded on original_source/tradingagents/dataflows/realtime_metrics.py's
// calculate_realtime_pe_pb/get_pe_pb_with_fallback pair. Kept in the
// teacher's price_conversion_service.go idiom: a package of pure
// arithmetic helpers plus one entry point that loads what it needs and
// returns a single result struct.
package valuation

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/store"
)

const (
	peMin, peMax = -100.0, 1000.0
	pbMin, pbMax = 0.1, 100.0
)

// Result is the recomputed valuation for one instrument.
type Result struct {
	Code         string
	PE           *float64
	PB           *float64
	PETTM        *float64
	Price        float64
	MarketCap    *float64 // 亿元
	TTMNetProfit *float64 // 亿元
	TotalShares  *float64 // 万股
	IsRealtime   bool
	Source       string
	UpdatedAt    time.Time
}

// Recompute runs the 9-step dynamic PE/PB algorithm for code, falling
// back to the static Tushare daily_basic figures when the dynamic result
// fails validation or a required input is missing.
func Recompute(ctx context.Context, st *store.Store, code string) (*Result, error) {
	code = domain.NormalizeCode(code)

	quote, err := loadQuote(ctx, st, code)
	if err != nil {
		return nil, err
	}
	if quote.Close <= 0 {
		return nil, fmt.Errorf("valuation: %s has no valid realtime close", code)
	}

	basics, warnedNonTushare, err := loadBasics(ctx, st, code)
	if err != nil {
		return nil, err
	}
	if warnedNonTushare && basics.PETTM == nil {
		return nil, fmt.Errorf("valuation: %s basics source %q lacks pe_ttm", code, basics.Source)
	}

	if isTodayPostClose(basics.UpdatedAt) {
		return &Result{
			Code: code, PE: basics.PE, PB: basics.PB, PETTM: basics.PETTM,
			Price: quote.Close, MarketCap: basics.TotalMV, IsRealtime: false,
			Source: "stock_basic_info_latest", UpdatedAt: basics.UpdatedAt,
		}, nil
	}

	dynamic, err := recomputeDynamic(ctx, st, code, quote, basics)
	if err != nil || !validate(dynamic.PE, dynamic.PB) {
		return staticFallback(code, quote, basics), nil
	}
	return dynamic, nil
}

func loadQuote(ctx context.Context, st *store.Store, code string) (domain.MarketQuote, error) {
	var q domain.MarketQuote
	err := st.MarketQuotes().FindOne(ctx, bson.M{"code": code}).Decode(&q)
	if err != nil {
		return domain.MarketQuote{}, fmt.Errorf("valuation: no market quote for %s: %w", code, err)
	}
	return q, nil
}

// loadBasics prefers source=tushare; on miss it falls back to any source
// (with warnedNonTushare=true signalling the caller to reject a
// non-tushare record that lacks pe_ttm, per spec.md §4.6 step 2).
func loadBasics(ctx context.Context, st *store.Store, code string) (domain.StockBasics, bool, error) {
	var b domain.StockBasics
	err := st.StockBasics().FindOne(ctx, bson.M{"code": code, "source": "tushare"}).Decode(&b)
	if err == nil {
		return b, false, nil
	}
	err = st.StockBasics().FindOne(ctx, bson.M{"code": code}).Decode(&b)
	if err != nil {
		return domain.StockBasics{}, false, fmt.Errorf("valuation: no stock basics for %s: %w", code, err)
	}
	return b, b.Source != "tushare", nil
}

// isTodayPostClose reports whether updatedAt falls on today's date at or
// after 15:00 Asia/Shanghai — the signal that StockBasics already carries
// today's post-close figures and needs no recomputation.
func isTodayPostClose(updatedAt time.Time) bool {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.UTC
	}
	local := updatedAt.In(loc)
	now := time.Now().In(loc)
	if local.Year() != now.Year() || local.YearDay() != now.YearDay() {
		return false
	}
	closeThreshold := time.Date(local.Year(), local.Month(), local.Day(), 15, 0, 0, 0, loc)
	return !local.Before(closeThreshold)
}

func validate(pe, pb *float64) bool {
	if pe != nil && (*pe < peMin || *pe > peMax) {
		return false
	}
	if pb != nil && (*pb < pbMin || *pb > pbMax) {
		return false
	}
	return true
}

func staticFallback(code string, quote domain.MarketQuote, basics domain.StockBasics) *Result {
	return &Result{
		Code: code, PE: basics.PE, PB: basics.PB, PETTM: basics.PETTM,
		Price: quote.Close, MarketCap: basics.TotalMV, IsRealtime: false,
		Source: "daily_basic", UpdatedAt: basics.UpdatedAt,
	}
}

func recomputeDynamic(ctx context.Context, st *store.Store, code string, quote domain.MarketQuote, basics domain.StockBasics) (*Result, error) {
	totalShares, yesterdayMV, err := deriveShares(quote, basics)
	if err != nil {
		return nil, err
	}

	if basics.PETTM == nil || *basics.PETTM <= 0 || yesterdayMV <= 0 {
		return nil, fmt.Errorf("valuation: %s cannot reverse TTM net profit (loss-making or missing pe_ttm)", code)
	}
	ttmNetProfit := yesterdayMV / *basics.PETTM

	realtimeMV := quote.Close * totalShares / 10000
	dynamicPETTM := realtimeMV / ttmNetProfit

	pb := derivePB(ctx, st, code, realtimeMV, basics.PB)

	return &Result{
		Code: code, PE: &dynamicPETTM, PB: pb, PETTM: &dynamicPETTM,
		Price: quote.Close, MarketCap: &realtimeMV, TTMNetProfit: &ttmNetProfit,
		TotalShares: &totalShares, IsRealtime: true, Source: "realtime_calculated_from_market_quotes",
		UpdatedAt: quote.UpdatedAt,
	}, nil
}

// deriveShares computes total shares outstanding (万股) and yesterday's
// market cap (亿元), matching realtime_metrics.py's four-branch
// reverse-derivation: prefer StockBasics.TotalShare; else reverse from
// total_mv and pre_close (yesterday data) or total_mv and realtime price
// (today pre-close data); else fail.
func deriveShares(quote domain.MarketQuote, basics domain.StockBasics) (totalShares, yesterdayMV float64, err error) {
	switch {
	case basics.TotalShare != nil && *basics.TotalShare > 0:
		totalShares = *basics.TotalShare
		switch {
		case quote.PreClose > 0:
			yesterdayMV = totalShares * quote.PreClose / 10000
		case basics.TotalMV != nil && *basics.TotalMV > 0:
			yesterdayMV = *basics.TotalMV
		default:
			return 0, 0, fmt.Errorf("cannot derive yesterday market cap: no pre_close or total_mv")
		}

	case quote.PreClose > 0 && basics.TotalMV != nil && *basics.TotalMV > 0:
		loc, locErr := time.LoadLocation("Asia/Shanghai")
		if locErr != nil {
			loc = time.UTC
		}
		if basics.UpdatedAt.In(loc).Format("20060102") == time.Now().In(loc).Format("20060102") {
			totalShares = *basics.TotalMV * 10000 / quote.Close
			yesterdayMV = totalShares * quote.PreClose / 10000
		} else {
			totalShares = *basics.TotalMV * 10000 / quote.PreClose
			yesterdayMV = *basics.TotalMV
		}

	case basics.TotalMV != nil && *basics.TotalMV > 0:
		totalShares = *basics.TotalMV * 10000 / quote.Close
		yesterdayMV = *basics.TotalMV

	default:
		return 0, 0, fmt.Errorf("cannot derive total shares: no total_share, pre_close, or total_mv")
	}
	return totalShares, yesterdayMV, nil
}

// derivePB loads the latest FinancialStatement for code and computes
// realtime_mv / total_equity; falls back to the static Tushare pb when no
// financial record exists.
func derivePB(ctx context.Context, st *store.Store, code string, realtimeMV float64, tushareBP *float64) *float64 {
	var fin domain.FinancialStatement
	opts := options.FindOne().SetSort(bson.D{{Key: "report_period", Value: -1}})
	err := st.Financials().FindOne(ctx, bson.M{"code": code}, opts).Decode(&fin)
	if err != nil || fin.TotalEquity == nil || *fin.TotalEquity <= 0 {
		return tushareBP
	}
	pb := realtimeMV / *fin.TotalEquity
	return &pb
}
