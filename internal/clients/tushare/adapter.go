package tushare

import (
	"context"
	"fmt"
	"strconv"

	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/domain"
)

// Adapter adapts Client to clients.Adapter. The Tushare stock-code
// convention (ts_code like "000001.SZ") is normalized at this boundary:
// the adapter extracts the 6-digit code from ts_code, the .SH/.SZ/.BJ
// suffix is authoritative for exchange assignment when present.
type Adapter struct {
	client         *Client
	tokenFromEnv   bool
	isPremium      bool
	premiumChecked bool
}

var _ clients.Adapter = (*Adapter)(nil)

// NewAdapter creates a Tushare adapter. tokenFromEnv records provenance
// (env vs database) for the availability probe, per spec.md §4.1.
func NewAdapter(token string, tokenFromEnv bool) *Adapter {
	return &Adapter{client: NewClient(token), tokenFromEnv: tokenFromEnv}
}

func (a *Adapter) Name() string { return "tushare" }

func (a *Adapter) Availability(ctx context.Context) clients.AvailabilityInfo {
	provenance := "token_source=database"
	if a.tokenFromEnv {
		provenance = "token_source=env"
	}
	return clients.AvailabilityInfo{Available: a.client.token != "", Provenance: provenance}
}

// IsPremium reports whether the account was detected as premium-tier on
// a prior probe. False until ProbePremium has been called once.
func (a *Adapter) IsPremium() bool { return a.premiumChecked && a.isPremium }

// ProbePremium calls the premium realtime endpoint once; permission-denied
// responses mark the account as free-tier (see internal/quotes's
// admission policy, which probes once, on the first trading-time tick).
func (a *Adapter) ProbePremium(ctx context.Context) {
	_, err := a.client.call(ctx, "rt_k", map[string]interface{}{"ts_code": "000001.SZ"}, "")
	a.premiumChecked = true
	a.isPremium = err == nil || !IsPermissionDenied(err)
}

func (a *Adapter) StockList(ctx context.Context) ([]clients.StockListRow, error) {
	d, err := a.client.call(ctx, "stock_basic", map[string]interface{}{"list_status": "L"},
		"ts_code,symbol,name,industry,market,list_date")
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "stock_list", domain.KindUnavailable, err)
	}
	rows := d.rows()
	out := make([]clients.StockListRow, 0, len(rows))
	for _, r := range rows {
		tsCode, _ := r["ts_code"].(string)
		code, _ := domain.TushareCode(tsCode)
		out = append(out, clients.StockListRow{
			Symbol:   code,
			Name:     str(r["name"]),
			Industry: str(r["industry"]),
			Market:   str(r["market"]),
			ListDate: str(r["list_date"]),
		})
	}
	return out, nil
}

func (a *Adapter) DailyBasic(ctx context.Context, tradeDate string) ([]clients.DailyBasicRow, error) {
	d, err := a.client.call(ctx, "daily_basic", map[string]interface{}{"trade_date": tradeDate},
		"ts_code,total_mv,circ_mv,pe,pe_ttm,pb,ps,turnover_rate")
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "daily_basic", domain.KindUnavailable, err)
	}
	rows := d.rows()
	if len(rows) == 0 {
		return nil, domain.NewAdapterError(a.Name(), "daily_basic", domain.KindEmpty, nil)
	}
	out := make([]clients.DailyBasicRow, 0, len(rows))
	for _, r := range rows {
		tsCode, _ := r["ts_code"].(string)
		code, _ := domain.TushareCode(tsCode)
		out = append(out, clients.DailyBasicRow{
			Code:         code,
			TotalMV:      numPtr(r["total_mv"]),
			CircMV:       numPtr(r["circ_mv"]),
			PE:           numPtr(r["pe"]),
			PETTM:        numPtr(r["pe_ttm"]),
			PB:           numPtr(r["pb"]),
			PS:           numPtr(r["ps"]),
			TurnoverRate: numPtr(r["turnover_rate"]),
		})
	}
	return out, nil
}

func (a *Adapter) FindLatestTradeDate(ctx context.Context) (string, error) {
	d, err := a.client.call(ctx, "trade_cal", map[string]interface{}{"is_open": "1"}, "cal_date")
	if err != nil {
		return "", domain.NewAdapterError(a.Name(), "find_latest_trade_date", domain.KindUnavailable, err)
	}
	rows := d.rows()
	if len(rows) == 0 {
		return "", domain.NewAdapterError(a.Name(), "find_latest_trade_date", domain.KindEmpty, nil)
	}
	latest := ""
	for _, r := range rows {
		if d := str(r["cal_date"]); d > latest {
			latest = d
		}
	}
	return latest, nil
}

// RealtimeQuotes is the expensive, premium-gated endpoint. The pipeline
// in internal/quotes is responsible for deciding whether to call this at
// all (admission policy); the adapter itself makes no local gating
// decision beyond what the wire API enforces.
func (a *Adapter) RealtimeQuotes(ctx context.Context, codes []string) (map[string]clients.RealtimeQuote, error) {
	tsCodes := make([]string, 0, len(codes))
	for _, c := range codes {
		tsCodes = append(tsCodes, toTSCode(c))
	}
	d, err := a.client.call(ctx, "rt_k", map[string]interface{}{"ts_code": joinComma(tsCodes)}, "")
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindUnavailable, err)
	}
	rows := d.rows()
	if len(rows) == 0 {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindEmpty, nil)
	}
	out := make(map[string]clients.RealtimeQuote, len(rows))
	for _, r := range rows {
		tsCode, _ := r["ts_code"].(string)
		code, _ := domain.TushareCode(tsCode)
		out[code] = clients.RealtimeQuote{
			Close:    num(r["close"]),
			Open:     num(r["open"]),
			High:     num(r["high"]),
			Low:      num(r["low"]),
			PreClose: num(r["pre_close"]),
			PctChg:   num(r["pct_chg"]),
			Volume:   num(r["vol"]),
			Amount:   num(r["amount"]),
		}
	}
	return out, nil
}

func (a *Adapter) Kline(ctx context.Context, code string, period string, limit int, adjust string) ([]clients.KlineBar, error) {
	apiName := "daily"
	if period == "weekly" || period == "monthly" {
		apiName = period
	}
	d, err := a.client.call(ctx, apiName, map[string]interface{}{"ts_code": toTSCode(code), "limit": limit},
		"trade_date,open,high,low,close,pre_close,vol,amount")
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "kline", domain.KindUnavailable, err)
	}
	rows := d.rows()
	out := make([]clients.KlineBar, 0, len(rows))
	// Tushare returns newest-first; reverse to oldest-first per spec.md §4.1.
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		out = append(out, clients.KlineBar{
			TradeDate: str(r["trade_date"]),
			Open:      num(r["open"]),
			High:      num(r["high"]),
			Low:       num(r["low"]),
			Close:     num(r["close"]),
			PreClose:  num(r["pre_close"]),
			Volume:    num(r["vol"]) * 100,    // hands -> shares
			Amount:    num(r["amount"]) * 1000, // thousands -> yuan
		})
	}
	return out, nil
}

func (a *Adapter) News(ctx context.Context, code string, days int, limit int, includeAnnouncements bool) ([]clients.NewsItem, error) {
	// Tushare's free tier does not expose a news endpoint with useful
	// coverage for this capability; it is not supported by this provider.
	return nil, domain.NewAdapterError(a.Name(), "news", domain.KindPermanent, fmt.Errorf("not supported by tushare adapter"))
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func num(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}

func numPtr(v interface{}) *float64 {
	if v == nil {
		return nil
	}
	f := num(v)
	return &f
}

func toTSCode(code string) string {
	code = domain.NormalizeCode(code)
	suffix := ".SZ"
	switch {
	case len(code) > 0 && (code[0] == '6'):
		suffix = ".SH"
	case len(code) > 0 && (code[0] == '8' || code[0] == '4'):
		suffix = ".BJ"
	}
	return code + suffix
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
