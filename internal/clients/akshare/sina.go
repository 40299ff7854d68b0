package akshare

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/marketpulse/ingestor/internal/clients"
	"github.com/marketpulse/ingestor/internal/domain"
)

const sinaDefaultBaseURL = "https://hq.sinajs.cn/list="

// sinaLine matches one `var hq_str_sh600000="..."` assignment in the
// hq.sinajs.cn batch response.
var sinaLine = regexp.MustCompile(`var hq_str_(\w+)="([^"]*)";`)

// SinaAdapter wraps Sina Finance's public hq.sinajs.cn quote snapshot
// endpoint, the second leg of the quote rotation's AKShare pair
// (quotes_ingestion_service.py's "akshare_sina" source). Unlike the
// Eastmoney clist endpoint it cannot return a full market snapshot: a
// Sina batch request must name its codes, so StockList/DailyBasic are
// unsupported here and satisfied by the Eastmoney adapter instead.
type SinaAdapter struct {
	baseURL    string
	httpClient *http.Client
}

var _ clients.Adapter = (*SinaAdapter)(nil)

func NewSinaAdapter() *SinaAdapter {
	return &SinaAdapter{baseURL: sinaDefaultBaseURL, httpClient: &http.Client{Timeout: 20 * time.Second}}
}

func (a *SinaAdapter) Name() string { return "akshare_sina" }

func (a *SinaAdapter) Availability(ctx context.Context) clients.AvailabilityInfo {
	return clients.AvailabilityInfo{Available: true, Provenance: "no_token_required"}
}

func toSinaSymbol(code string) string {
	code = domain.NormalizeCode(code)
	switch {
	case strings.HasPrefix(code, "6"):
		return "sh" + code
	default:
		return "sz" + code
	}
}

// StockList is unsupported: Sina's quote endpoint requires an explicit
// code list, it has no "list everything" mode.
func (a *SinaAdapter) StockList(ctx context.Context) ([]clients.StockListRow, error) {
	return nil, domain.NewAdapterError(a.Name(), "stock_list", domain.KindPermanent, fmt.Errorf("not supported by sina adapter"))
}

// DailyBasic is unsupported for the same reason as StockList.
func (a *SinaAdapter) DailyBasic(ctx context.Context, tradeDate string) ([]clients.DailyBasicRow, error) {
	return nil, domain.NewAdapterError(a.Name(), "daily_basic", domain.KindPermanent, fmt.Errorf("not supported by sina adapter"))
}

func (a *SinaAdapter) FindLatestTradeDate(ctx context.Context) (string, error) {
	return "", domain.NewAdapterError(a.Name(), "find_latest_trade_date", domain.KindPermanent, fmt.Errorf("sina snapshot has no trading calendar"))
}

func (a *SinaAdapter) RealtimeQuotes(ctx context.Context, codes []string) (map[string]clients.RealtimeQuote, error) {
	if len(codes) == 0 {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindEmpty, fmt.Errorf("no codes requested"))
	}
	symbols := make([]string, 0, len(codes))
	for _, c := range codes {
		symbols = append(symbols, toSinaSymbol(c))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+strings.Join(symbols, ","), nil)
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindUnavailable, err)
	}
	req.Header.Set("Referer", "https://finance.sina.com.cn")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindUnavailable, err)
	}

	out := make(map[string]clients.RealtimeQuote)
	for _, m := range sinaLine.FindAllStringSubmatch(string(body), -1) {
		symbol, payload := m[1], m[2]
		fields := strings.Split(payload, ",")
		// Sina's A-share quote line: name,open,pre_close,close,high,low,
		// bid,ask,volume,amount,... (30 is the field index tushare/akshare
		// both use as the canonical A-share layout).
		if len(fields) < 10 {
			continue
		}
		code := domain.NormalizeCode(strings.TrimPrefix(strings.TrimPrefix(symbol, "sh"), "sz"))
		open := parseFloat(fields[1])
		preClose := parseFloat(fields[2])
		close := parseFloat(fields[3])
		high := parseFloat(fields[4])
		low := parseFloat(fields[5])
		volume := parseFloat(fields[8])
		amount := parseFloat(fields[9])
		pctChg := 0.0
		if preClose != 0 {
			pctChg = (close - preClose) / preClose * 100
		}
		out[code] = clients.RealtimeQuote{
			Close: close, Open: open, High: high, Low: low,
			PreClose: preClose, PctChg: pctChg, Volume: volume, Amount: amount,
		}
	}
	if len(out) == 0 {
		return nil, domain.NewAdapterError(a.Name(), "realtime_quotes", domain.KindEmpty, nil)
	}
	return out, nil
}

// Kline is unsupported: use the Tushare daily/weekly/monthly APIs instead.
func (a *SinaAdapter) Kline(ctx context.Context, code string, period string, limit int, adjust string) ([]clients.KlineBar, error) {
	return nil, domain.NewAdapterError(a.Name(), "kline", domain.KindPermanent, fmt.Errorf("not supported by sina adapter"))
}

func (a *SinaAdapter) News(ctx context.Context, code string, days int, limit int, includeAnnouncements bool) ([]clients.NewsItem, error) {
	return nil, domain.NewAdapterError(a.Name(), "news", domain.KindPermanent, fmt.Errorf("not supported by sina adapter"))
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
