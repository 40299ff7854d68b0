package valuation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketpulse/ingestor/internal/domain"
)

func TestValidatePERange(t *testing.T) {
	ok := func(f float64) *float64 { return &f }
	assert.True(t, validate(ok(50), ok(2)), "pe=50, pb=2 should validate")
	assert.False(t, validate(ok(1500), ok(2)), "pe=1500 should fail validation")
	assert.False(t, validate(ok(50), ok(0.01)), "pb=0.01 should fail validation")
	assert.True(t, validate(nil, nil), "nil pe/pb should validate (nothing to reject)")
}

func TestIsTodayPostClose(t *testing.T) {
	loc, _ := time.LoadLocation("Asia/Shanghai")
	now := time.Now().In(loc)
	today1530 := time.Date(now.Year(), now.Month(), now.Day(), 15, 30, 0, 0, loc)
	today1400 := time.Date(now.Year(), now.Month(), now.Day(), 14, 0, 0, 0, loc)
	yesterday1530 := today1530.AddDate(0, 0, -1)

	assert.True(t, isTodayPostClose(today1530), "today 15:30 should be post-close")
	assert.False(t, isTodayPostClose(today1400), "today 14:00 should not be post-close")
	assert.False(t, isTodayPostClose(yesterday1530), "yesterday 15:30 should not be post-close")
}

func TestDeriveSharesPrefersTotalShare(t *testing.T) {
	share := 10000.0
	preClose := 20.0
	basics := domain.StockBasics{TotalShare: &share}
	quote := domain.MarketQuote{PreClose: preClose, Close: 21.0}

	shares, yesterdayMV, err := deriveShares(quote, basics)
	require.NoError(t, err)
	assert.Equal(t, share, shares)
	assert.Equal(t, share*preClose/10000, yesterdayMV)
}

func TestDeriveSharesReverseFromTotalMVYesterday(t *testing.T) {
	totalMV := 100.0
	basics := domain.StockBasics{TotalMV: &totalMV, UpdatedAt: time.Now().AddDate(0, 0, -1)}
	quote := domain.MarketQuote{PreClose: 10.0, Close: 11.0}

	shares, yesterdayMV, err := deriveShares(quote, basics)
	require.NoError(t, err)
	assert.Equal(t, totalMV, yesterdayMV, "should pass total_mv through unchanged")
	assert.Equal(t, totalMV*10000/quote.PreClose, shares)
}

func TestDeriveSharesFailsWithNoInputs(t *testing.T) {
	_, _, err := deriveShares(domain.MarketQuote{Close: 10}, domain.StockBasics{})
	assert.Error(t, err, "expected error when no total_share, pre_close, or total_mv is available")
}
