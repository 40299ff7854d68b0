package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marketpulse/ingestor/internal/clients"
)

func ptr(f float64) *float64 { return &f }

func TestCheckDailyBasicConsistentSources(t *testing.T) {
	c := NewConsistencyChecker()
	primary := []clients.DailyBasicRow{
		{Code: "000001", PE: ptr(10.0), PB: ptr(1.0), TotalMV: ptr(1000.0)},
		{Code: "000002", PE: ptr(20.0), PB: ptr(2.0), TotalMV: ptr(2000.0)},
	}
	secondary := []clients.DailyBasicRow{
		{Code: "000001", PE: ptr(10.01), PB: ptr(1.0), TotalMV: ptr(1001.0)},
		{Code: "000002", PE: ptr(20.02), PB: ptr(2.0), TotalMV: ptr(1999.0)},
	}
	report := c.CheckDailyBasic(primary, secondary, "tushare", "akshare")
	assert.Equalf(t, ActionUseEither, report.RecommendedAction, "confidence %.2f", report.ConfidenceScore)
}

func TestCheckDailyBasicDivergentSources(t *testing.T) {
	c := NewConsistencyChecker()
	primary := []clients.DailyBasicRow{
		{Code: "000001", PE: ptr(10.0), PB: ptr(1.0), TotalMV: ptr(1000.0)},
	}
	secondary := []clients.DailyBasicRow{
		{Code: "000001", PE: ptr(50.0), PB: ptr(5.0), TotalMV: ptr(3000.0)},
	}
	report := c.CheckDailyBasic(primary, secondary, "tushare", "akshare")
	assert.Equal(t, ActionInvestigateSources, report.RecommendedAction)
}

func TestCheckDailyBasicNoCommonStocks(t *testing.T) {
	c := NewConsistencyChecker()
	primary := []clients.DailyBasicRow{{Code: "000001", PE: ptr(10.0)}}
	secondary := []clients.DailyBasicRow{{Code: "999999", PE: ptr(10.0)}}
	report := c.CheckDailyBasic(primary, secondary, "tushare", "akshare")
	assert.Zero(t, report.ConfidenceScore)
	assert.Equal(t, ActionUsePrimaryOnly, report.RecommendedAction)
}
