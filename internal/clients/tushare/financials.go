package tushare

import "context"

// FinancialIndicator is one instrument's balance-sheet/profitability
// snapshot for a report period, sourced from Tushare's fina_indicator,
// balancesheet and income APIs. Pointer fields are nil when Tushare omits
// them.
type FinancialIndicator struct {
	TotalEquity  *float64
	NetProfitTTM *float64
	Revenue      *float64
}

// FinaIndicator fetches one instrument's financial indicator row for a
// report period (YYYYMMDD). The basics sync does not call it: stock
// basics carry no ROE field.
func (c *Client) FinaIndicator(ctx context.Context, code, period string) (FinancialIndicator, error) {
	tsCode := toTSCode(code)
	d, err := c.call(ctx, "fina_indicator", map[string]interface{}{"ts_code": tsCode, "period": period},
		"ts_code,end_date,netprofit_yoy,roe,revenue_ps")
	if err != nil {
		return FinancialIndicator{}, err
	}
	if len(d.rows()) == 0 {
		return FinancialIndicator{}, &APIError{Code: -1, Msg: "no fina_indicator row for " + tsCode}
	}

	balanceD, err := c.call(ctx, "balancesheet", map[string]interface{}{"ts_code": tsCode, "period": period},
		"ts_code,end_date,total_hldr_eqy_exc_min_int")
	var totalEquity *float64
	if err == nil {
		balanceRows := balanceD.rows()
		if len(balanceRows) > 0 {
			totalEquity = numPtr(balanceRows[0]["total_hldr_eqy_exc_min_int"])
		}
	}

	incomeD, err := c.call(ctx, "income", map[string]interface{}{"ts_code": tsCode, "period": period},
		"ts_code,end_date,revenue,n_income")
	var revenue, netProfit *float64
	if err == nil {
		incomeRows := incomeD.rows()
		if len(incomeRows) > 0 {
			revenue = numPtr(incomeRows[0]["revenue"])
			netProfit = numPtr(incomeRows[0]["n_income"])
		}
	}

	return FinancialIndicator{TotalEquity: totalEquity, NetProfitTTM: netProfit, Revenue: revenue}, nil
}
