package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestExtractReportsFromStateCoreFields(t *testing.T) {
	state := bson.M{
		"market_report":       "价格走势平稳，成交量温和放大超过十个字符",
		"sentiment_report":    "short", // too short, must be dropped
		"fundamentals_report": "",
	}
	reports := extractReportsFromState(state)
	_, ok := reports["sentiment_report"]
	require.False(t, ok, "short fragments must not survive extraction")
	assert.NotEmpty(t, reports["market_report"])
}

func TestExtractReportsFromStateDebateHistories(t *testing.T) {
	state := bson.M{
		"investment_debate_state": bson.M{
			"bull_history":   "看多研究员认为基本面持续改善存在上行空间",
			"judge_decision": "综合双方观点后建议保持中性仓位并持续观察",
		},
		"risk_debate_state": bson.M{
			"risky_history":  "激进分析师认为当前估值仍有上行空间可以加仓",
			"judge_decision": "风险管理委员会建议维持当前仓位不做大幅调整",
		},
	}
	reports := extractReportsFromState(state)
	for _, key := range []string{"bull_researcher", "research_team_decision", "risky_analyst", "risk_management_decision"} {
		assert.NotEmptyf(t, reports[key], "expected non-empty report for %q", key)
	}
}

func TestCleanReportsDropsEmpty(t *testing.T) {
	reports := map[string]string{"a": "  real content  ", "b": "   ", "c": ""}
	cleanReports(reports)
	_, okB := reports["b"]
	_, okC := reports["c"]
	require.False(t, okB, "whitespace-only report should be dropped")
	require.False(t, okC, "empty report should be dropped")
	assert.Equal(t, "real content", reports["a"])
}

func TestDeriveSummaryAndRecommendationPrefersLongestFragment(t *testing.T) {
	view := &ResultView{
		Reports: map[string]string{
			"investment_plan":       "短建议仅供参考",
			"final_trade_decision":  "经过详细的多空辩论与风险评估，建议分批建仓并设置止损位以控制下行风险",
			"market_report":         "大盘今日震荡整理，成交量较昨日略有萎缩，短期趋势仍需观察确认",
			"fundamentals_report":   "公司基本面保持稳健，营收和利润同比均实现两位数增长超出预期",
		},
	}
	deriveSummaryAndRecommendation(view)
	require.NotEmpty(t, view.Recommendation)
	assert.Equal(t, view.Reports["final_trade_decision"], view.Recommendation)
	assert.NotEmpty(t, view.Summary)
}

func TestTruncateRespectsMaxLength(t *testing.T) {
	assert.Equal(t, "abcd", truncate("abcdefgh", 4))
	assert.Equal(t, "abc", truncate("abc", 10))
}
