package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/marketpulse/ingestor/internal/datasource"
	"github.com/marketpulse/ingestor/internal/domain"
	"github.com/marketpulse/ingestor/internal/store"
	"github.com/marketpulse/ingestor/internal/valuation"
)

// AnalysisRequest is the input to an AnalysisFunc: one symbol plus the
// caller-supplied parameters, opaque to the orchestrator itself.
type AnalysisRequest struct {
	TaskID string
	UserID string
	Symbol string
	Params map[string]any
}

// AnalysisResult is what an AnalysisFunc hands back to be persisted as an
// AnalysisReport. Reports mirrors the upstream analysis function's
// section map (market_report, sentiment_report, ...); the orchestrator
// never interprets its keys, only stores and routes it (spec.md §1:
// "the core persists and routes them verbatim").
type AnalysisResult struct {
	AnalysisID     string
	Reports        map[string]string
	Summary        string
	Recommendation string
	Decision       map[string]any
}

// AnalysisFunc is the engine's one hook into "the LLM-driven analysis
// logic itself", which spec.md §1 declares out of scope and an opaque
// external collaborator. ProgressFunc lets the implementation report
// intermediate stages the way the upstream TradingAgents graph streams
// section-by-section completion.
type AnalysisFunc func(ctx context.Context, req AnalysisRequest, report ProgressFunc) (*AnalysisResult, error)

// ProgressFunc pushes a (stage, percent) update mid-run.
type ProgressFunc func(stage string, percent int)

// DefaultAnalysisFunc builds a minimal, deterministic AnalysisFunc out of
// data this module already owns — the realtime valuation recomputer and
// the document store's latest basics/quote rows — so the orchestrator is
// independently exercisable without a real LLM backend wired in. A
// production deployment overrides this with the actual TradingAgents
// invocation; this default is what ships when none is configured.
func DefaultAnalysisFunc(st *store.Store, mgr *datasource.Manager) AnalysisFunc {
	return func(ctx context.Context, req AnalysisRequest, report ProgressFunc) (*AnalysisResult, error) {
		code := domain.NormalizeCode(req.Symbol)
		if code == "" {
			return nil, fmt.Errorf("orchestrator: invalid symbol %q", req.Symbol)
		}

		report("market_report", 20)
		val, err := valuation.Recompute(ctx, st, code)
		if err != nil {
			report("market_report", 30)
			// A valuation miss is not fatal to the task: the report is
			// thinner, not absent.
		}

		report("fundamentals_report", 60)
		reports := make(map[string]string)
		if val != nil {
			reports["fundamentals_report"] = fmt.Sprintf(
				"价格: %.2f, 动态PE: %s, 动态PB: %s, 数据来源: %s",
				val.Price, formatPtr(val.PE), formatPtr(val.PB), val.Source,
			)
		}

		report("investment_plan", 85)
		recommendation := "持有"
		if val != nil && val.PE != nil {
			switch {
			case *val.PE > 0 && *val.PE < 15:
				recommendation = "低估值区间，可关注"
			case *val.PE > 60:
				recommendation = "高估值区间，注意回撤风险"
			}
		}
		reports["investment_plan"] = recommendation

		report("final_trade_decision", 100)
		return &AnalysisResult{
			AnalysisID:     req.TaskID,
			Reports:        reports,
			Summary:        reports["fundamentals_report"],
			Recommendation: recommendation,
			Decision:       map[string]any{"action": recommendation, "generated_at": time.Now().UTC().Format(time.RFC3339)},
		}, nil
	}
}

func formatPtr(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
