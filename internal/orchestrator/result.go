package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/marketpulse/ingestor/internal/domain"
)

// ResultView is the fully-assembled response of GET
// /analysis/tasks/{id}/result.
type ResultView struct {
	TaskID         string            `json:"task_id"`
	AnalysisID     string            `json:"analysis_id,omitempty"`
	Symbol         string            `json:"stock_symbol"`
	AnalysisDate   string            `json:"analysis_date,omitempty"`
	Reports        map[string]string `json:"reports"`
	Summary        string            `json:"summary,omitempty"`
	Recommendation string            `json:"recommendation,omitempty"`
	Source         string            `json:"source"` // memory | mongodb | analysis_tasks
}

// reportStateFields are the known sections a state sub-document may
// carry, in the order get_task_result extracts them.
var reportStateFields = []string{
	"market_report", "sentiment_report", "news_report", "fundamentals_report",
	"investment_plan", "trader_investment_plan", "final_trade_decision",
}

// GetResult runs the full result-assembly algorithm of spec.md §4.7:
// memory -> analysis_reports -> analysis_tasks.result (whose state
// sub-document supplies the reports by field extraction), then (if
// reports is still empty) a results-directory filesystem scan, then
// longest-fragment derivation of summary/recommendation.
func (o *Orchestrator) GetResult(ctx context.Context, taskID string) (*ResultView, error) {
	view := o.resultFromMemory(taskID)
	if view == nil {
		var err error
		view, err = o.resultFromMongo(ctx, taskID)
		if err != nil {
			return nil, err
		}
	}
	if view == nil {
		return nil, mongo.ErrNoDocuments
	}

	if len(view.Reports) == 0 {
		view.Reports = o.loadReportsFromFilesystem(view.Symbol, view.AnalysisDate)
	}
	cleanReports(view.Reports)
	deriveSummaryAndRecommendation(view)
	return view, nil
}

func (o *Orchestrator) resultFromMemory(taskID string) *ResultView {
	s, ok := o.state.get(taskID)
	if !ok || s.Status != domain.TaskStatusCompleted || s.ResultData == nil {
		return nil
	}
	reports, _ := s.ResultData["reports"].(map[string]string)
	summary, _ := s.ResultData["summary"].(string)
	recommendation, _ := s.ResultData["recommendation"].(string)
	analysisID, _ := s.ResultData["analysis_id"].(string)
	return &ResultView{
		TaskID: taskID, AnalysisID: analysisID, Symbol: s.Symbol,
		Reports: reports, Summary: summary, Recommendation: recommendation, Source: "memory",
	}
}

func (o *Orchestrator) resultFromMongo(ctx context.Context, taskID string) (*ResultView, error) {
	var rep domain.AnalysisReport
	err := o.store.AnalysisReports().FindOne(ctx, bson.M{"task_id": taskID}).Decode(&rep)
	if err == nil {
		return &ResultView{
			TaskID: rep.TaskID, AnalysisID: rep.AnalysisID, Symbol: rep.Symbol, AnalysisDate: rep.AnalysisDate,
			Reports: rep.Reports, Summary: rep.Summary, Recommendation: rep.Recommendation, Source: "mongodb",
		}, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	// Compatibility fallback: no report row under task_id — read the
	// result sub-document stored on the analysis_tasks row instead.
	var task struct {
		Symbol string `bson:"symbol"`
		Result bson.M `bson:"result"`
	}
	if err := o.store.AnalysisTasks().FindOne(ctx, bson.M{"task_id": taskID}).Decode(&task); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	if task.Result == nil {
		return nil, nil
	}
	view := &ResultView{TaskID: taskID, Symbol: task.Symbol, Source: "analysis_tasks"}
	if v, ok := task.Result["analysis_id"].(string); ok {
		view.AnalysisID = v
	}
	if v, ok := task.Result["summary"].(string); ok {
		view.Summary = v
	}
	if v, ok := task.Result["recommendation"].(string); ok {
		view.Recommendation = v
	}
	if v, ok := task.Result["analysis_date"].(string); ok {
		view.AnalysisDate = v
	}
	if state, ok := task.Result["state"].(bson.M); ok {
		view.Reports = extractReportsFromState(state)
	}
	return view, nil
}

// loadReportsFromFilesystem reads every *.md file under
// {resultsDir}/{symbol}/{date}/reports/, keyed by filename stem, mirroring
// get_task_result's filesystem fallback.
func (o *Orchestrator) loadReportsFromFilesystem(symbol, analysisDate string) map[string]string {
	if symbol == "" || analysisDate == "" {
		return nil
	}
	if len(analysisDate) > 10 {
		analysisDate = analysisDate[:10]
	}
	dir := filepath.Join(o.cfg.ResultsDir, symbol, analysisDate, "reports")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	out := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		content := strings.TrimSpace(string(data))
		if content == "" {
			continue
		}
		out[strings.TrimSuffix(e.Name(), ".md")] = content
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// extractReportsFromState pulls the known section fields plus the
// debate-history mappings out of a raw state sub-document, matching
// get_task_result's investment_debate_state/risk_debate_state handling.
func extractReportsFromState(state bson.M) map[string]string {
	reports := make(map[string]string)
	for _, field := range reportStateFields {
		if v, ok := state[field].(string); ok && len(strings.TrimSpace(v)) > 10 {
			reports[field] = strings.TrimSpace(v)
		}
	}
	if debate, ok := state["investment_debate_state"].(bson.M); ok {
		copyIfLong(reports, "bull_researcher", debate["bull_history"])
		copyIfLong(reports, "bear_researcher", debate["bear_history"])
		copyIfLong(reports, "research_team_decision", debate["judge_decision"])
	}
	if risk, ok := state["risk_debate_state"].(bson.M); ok {
		copyIfLong(reports, "risky_analyst", risk["risky_history"])
		copyIfLong(reports, "safe_analyst", risk["safe_history"])
		copyIfLong(reports, "neutral_analyst", risk["neutral_history"])
		copyIfLong(reports, "risk_management_decision", risk["judge_decision"])
	}
	if len(reports) == 0 {
		return nil
	}
	return reports
}

func copyIfLong(dst map[string]string, key string, value any) {
	s, ok := value.(string)
	if !ok {
		return
	}
	s = strings.TrimSpace(s)
	if len(s) > 10 {
		dst[key] = s
	}
}

// cleanReports coerces every value to a non-empty trimmed string,
// dropping anything that reduces to empty, per get_task_result's
// "ensure all contents in reports fields are string type" pass.
func cleanReports(reports map[string]string) {
	for k, v := range reports {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			delete(reports, k)
			continue
		}
		reports[k] = trimmed
	}
}

// deriveSummaryAndRecommendation backfills summary/recommendation from
// the longest available report fragments when the upstream analysis
// function didn't set them directly, mirroring get_task_result's
// rec_candidates/sum_candidates logic.
func deriveSummaryAndRecommendation(view *ResultView) {
	if view.Recommendation == "" {
		candidates := longestFirst(view.Reports, "final_trade_decision", "investment_plan")
		if len(candidates) > 0 {
			view.Recommendation = truncate(candidates[0], 2000)
		}
	}
	if view.Summary == "" {
		var parts []string
		for _, k := range []string{"market_report", "fundamentals_report", "sentiment_report", "news_report"} {
			if v, ok := view.Reports[k]; ok && len(v) > 50 {
				parts = append(parts, v)
			}
		}
		if len(parts) > 0 {
			view.Summary = truncate(strings.Join(parts, "\n\n"), 3000)
		}
	}
}

func longestFirst(reports map[string]string, keys ...string) []string {
	var candidates []string
	for _, k := range keys {
		if v, ok := reports[k]; ok && len(strings.TrimSpace(v)) > 10 {
			candidates = append(candidates, strings.TrimSpace(v))
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return len(candidates[i]) > len(candidates[j]) })
	return candidates
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
