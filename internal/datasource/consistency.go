package datasource

import (
	"gonum.org/v1/gonum/stat"

	"github.com/marketpulse/ingestor/internal/clients"
)

// RecommendedAction mirrors the four-way verdict
// original_source/app/services/data_consistency_checker.py computes from a
// confidence score, in descending confidence order.
type RecommendedAction string

const (
	ActionUseEither             RecommendedAction = "use_either"
	ActionUsePrimaryWithWarning RecommendedAction = "use_primary_with_warning"
	ActionUsePrimaryOnly        RecommendedAction = "use_primary_only"
	ActionInvestigateSources    RecommendedAction = "investigate_sources"
)

// MetricDifference is one metric's cross-source comparison.
type MetricDifference struct {
	PrimaryValue   float64
	SecondaryValue float64
	DifferencePct  float64
	IsSignificant  bool
	Tolerance      float64
}

// ConsistencyReport is the result of comparing two sources' daily_basic
// snapshots over their common instruments.
type ConsistencyReport struct {
	IsConsistent      bool
	PrimarySource     string
	SecondarySource   string
	Differences       map[string]MetricDifference
	ConfidenceScore   float64
	RecommendedAction RecommendedAction
}

// ConsistencyChecker compares per-metric averages across two data sources'
// overlapping instruments and scores overall agreement. Tolerances and
// weights are taken verbatim from the original consistency checker.
type ConsistencyChecker struct {
	tolerances map[string]float64
	weights    map[string]float64
}

func NewConsistencyChecker() *ConsistencyChecker {
	return &ConsistencyChecker{
		tolerances: map[string]float64{
			"pe":             0.05,
			"pb":             0.05,
			"total_mv":       0.02,
			"price":          0.01,
			"volume":         0.10,
			"turnover_rate":  0.05,
		},
		weights: map[string]float64{
			"pe":            0.25,
			"pb":            0.25,
			"total_mv":      0.20,
			"price":         0.15,
			"volume":        0.10,
			"turnover_rate": 0.05,
		},
	}
}

// CheckDailyBasic compares primary and secondary daily_basic rows over
// their common codes, for the pe/pb/total_mv metrics (the three the
// original implementation compares). An empty or fully-disjoint pair
// returns a zero-confidence report recommending use_primary_only.
func (c *ConsistencyChecker) CheckDailyBasic(primary, secondary []clients.DailyBasicRow, primarySource, secondarySource string) *ConsistencyReport {
	primaryByCode := make(map[string]clients.DailyBasicRow, len(primary))
	for _, r := range primary {
		primaryByCode[r.Code] = r
	}
	secondaryByCode := make(map[string]clients.DailyBasicRow, len(secondary))
	for _, r := range secondary {
		secondaryByCode[r.Code] = r
	}

	common := make([]string, 0)
	for code := range primaryByCode {
		if _, ok := secondaryByCode[code]; ok {
			common = append(common, code)
		}
	}
	if len(common) == 0 {
		return &ConsistencyReport{
			IsConsistent: false, PrimarySource: primarySource, SecondarySource: secondarySource,
			Differences: map[string]MetricDifference{}, ConfidenceScore: 0,
			RecommendedAction: ActionUsePrimaryOnly,
		}
	}
	if len(common) > 100 {
		common = common[:100]
	}

	diffs := map[string]MetricDifference{}
	for _, metric := range []string{"pe", "pb", "total_mv"} {
		primaryVals := make([]float64, 0, len(common))
		secondaryVals := make([]float64, 0, len(common))
		for _, code := range common {
			p := metricValue(primaryByCode[code], metric)
			s := metricValue(secondaryByCode[code], metric)
			if p != nil && s != nil {
				primaryVals = append(primaryVals, *p)
				secondaryVals = append(secondaryVals, *s)
			}
		}
		if len(primaryVals) == 0 {
			continue
		}
		avgPrimary := stat.Mean(primaryVals, nil)
		avgSecondary := stat.Mean(secondaryVals, nil)
		var diffPct float64
		if avgPrimary != 0 {
			diffPct = abs(avgSecondary-avgPrimary) / abs(avgPrimary)
		} else if avgSecondary != 0 {
			diffPct = 1e9 // effectively "infinite" disagreement, matches Python's float('inf')
		}
		tolerance := c.tolerances[metric]
		diffs[metric] = MetricDifference{
			PrimaryValue:   avgPrimary,
			SecondaryValue: avgSecondary,
			DifferencePct:  diffPct,
			IsSignificant:  diffPct > tolerance,
			Tolerance:      tolerance,
		}
	}

	return c.score(diffs, primarySource, secondarySource)
}

func (c *ConsistencyChecker) score(diffs map[string]MetricDifference, primarySource, secondarySource string) *ConsistencyReport {
	if len(diffs) == 0 {
		return &ConsistencyReport{
			IsConsistent: false, PrimarySource: primarySource, SecondarySource: secondarySource,
			Differences: diffs, ConfidenceScore: 0, RecommendedAction: ActionUsePrimaryOnly,
		}
	}

	var totalWeight, weightedScore float64
	significant := 0
	for metric, d := range diffs {
		weight := c.weights[metric]
		if weight == 0 {
			weight = 0.1
		}
		totalWeight += weight

		var consistencyScore float64
		if d.DifferencePct < 1e9 {
			consistencyScore = max0(1 - d.DifferencePct/d.Tolerance)
		}
		weightedScore += weight * consistencyScore
		if d.IsSignificant {
			significant++
		}
	}

	confidence := 0.0
	if totalWeight > 0 {
		confidence = weightedScore / totalWeight
	}
	isConsistent := float64(significant) <= float64(len(diffs))*0.3

	var action RecommendedAction
	switch {
	case confidence > 0.8:
		action = ActionUseEither
	case confidence > 0.6:
		action = ActionUsePrimaryWithWarning
	case confidence > 0.3:
		action = ActionUsePrimaryOnly
	default:
		action = ActionInvestigateSources
	}

	return &ConsistencyReport{
		IsConsistent:      isConsistent,
		PrimarySource:     primarySource,
		SecondarySource:   secondarySource,
		Differences:       diffs,
		ConfidenceScore:   confidence,
		RecommendedAction: action,
	}
}

func metricValue(r clients.DailyBasicRow, metric string) *float64 {
	switch metric {
	case "pe":
		return r.PE
	case "pb":
		return r.PB
	case "total_mv":
		return r.TotalMV
	default:
		return nil
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func max0(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
