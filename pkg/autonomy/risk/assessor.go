// Package risk scores proposed actions against weighted factors and the
// current boundary state. Assessment is a pure function of its inputs plus
// an id/timestamp source: it performs no side effects, so assessments for
// different actions may run fully in parallel.
package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/boundary"
)

// exceededPenalty is added to the score for every factor whose value crosses
// its threshold, regardless of the factor's weight.
const exceededPenalty = 15.0

// Factor weights. Relative importance of each signal; the aggregate score is
// the weighted average of normalized factor values, scaled to [0,100].
const (
	weightMonetaryValue = 0.30
	weightDailySpend    = 0.20
	weightIrreversible  = 0.15
	weightUrgency       = 0.10
	weightCodeChurn     = 0.15
	weightCategoryBase  = 0.10
	weightViolations    = 0.25
	weightNearLimit     = 0.10
)

// categoryBaseRisk reflects the blast radius typical for each category.
var categoryBaseRisk = map[autonomy.Category]float64{
	autonomy.CategoryTrading:       0.8,
	autonomy.CategoryDeployment:    0.6,
	autonomy.CategoryConfiguration: 0.5,
	autonomy.CategoryBuild:         0.4,
	autonomy.CategoryContent:       0.3,
}

// urgencyValue maps urgency tiers onto [0,1].
var urgencyValue = map[autonomy.Urgency]float64{
	autonomy.UrgencyLow:      0,
	autonomy.UrgencyNormal:   0.25,
	autonomy.UrgencyHigh:     0.6,
	autonomy.UrgencyCritical: 1,
}

// Assessor scores actions. Safe for concurrent use: it holds only immutable
// configuration.
type Assessor struct {
	bands Bands
}

// NewAssessor creates an assessor with the given score bands. Nil or invalid
// bands fall back to DefaultBands.
func NewAssessor(bands Bands) *Assessor {
	if !bands.Valid() {
		bands = DefaultBands()
	}
	return &Assessor{bands: bands}
}

// Assess scores one action against the boundaries, the current daily usage,
// and the boundary check result. The returned assessment is immutable; the
// recommended outcome is advisory — the router may downgrade it but never
// upgrades trust beyond it.
func (a *Assessor) Assess(action *autonomy.Action, b boundary.Boundaries, usage boundary.DailyUsage, check *boundary.CheckResult) *autonomy.RiskAssessment {
	factors := a.collectFactors(action, b, usage, check)

	var weightSum, weighted float64
	exceeded := 0
	for _, f := range factors {
		weightSum += f.Weight
		weighted += f.Weight * normalize(f.Value, f.Threshold)
		if f.Exceeded {
			exceeded++
		}
	}

	score := 0.0
	if weightSum > 0 {
		score = weighted / weightSum * 100
	}
	score += float64(exceeded) * exceededPenalty
	score = math.Min(100, math.Max(0, score))

	level := a.bands.LevelFor(score)

	return &autonomy.RiskAssessment{
		ID:          uuid.New().String(),
		ActionID:    action.ID,
		Level:       level,
		Score:       score,
		Factors:     factors,
		Recommended: a.recommend(action, b, level, check),
		Violations:  check.Violations,
		Warnings:    check.Warnings,
		AssessedAt:  time.Now().UTC(),
	}
}

// collectFactors builds the applicable factor list for the action.
func (a *Assessor) collectFactors(action *autonomy.Action, b boundary.Boundaries, usage boundary.DailyUsage, check *boundary.CheckResult) []autonomy.RiskFactor {
	value := action.Metadata.EstimatedValueUSD
	factors := []autonomy.RiskFactor{
		{
			Name:      "monetary_value",
			Weight:    weightMonetaryValue,
			Value:     value,
			Threshold: b.MaxAutoExpenseUSD,
			Exceeded:  b.MaxAutoExpenseUSD > 0 && value > b.MaxAutoExpenseUSD,
			Reason:    fmt.Sprintf("estimated value $%.2f against auto-expense cap $%.2f", value, b.MaxAutoExpenseUSD),
		},
		{
			Name:      "daily_spend",
			Weight:    weightDailySpend,
			Value:     usage.SpentUSD + value,
			Threshold: b.MaxDailySpendUSD,
			Exceeded:  b.MaxDailySpendUSD > 0 && usage.SpentUSD+value > b.MaxDailySpendUSD,
			Reason:    fmt.Sprintf("projected daily spend $%.2f of $%.2f", usage.SpentUSD+value, b.MaxDailySpendUSD),
		},
		{
			Name:      "irreversibility",
			Weight:    weightIrreversible,
			Value:     boolValue(!action.Metadata.Reversible),
			Threshold: 1,
			Reason:    irreversibilityReason(action.Metadata.Reversible),
		},
		{
			Name:      "urgency",
			Weight:    weightUrgency,
			Value:     urgencyValue[action.Metadata.Urgency],
			Threshold: 1,
			Reason:    fmt.Sprintf("urgency tier %s", action.Metadata.Urgency),
		},
		{
			Name:      "category_base",
			Weight:    weightCategoryBase,
			Value:     categoryBaseRisk[action.Category],
			Threshold: 1,
			Reason:    fmt.Sprintf("baseline risk for category %s", action.Category),
		},
	}

	if action.Category == autonomy.CategoryBuild || action.Category == autonomy.CategoryDeployment {
		factors = append(factors, autonomy.RiskFactor{
			Name:      "code_churn",
			Weight:    weightCodeChurn,
			Value:     float64(action.Metadata.LinesChanged),
			Threshold: float64(b.MaxCommitLines),
			Exceeded:  b.MaxCommitLines > 0 && action.Metadata.LinesChanged > b.MaxCommitLines,
			Reason:    fmt.Sprintf("%d lines changed against cap %d", action.Metadata.LinesChanged, b.MaxCommitLines),
		})
	}

	factors = append(factors, autonomy.RiskFactor{
		Name:      "boundary_violations",
		Weight:    weightViolations,
		Value:     float64(len(check.Violations)),
		Threshold: 0,
		Exceeded:  len(check.Violations) > 0,
		Reason:    fmt.Sprintf("%d boundary violation(s)", len(check.Violations)),
	})

	if len(check.Warnings) > 0 {
		factors = append(factors, autonomy.RiskFactor{
			Name:      "near_limit_pressure",
			Weight:    weightNearLimit,
			Value:     float64(len(check.Warnings)),
			Threshold: 2,
			Reason:    fmt.Sprintf("%d near-limit warning(s)", len(check.Warnings)),
		})
	}

	return factors
}

// recommend proposes an outcome from the risk level. It only ever points
// downward relative to full autonomy; the router applies the final clamp.
func (a *Assessor) recommend(action *autonomy.Action, b boundary.Boundaries, level autonomy.RiskLevel, check *boundary.CheckResult) autonomy.Outcome {
	if len(check.Violations) > 0 {
		return autonomy.OutcomeReject
	}

	var rec autonomy.Outcome
	switch level {
	case autonomy.RiskSafe, autonomy.RiskLow:
		rec = autonomy.OutcomeAutoExecute
	case autonomy.RiskMedium, autonomy.RiskHigh:
		rec = autonomy.OutcomeQueueApproval
	default:
		rec = autonomy.OutcomeEscalate
	}

	// Actions over the auto-expense cap lose unsupervised eligibility even
	// when their composite score stays low.
	if rec == autonomy.OutcomeAutoExecute &&
		b.MaxAutoExpenseUSD > 0 && action.Metadata.EstimatedValueUSD > b.MaxAutoExpenseUSD {
		rec = autonomy.OutcomeQueueApproval
	}

	return rec
}

// normalize maps value onto [0,1] relative to threshold. A non-positive
// threshold treats any positive value as saturation.
func normalize(value, threshold float64) float64 {
	if threshold <= 0 {
		if value > 0 {
			return 1
		}
		return 0
	}
	return math.Min(1, math.Max(0, value/threshold))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func irreversibilityReason(reversible bool) string {
	if reversible {
		return "action is reversible via checkpoint"
	}
	return "action cannot be rolled back"
}
