// Package router combines a risk assessment with the configured autonomy
// level to produce exactly one Decision per action.
//
// The autonomy level (1–4) clamps the maximum outcome aggressiveness:
//
//	1 — auto-execution disabled entirely
//	2 — auto-execute only safe-rated actions
//	3 — auto-execute up to the medium risk band
//	4 — auto-execute up to the high risk band
//
// The router may downgrade the assessor's recommendation but never upgrades
// trust beyond it. Any boundary violation forces reject regardless of score.
package router

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy"
)

// maxAutoLevel maps the autonomy level to the highest risk level that may
// still auto-execute.
var maxAutoLevel = map[int]autonomy.RiskLevel{
	2: autonomy.RiskSafe,
	3: autonomy.RiskMedium,
	4: autonomy.RiskHigh,
}

// riskRank orders risk levels for clamp comparisons.
var riskRank = map[autonomy.RiskLevel]int{
	autonomy.RiskSafe:     0,
	autonomy.RiskLow:      1,
	autonomy.RiskMedium:   2,
	autonomy.RiskHigh:     3,
	autonomy.RiskCritical: 4,
}

// Router routes assessed actions. Safe for concurrent use.
type Router struct {
	autonomyLevel int
	logger        *slog.Logger
}

// New creates a router with the given autonomy level. Levels outside 1–4 are
// clamped into range.
func New(autonomyLevel int) *Router {
	if autonomyLevel < 1 {
		autonomyLevel = 1
	}
	if autonomyLevel > 4 {
		autonomyLevel = 4
	}
	return &Router{
		autonomyLevel: autonomyLevel,
		logger:        slog.Default().With("component", "router"),
	}
}

// AutonomyLevel returns the configured level.
func (r *Router) AutonomyLevel() int {
	return r.autonomyLevel
}

// Route produces the single Decision for an assessed action. policyID stamps
// the boundary policy version that was active during assessment.
func (r *Router) Route(action *autonomy.Action, assessment *autonomy.RiskAssessment, policyID string) *autonomy.Decision {
	outcome, reason := r.resolve(action, assessment)

	decision := &autonomy.Decision{
		ID:         uuid.New().String(),
		ActionID:   action.ID,
		Action:     action,
		Assessment: assessment,
		Outcome:    outcome,
		Reason:     reason,
		PolicyID:   policyID,
		CreatedAt:  time.Now().UTC(),
	}

	r.logger.Info("action routed",
		"action_id", action.ID,
		"decision_id", decision.ID,
		"outcome", string(outcome),
		"risk_level", string(assessment.Level),
		"risk_score", assessment.Score,
		"reason", reason,
	)

	return decision
}

// resolve applies the routing rules in order: boundary violations, the
// assessor's ceiling, the autonomy-level clamp, then the queue/escalate
// tie-break.
func (r *Router) resolve(action *autonomy.Action, assessment *autonomy.RiskAssessment) (autonomy.Outcome, string) {
	if len(assessment.Violations) > 0 {
		return autonomy.OutcomeReject,
			fmt.Sprintf("boundary violation: %s", assessment.Violations[0])
	}

	if assessment.Recommended == autonomy.OutcomeReject {
		return autonomy.OutcomeReject,
			fmt.Sprintf("risk assessor rejected at level %s (score %.1f)", assessment.Level, assessment.Score)
	}

	// Start from the recommendation, then apply the autonomy-level clamp.
	outcome := assessment.Recommended

	if outcome == autonomy.OutcomeAutoExecute {
		ceiling, autoAllowed := maxAutoLevel[r.autonomyLevel]
		if !autoAllowed {
			return r.deferOutcome(action, assessment),
				fmt.Sprintf("autonomy level %d disables auto-execution", r.autonomyLevel)
		}
		if riskRank[assessment.Level] > riskRank[ceiling] {
			return r.deferOutcome(action, assessment),
				fmt.Sprintf("risk level %s exceeds autonomy level %d ceiling (%s)", assessment.Level, r.autonomyLevel, ceiling)
		}
		return autonomy.OutcomeAutoExecute,
			fmt.Sprintf("risk level %s within autonomy level %d ceiling", assessment.Level, r.autonomyLevel)
	}

	// Deferred outcomes keep the assessor's choice but re-run the
	// tie-break so urgent work escalates instead of queueing.
	deferred := r.deferOutcome(action, assessment)
	if deferred.MoreAggressiveThan(outcome) {
		deferred = outcome
	}

	switch deferred {
	case autonomy.OutcomeEscalate:
		return deferred, escalationReason(action, assessment)
	default:
		return deferred, fmt.Sprintf("risk level %s requires human approval", assessment.Level)
	}
}

// deferOutcome breaks the queue/escalate tie: critical risk or critical
// urgency escalates, everything else queues.
func (r *Router) deferOutcome(action *autonomy.Action, assessment *autonomy.RiskAssessment) autonomy.Outcome {
	if assessment.Level == autonomy.RiskCritical || action.Metadata.Urgency == autonomy.UrgencyCritical {
		return autonomy.OutcomeEscalate
	}
	return autonomy.OutcomeQueueApproval
}

func escalationReason(action *autonomy.Action, assessment *autonomy.RiskAssessment) string {
	if assessment.Level == autonomy.RiskCritical {
		return fmt.Sprintf("critical risk score %.1f requires immediate review", assessment.Score)
	}
	return fmt.Sprintf("urgency %s requires immediate review", action.Metadata.Urgency)
}
