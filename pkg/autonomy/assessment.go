package autonomy

import "time"

// RiskLevel is the discrete risk classification derived from the numeric score.
type RiskLevel string

const (
	RiskSafe     RiskLevel = "safe"
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// RiskFactor is one weighted input into an assessment. Factors are never
// mutated after scoring.
type RiskFactor struct {
	Name      string  `json:"name"`
	Weight    float64 `json:"weight"` // in [0,1]
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold"`
	Exceeded  bool    `json:"exceeded"`
	Reason    string  `json:"reason"`
}

// RiskAssessment is the scored view of one action. Created once, immutable.
type RiskAssessment struct {
	ID          string       `json:"id"`
	ActionID    string       `json:"action_id"`
	Level       RiskLevel    `json:"level"`
	Score       float64      `json:"score"` // in [0,100]
	Factors     []RiskFactor `json:"factors"`
	Recommended Outcome      `json:"recommended"` // router may downgrade, never upgrade
	Violations  []string     `json:"violations,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"` // near-limit (>80% of a cap)
	AssessedAt  time.Time    `json:"assessed_at"`
}
