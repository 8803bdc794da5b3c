package autonomy

import "time"

// Outcome is the routed result for one action.
type Outcome string

const (
	OutcomeAutoExecute   Outcome = "auto_execute"
	OutcomeQueueApproval Outcome = "queue_approval"
	OutcomeEscalate      Outcome = "escalate"
	OutcomeReject        Outcome = "reject"
)

// aggressiveness orders outcomes from most cautious to most autonomous.
// The router uses it to guarantee it never upgrades trust beyond the
// assessor's recommendation.
var aggressiveness = map[Outcome]int{
	OutcomeReject:        0,
	OutcomeEscalate:      1,
	OutcomeQueueApproval: 2,
	OutcomeAutoExecute:   3,
}

// MoreAggressiveThan reports whether o grants more autonomy than other.
func (o Outcome) MoreAggressiveThan(other Outcome) bool {
	return aggressiveness[o] > aggressiveness[other]
}

// Decision is the routed outcome for one action. The outcome is fixed at
// creation; approval and execution timestamps are filled in as later stages
// complete.
type Decision struct {
	ID         string          `json:"id"`
	ActionID   string          `json:"action_id"`
	Action     *Action         `json:"action"`
	Assessment *RiskAssessment `json:"assessment"`
	Outcome    Outcome         `json:"outcome"`
	Reason     string          `json:"reason"` // names the deciding factor

	// PolicyID identifies the boundary policy version active when the
	// decision was made (a git commit SHA in git mode).
	PolicyID string `json:"policy_id,omitempty"`

	Approver           string     `json:"approver,omitempty"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
	ExecutedAt         *time.Time `json:"executed_at,omitempty"`
	CheckpointCaptured bool       `json:"checkpoint_captured"`

	CreatedAt time.Time `json:"created_at"`
}

// ExecutionResult is produced once per execution attempt chain: a single
// final result after retries are exhausted or the first success.
type ExecutionResult struct {
	ActionID   string        `json:"action_id"`
	DecisionID string        `json:"decision_id"`
	Success    bool          `json:"success"`
	Output     string        `json:"output,omitempty"`
	Error      string        `json:"error,omitempty"`
	Attempts   int           `json:"attempts"`
	ExecutedAt time.Time     `json:"executed_at"`
	Duration   time.Duration `json:"duration"`
	RolledBack bool          `json:"rolled_back"`
}
