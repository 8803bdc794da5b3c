package autonomy

import (
	"time"

	"github.com/google/uuid"
)

// EngineName identifies the upstream engine that proposed an action.
type EngineName string

const (
	EngineTrading EngineName = "trading-engine"
	EngineContent EngineName = "content-engine"
	EngineBuild   EngineName = "build-engine"
	EngineDeploy  EngineName = "deploy-engine"
)

// Category classifies the kind of side effect an action performs.
type Category string

const (
	CategoryTrading       Category = "trading"
	CategoryContent       Category = "content"
	CategoryBuild         Category = "build"
	CategoryDeployment    Category = "deployment"
	CategoryConfiguration Category = "configuration"
)

// Urgency is the urgency tier attached to an action by its engine.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

// ActionMetadata carries impact estimates the risk assessor and boundary
// checker evaluate before anything runs.
type ActionMetadata struct {
	// EstimatedValueUSD is the estimated monetary impact of the action.
	EstimatedValueUSD float64 `json:"estimated_value_usd"`

	// Reversible indicates a rollback checkpoint can be captured and the
	// action undone after the fact.
	Reversible bool `json:"reversible"`

	// Urgency is the engine-declared urgency tier.
	Urgency Urgency `json:"urgency"`

	// LinesChanged and FilesChanged are set for code-related actions.
	LinesChanged int `json:"lines_changed,omitempty"`
	FilesChanged int `json:"files_changed,omitempty"`

	// Paths lists filesystem paths touched by code-related actions,
	// checked against the boundary path allow/deny lists.
	Paths []string `json:"paths,omitempty"`
}

// Action is a proposed side-effecting operation submitted by an upstream
// engine. It is immutable once created; later stages record their progress
// on the Decision, never on the Action.
type Action struct {
	ID          string         `json:"id"`
	Engine      EngineName     `json:"engine"`
	Category    Category       `json:"category"`
	Type        string         `json:"type"`        // free-form, e.g. "swap_tokens", "publish_post"
	Description string         `json:"description"` // human readable
	Parameters  map[string]any `json:"parameters,omitempty"`
	Metadata    ActionMetadata `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewAction creates an action with a fresh id and creation timestamp.
// Urgency defaults to normal when the caller leaves it empty.
func NewAction(engine EngineName, category Category, actionType, description string, meta ActionMetadata) *Action {
	if meta.Urgency == "" {
		meta.Urgency = UrgencyNormal
	}

	return &Action{
		ID:          uuid.New().String(),
		Engine:      engine,
		Category:    category,
		Type:        actionType,
		Description: description,
		Parameters:  map[string]any{},
		Metadata:    meta,
		CreatedAt:   time.Now().UTC(),
	}
}
