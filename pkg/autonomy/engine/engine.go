// Package engine composes the boundary store, risk assessor, decision
// router, approval queue, executor, and audit logger into the single entry
// point upstream engines submit actions to.
//
// Construction is explicit: the composition root builds each component and
// hands it to New. There is no package-level singleton.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/approval"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/boundary"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/executor"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/risk"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/rollback"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/router"
)

// PolicySource reports the identity of the boundary policy version that is
// currently active. Decisions are stamped with it for traceability.
type PolicySource interface {
	PolicyID() string
}

// Config contains engine-level configuration.
type Config struct {
	// AutonomyLevel sets how much the engine may do without a human:
	// 1 everything queues, 2 safe-only auto, 3 up to medium auto,
	// 4 up to high auto.
	// Default: 2
	AutonomyLevel int `yaml:"autonomy_level"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() *Config {
	return &Config{AutonomyLevel: 2}
}

// Engine coordinates one action's full lifecycle: receive, check, assess,
// route, and then execute, queue, escalate, or reject. Every transition is
// written to the audit log before the triggering call returns.
type Engine struct {
	boundaries *boundary.Store
	assessor   *risk.Assessor
	router     *router.Router
	queue      *approval.Queue
	executor   *executor.Executor
	rollbacks  *rollback.Manager
	auditLog   *audit.Logger
	policy     PolicySource
	metrics    MetricsRecorder
	logger     *slog.Logger
	tracer     trace.Tracer
}

// MetricsRecorder receives one record per routed decision. The telemetry
// collector satisfies it; nil means no recording.
type MetricsRecorder interface {
	RecordDecision(outcome, category string, riskScore float64)
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicySource stamps decisions with the active boundary policy version.
func WithPolicySource(source PolicySource) Option {
	return func(e *Engine) { e.policy = source }
}

// WithMetrics records routed decisions to the given recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(e *Engine) { e.metrics = metrics }
}

// WithBands overrides the risk score bands.
func WithBands(bands risk.Bands) Option {
	return func(e *Engine) { e.assessor = risk.NewAssessor(bands) }
}

// New creates an engine from its already-constructed components.
func New(config *Config, boundaries *boundary.Store, queue *approval.Queue, exec *executor.Executor, rollbacks *rollback.Manager, auditLog *audit.Logger, opts ...Option) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	e := &Engine{
		boundaries: boundaries,
		assessor:   risk.NewAssessor(risk.DefaultBands()),
		router:     router.New(config.AutonomyLevel),
		queue:      queue,
		executor:   exec,
		rollbacks:  rollbacks,
		auditLog:   auditLog,
		logger:     slog.Default().With("component", "engine"),
		tracer:     otel.Tracer("gicm/autonomy"),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Submit routes one proposed action and carries out the routed outcome
// synchronously: auto-execute decisions have run (or failed and been rolled
// back), queued decisions are in the approval queue, and rejected decisions
// return the decision together with a *autonomy.RejectedError.
//
// A handler failure during auto-execution is not a Submit error: the failure
// is audited, the rollback attempted, and the decision returned. Errors are
// reserved for infrastructure faults and admission guards.
func (e *Engine) Submit(ctx context.Context, action *autonomy.Action) (*autonomy.Decision, error) {
	ctx, span := e.tracer.Start(ctx, "autonomy.submit", trace.WithAttributes(
		attribute.String("action.id", action.ID),
		attribute.String("action.engine", string(action.Engine)),
		attribute.String("action.category", string(action.Category)),
		attribute.String("action.type", action.Type),
	))
	defer span.End()

	if _, err := e.auditLog.Log(ctx, audit.EntryActionReceived, action.ID, "", map[string]any{
		"engine":              string(action.Engine),
		"category":            string(action.Category),
		"type":                action.Type,
		"description":         action.Description,
		"estimated_value_usd": action.Metadata.EstimatedValueUSD,
	}); err != nil {
		return nil, fmt.Errorf("audit action received: %w", err)
	}

	assessment, check := e.assess(ctx, action)

	if len(check.Violations) > 0 {
		if _, err := e.auditLog.Log(ctx, audit.EntryBoundaryViolation, action.ID, "", map[string]any{
			"violations": check.Violations,
		}); err != nil {
			return nil, fmt.Errorf("audit boundary violation: %w", err)
		}
	}

	decision := e.route(ctx, action, assessment)

	if _, err := e.auditLog.Log(ctx, audit.EntryDecisionMade, action.ID, decision.ID, map[string]any{
		"outcome":    string(decision.Outcome),
		"reason":     decision.Reason,
		"risk_level": string(assessment.Level),
		"risk_score": assessment.Score,
		"policy_id":  decision.PolicyID,
	}); err != nil {
		return nil, fmt.Errorf("audit decision: %w", err)
	}

	span.SetAttributes(
		attribute.String("decision.outcome", string(decision.Outcome)),
		attribute.Float64("risk.score", assessment.Score),
	)

	if e.metrics != nil {
		e.metrics.RecordDecision(string(decision.Outcome), string(action.Category), assessment.Score)
	}

	e.logger.Info("action routed",
		"action_id", action.ID,
		"outcome", string(decision.Outcome),
		"risk_level", string(assessment.Level),
		"risk_score", assessment.Score,
		"reason", decision.Reason,
	)

	switch decision.Outcome {
	case autonomy.OutcomeAutoExecute:
		return e.autoExecute(ctx, decision)

	case autonomy.OutcomeQueueApproval, autonomy.OutcomeEscalate:
		if _, err := e.queue.Add(ctx, decision); err != nil {
			return nil, fmt.Errorf("queue approval: %w", err)
		}
		return decision, nil

	case autonomy.OutcomeReject:
		return decision, &autonomy.RejectedError{
			ActionID:   action.ID,
			Reason:     decision.Reason,
			Violations: assessment.Violations,
		}

	default:
		return nil, fmt.Errorf("unknown decision outcome %q", decision.Outcome)
	}
}

// assess runs the boundary check and risk assessment, auditing the result.
func (e *Engine) assess(ctx context.Context, action *autonomy.Action) (*autonomy.RiskAssessment, *boundary.CheckResult) {
	ctx, span := e.tracer.Start(ctx, "autonomy.assess")
	defer span.End()

	check := e.boundaries.Check(action)
	assessment := e.assessor.Assess(action, e.boundaries.Boundaries(), e.boundaries.Usage(), check)

	if _, err := e.auditLog.Log(ctx, audit.EntryRiskAssessed, action.ID, "", map[string]any{
		"level":       string(assessment.Level),
		"score":       assessment.Score,
		"recommended": string(assessment.Recommended),
		"violations":  assessment.Violations,
		"warnings":    assessment.Warnings,
	}); err != nil {
		e.logger.Error("audit risk assessment", "error", err, "action_id", action.ID)
	}

	return assessment, check
}

// route produces the decision and stamps the active policy version.
func (e *Engine) route(ctx context.Context, action *autonomy.Action, assessment *autonomy.RiskAssessment) *autonomy.Decision {
	_, span := e.tracer.Start(ctx, "autonomy.route")
	defer span.End()

	policyID := ""
	if e.policy != nil {
		policyID = e.policy.PolicyID()
	}

	return e.router.Route(action, assessment, policyID)
}

// autoExecute runs an auto-approved decision. Admission guard failures are
// returned to the caller; a handler failure is audited and rolled back by
// the executor and does not fail Submit.
func (e *Engine) autoExecute(ctx context.Context, decision *autonomy.Decision) (*autonomy.Decision, error) {
	ctx, span := e.tracer.Start(ctx, "autonomy.execute")
	defer span.End()

	result, err := e.executor.Execute(ctx, decision)
	if result == nil && err != nil {
		return decision, fmt.Errorf("execute action %s: %w", decision.ActionID, err)
	}
	return decision, nil
}

// Approve resolves a pending approval request and executes its decision.
// Non-pending ids return autonomy.ErrNotPending. When the executor refuses
// admission (rate limit, concurrency, cooldown) the request goes back to
// pending so it can be approved again once the guard clears.
func (e *Engine) Approve(ctx context.Context, requestID, approver, feedback string) (*autonomy.ExecutionResult, error) {
	ctx, span := e.tracer.Start(ctx, "autonomy.approve", trace.WithAttributes(
		attribute.String("request.id", requestID),
	))
	defer span.End()

	request, err := e.queue.Approve(ctx, requestID, approver, feedback)
	if err != nil {
		return nil, err
	}

	decision := request.Decision
	decision.Approver = approver
	approvedAt := time.Now().UTC()
	if request.ReviewedAt != nil {
		approvedAt = *request.ReviewedAt
	}
	decision.ApprovedAt = &approvedAt

	result, err := e.executor.Execute(ctx, decision)
	if result == nil && err != nil {
		// Admission refusal: hand the request back to the queue so the
		// approval is not stranded in approved with nothing executed.
		decision.Approver = ""
		decision.ApprovedAt = nil
		if _, reopenErr := e.queue.Reopen(ctx, requestID, err.Error()); reopenErr != nil {
			e.logger.Error("reopen approval request", "error", reopenErr, "request_id", requestID)
		}
		return nil, fmt.Errorf("execute approved action %s (request returned to queue): %w", decision.ActionID, err)
	}
	return result, nil
}

// Reject resolves a pending approval request as rejected. Non-pending ids
// return autonomy.ErrNotPending.
func (e *Engine) Reject(ctx context.Context, requestID, reason, rejector string) (*approval.Request, error) {
	return e.queue.Reject(ctx, requestID, reason, rejector)
}

// BatchApprove approves and executes many requests, returning one result per
// id in order.
func (e *Engine) BatchApprove(ctx context.Context, requestIDs []string, approver, feedback string) []BatchResult {
	results := make([]BatchResult, 0, len(requestIDs))
	for _, id := range requestIDs {
		result, err := e.Approve(ctx, id, approver, feedback)
		results = append(results, BatchResult{RequestID: id, Execution: result, Err: err})
	}
	return results
}

// BatchReject rejects many requests, returning one result per id in order.
func (e *Engine) BatchReject(ctx context.Context, requestIDs []string, reason, rejector string) []BatchResult {
	results := make([]BatchResult, 0, len(requestIDs))
	for _, id := range requestIDs {
		_, err := e.Reject(ctx, id, reason, rejector)
		results = append(results, BatchResult{RequestID: id, Err: err})
	}
	return results
}

// BatchResult is the per-request outcome of a batch call.
type BatchResult struct {
	RequestID string                    `json:"request_id"`
	Execution *autonomy.ExecutionResult `json:"execution,omitempty"`
	Err       error                     `json:"-"`
}

// PendingApprovals lists pending requests ordered by priority.
func (e *Engine) PendingApprovals(ctx context.Context) []*approval.Request {
	return e.queue.Pending(ctx)
}

// UpdateBoundaries replaces the active boundary set.
func (e *Engine) UpdateBoundaries(boundaries boundary.Boundaries) {
	e.boundaries.UpdateBoundaries(boundaries)
	e.logger.Info("boundaries updated")
}

// Boundaries returns the active boundary set.
func (e *Engine) Boundaries() boundary.Boundaries {
	return e.boundaries.Boundaries()
}

// Usage returns today's usage counters.
func (e *Engine) Usage() boundary.DailyUsage {
	return e.boundaries.Usage()
}

// QueueStats returns the approval queue summary.
func (e *Engine) QueueStats(ctx context.Context) *approval.Stats {
	return e.queue.Stats(ctx)
}

// ExecutorStats returns the executor summary.
func (e *Engine) ExecutorStats() *executor.Stats {
	return e.executor.Stats()
}

// VerifyAudit walks the audit hash chain and reports the first break.
func (e *Engine) VerifyAudit(ctx context.Context) (*audit.VerifyResult, error) {
	return e.auditLog.VerifyIntegrity(ctx)
}

// AuditEntries lists audit entries matching the query.
func (e *Engine) AuditEntries(ctx context.Context, query *audit.Query) ([]*audit.Entry, error) {
	return e.auditLog.List(ctx, query)
}

// RegisterHandler installs the execution handler for an action type.
func (e *Engine) RegisterHandler(actionType string, handler executor.Handler) {
	e.executor.RegisterHandler(actionType, handler)
}

// RegisterCapturer installs a checkpoint capturer for an action type.
func (e *Engine) RegisterCapturer(actionType string, capturer rollback.Capturer) {
	e.rollbacks.RegisterCapturer(actionType, capturer)
}

// RegisterReverser installs a rollback reverser for an action type.
func (e *Engine) RegisterReverser(actionType string, reverser rollback.Reverser) {
	e.rollbacks.RegisterReverser(actionType, reverser)
}

// Close releases the audit store.
func (e *Engine) Close() error {
	return e.auditLog.Close()
}
