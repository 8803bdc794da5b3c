// Package executor runs approved and auto-approved actions through
// registered handlers, with admission guards, retries, and rollback on
// failure.
//
// Admission is atomic: all guards are evaluated and the execution slot is
// reserved under a single lock, so two submissions of the same action can
// never both pass. The guards are ordered from cheapest to most specific so
// callers get the most actionable error.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/boundary"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/rollback"
)

// Handler performs the side effect for one action type and returns a short
// human-readable output.
type Handler func(ctx context.Context, action *autonomy.Action) (string, error)

// Config contains executor configuration.
type Config struct {
	// MaxPerHour caps the execution start rate. The executor enforces it
	// as a minimum inter-start interval of hour/MaxPerHour.
	// Default: 60
	MaxPerHour int `yaml:"max_per_hour"`

	// MaxConcurrent caps simultaneously running executions.
	// Default: 4
	MaxConcurrent int `yaml:"max_concurrent"`

	// FailureCooldown is how long an action type is barred from executing
	// after a failed execution of that type.
	// Default: 5m
	FailureCooldown time.Duration `yaml:"failure_cooldown"`

	// Timeout bounds a single handler invocation.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is how many times a failed handler call is retried
	// before the execution is declared failed.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the base delay before the first retry; each
	// subsequent retry doubles it.
	// Default: 500ms
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// DefaultConfig returns the default executor configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxPerHour:      60,
		MaxConcurrent:   4,
		FailureCooldown: 5 * time.Minute,
		Timeout:         30 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    500 * time.Millisecond,
	}
}

// Stats summarizes executor state for operators.
type Stats struct {
	TotalExecutions int64          `json:"total_executions"`
	TotalFailures   int64          `json:"total_failures"`
	TotalRollbacks  int64          `json:"total_rollbacks"`
	Executing       int            `json:"executing"`
	CoolingTypes    map[string]int `json:"cooling_types"` // seconds remaining per type
}

// Executor is the single component allowed to perform side effects.
type Executor struct {
	config     *Config
	handlers   map[string]Handler
	boundaries *boundary.Store
	rollbacks  *rollback.Manager
	auditLog   *audit.Logger
	metrics    MetricsRecorder
	logger     *slog.Logger

	mu        sync.Mutex
	executing map[string]bool      // action ids currently running
	cooldowns map[string]time.Time // action type -> cooldown expiry
	lastStart time.Time

	totalExecutions int64
	totalFailures   int64
	totalRollbacks  int64

	now   func() time.Time
	sleep func(time.Duration)
}

// MetricsRecorder receives one record per completed execution chain. The
// telemetry collector satisfies it; nil means no recording.
type MetricsRecorder interface {
	RecordExecution(status, category string, duration time.Duration)
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics records completed executions to the given recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(e *Executor) { e.metrics = metrics }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithSleep overrides the retry backoff sleep. Intended for tests.
func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// NewExecutor creates an executor. boundaries, rollbacks, and auditLog are
// all required.
func NewExecutor(config *Config, boundaries *boundary.Store, rollbacks *rollback.Manager, auditLog *audit.Logger, opts ...Option) *Executor {
	if config == nil {
		config = DefaultConfig()
	}

	e := &Executor{
		config:     config,
		handlers:   make(map[string]Handler),
		boundaries: boundaries,
		rollbacks:  rollbacks,
		auditLog:   auditLog,
		logger:     slog.Default().With("component", "executor"),
		executing:  make(map[string]bool),
		cooldowns:  make(map[string]time.Time),
		now:        time.Now,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RegisterHandler installs the handler for an action type. Actions with no
// registered handler fail at execution time, not admission time, so the
// failure is audited.
func (e *Executor) RegisterHandler(actionType string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[actionType] = handler
}

// Execute runs the decision's action. It blocks until the execution chain
// (including retries and any rollback) completes, and returns the final
// result. Admission guard failures return before any side effect.
func (e *Executor) Execute(ctx context.Context, decision *autonomy.Decision) (*autonomy.ExecutionResult, error) {
	if err := e.admit(decision); err != nil {
		return nil, err
	}

	action := decision.Action
	defer e.release(action)

	// Checkpoint before anything runs so a mid-flight failure can be
	// undone. Irreversible actions skip this: there is nothing to replay.
	if action.Metadata.Reversible {
		if _, err := e.rollbacks.Capture(ctx, action, decision.ID); err != nil {
			e.failType(action.Type)
			return nil, fmt.Errorf("capture checkpoint: %w", err)
		}
		decision.CheckpointCaptured = true
	}

	start := e.now().UTC()
	output, attempts, execErr := e.run(ctx, action)
	result := &autonomy.ExecutionResult{
		ActionID:   action.ID,
		DecisionID: decision.ID,
		Success:    execErr == nil,
		Output:     output,
		Attempts:   attempts,
		ExecutedAt: start,
		Duration:   e.now().UTC().Sub(start),
	}

	if execErr != nil {
		result.Error = execErr.Error()
		e.handleFailure(ctx, decision, result)
		if e.metrics != nil {
			e.metrics.RecordExecution("failed", string(action.Category), result.Duration)
		}
		return result, execErr
	}

	executedAt := e.now().UTC()
	decision.ExecutedAt = &executedAt

	e.mu.Lock()
	e.totalExecutions++
	e.mu.Unlock()

	e.boundaries.RecordExecution(ctx, action.Category, action.Metadata.EstimatedValueUSD)

	if e.metrics != nil {
		e.metrics.RecordExecution("success", string(action.Category), result.Duration)
	}

	if _, err := e.auditLog.Log(ctx, audit.EntryExecuted, action.ID, decision.ID, map[string]any{
		"type":     action.Type,
		"attempts": result.Attempts,
		"duration": result.Duration.String(),
		"output":   result.Output,
	}); err != nil {
		e.logger.Error("audit execution", "error", err, "action_id", action.ID)
	}

	e.logger.Info("action executed",
		"action_id", action.ID,
		"type", action.Type,
		"attempts", result.Attempts,
		"duration", result.Duration,
	)

	return result, nil
}

// admit checks every guard and reserves the execution slot atomically.
func (e *Executor) admit(decision *autonomy.Decision) error {
	if !executable(decision) {
		return autonomy.ErrNotExecutable
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()

	if e.config.MaxPerHour > 0 && !e.lastStart.IsZero() {
		interval := time.Hour / time.Duration(e.config.MaxPerHour)
		if now.Sub(e.lastStart) < interval {
			return autonomy.ErrRateLimited
		}
	}

	if e.config.MaxConcurrent > 0 && len(e.executing) >= e.config.MaxConcurrent {
		return autonomy.ErrTooManyConcurrent
	}

	if expiry, ok := e.cooldowns[decision.Action.Type]; ok {
		if now.Before(expiry) {
			return autonomy.ErrTypeCoolingDown
		}
		delete(e.cooldowns, decision.Action.Type)
	}

	if e.executing[decision.Action.ID] {
		return autonomy.ErrAlreadyExecuting
	}

	e.executing[decision.Action.ID] = true
	e.lastStart = now
	return nil
}

// executable reports whether a decision's outcome permits execution.
// Auto-execute decisions run as-is; queued and escalated decisions need a
// recorded approver.
func executable(decision *autonomy.Decision) bool {
	switch decision.Outcome {
	case autonomy.OutcomeAutoExecute:
		return true
	case autonomy.OutcomeQueueApproval, autonomy.OutcomeEscalate:
		return decision.Approver != ""
	default:
		return false
	}
}

// release clears the executing marker on every exit path.
func (e *Executor) release(action *autonomy.Action) {
	e.mu.Lock()
	delete(e.executing, action.ID)
	e.mu.Unlock()
}

// run invokes the handler with a per-attempt timeout and exponential
// backoff between retries. It returns the output of the successful attempt,
// the number of attempts made, and the final error when all attempts fail.
func (e *Executor) run(ctx context.Context, action *autonomy.Action) (string, int, error) {
	e.mu.Lock()
	handler := e.handlers[action.Type]
	e.mu.Unlock()

	if handler == nil {
		return "", 0, fmt.Errorf("no handler registered for action type %q", action.Type)
	}

	var lastErr error
	backoff := e.config.RetryBackoff

	for attempt := 1; attempt <= e.config.MaxRetries+1; attempt++ {
		if attempt > 1 {
			e.sleep(backoff)
			backoff *= 2
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if e.config.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		}

		output, err := handler(attemptCtx, action)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			return output, attempt, nil
		}
		lastErr = err

		e.logger.Warn("execution attempt failed",
			"action_id", action.ID,
			"type", action.Type,
			"attempt", attempt,
			"error", err,
		)

		if ctx.Err() != nil {
			return "", attempt, ctx.Err()
		}
	}

	return "", e.config.MaxRetries + 1, lastErr
}

// handleFailure puts the action's type into cooldown, attempts a rollback
// for reversible actions, and audits both.
func (e *Executor) handleFailure(ctx context.Context, decision *autonomy.Decision, result *autonomy.ExecutionResult) {
	action := decision.Action
	e.failType(action.Type)

	e.mu.Lock()
	e.totalFailures++
	e.mu.Unlock()

	if _, err := e.auditLog.Log(ctx, audit.EntryExecutionFailed, action.ID, decision.ID, map[string]any{
		"type":     action.Type,
		"attempts": result.Attempts,
		"error":    result.Error,
	}); err != nil {
		e.logger.Error("audit execution failure", "error", err, "action_id", action.ID)
	}

	e.logger.Error("action execution failed",
		"action_id", action.ID,
		"type", action.Type,
		"attempts", result.Attempts,
		"error", result.Error,
	)

	if !action.Metadata.Reversible {
		return
	}

	ran, rollbackErr := e.rollbacks.Rollback(ctx, action)
	if rollbackErr != nil {
		e.logger.Error("rollback failed", "error", rollbackErr, "action_id", action.ID)
		return
	}
	if !ran {
		return
	}

	result.RolledBack = true

	e.mu.Lock()
	e.totalRollbacks++
	e.mu.Unlock()

	if _, err := e.auditLog.Log(ctx, audit.EntryRolledBack, action.ID, decision.ID, map[string]any{
		"type": action.Type,
	}); err != nil {
		e.logger.Error("audit rollback", "error", err, "action_id", action.ID)
	}

	e.logger.Info("action rolled back", "action_id", action.ID, "type", action.Type)
}

// failType starts the post-failure cooldown window for an action type.
func (e *Executor) failType(actionType string) {
	if e.config.FailureCooldown <= 0 {
		return
	}
	e.mu.Lock()
	e.cooldowns[actionType] = e.now().UTC().Add(e.config.FailureCooldown)
	e.mu.Unlock()
}

// Stats returns the current executor summary.
func (e *Executor) Stats() *Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	cooling := make(map[string]int)
	for actionType, expiry := range e.cooldowns {
		if remaining := expiry.Sub(now); remaining > 0 {
			cooling[actionType] = int(remaining.Seconds())
		}
	}

	return &Stats{
		TotalExecutions: e.totalExecutions,
		TotalFailures:   e.totalFailures,
		TotalRollbacks:  e.totalRollbacks,
		Executing:       len(e.executing),
		CoolingTypes:    cooling,
	}
}
