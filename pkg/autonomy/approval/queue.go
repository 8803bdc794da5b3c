// Package approval holds pending human-review requests with priority,
// expiry, and escalation.
//
// The expiry sweep runs before every read and mutation of pending state, so
// client-visible status is always current regardless of whether a timer
// fired. Approve and reject are idempotent: a request that is no longer
// pending yields autonomy.ErrNotPending and no duplicate audit entry.
package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/state"
)

// Notifier receives approval lifecycle events. Formatting and channel
// delivery live outside this core; the queue only guarantees at-most-one
// notification per event type per request.
type Notifier interface {
	// ApprovalNeeded fires when a request enters the queue.
	ApprovalNeeded(ctx context.Context, request *Request)

	// Escalation fires when a request demands immediate human attention.
	Escalation(ctx context.Context, request *Request)
}

// Config contains approval queue configuration.
type Config struct {
	// AutoExpireHours is how long a request stays approvable.
	// Default: 24
	AutoExpireHours int

	// EscalateAfterFraction of the expiry window after which an
	// unreviewed request escalates. Default: 0.5
	EscalateAfterFraction float64
}

// DefaultConfig returns the default queue configuration.
func DefaultConfig() *Config {
	return &Config{
		AutoExpireHours:       24,
		EscalateAfterFraction: 0.5,
	}
}

// Stats summarizes queue state for operators.
type Stats struct {
	Pending    int            `json:"pending"`
	ByPriority map[string]int `json:"by_priority"` // "critical", "high", "normal", "low"
	ByStatus   map[string]int `json:"by_status"`
	OldestAge  time.Duration  `json:"oldest_age"`
}

// Queue is the ordered, mutable store of approval requests.
type Queue struct {
	mu       sync.Mutex
	requests map[string]*Request

	config   *Config
	auditLog *audit.Logger
	notifier Notifier
	metrics  MetricsRecorder
	backend  state.Backend // optional persistence
	logger   *slog.Logger
	now      func() time.Time
}

// MetricsRecorder receives one record per resolved request (approved,
// rejected, or expired). The telemetry collector satisfies it; nil means no
// recording.
type MetricsRecorder interface {
	RecordApproval(status string)
}

// Option configures a Queue.
type Option func(*Queue)

// WithBackend persists requests through the given state backend and restores
// them at startup.
func WithBackend(backend state.Backend) Option {
	return func(q *Queue) { q.backend = backend }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithMetrics records request resolutions to the given recorder.
func WithMetrics(metrics MetricsRecorder) Option {
	return func(q *Queue) { q.metrics = metrics }
}

// NewQueue creates an approval queue. auditLog is required; notifier may be
// nil when no notification boundary is wired.
func NewQueue(config *Config, auditLog *audit.Logger, notifier Notifier, opts ...Option) *Queue {
	if config == nil {
		config = DefaultConfig()
	}

	q := &Queue{
		requests: make(map[string]*Request),
		config:   config,
		auditLog: auditLog,
		notifier: notifier,
		logger:   slog.Default().With("component", "approval.queue"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(q)
	}

	if q.backend != nil {
		q.restore()
	}

	return q
}

// Add queues a decision for human review and emits the approval-needed
// notification (or escalation, for escalate outcomes) exactly once.
func (q *Queue) Add(ctx context.Context, decision *autonomy.Decision) (*Request, error) {
	window := time.Duration(q.config.AutoExpireHours) * time.Hour
	now := q.now().UTC()

	request := &Request{
		ID:        uuid.New().String(),
		Decision:  decision,
		Priority:  computePriority(decision),
		Urgency:   decision.Action.Metadata.Urgency,
		ExpiresAt: now.Add(window),
		Status:    StatusPending,
		CreatedAt: now,
	}

	q.mu.Lock()
	q.requests[request.ID] = request
	q.mu.Unlock()

	if _, err := q.auditLog.Log(ctx, audit.EntryQueuedApproval, decision.ActionID, decision.ID, map[string]any{
		"request_id": request.ID,
		"priority":   request.Priority,
		"expires_at": request.ExpiresAt,
	}); err != nil {
		return nil, fmt.Errorf("audit queued approval: %w", err)
	}

	if decision.Outcome == autonomy.OutcomeEscalate {
		q.escalate(ctx, request, "routed as escalation")
	} else {
		q.notifyApprovalNeeded(ctx, request)
	}

	q.persist(ctx, request)

	q.logger.Info("approval request queued",
		"request_id", request.ID,
		"action_id", decision.ActionID,
		"priority", request.Priority,
		"expires_at", request.ExpiresAt,
	)

	return request, nil
}

// Pending returns pending requests ordered by priority (highest first),
// after sweeping expiries and escalations.
func (q *Queue) Pending(ctx context.Context) []*Request {
	q.Sweep(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []*Request
	for _, request := range q.requests {
		if request.Status == StatusPending {
			requestCopy := *request
			pending = append(pending, &requestCopy)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	return pending
}

// Get returns a copy of the request by id, swept, or nil when unknown.
func (q *Queue) Get(ctx context.Context, id string) *Request {
	q.Sweep(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()

	request, ok := q.requests[id]
	if !ok {
		return nil
	}
	requestCopy := *request
	return &requestCopy
}

// Approve marks a pending request approved. Non-pending ids (already
// resolved, expired, or unknown) return autonomy.ErrNotPending: an
// idempotent no-op with no duplicate audit entry.
func (q *Queue) Approve(ctx context.Context, id, approver, feedback string) (*Request, error) {
	return q.review(ctx, id, StatusApproved, approver, feedback, audit.EntryApproved)
}

// Reject marks a pending request rejected with the given reason. Same
// idempotence semantics as Approve.
func (q *Queue) Reject(ctx context.Context, id, reason, rejector string) (*Request, error) {
	return q.review(ctx, id, StatusRejected, rejector, reason, audit.EntryRejected)
}

// Reopen returns an approved request to pending review. The executor can
// refuse an approved action at admission (rate limited, too many concurrent,
// type cooling down); reopening keeps the approval actionable instead of
// stranding the request in approved with nothing executed. Only approved
// requests can be reopened.
func (q *Queue) Reopen(ctx context.Context, id, reason string) (*Request, error) {
	q.mu.Lock()
	request, ok := q.requests[id]
	if !ok || request.Status != StatusApproved {
		q.mu.Unlock()
		return nil, fmt.Errorf("reopen request %s: not in approved status", id)
	}
	request.Status = StatusPending
	request.Reviewer = ""
	request.ReviewedAt = nil
	request.Feedback = ""
	requestCopy := *request
	q.mu.Unlock()

	if _, err := q.auditLog.Log(ctx, audit.EntryQueuedApproval, request.Decision.ActionID, request.Decision.ID, map[string]any{
		"request_id": id,
		"requeued":   true,
		"reason":     reason,
	}); err != nil {
		return nil, fmt.Errorf("audit requeue: %w", err)
	}

	q.persist(ctx, &requestCopy)

	q.logger.Warn("approval request reopened",
		"request_id", id,
		"reason", reason,
	)

	return &requestCopy, nil
}

// review is the single mutation path for human decisions.
func (q *Queue) review(ctx context.Context, id string, status Status, reviewer, feedback string, entryType audit.EntryType) (*Request, error) {
	q.Sweep(ctx)

	q.mu.Lock()
	request, ok := q.requests[id]
	if !ok || request.Status != StatusPending {
		q.mu.Unlock()
		return nil, autonomy.ErrNotPending
	}

	now := q.now().UTC()
	request.Status = status
	request.Reviewer = reviewer
	request.ReviewedAt = &now
	request.Feedback = feedback
	requestCopy := *request
	q.mu.Unlock()

	if _, err := q.auditLog.Log(ctx, entryType, request.Decision.ActionID, request.Decision.ID, map[string]any{
		"request_id": id,
		"reviewer":   reviewer,
		"feedback":   feedback,
	}); err != nil {
		return nil, fmt.Errorf("audit review: %w", err)
	}

	if q.metrics != nil {
		q.metrics.RecordApproval(string(status))
	}

	q.persist(ctx, &requestCopy)

	q.logger.Info("approval request reviewed",
		"request_id", id,
		"status", string(status),
		"reviewer", reviewer,
	)

	return &requestCopy, nil
}

// BatchResult is the per-id outcome of a batch review call.
type BatchResult struct {
	ID      string   `json:"id"`
	Request *Request `json:"request,omitempty"`
	Err     error    `json:"-"`
}

// BatchApprove approves many ids with per-id idempotence semantics.
func (q *Queue) BatchApprove(ctx context.Context, ids []string, approver, feedback string) []BatchResult {
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		request, err := q.Approve(ctx, id, approver, feedback)
		results = append(results, BatchResult{ID: id, Request: request, Err: err})
	}
	return results
}

// BatchReject rejects many ids with per-id idempotence semantics.
func (q *Queue) BatchReject(ctx context.Context, ids []string, reason, rejector string) []BatchResult {
	results := make([]BatchResult, 0, len(ids))
	for _, id := range ids {
		request, err := q.Reject(ctx, id, reason, rejector)
		results = append(results, BatchResult{ID: id, Request: request, Err: err})
	}
	return results
}

// Sweep expires overdue pending requests and escalates requests that have
// waited past the configured fraction of their window. It runs before every
// read so visible state never lags the clock.
func (q *Queue) Sweep(ctx context.Context) {
	now := q.now().UTC()

	q.mu.Lock()
	var expired, escalatable []*Request
	for _, request := range q.requests {
		if request.Status != StatusPending {
			continue
		}
		if !request.ExpiresAt.After(now) {
			request.Status = StatusExpired
			requestCopy := *request
			expired = append(expired, &requestCopy)
			continue
		}
		if q.shouldEscalate(request, now) {
			escalatable = append(escalatable, request)
		}
	}
	// Escalation markers must be set under the lock so concurrent sweeps
	// cannot double-notify.
	var escalated []*Request
	for _, request := range escalatable {
		request.NotificationsSent = append(request.NotificationsSent, notifiedEscalation)
		requestCopy := *request
		escalated = append(escalated, &requestCopy)
	}
	q.mu.Unlock()

	for _, request := range expired {
		if _, err := q.auditLog.Log(ctx, audit.EntryExpired, request.Decision.ActionID, request.Decision.ID, map[string]any{
			"request_id": request.ID,
			"expired_at": request.ExpiresAt,
		}); err != nil {
			q.logger.Error("audit expiry", "error", err, "request_id", request.ID)
		}
		if q.metrics != nil {
			q.metrics.RecordApproval(string(StatusExpired))
		}
		q.persist(ctx, request)

		q.logger.Info("approval request expired",
			"request_id", request.ID,
			"action_id", request.Decision.ActionID,
		)
	}

	for _, request := range escalated {
		q.emitEscalation(ctx, request, "unreviewed past escalation window")
	}
}

// shouldEscalate reports whether a pending request needs escalation now.
// Caller must hold the lock.
func (q *Queue) shouldEscalate(request *Request, now time.Time) bool {
	if request.notified(notifiedEscalation) {
		return false
	}
	if request.Urgency == autonomy.UrgencyCritical {
		return true
	}

	window := request.ExpiresAt.Sub(request.CreatedAt)
	if window <= 0 {
		return true
	}
	waited := now.Sub(request.CreatedAt)
	return float64(waited)/float64(window) >= q.config.EscalateAfterFraction
}

// escalate marks and emits an escalation for a request outside the sweep
// path (used by Add for escalate-routed decisions).
func (q *Queue) escalate(ctx context.Context, request *Request, reason string) {
	q.mu.Lock()
	stored, ok := q.requests[request.ID]
	if !ok || stored.notified(notifiedEscalation) {
		q.mu.Unlock()
		return
	}
	stored.NotificationsSent = append(stored.NotificationsSent, notifiedEscalation)
	requestCopy := *stored
	q.mu.Unlock()

	q.emitEscalation(ctx, &requestCopy, reason)
}

// emitEscalation audits and notifies one escalation. The caller has already
// claimed the notification marker.
func (q *Queue) emitEscalation(ctx context.Context, request *Request, reason string) {
	if _, err := q.auditLog.Log(ctx, audit.EntryEscalated, request.Decision.ActionID, request.Decision.ID, map[string]any{
		"request_id": request.ID,
		"reason":     reason,
	}); err != nil {
		q.logger.Error("audit escalation", "error", err, "request_id", request.ID)
	}

	if q.notifier != nil {
		q.notifier.Escalation(ctx, request)
	}
	q.persist(ctx, request)

	q.logger.Warn("approval request escalated",
		"request_id", request.ID,
		"action_id", request.Decision.ActionID,
		"reason", reason,
	)
}

// notifyApprovalNeeded emits the approval-needed notification once.
func (q *Queue) notifyApprovalNeeded(ctx context.Context, request *Request) {
	q.mu.Lock()
	stored, ok := q.requests[request.ID]
	if !ok || stored.notified(notifiedApprovalNeeded) {
		q.mu.Unlock()
		return
	}
	stored.NotificationsSent = append(stored.NotificationsSent, notifiedApprovalNeeded)
	requestCopy := *stored
	q.mu.Unlock()

	if q.notifier != nil {
		q.notifier.ApprovalNeeded(ctx, &requestCopy)
	}
}

// Stats returns the swept queue summary.
func (q *Queue) Stats(ctx context.Context) *Stats {
	q.Sweep(ctx)

	q.mu.Lock()
	defer q.mu.Unlock()

	stats := &Stats{
		ByPriority: map[string]int{},
		ByStatus:   map[string]int{},
	}

	now := q.now().UTC()
	for _, request := range q.requests {
		stats.ByStatus[string(request.Status)]++
		if request.Status != StatusPending {
			continue
		}
		stats.Pending++
		stats.ByPriority[priorityBucket(request.Priority)]++
		if age := now.Sub(request.CreatedAt); age > stats.OldestAge {
			stats.OldestAge = age
		}
	}

	return stats
}

// priorityBucket groups priorities for the operator-facing breakdown.
func priorityBucket(priority int) string {
	switch {
	case priority >= 90:
		return "critical"
	case priority >= 60:
		return "high"
	case priority >= 30:
		return "normal"
	default:
		return "low"
	}
}

// persist saves a request snapshot. Failures are logged, not propagated.
func (q *Queue) persist(ctx context.Context, request *Request) {
	if q.backend == nil {
		return
	}

	value, err := json.Marshal(request)
	if err != nil {
		q.logger.Error("marshal approval request", "error", err, "request_id", request.ID)
		return
	}

	record := &state.Record{Kind: state.KindApproval, Key: request.ID, Value: value}
	if err := q.backend.Save(ctx, record); err != nil {
		q.logger.Error("persist approval request", "error", err, "request_id", request.ID)
	}
}

// restore loads persisted requests at startup.
func (q *Queue) restore() {
	records, err := q.backend.List(context.Background(), state.KindApproval)
	if err != nil {
		q.logger.Error("restore approval requests", "error", err)
		return
	}

	restored := 0
	for _, record := range records {
		var request Request
		if err := json.Unmarshal(record.Value, &request); err != nil {
			q.logger.Error("decode approval request", "error", err, "key", record.Key)
			continue
		}
		q.requests[request.ID] = &request
		restored++
	}

	if restored > 0 {
		q.logger.Info("restored approval requests", "count", restored)
	}
}
