package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
	"github.com/Kermit457/gICM-sub020/pkg/audit/store"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/approval"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/boundary"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/executor"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/rollback"
)

type engineFixture struct {
	engine   *Engine
	auditLog *audit.Logger
	clock    *time.Time
}

func newEngineFixture(t *testing.T, autonomyLevel int, opts ...Option) *engineFixture {
	// Unlimited rate: most tests submit several actions back to back.
	return newRateLimitedFixture(t, autonomyLevel, 0, opts...)
}

func newRateLimitedFixture(t *testing.T, autonomyLevel, maxPerHour int, opts ...Option) *engineFixture {
	t.Helper()
	ctx := context.Background()

	auditLog, err := audit.NewLogger(ctx, store.NewMemoryStore(0))
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f := &engineFixture{auditLog: auditLog, clock: &now}
	clock := func() time.Time { return *f.clock }

	bounds := boundary.NewStore(boundary.DefaultBoundaries(), boundary.WithClock(clock))
	rollbacks := rollback.NewManager()
	queue := approval.NewQueue(approval.DefaultConfig(), auditLog, nil, approval.WithClock(clock))

	execConfig := executor.DefaultConfig()
	execConfig.MaxPerHour = maxPerHour
	exec := executor.NewExecutor(execConfig, bounds, rollbacks, auditLog,
		executor.WithClock(clock),
		executor.WithSleep(func(time.Duration) {}))

	f.engine = New(&Config{AutonomyLevel: autonomyLevel}, bounds, queue, exec, rollbacks, auditLog, opts...)
	return f
}

func (f *engineFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func (f *engineFixture) countEntries(t *testing.T, entryType audit.EntryType) int64 {
	t.Helper()
	n, err := f.auditLog.Count(context.Background(), &audit.Query{Type: entryType})
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	return n
}

func tradeAction(valueUSD float64, reversible bool) *autonomy.Action {
	return autonomy.NewAction(autonomy.EngineTrading, autonomy.CategoryTrading,
		"swap_tokens", "test trade", autonomy.ActionMetadata{
			EstimatedValueUSD: valueUSD,
			Reversible:        reversible,
		})
}

func TestSubmit_SmallTradeAutoExecutes(t *testing.T) {
	f := newEngineFixture(t, 3)
	ctx := context.Background()

	executed := false
	f.engine.RegisterHandler("swap_tokens", func(ctx context.Context, action *autonomy.Action) (string, error) {
		executed = true
		return "swapped", nil
	})

	decision, err := f.engine.Submit(ctx, tradeAction(10, true))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if decision.Outcome != autonomy.OutcomeAutoExecute {
		t.Fatalf("Outcome = %v (reason %s), want auto_execute", decision.Outcome, decision.Reason)
	}
	if !executed {
		t.Error("handler never ran")
	}
	if decision.ExecutedAt == nil {
		t.Error("ExecutedAt not stamped")
	}
	if !decision.CheckpointCaptured {
		t.Error("no checkpoint captured for reversible action")
	}
	if usage := f.engine.Usage(); usage.Trades != 1 || usage.SpentUSD != 10 {
		t.Errorf("usage = %+v, want 1 trade / $10", usage)
	}

	// The full lifecycle leaves a received/assessed/decided/executed trail.
	for _, entryType := range []audit.EntryType{
		audit.EntryActionReceived,
		audit.EntryRiskAssessed,
		audit.EntryDecisionMade,
		audit.EntryExecuted,
	} {
		if n := f.countEntries(t, entryType); n != 1 {
			t.Errorf("%s entries = %d, want 1", entryType, n)
		}
	}
}

func TestSubmit_OversizedTradeRejected(t *testing.T) {
	f := newEngineFixture(t, 3)
	ctx := context.Background()

	executed := false
	f.engine.RegisterHandler("swap_tokens", func(ctx context.Context, action *autonomy.Action) (string, error) {
		executed = true
		return "", nil
	})

	// Default max trade size is $500.
	decision, err := f.engine.Submit(ctx, tradeAction(50000, false))

	var rejected *autonomy.RejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("Submit() error = %v, want RejectedError", err)
	}
	if decision == nil || decision.Outcome != autonomy.OutcomeReject {
		t.Fatalf("decision = %+v, want reject", decision)
	}
	if executed {
		t.Error("rejected action was executed")
	}
	if len(rejected.Violations) == 0 {
		t.Error("RejectedError carries no violations")
	}

	if n := f.countEntries(t, audit.EntryBoundaryViolation); n != 1 {
		t.Errorf("boundary_violation entries = %d, want 1", n)
	}
	if usage := f.engine.Usage(); usage.Trades != 0 {
		t.Errorf("Trades = %d after reject, want 0", usage.Trades)
	}
}

func TestSubmit_QueuedThenApproved(t *testing.T) {
	f := newEngineFixture(t, 3)
	ctx := context.Background()

	f.engine.RegisterHandler("swap_tokens", func(ctx context.Context, action *autonomy.Action) (string, error) {
		return "swapped", nil
	})

	// Over the $50 auto-expense cap: queues even at level 3.
	decision, err := f.engine.Submit(ctx, tradeAction(300, true))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if decision.Outcome != autonomy.OutcomeQueueApproval {
		t.Fatalf("Outcome = %v (reason %s), want queue_approval", decision.Outcome, decision.Reason)
	}

	pending := f.engine.PendingApprovals(ctx)
	if len(pending) != 1 {
		t.Fatalf("PendingApprovals() = %d requests, want 1", len(pending))
	}

	result, err := f.engine.Approve(ctx, pending[0].ID, "operator", "fine")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if !result.Success {
		t.Errorf("result = %+v, want success", result)
	}
	if decision.Approver != "operator" || decision.ApprovedAt == nil {
		t.Errorf("decision approver = %q / %v", decision.Approver, decision.ApprovedAt)
	}

	// Approving the same request again is a no-op.
	if _, err := f.engine.Approve(ctx, pending[0].ID, "operator", "again"); !errors.Is(err, autonomy.ErrNotPending) {
		t.Errorf("second Approve() error = %v, want ErrNotPending", err)
	}
}

func TestSubmit_QueuedRequestExpires(t *testing.T) {
	f := newEngineFixture(t, 3)
	ctx := context.Background()

	if _, err := f.engine.Submit(ctx, tradeAction(300, true)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	f.advance(25 * time.Hour)

	if pending := f.engine.PendingApprovals(ctx); len(pending) != 0 {
		t.Errorf("PendingApprovals() after 25h = %d, want 0", len(pending))
	}
	if n := f.countEntries(t, audit.EntryExpired); n != 1 {
		t.Errorf("expired entries = %d, want 1", n)
	}
}

func TestSubmit_LevelOneQueuesEverything(t *testing.T) {
	f := newEngineFixture(t, 1)
	ctx := context.Background()

	executed := false
	f.engine.RegisterHandler("swap_tokens", func(ctx context.Context, action *autonomy.Action) (string, error) {
		executed = true
		return "", nil
	})

	decision, err := f.engine.Submit(ctx, tradeAction(5, true))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if decision.Outcome != autonomy.OutcomeQueueApproval {
		t.Errorf("Outcome = %v, want queue_approval at level 1", decision.Outcome)
	}
	if executed {
		t.Error("handler ran at autonomy level 1")
	}
}

func TestSubmit_HandlerFailureRollsBack(t *testing.T) {
	f := newEngineFixture(t, 3)
	ctx := context.Background()

	f.engine.RegisterHandler("swap_tokens", func(ctx context.Context, action *autonomy.Action) (string, error) {
		return "", errors.New("exchange down")
	})
	rolledBack := false
	f.engine.RegisterReverser("swap_tokens", func(ctx context.Context, action *autonomy.Action, cp *rollback.Checkpoint) error {
		rolledBack = true
		return nil
	})

	// A handler failure is audited and rolled back, not surfaced as a
	// Submit error.
	decision, err := f.engine.Submit(ctx, tradeAction(10, true))
	if err != nil {
		t.Fatalf("Submit() error = %v, want nil on handler failure", err)
	}
	if decision.Outcome != autonomy.OutcomeAutoExecute {
		t.Fatalf("Outcome = %v", decision.Outcome)
	}
	if !rolledBack {
		t.Error("reverser never ran")
	}

	if n := f.countEntries(t, audit.EntryExecutionFailed); n != 1 {
		t.Errorf("execution_failed entries = %d, want 1", n)
	}
	if n := f.countEntries(t, audit.EntryRolledBack); n != 1 {
		t.Errorf("rolled_back entries = %d, want 1", n)
	}
	if usage := f.engine.Usage(); usage.Trades != 0 {
		t.Errorf("Trades = %d after failed execution, want 0", usage.Trades)
	}
}

func TestSubmit_SmallBuildAutoExecutes(t *testing.T) {
	f := newEngineFixture(t, 3)
	ctx := context.Background()

	f.engine.RegisterHandler("commit_code", func(ctx context.Context, action *autonomy.Action) (string, error) {
		return "committed", nil
	})

	action := autonomy.NewAction(autonomy.EngineBuild, autonomy.CategoryBuild,
		"commit_code", "small fix", autonomy.ActionMetadata{
			Reversible:   true,
			LinesChanged: 40,
			FilesChanged: 2,
			Paths:        []string{"src/handler.go"},
		})

	decision, err := f.engine.Submit(ctx, action)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if decision.Outcome != autonomy.OutcomeAutoExecute {
		t.Errorf("Outcome = %v (score %.1f, reason %s), want auto_execute",
			decision.Outcome, decision.Assessment.Score, decision.Reason)
	}
	if usage := f.engine.Usage(); usage.Builds != 1 {
		t.Errorf("Builds = %d, want 1", usage.Builds)
	}
}

func TestBatchApproveAndReject(t *testing.T) {
	f := newEngineFixture(t, 3)
	ctx := context.Background()

	f.engine.RegisterHandler("swap_tokens", func(ctx context.Context, action *autonomy.Action) (string, error) {
		return "", nil
	})

	f.engine.Submit(ctx, tradeAction(300, true))
	f.engine.Submit(ctx, tradeAction(310, true))
	f.engine.Submit(ctx, tradeAction(320, true))

	pending := f.engine.PendingApprovals(ctx)
	if len(pending) != 3 {
		t.Fatalf("PendingApprovals() = %d, want 3", len(pending))
	}

	approved := f.engine.BatchApprove(ctx, []string{pending[0].ID, pending[1].ID}, "operator", "bulk")
	if approved[0].Err != nil || approved[1].Err != nil {
		t.Errorf("BatchApprove() errors = %v, %v", approved[0].Err, approved[1].Err)
	}
	if approved[0].Execution == nil || !approved[0].Execution.Success {
		t.Errorf("BatchApprove() execution = %+v", approved[0].Execution)
	}

	rejectedResults := f.engine.BatchReject(ctx, []string{pending[2].ID, "bogus"}, "not needed", "operator")
	if rejectedResults[0].Err != nil {
		t.Errorf("BatchReject() valid id error = %v", rejectedResults[0].Err)
	}
	if !errors.Is(rejectedResults[1].Err, autonomy.ErrNotPending) {
		t.Errorf("BatchReject() bogus id error = %v, want ErrNotPending", rejectedResults[1].Err)
	}

	if pending := f.engine.PendingApprovals(ctx); len(pending) != 0 {
		t.Errorf("PendingApprovals() after batch = %d, want 0", len(pending))
	}
}

func TestUpdateBoundariesTakesEffect(t *testing.T) {
	f := newEngineFixture(t, 3)
	ctx := context.Background()

	f.engine.RegisterHandler("swap_tokens", func(ctx context.Context, action *autonomy.Action) (string, error) {
		return "", nil
	})

	// $200 passes under the default $500 trade cap (queued over the
	// expense cap, but not rejected).
	decision, _ := f.engine.Submit(ctx, tradeAction(200, true))
	if decision.Outcome == autonomy.OutcomeReject {
		t.Fatalf("Outcome = reject before tightening (reason %s)", decision.Reason)
	}

	tightened := f.engine.Boundaries()
	tightened.MaxTradeSizeUSD = 100
	f.engine.UpdateBoundaries(tightened)

	_, err := f.engine.Submit(ctx, tradeAction(200, true))
	var rejected *autonomy.RejectedError
	if !errors.As(err, &rejected) {
		t.Errorf("Submit() after tightening error = %v, want RejectedError", err)
	}
}

func TestVerifyAuditAfterLifecycle(t *testing.T) {
	f := newEngineFixture(t, 3)
	ctx := context.Background()

	f.engine.RegisterHandler("swap_tokens", func(ctx context.Context, action *autonomy.Action) (string, error) {
		return "", nil
	})

	f.engine.Submit(ctx, tradeAction(10, true))
	f.engine.Submit(ctx, tradeAction(50000, false))
	decision, _ := f.engine.Submit(ctx, tradeAction(300, true))
	_ = decision

	for _, request := range f.engine.PendingApprovals(ctx) {
		f.engine.Approve(ctx, request.ID, "operator", "")
	}

	result, err := f.engine.VerifyAudit(ctx)
	if err != nil {
		t.Fatalf("VerifyAudit() error = %v", err)
	}
	if !result.Valid {
		t.Errorf("audit chain invalid after lifecycle: %s (index %d)", result.Reason, result.BrokenIndex)
	}
	if result.Entries < 10 {
		t.Errorf("Entries = %d, want a full lifecycle trail", result.Entries)
	}
}

func TestApprove_AdmissionRefusalReturnsRequestToQueue(t *testing.T) {
	// One start per minute: the auto-executed trade consumes the slot.
	f := newRateLimitedFixture(t, 3, 60)
	ctx := context.Background()

	handlerRuns := 0
	f.engine.RegisterHandler("swap_tokens", func(ctx context.Context, action *autonomy.Action) (string, error) {
		handlerRuns++
		return "swapped", nil
	})

	if _, err := f.engine.Submit(ctx, tradeAction(10, true)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if handlerRuns != 1 {
		t.Fatalf("handler runs after auto-execute = %d, want 1", handlerRuns)
	}

	if _, err := f.engine.Submit(ctx, tradeAction(300, true)); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	pending := f.engine.PendingApprovals(ctx)
	if len(pending) != 1 {
		t.Fatalf("PendingApprovals() = %d, want 1", len(pending))
	}

	_, err := f.engine.Approve(ctx, pending[0].ID, "operator", "go")
	if !errors.Is(err, autonomy.ErrRateLimited) {
		t.Fatalf("Approve() error = %v, want ErrRateLimited", err)
	}
	if handlerRuns != 1 {
		t.Errorf("handler ran during refused admission (%d runs)", handlerRuns)
	}

	// The refused request is back in the queue, not stranded as approved.
	pending = f.engine.PendingApprovals(ctx)
	if len(pending) != 1 {
		t.Fatalf("PendingApprovals() after refusal = %d, want 1", len(pending))
	}

	f.advance(2 * time.Minute)

	result, err := f.engine.Approve(ctx, pending[0].ID, "operator", "retry")
	if err != nil {
		t.Fatalf("Approve() after cooldown error = %v", err)
	}
	if !result.Success {
		t.Errorf("result = %+v, want success", result)
	}
	if handlerRuns != 2 {
		t.Errorf("handler runs = %d, want 2", handlerRuns)
	}
	if pending := f.engine.PendingApprovals(ctx); len(pending) != 0 {
		t.Errorf("PendingApprovals() after retry = %d, want 0", len(pending))
	}
}

type recordingDecisionMetrics struct {
	outcomes   []string
	categories []string
	scores     []float64
}

func (r *recordingDecisionMetrics) RecordDecision(outcome, category string, riskScore float64) {
	r.outcomes = append(r.outcomes, outcome)
	r.categories = append(r.categories, category)
	r.scores = append(r.scores, riskScore)
}

func TestSubmit_RecordsDecisionMetrics(t *testing.T) {
	recorder := &recordingDecisionMetrics{}
	f := newEngineFixture(t, 3, WithMetrics(recorder))
	ctx := context.Background()

	f.engine.RegisterHandler("swap_tokens", func(ctx context.Context, action *autonomy.Action) (string, error) {
		return "", nil
	})

	f.engine.Submit(ctx, tradeAction(10, true))
	f.engine.Submit(ctx, tradeAction(50000, false))

	want := []string{string(autonomy.OutcomeAutoExecute), string(autonomy.OutcomeReject)}
	if len(recorder.outcomes) != len(want) {
		t.Fatalf("recorded outcomes = %v, want %v", recorder.outcomes, want)
	}
	for i := range want {
		if recorder.outcomes[i] != want[i] {
			t.Errorf("outcomes[%d] = %q, want %q", i, recorder.outcomes[i], want[i])
		}
		if recorder.categories[i] != string(autonomy.CategoryTrading) {
			t.Errorf("categories[%d] = %q, want trading", i, recorder.categories[i])
		}
	}
	if recorder.scores[0] <= 0 || recorder.scores[1] <= recorder.scores[0] {
		t.Errorf("scores = %v, want ascending positive risk", recorder.scores)
	}
}
