package boundary

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/state"
)

// Store owns the current Boundaries and the daily usage counters. It is the
// single writer for both: updates go through UpdateBoundaries and
// RecordExecution, reads take the shared lock. Risk assessment and boundary
// checks only ever read.
type Store struct {
	mu         sync.RWMutex
	boundaries Boundaries
	usage      DailyUsage

	backend state.Backend // optional usage persistence
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithBackend persists usage snapshots through the given state backend and
// restores the current day's counters at startup.
func WithBackend(backend state.Backend) Option {
	return func(s *Store) { s.backend = backend }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a boundary store with the given limits.
func NewStore(boundaries Boundaries, opts ...Option) *Store {
	s := &Store{
		boundaries: boundaries,
		logger:     slog.Default().With("component", "boundary.store"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.usage = DailyUsage{Day: dayStamp(s.now())}

	if s.backend != nil {
		s.restoreUsage()
	}

	return s
}

// Boundaries returns a copy of the current limits.
func (s *Store) Boundaries() Boundaries {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.boundaries
}

// UpdateBoundaries replaces the current limits. This is the only mutation
// path for boundary configuration.
func (s *Store) UpdateBoundaries(boundaries Boundaries) {
	s.mu.Lock()
	s.boundaries = boundaries
	s.mu.Unlock()

	s.logger.Info("boundaries updated",
		"max_daily_spend_usd", boundaries.MaxDailySpendUSD,
		"max_trade_size_usd", boundaries.MaxTradeSizeUSD,
		"max_posts_per_day", boundaries.MaxPostsPerDay,
	)
}

// Usage returns the counters for the current UTC day. A day rollover is
// applied on read so callers never see a stale window.
func (s *Store) Usage() DailyUsage {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.usage = s.usage.rolledOver(s.now())
	return s.usage
}

// RecordExecution increments usage for a confirmed successful execution.
func (s *Store) RecordExecution(ctx context.Context, category autonomy.Category, amountUSD float64) {
	s.mu.Lock()

	s.usage = s.usage.rolledOver(s.now())
	switch category {
	case autonomy.CategoryTrading:
		s.usage.Trades++
	case autonomy.CategoryContent:
		s.usage.ContentItems++
	case autonomy.CategoryBuild, autonomy.CategoryDeployment:
		s.usage.Builds++
	}
	s.usage.SpentUSD += amountUSD

	snapshot := s.usage
	s.mu.Unlock()

	if s.backend != nil {
		s.persistUsage(ctx, snapshot)
	}
}

// persistUsage saves a usage snapshot. Persistence failures are logged, not
// propagated: the in-memory counters remain authoritative.
func (s *Store) persistUsage(ctx context.Context, usage DailyUsage) {
	value, err := json.Marshal(usage)
	if err != nil {
		s.logger.Error("marshal usage snapshot", "error", err)
		return
	}

	record := &state.Record{Kind: state.KindUsage, Key: usage.Day, Value: value}
	if err := s.backend.Save(ctx, record); err != nil {
		s.logger.Error("persist usage snapshot", "error", err, "day", usage.Day)
	}
}

// restoreUsage loads the current day's counters from the backend at startup.
func (s *Store) restoreUsage() {
	day := dayStamp(s.now())

	record, err := s.backend.Load(context.Background(), state.KindUsage, day)
	if err != nil {
		s.logger.Error("restore usage snapshot", "error", err, "day", day)
		return
	}
	if record == nil {
		return
	}

	var usage DailyUsage
	if err := json.Unmarshal(record.Value, &usage); err != nil {
		s.logger.Error("decode usage snapshot", "error", err, "day", day)
		return
	}

	s.mu.Lock()
	s.usage = usage
	s.mu.Unlock()

	s.logger.Info("restored daily usage",
		"day", day,
		"trades", usage.Trades,
		"spent_usd", usage.SpentUSD,
	)
}
