package boundary

import (
	"fmt"
	"strings"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy"
)

// warnFraction is the usage fraction above which a near-limit warning is
// emitted for daily caps.
const warnFraction = 0.8

// CheckResult is the outcome of checking one action against the boundaries.
type CheckResult struct {
	Passed     bool     `json:"passed"`
	Violations []string `json:"violations,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Check evaluates every limit relevant to the action's category against
// current daily usage plus the action's own estimated impact. It never
// mutates usage.
func (s *Store) Check(action *autonomy.Action) *CheckResult {
	s.mu.RLock()
	b := s.boundaries
	s.mu.RUnlock()
	usage := s.Usage()

	result := &CheckResult{Passed: true}

	s.checkSpending(&b, usage, action, result)
	s.checkActiveHours(&b, result)

	switch action.Category {
	case autonomy.CategoryTrading:
		s.checkTrading(&b, usage, action, result)
	case autonomy.CategoryContent:
		s.checkContent(&b, usage, result)
	case autonomy.CategoryBuild, autonomy.CategoryDeployment:
		s.checkCode(&b, usage, action, result)
	}

	result.Passed = len(result.Violations) == 0
	return result
}

// checkSpending enforces the daily spend cap across all categories.
func (s *Store) checkSpending(b *Boundaries, usage DailyUsage, action *autonomy.Action, result *CheckResult) {
	if b.MaxDailySpendUSD <= 0 {
		return
	}

	projected := usage.SpentUSD + action.Metadata.EstimatedValueUSD
	if projected > b.MaxDailySpendUSD {
		result.Violations = append(result.Violations, "max_daily_spend")
		return
	}
	if projected > b.MaxDailySpendUSD*warnFraction {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("daily spend at %.0f%% of cap", projected/b.MaxDailySpendUSD*100))
	}
}

// checkActiveHours enforces the UTC active-hours window. Start == End
// disables the check; windows may wrap midnight.
func (s *Store) checkActiveHours(b *Boundaries, result *CheckResult) {
	if b.ActiveHoursStart == b.ActiveHoursEnd {
		return
	}

	hour := s.now().UTC().Hour()
	inWindow := false
	if b.ActiveHoursStart < b.ActiveHoursEnd {
		inWindow = hour >= b.ActiveHoursStart && hour < b.ActiveHoursEnd
	} else {
		inWindow = hour >= b.ActiveHoursStart || hour < b.ActiveHoursEnd
	}

	if !inWindow {
		result.Violations = append(result.Violations, "outside_active_hours")
	}
}

// checkTrading enforces trade size, daily trade count, treasury floor, and
// daily loss limits.
func (s *Store) checkTrading(b *Boundaries, usage DailyUsage, action *autonomy.Action, result *CheckResult) {
	value := action.Metadata.EstimatedValueUSD

	if b.MaxTradeSizeUSD > 0 && value > b.MaxTradeSizeUSD {
		result.Violations = append(result.Violations, "max_trade_size")
	}

	if b.MaxTradesPerDay > 0 {
		if usage.Trades+1 > b.MaxTradesPerDay {
			result.Violations = append(result.Violations, "max_trades_per_day")
		} else if float64(usage.Trades+1) > float64(b.MaxTradesPerDay)*warnFraction {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("trade count at %d of %d", usage.Trades+1, b.MaxTradesPerDay))
		}
	}

	// Treasury balance and realized daily loss are runtime observations
	// supplied by the trading engine with each action.
	if b.MinTreasuryUSD > 0 {
		if treasury, ok := paramFloat(action, "treasury_balance_usd"); ok && treasury-value < b.MinTreasuryUSD {
			result.Violations = append(result.Violations, "min_treasury_balance")
		}
	}
	if b.MaxDailyTradingLossPct > 0 {
		if lossPct, ok := paramFloat(action, "daily_loss_pct"); ok && lossPct > b.MaxDailyTradingLossPct {
			result.Violations = append(result.Violations, "max_daily_trading_loss")
		}
	}
}

// checkContent enforces the daily post cap.
func (s *Store) checkContent(b *Boundaries, usage DailyUsage, result *CheckResult) {
	if b.MaxPostsPerDay <= 0 {
		return
	}

	if usage.ContentItems+1 > b.MaxPostsPerDay {
		result.Violations = append(result.Violations, "max_posts_per_day")
	} else if float64(usage.ContentItems+1) > float64(b.MaxPostsPerDay)*warnFraction {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("post count at %d of %d", usage.ContentItems+1, b.MaxPostsPerDay))
	}
}

// checkCode enforces build count, churn, and path limits for code-related
// actions.
func (s *Store) checkCode(b *Boundaries, usage DailyUsage, action *autonomy.Action, result *CheckResult) {
	if b.MaxBuildsPerDay > 0 && usage.Builds+1 > b.MaxBuildsPerDay {
		result.Violations = append(result.Violations, "max_builds_per_day")
	}
	if b.MaxCommitLines > 0 && action.Metadata.LinesChanged > b.MaxCommitLines {
		result.Violations = append(result.Violations, "max_commit_lines")
	}
	if b.MaxFilesChanged > 0 && action.Metadata.FilesChanged > b.MaxFilesChanged {
		result.Violations = append(result.Violations, "max_files_changed")
	}

	for _, path := range action.Metadata.Paths {
		if pathBlocked(b, path) {
			result.Violations = append(result.Violations, "blocked_path")
			break
		}
	}
	if len(b.AllowedPaths) > 0 {
		for _, path := range action.Metadata.Paths {
			if !pathAllowed(b, path) {
				result.Violations = append(result.Violations, "path_not_allowed")
				break
			}
		}
	}
}

// pathBlocked reports whether path matches any entry in the deny list.
func pathBlocked(b *Boundaries, path string) bool {
	for _, blocked := range b.BlockedPaths {
		if strings.HasPrefix(path, blocked) || strings.Contains(path, "/"+blocked) {
			return true
		}
	}
	return false
}

// pathAllowed reports whether path falls under any entry in the allow list.
func pathAllowed(b *Boundaries, path string) bool {
	for _, allowed := range b.AllowedPaths {
		if strings.HasPrefix(path, allowed) {
			return true
		}
	}
	return false
}

// paramFloat extracts a numeric action parameter.
func paramFloat(action *autonomy.Action, key string) (float64, bool) {
	raw, ok := action.Parameters[key]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
