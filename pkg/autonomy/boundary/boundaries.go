// Package boundary holds the configured limits that constrain autonomous
// behavior and the daily usage counters they are checked against.
//
// The checker is read-only: usage counters are incremented only after a
// confirmed successful execution, never during a check. A failed check is a
// hard boundary violation and forces the decision outcome to reject;
// soft thresholds (like the auto-expense cap) feed the risk assessor instead.
package boundary

// Boundaries is operator-owned configuration, mutable at runtime through
// Store.UpdateBoundaries. Zero-valued numeric limits are not enforced.
type Boundaries struct {
	// Spending limits (all categories).
	// MaxAutoExpenseUSD is a soft ceiling: actions above it are not
	// rejected, they lose eligibility for unsupervised execution. It is
	// consumed by the risk assessor, not the boundary checker.
	MaxAutoExpenseUSD float64 `yaml:"max_auto_expense_usd" json:"max_auto_expense_usd"`

	// MaxDailySpendUSD caps cumulative spending per UTC day.
	MaxDailySpendUSD float64 `yaml:"max_daily_spend_usd" json:"max_daily_spend_usd"`

	// Trading limits.
	MaxTradeSizeUSD        float64 `yaml:"max_trade_size_usd" json:"max_trade_size_usd"`
	MaxTradesPerDay        int     `yaml:"max_trades_per_day" json:"max_trades_per_day"`
	MaxDailyTradingLossPct float64 `yaml:"max_daily_trading_loss_pct" json:"max_daily_trading_loss_pct"`
	MinTreasuryUSD         float64 `yaml:"min_treasury_usd" json:"min_treasury_usd"`

	// Content limits.
	MaxPostsPerDay int `yaml:"max_posts_per_day" json:"max_posts_per_day"`

	// Build/deployment limits.
	MaxBuildsPerDay int      `yaml:"max_builds_per_day" json:"max_builds_per_day"`
	MaxCommitLines  int      `yaml:"max_commit_lines" json:"max_commit_lines"`
	MaxFilesChanged int      `yaml:"max_files_changed" json:"max_files_changed"`
	AllowedPaths    []string `yaml:"allowed_paths" json:"allowed_paths"`
	BlockedPaths    []string `yaml:"blocked_paths" json:"blocked_paths"`

	// ActiveHoursStart/End define the UTC hour window (inclusive start,
	// exclusive end) in which autonomous actions may run. Start == End
	// disables the window check. Windows may wrap midnight (e.g. 22–6).
	ActiveHoursStart int `yaml:"active_hours_start" json:"active_hours_start"`
	ActiveHoursEnd   int `yaml:"active_hours_end" json:"active_hours_end"`
}

// DefaultBoundaries returns conservative starting limits. Operators are
// expected to tune these per deployment.
func DefaultBoundaries() Boundaries {
	return Boundaries{
		MaxAutoExpenseUSD:      50,
		MaxDailySpendUSD:       500,
		MaxTradeSizeUSD:        500,
		MaxTradesPerDay:        20,
		MaxDailyTradingLossPct: 5,
		MinTreasuryUSD:         1000,
		MaxPostsPerDay:         10,
		MaxBuildsPerDay:        25,
		MaxCommitLines:         1500,
		MaxFilesChanged:        40,
		BlockedPaths:           []string{".env", "secrets/", ".ssh/"},
	}
}
