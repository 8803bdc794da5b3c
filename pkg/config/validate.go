package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "engine.autonomy_level").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateEngine(&cfg.Engine)...)
	errs = append(errs, validateBoundaries(cfg)...)
	errs = append(errs, validateRisk(&cfg.Risk)...)
	errs = append(errs, validateQueue(&cfg.Queue)...)
	errs = append(errs, validateExecutor(&cfg.Executor)...)
	errs = append(errs, validateAudit(&cfg.Audit)...)
	errs = append(errs, validateState(&cfg.State)...)
	errs = append(errs, validatePolicy(&cfg.Policy)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateEngine(cfg *EngineConfig) []FieldError {
	var errs []FieldError
	if cfg.AutonomyLevel < 1 || cfg.AutonomyLevel > 4 {
		errs = append(errs, FieldError{
			Field:   "engine.autonomy_level",
			Message: fmt.Sprintf("must be between 1 and 4, got %d", cfg.AutonomyLevel),
		})
	}
	return errs
}

func validateBoundaries(cfg *Config) []FieldError {
	var errs []FieldError
	b := &cfg.Boundaries

	for field, value := range map[string]float64{
		"boundaries.max_auto_expense_usd":       b.MaxAutoExpenseUSD,
		"boundaries.max_daily_spend_usd":        b.MaxDailySpendUSD,
		"boundaries.max_trade_size_usd":         b.MaxTradeSizeUSD,
		"boundaries.max_daily_trading_loss_pct": b.MaxDailyTradingLossPct,
		"boundaries.min_treasury_usd":           b.MinTreasuryUSD,
	} {
		if value < 0 {
			errs = append(errs, FieldError{Field: field, Message: "must not be negative"})
		}
	}

	for field, value := range map[string]int{
		"boundaries.max_trades_per_day": b.MaxTradesPerDay,
		"boundaries.max_posts_per_day":  b.MaxPostsPerDay,
		"boundaries.max_builds_per_day": b.MaxBuildsPerDay,
		"boundaries.max_commit_lines":   b.MaxCommitLines,
		"boundaries.max_files_changed":  b.MaxFilesChanged,
	} {
		if value < 0 {
			errs = append(errs, FieldError{Field: field, Message: "must not be negative"})
		}
	}

	if b.ActiveHoursStart < 0 || b.ActiveHoursStart > 23 {
		errs = append(errs, FieldError{
			Field:   "boundaries.active_hours_start",
			Message: fmt.Sprintf("must be an hour between 0 and 23, got %d", b.ActiveHoursStart),
		})
	}
	if b.ActiveHoursEnd < 0 || b.ActiveHoursEnd > 24 {
		errs = append(errs, FieldError{
			Field:   "boundaries.active_hours_end",
			Message: fmt.Sprintf("must be an hour between 0 and 24, got %d", b.ActiveHoursEnd),
		})
	}

	return errs
}

func validateRisk(cfg *RiskConfig) []FieldError {
	var errs []FieldError
	if len(cfg.Bands) == 0 {
		return nil // built-in default bands
	}

	validLevels := map[string]bool{"safe": true, "low": true, "medium": true, "high": true, "critical": true}

	prev := 0.0
	for i, band := range cfg.Bands {
		field := fmt.Sprintf("risk.bands[%d]", i)
		if !validLevels[band.Level] {
			errs = append(errs, FieldError{
				Field:   field + ".level",
				Message: fmt.Sprintf("unknown risk level %q", band.Level),
			})
		}
		if band.Max <= prev && i > 0 {
			errs = append(errs, FieldError{
				Field:   field + ".max",
				Message: "bands must be strictly increasing",
			})
		}
		prev = band.Max
	}
	if prev != 100 {
		errs = append(errs, FieldError{
			Field:   "risk.bands",
			Message: fmt.Sprintf("last band must end at 100, got %v", prev),
		})
	}

	return errs
}

func validateQueue(cfg *QueueConfig) []FieldError {
	var errs []FieldError
	if cfg.AutoExpireHours <= 0 {
		errs = append(errs, FieldError{
			Field:   "queue.auto_expire_hours",
			Message: fmt.Sprintf("must be positive, got %d", cfg.AutoExpireHours),
		})
	}
	if cfg.EscalateAfterFraction <= 0 || cfg.EscalateAfterFraction >= 1 {
		errs = append(errs, FieldError{
			Field:   "queue.escalate_after_fraction",
			Message: fmt.Sprintf("must be strictly between 0 and 1, got %v", cfg.EscalateAfterFraction),
		})
	}
	return errs
}

func validateExecutor(cfg *ExecutorConfig) []FieldError {
	var errs []FieldError
	if cfg.MaxPerHour < 0 {
		errs = append(errs, FieldError{Field: "executor.max_per_hour", Message: "must not be negative"})
	}
	if cfg.MaxConcurrent < 1 {
		errs = append(errs, FieldError{
			Field:   "executor.max_concurrent",
			Message: fmt.Sprintf("must be at least 1, got %d", cfg.MaxConcurrent),
		})
	}
	if cfg.FailureCooldown < 0 {
		errs = append(errs, FieldError{Field: "executor.failure_cooldown", Message: "must not be negative"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{Field: "executor.timeout", Message: "must be positive"})
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, FieldError{Field: "executor.max_retries", Message: "must not be negative"})
	}
	if cfg.RetryBackoff < 0 {
		errs = append(errs, FieldError{Field: "executor.retry_backoff", Message: "must not be negative"})
	}
	return errs
}

func validateAudit(cfg *AuditConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "audit.backend",
			Message: fmt.Sprintf("must be \"memory\" or \"sqlite\", got %q", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.Path == "" {
		errs = append(errs, FieldError{Field: "audit.path", Message: "required for sqlite backend"})
	}
	if cfg.MaxEntries < 0 {
		errs = append(errs, FieldError{Field: "audit.max_entries", Message: "must not be negative"})
	}

	if cfg.Retention.Enabled {
		if cfg.Retention.RetentionDays <= 0 && cfg.Retention.MaxEntries <= 0 {
			errs = append(errs, FieldError{
				Field:   "audit.retention",
				Message: "retention_days or max_entries must be set when retention is enabled",
			})
		}
		if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "audit.retention.prune_schedule",
				Message: fmt.Sprintf("invalid cron expression: %v", err),
			})
		}
		if cfg.Retention.ArchiveBeforeDelete && cfg.Retention.ArchivePath == "" {
			errs = append(errs, FieldError{
				Field:   "audit.retention.archive_path",
				Message: "required when archive_before_delete is enabled",
			})
		}
	}

	return errs
}

func validateState(cfg *StateConfig) []FieldError {
	var errs []FieldError
	switch cfg.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{
			Field:   "state.backend",
			Message: fmt.Sprintf("must be \"memory\" or \"sqlite\", got %q", cfg.Backend),
		})
	}
	if cfg.Backend == "sqlite" && cfg.Path == "" {
		errs = append(errs, FieldError{Field: "state.path", Message: "required for sqlite backend"})
	}
	return errs
}

func validatePolicy(cfg *PolicyConfig) []FieldError {
	var errs []FieldError

	switch cfg.Mode {
	case "static":
	case "file":
		if cfg.File.Path == "" {
			errs = append(errs, FieldError{Field: "policy.file.path", Message: "required for file mode"})
		}
	case "git":
		if cfg.Git.Repository == "" {
			errs = append(errs, FieldError{Field: "policy.git.repository", Message: "required for git mode"})
		}
		if cfg.Git.PollInterval <= 0 {
			errs = append(errs, FieldError{Field: "policy.git.poll_interval", Message: "must be positive"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "policy.mode",
			Message: fmt.Sprintf("must be \"static\", \"file\", or \"git\", got %q", cfg.Mode),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be debug, info, warn, or error, got %q", cfg.Logging.Level),
		})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text, got %q", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "telemetry.metrics.listen_address", Message: "required when metrics are enabled"})
	}

	if cfg.Tracing.Enabled {
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "required when tracing is enabled"})
		}
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("must be always, never, or ratio, got %q", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.Sampler == "ratio" && (cfg.Tracing.SampleRatio <= 0 || cfg.Tracing.SampleRatio > 1) {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: fmt.Sprintf("must be in (0, 1], got %v", cfg.Tracing.SampleRatio),
			})
		}
	}

	return errs
}
