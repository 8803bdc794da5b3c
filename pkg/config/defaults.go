package config

import (
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy/boundary"
)

// Default values for configuration fields.
const (
	// Engine defaults
	DefaultAutonomyLevel = 2

	// Queue defaults
	DefaultQueueAutoExpireHours       = 24
	DefaultQueueEscalateAfterFraction = 0.5

	// Executor defaults
	DefaultExecutorMaxPerHour      = 60
	DefaultExecutorMaxConcurrent   = 4
	DefaultExecutorFailureCooldown = 5 * time.Minute
	DefaultExecutorTimeout         = 30 * time.Second
	DefaultExecutorMaxRetries      = 2
	DefaultExecutorRetryBackoff    = 500 * time.Millisecond

	// Audit defaults
	DefaultAuditBackend          = "memory"
	DefaultAuditSQLitePath       = "./data/audit.db"
	DefaultAuditMemoryMaxEntries = 100000
	DefaultAuditRetentionDays    = 90
	DefaultAuditPruneSchedule    = "0 3 * * *"
	DefaultAuditArchivePath      = "./data/audit-archive"

	// State defaults
	DefaultStateBackend    = "memory"
	DefaultStateSQLitePath = "./data/state.db"

	// Policy defaults
	DefaultPolicyMode            = "static"
	DefaultPolicyFileDebounce    = 100 * time.Millisecond
	DefaultPolicyGitBranch       = "main"
	DefaultPolicyGitPath         = "boundaries.yaml"
	DefaultPolicyGitPollInterval = 60 * time.Second
	DefaultPolicyGitTimeout      = 30 * time.Second

	// Telemetry defaults
	DefaultLoggingLevel         = "info"
	DefaultLoggingFormat        = "json"
	DefaultMetricsEnabled       = true
	DefaultMetricsListenAddress = "127.0.0.1:9090"
	DefaultMetricsPath          = "/metrics"
	DefaultMetricsNamespace     = "gicm"
	DefaultMetricsSubsystem     = "autonomy"
	DefaultTracingEnabled       = false
	DefaultTracingEndpoint      = "localhost:4317"
	DefaultTracingServiceName   = "gicm-autonomy"
	DefaultTracingSampler       = "ratio"
	DefaultTracingSampleRatio   = 0.1
)

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Engine defaults
	if cfg.Engine.AutonomyLevel == 0 {
		cfg.Engine.AutonomyLevel = DefaultAutonomyLevel
	}

	// Boundary defaults: an all-zero boundary set means the operator did
	// not configure any limits, which is never intended for an autonomy
	// control plane. Start from the conservative built-in set instead.
	if boundariesUnset(&cfg.Boundaries) {
		cfg.Boundaries = boundary.DefaultBoundaries()
	}

	// Queue defaults
	if cfg.Queue.AutoExpireHours == 0 {
		cfg.Queue.AutoExpireHours = DefaultQueueAutoExpireHours
	}
	if cfg.Queue.EscalateAfterFraction == 0 {
		cfg.Queue.EscalateAfterFraction = DefaultQueueEscalateAfterFraction
	}

	// Executor defaults
	if cfg.Executor.MaxPerHour == 0 {
		cfg.Executor.MaxPerHour = DefaultExecutorMaxPerHour
	}
	if cfg.Executor.MaxConcurrent == 0 {
		cfg.Executor.MaxConcurrent = DefaultExecutorMaxConcurrent
	}
	if cfg.Executor.FailureCooldown == 0 {
		cfg.Executor.FailureCooldown = DefaultExecutorFailureCooldown
	}
	if cfg.Executor.Timeout == 0 {
		cfg.Executor.Timeout = DefaultExecutorTimeout
	}
	if cfg.Executor.MaxRetries == 0 {
		cfg.Executor.MaxRetries = DefaultExecutorMaxRetries
	}
	if cfg.Executor.RetryBackoff == 0 {
		cfg.Executor.RetryBackoff = DefaultExecutorRetryBackoff
	}

	// Audit defaults
	if cfg.Audit.Backend == "" {
		cfg.Audit.Backend = DefaultAuditBackend
	}
	if cfg.Audit.Path == "" {
		cfg.Audit.Path = DefaultAuditSQLitePath
	}
	if cfg.Audit.MaxEntries == 0 {
		cfg.Audit.MaxEntries = DefaultAuditMemoryMaxEntries
	}
	if cfg.Audit.Retention.RetentionDays == 0 {
		cfg.Audit.Retention.RetentionDays = DefaultAuditRetentionDays
	}
	if cfg.Audit.Retention.PruneSchedule == "" {
		cfg.Audit.Retention.PruneSchedule = DefaultAuditPruneSchedule
	}
	if cfg.Audit.Retention.ArchivePath == "" {
		cfg.Audit.Retention.ArchivePath = DefaultAuditArchivePath
	}

	// State defaults
	if cfg.State.Backend == "" {
		cfg.State.Backend = DefaultStateBackend
	}
	if cfg.State.Path == "" {
		cfg.State.Path = DefaultStateSQLitePath
	}

	// Policy defaults
	if cfg.Policy.Mode == "" {
		cfg.Policy.Mode = DefaultPolicyMode
	}
	if cfg.Policy.File.DebounceInterval == 0 {
		cfg.Policy.File.DebounceInterval = DefaultPolicyFileDebounce
	}
	if cfg.Policy.Git.Branch == "" {
		cfg.Policy.Git.Branch = DefaultPolicyGitBranch
	}
	if cfg.Policy.Git.Path == "" {
		cfg.Policy.Git.Path = DefaultPolicyGitPath
	}
	if cfg.Policy.Git.PollInterval == 0 {
		cfg.Policy.Git.PollInterval = DefaultPolicyGitPollInterval
	}
	if cfg.Policy.Git.Timeout == 0 {
		cfg.Policy.Git.Timeout = DefaultPolicyGitTimeout
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.ListenAddress == "" {
		cfg.Telemetry.Metrics.ListenAddress = DefaultMetricsListenAddress
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
}

// boundariesUnset reports whether no boundary field was configured at all.
// Boundaries holds path slices, so it cannot be compared against a zero
// value directly.
func boundariesUnset(b *boundary.Boundaries) bool {
	return b.MaxAutoExpenseUSD == 0 &&
		b.MaxDailySpendUSD == 0 &&
		b.MaxTradeSizeUSD == 0 &&
		b.MaxTradesPerDay == 0 &&
		b.MaxDailyTradingLossPct == 0 &&
		b.MinTreasuryUSD == 0 &&
		b.MaxPostsPerDay == 0 &&
		b.MaxBuildsPerDay == 0 &&
		b.MaxCommitLines == 0 &&
		b.MaxFilesChanged == 0 &&
		len(b.AllowedPaths) == 0 &&
		len(b.BlockedPaths) == 0 &&
		b.ActiveHoursStart == 0 &&
		b.ActiveHoursEnd == 0
}
