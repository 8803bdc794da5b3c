package config

import (
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy/boundary"
)

// Config is the root configuration structure for the autonomy control plane.
// It contains all sections: engine behavior, boundaries, risk scoring, the
// approval queue, the executor, audit storage and retention, state
// persistence, the boundary policy source, and telemetry.
type Config struct {
	// Engine contains engine-level behavior settings.
	Engine EngineConfig `yaml:"engine"`

	// Boundaries contains the hard and soft limits autonomous actions are
	// checked against. Ignored when a policy source is configured.
	Boundaries boundary.Boundaries `yaml:"boundaries"`

	// Risk contains risk scoring configuration.
	Risk RiskConfig `yaml:"risk"`

	// Queue contains approval queue configuration.
	Queue QueueConfig `yaml:"queue"`

	// Executor contains execution guard and retry configuration.
	Executor ExecutorConfig `yaml:"executor"`

	// Audit contains audit log storage and retention configuration.
	Audit AuditConfig `yaml:"audit"`

	// State contains persistence configuration for the approval queue and
	// usage counters.
	State StateConfig `yaml:"state"`

	// Policy contains the boundary policy source configuration.
	Policy PolicyConfig `yaml:"policy"`

	// Telemetry contains observability configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// EngineConfig contains engine-level behavior settings.
type EngineConfig struct {
	// AutonomyLevel sets how much may run without a human:
	// 1 everything queues, 2 safe-only auto, 3 up to medium risk auto,
	// 4 up to high risk auto.
	// Default: 2
	AutonomyLevel int `yaml:"autonomy_level"`
}

// RiskConfig contains risk scoring configuration.
type RiskConfig struct {
	// Bands maps score ranges to risk levels. Bands must be contiguous
	// from 0 and end at 100. Empty means the built-in default bands.
	Bands []BandConfig `yaml:"bands"`
}

// BandConfig is one score band.
type BandConfig struct {
	// Max is the band's inclusive upper score.
	Max float64 `yaml:"max"`

	// Level is the risk level assigned to scores in this band.
	// Options: "safe", "low", "medium", "high", "critical"
	Level string `yaml:"level"`
}

// QueueConfig contains approval queue configuration.
type QueueConfig struct {
	// AutoExpireHours is how long a queued request stays approvable.
	// Default: 24
	AutoExpireHours int `yaml:"auto_expire_hours"`

	// EscalateAfterFraction of the expiry window after which an
	// unreviewed request escalates (0 < f < 1).
	// Default: 0.5
	EscalateAfterFraction float64 `yaml:"escalate_after_fraction"`
}

// ExecutorConfig contains execution guard and retry configuration.
type ExecutorConfig struct {
	// MaxPerHour caps the execution start rate.
	// Default: 60
	MaxPerHour int `yaml:"max_per_hour"`

	// MaxConcurrent caps simultaneously running executions.
	// Default: 4
	MaxConcurrent int `yaml:"max_concurrent"`

	// FailureCooldown bars an action type after a failure.
	// Default: 5m
	FailureCooldown time.Duration `yaml:"failure_cooldown"`

	// Timeout bounds one handler invocation.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the retry count after the first failed attempt.
	// Default: 2
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the base delay before the first retry; doubled for
	// each subsequent retry.
	// Default: 500ms
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// AuditConfig contains audit log storage and retention configuration.
type AuditConfig struct {
	// Backend selects the audit store.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file (sqlite backend only).
	// Default: "./data/audit.db"
	Path string `yaml:"path"`

	// MaxEntries caps the in-memory store (memory backend only).
	// Default: 100000
	MaxEntries int `yaml:"max_entries"`

	// Retention contains pruning configuration.
	Retention RetentionConfig `yaml:"retention"`
}

// RetentionConfig contains audit pruning configuration.
type RetentionConfig struct {
	// Enabled controls whether the scheduled pruner runs.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// RetentionDays keeps entries younger than this many days.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`

	// MaxEntries caps total retained entries (0 = unlimited).
	// Default: 0
	MaxEntries int64 `yaml:"max_entries"`

	// PruneSchedule is the cron expression for scheduled pruning.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`

	// ArchiveBeforeDelete writes pruned entries to a JSONL archive
	// before deletion so full-history verification stays possible.
	// Default: false
	ArchiveBeforeDelete bool `yaml:"archive_before_delete"`

	// ArchivePath is the directory archives are written to.
	// Default: "./data/audit-archive"
	ArchivePath string `yaml:"archive_path"`
}

// StateConfig contains persistence configuration for queue and usage state.
type StateConfig struct {
	// Backend selects the state store.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// Path is the SQLite database file (sqlite backend only).
	// Default: "./data/state.db"
	Path string `yaml:"path"`
}

// PolicyConfig contains the boundary policy source configuration.
type PolicyConfig struct {
	// Mode selects where boundaries come from.
	// Options: "static" (the boundaries section of this file),
	// "file" (watched YAML document), "git" (polled repository)
	// Default: "static"
	Mode string `yaml:"mode"`

	// File contains file source settings (mode "file").
	File FilePolicyConfig `yaml:"file"`

	// Git contains git source settings (mode "git").
	Git GitPolicyConfig `yaml:"git"`
}

// FilePolicyConfig contains file policy source settings.
type FilePolicyConfig struct {
	// Path is the boundary document to load and watch.
	Path string `yaml:"path"`

	// DebounceInterval is the quiet period before a change triggers a
	// reload.
	// Default: 100ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// GitPolicyConfig contains git policy source settings.
type GitPolicyConfig struct {
	// Repository is the remote URL to clone.
	Repository string `yaml:"repository"`

	// Branch to track.
	// Default: "main"
	Branch string `yaml:"branch"`

	// Path is the boundary document path inside the repository.
	// Default: "boundaries.yaml"
	Path string `yaml:"path"`

	// LocalPath is the working copy location.
	LocalPath string `yaml:"local_path"`

	// PollInterval between pulls.
	// Default: 60s
	PollInterval time.Duration `yaml:"poll_interval"`

	// Timeout bounds each clone/pull.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// Token authenticates HTTPS remotes when set.
	Token string `yaml:"token"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether the metrics endpoint is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// ListenAddress for the metrics HTTP server.
	// Default: "127.0.0.1:9090"
	ListenAddress string `yaml:"listen_address"`

	// Path is the HTTP path for the Prometheus endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "gicm"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "autonomy"
	Subsystem string `yaml:"subsystem"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName in exported traces.
	// Default: "gicm-autonomy"
	ServiceName string `yaml:"service_name"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables transport security to the collector.
	// Default: true (local collectors)
	Insecure bool `yaml:"insecure"`
}
