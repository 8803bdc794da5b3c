package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Variables follow the naming
// convention AUTONOMY_SECTION_FIELD (e.g. AUTONOMY_ENGINE_AUTONOMY_LEVEL)
// and always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Variables use the format AUTONOMY_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Engine overrides
	if val := os.Getenv("AUTONOMY_ENGINE_AUTONOMY_LEVEL"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Engine.AutonomyLevel = i
		}
	}

	// Boundary overrides (the commonly tuned limits)
	setFloatEnv("AUTONOMY_BOUNDARIES_MAX_AUTO_EXPENSE_USD", &cfg.Boundaries.MaxAutoExpenseUSD)
	setFloatEnv("AUTONOMY_BOUNDARIES_MAX_DAILY_SPEND_USD", &cfg.Boundaries.MaxDailySpendUSD)
	setFloatEnv("AUTONOMY_BOUNDARIES_MAX_TRADE_SIZE_USD", &cfg.Boundaries.MaxTradeSizeUSD)
	setIntEnv("AUTONOMY_BOUNDARIES_MAX_TRADES_PER_DAY", &cfg.Boundaries.MaxTradesPerDay)
	setFloatEnv("AUTONOMY_BOUNDARIES_MIN_TREASURY_USD", &cfg.Boundaries.MinTreasuryUSD)
	setIntEnv("AUTONOMY_BOUNDARIES_MAX_POSTS_PER_DAY", &cfg.Boundaries.MaxPostsPerDay)
	setIntEnv("AUTONOMY_BOUNDARIES_MAX_BUILDS_PER_DAY", &cfg.Boundaries.MaxBuildsPerDay)

	// Queue overrides
	setIntEnv("AUTONOMY_QUEUE_AUTO_EXPIRE_HOURS", &cfg.Queue.AutoExpireHours)
	setFloatEnv("AUTONOMY_QUEUE_ESCALATE_AFTER_FRACTION", &cfg.Queue.EscalateAfterFraction)

	// Executor overrides
	setIntEnv("AUTONOMY_EXECUTOR_MAX_PER_HOUR", &cfg.Executor.MaxPerHour)
	setIntEnv("AUTONOMY_EXECUTOR_MAX_CONCURRENT", &cfg.Executor.MaxConcurrent)
	setDurationEnv("AUTONOMY_EXECUTOR_FAILURE_COOLDOWN", &cfg.Executor.FailureCooldown)
	setDurationEnv("AUTONOMY_EXECUTOR_TIMEOUT", &cfg.Executor.Timeout)
	setIntEnv("AUTONOMY_EXECUTOR_MAX_RETRIES", &cfg.Executor.MaxRetries)

	// Audit overrides
	if val := os.Getenv("AUTONOMY_AUDIT_BACKEND"); val != "" {
		cfg.Audit.Backend = val
	}
	if val := os.Getenv("AUTONOMY_AUDIT_PATH"); val != "" {
		cfg.Audit.Path = val
	}
	setBoolEnv("AUTONOMY_AUDIT_RETENTION_ENABLED", &cfg.Audit.Retention.Enabled)
	setIntEnv("AUTONOMY_AUDIT_RETENTION_DAYS", &cfg.Audit.Retention.RetentionDays)
	setBoolEnv("AUTONOMY_AUDIT_ARCHIVE_BEFORE_DELETE", &cfg.Audit.Retention.ArchiveBeforeDelete)

	// State overrides
	if val := os.Getenv("AUTONOMY_STATE_BACKEND"); val != "" {
		cfg.State.Backend = val
	}
	if val := os.Getenv("AUTONOMY_STATE_PATH"); val != "" {
		cfg.State.Path = val
	}

	// Policy overrides
	if val := os.Getenv("AUTONOMY_POLICY_MODE"); val != "" {
		cfg.Policy.Mode = val
	}
	if val := os.Getenv("AUTONOMY_POLICY_FILE_PATH"); val != "" {
		cfg.Policy.File.Path = val
	}
	if val := os.Getenv("AUTONOMY_POLICY_GIT_REPOSITORY"); val != "" {
		cfg.Policy.Git.Repository = val
	}
	if val := os.Getenv("AUTONOMY_POLICY_GIT_BRANCH"); val != "" {
		cfg.Policy.Git.Branch = val
	}
	if val := os.Getenv("AUTONOMY_POLICY_GIT_TOKEN"); val != "" {
		cfg.Policy.Git.Token = val
	}

	// Telemetry overrides
	if val := os.Getenv("AUTONOMY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("AUTONOMY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	setBoolEnv("AUTONOMY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	if val := os.Getenv("AUTONOMY_METRICS_LISTEN_ADDRESS"); val != "" {
		cfg.Telemetry.Metrics.ListenAddress = val
	}
	setBoolEnv("AUTONOMY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	if val := os.Getenv("AUTONOMY_TRACING_ENDPOINT"); val != "" {
		cfg.Telemetry.Tracing.Endpoint = val
	}
}

func setIntEnv(name string, target *int) {
	if val := os.Getenv(name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*target = i
		}
	}
}

func setFloatEnv(name string, target *float64) {
	if val := os.Getenv(name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*target = f
		}
	}
}

func setBoolEnv(name string, target *bool) {
	if val := os.Getenv(name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*target = b
		}
	}
}

func setDurationEnv(name string, target *time.Duration) {
	if val := os.Getenv(name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}
