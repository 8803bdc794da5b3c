// Package config provides configuration management for the autonomy control
// plane.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention AUTONOMY_SECTION_FIELD.
// For example:
//
//   - AUTONOMY_ENGINE_AUTONOMY_LEVEL overrides engine.autonomy_level
//   - AUTONOMY_BOUNDARIES_MAX_TRADE_SIZE_USD overrides boundaries.max_trade_size_usd
//   - AUTONOMY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton pattern:
//
//	// At application startup
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Anywhere in the application
//	cfg := config.GetConfig()
//	fmt.Println(cfg.Engine.AutonomyLevel)
//
// For testing, prefer dependency injection with explicit Config instances
// rather than the global singleton.
//
// # Validation
//
// All configuration is validated automatically during loading. Validation includes:
//
//   - Range validation (e.g., autonomy level must be 1-4)
//   - Enum validation (e.g., audit backend must be memory or sqlite)
//   - Logical validation (e.g., git policy mode requires a repository URL)
//
// Validation errors include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - engine.autonomy_level: must be between 1 and 4, got 7
//	  - policy.git.repository: required for git mode
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	engine:
//	  autonomy_level: 3
//
//	boundaries:
//	  max_auto_expense_usd: 50
//	  max_trade_size_usd: 500
//	  max_trades_per_day: 20
//
//	audit:
//	  backend: "sqlite"
//	  path: "./data/audit.db"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
// # Thread Safety
//
// All configuration access is thread-safe. The singleton pattern uses read-write
// locks to allow concurrent reads while protecting against concurrent writes during
// reload operations.
package config
