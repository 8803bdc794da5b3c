package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
	"github.com/Kermit457/gICM-sub020/pkg/audit/retention"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/approval"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/boundary"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/engine"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/executor"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/risk"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/rollback"
	"github.com/Kermit457/gICM-sub020/pkg/cli"
	"github.com/Kermit457/gICM-sub020/pkg/config"
	"github.com/Kermit457/gICM-sub020/pkg/notify"
	"github.com/Kermit457/gICM-sub020/pkg/policy"
	"github.com/Kermit457/gICM-sub020/pkg/telemetry/logging"
	"github.com/Kermit457/gICM-sub020/pkg/telemetry/metrics"
	"github.com/Kermit457/gICM-sub020/pkg/telemetry/tracing"
)

var runFlags struct {
	logLevel      string
	autonomyLevel int
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the autonomy control plane",
	Long: `Start the autonomy control plane with the specified configuration.

The control plane composes the boundary store, risk assessor, decision
router, approval queue, executor, and audit log, then serves the metrics
endpoint and runs the audit retention scheduler until interrupted.

Examples:
  # Start with default config
  autonomy run

  # Start with custom config
  autonomy run --config /etc/autonomy/config.yaml

  # Override the autonomy level
  autonomy run --level 3

  # Validate config without starting
  autonomy run --dry-run`,
	RunE: runControlPlane,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().IntVar(&runFlags.autonomyLevel, "level", 0, "override autonomy level (1-4)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting")
}

func runControlPlane(cmd *cobra.Command, args []string) error {
	if err := config.Initialize(cfgFile); err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	cfg := config.GetConfig()

	// Apply flag overrides
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}
	if runFlags.autonomyLevel != 0 {
		cfg.Engine.AutonomyLevel = runFlags.autonomyLevel
	}

	if _, err := logging.Setup(cfg.Telemetry.Logging); err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	if runFlags.dryRun {
		fmt.Println("configuration valid")
		return nil
	}

	ctx := cli.SetupSignalHandler()

	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			slog.Error("tracer shutdown", "error", err)
		}
	}()

	// Audit log
	auditStore, err := openAuditStore(cfg)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	auditLog, err := audit.NewLogger(ctx, auditStore)
	if err != nil {
		return fmt.Errorf("initialize audit log: %w", err)
	}
	defer auditLog.Close()

	// Metrics
	var collector *metrics.Collector
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		auditLog.SetHook(collector.AuditHook())
	}

	// State persistence for usage counters and the approval queue
	stateBackend, err := openStateBackend(cfg)
	if err != nil {
		return fmt.Errorf("open state backend: %w", err)
	}
	defer stateBackend.Close()

	boundaries := boundary.NewStore(cfg.Boundaries, boundary.WithBackend(stateBackend))

	// Boundary policy source
	engineOpts, err := setupPolicySource(ctx, cfg, boundaries)
	if err != nil {
		return err
	}

	if len(cfg.Risk.Bands) > 0 {
		engineOpts = append(engineOpts, engine.WithBands(riskBands(&cfg.Risk)))
	}

	dispatcher := notify.NewDispatcher(notify.NewLogChannel())

	queueOpts := []approval.Option{approval.WithBackend(stateBackend)}
	var execOpts []executor.Option
	if collector != nil {
		engineOpts = append(engineOpts, engine.WithMetrics(collector))
		queueOpts = append(queueOpts, approval.WithMetrics(collector))
		execOpts = append(execOpts, executor.WithMetrics(collector))
	}

	queue := approval.NewQueue(&approval.Config{
		AutoExpireHours:       cfg.Queue.AutoExpireHours,
		EscalateAfterFraction: cfg.Queue.EscalateAfterFraction,
	}, auditLog, dispatcher, queueOpts...)

	rollbacks := rollback.NewManager()

	exec := executor.NewExecutor(&executor.Config{
		MaxPerHour:      cfg.Executor.MaxPerHour,
		MaxConcurrent:   cfg.Executor.MaxConcurrent,
		FailureCooldown: cfg.Executor.FailureCooldown,
		Timeout:         cfg.Executor.Timeout,
		MaxRetries:      cfg.Executor.MaxRetries,
		RetryBackoff:    cfg.Executor.RetryBackoff,
	}, boundaries, rollbacks, auditLog, execOpts...)

	eng := engine.New(
		&engine.Config{AutonomyLevel: cfg.Engine.AutonomyLevel},
		boundaries, queue, exec, rollbacks, auditLog,
		engineOpts...,
	)
	defer eng.Close()

	// Audit retention
	if cfg.Audit.Retention.Enabled {
		pruner := retention.NewPruner(auditStore, &retention.Config{
			RetentionDays:       cfg.Audit.Retention.RetentionDays,
			MaxEntries:          cfg.Audit.Retention.MaxEntries,
			PruneSchedule:       cfg.Audit.Retention.PruneSchedule,
			ArchiveBeforeDelete: cfg.Audit.Retention.ArchiveBeforeDelete,
			ArchivePath:         cfg.Audit.Retention.ArchivePath,
		})
		scheduler := retention.NewScheduler(pruner)
		if err := scheduler.Start(ctx); err != nil {
			return fmt.Errorf("start retention scheduler: %w", err)
		}
		defer scheduler.Stop()
	}

	// Metrics endpoint and gauge refresh
	if collector != nil {
		go func() {
			if err := collector.Serve(ctx); err != nil {
				slog.Error("metrics server", "error", err)
			}
		}()
		go refreshGauges(ctx, collector, eng)
	}

	slog.Info("autonomy control plane started",
		"autonomy_level", cfg.Engine.AutonomyLevel,
		"audit_backend", cfg.Audit.Backend,
		"state_backend", cfg.State.Backend,
		"policy_mode", cfg.Policy.Mode,
	)

	<-ctx.Done()
	slog.Info("shutting down")
	return nil
}

// setupPolicySource wires the configured boundary policy source into the
// boundary store and returns the engine options that stamp decisions with
// the active policy version.
func setupPolicySource(ctx context.Context, cfg *config.Config, boundaries *boundary.Store) ([]engine.Option, error) {
	switch cfg.Policy.Mode {
	case "static":
		return nil, nil

	case "file":
		source, err := policy.NewFileSource(&policy.FileSourceConfig{
			Path:             cfg.Policy.File.Path,
			DebounceInterval: cfg.Policy.File.DebounceInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize file policy source: %w", err)
		}
		source.OnLoad(boundaries.UpdateBoundaries)
		go func() {
			if err := source.Watch(ctx); err != nil {
				slog.Error("policy file watcher", "error", err)
			}
		}()
		return []engine.Option{engine.WithPolicySource(source)}, nil

	case "git":
		source, err := policy.NewGitSource(&policy.GitSourceConfig{
			Repository:   cfg.Policy.Git.Repository,
			Branch:       cfg.Policy.Git.Branch,
			Path:         cfg.Policy.Git.Path,
			LocalPath:    cfg.Policy.Git.LocalPath,
			PollInterval: cfg.Policy.Git.PollInterval,
			Timeout:      cfg.Policy.Git.Timeout,
			Token:        cfg.Policy.Git.Token,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize git policy source: %w", err)
		}
		if err := source.Clone(ctx); err != nil {
			return nil, fmt.Errorf("clone policy repo: %w", err)
		}
		source.OnLoad(boundaries.UpdateBoundaries)
		go source.Poll(ctx)
		return []engine.Option{engine.WithPolicySource(source)}, nil

	default:
		return nil, cli.NewConfigError("policy.mode", fmt.Sprintf("unknown mode %q", cfg.Policy.Mode))
	}
}

// riskBands converts configured score bands to the assessor's type. The
// bands have already passed config validation.
func riskBands(cfg *config.RiskConfig) risk.Bands {
	bands := make(risk.Bands, 0, len(cfg.Bands))
	for _, band := range cfg.Bands {
		bands = append(bands, risk.Band{
			Max:   band.Max,
			Level: autonomy.RiskLevel(band.Level),
		})
	}
	return bands
}

// refreshGauges keeps the queue and executor gauges current.
func refreshGauges(ctx context.Context, collector *metrics.Collector, eng *engine.Engine) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			queueStats := eng.QueueStats(ctx)
			collector.SetQueuePending(queueStats.Pending)

			execStats := eng.ExecutorStats()
			collector.SetExecuting(execStats.Executing)
			collector.SetTypesCooling(len(execStats.CoolingTypes))
		}
	}
}
