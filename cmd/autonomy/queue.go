package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
	"github.com/Kermit457/gICM-sub020/pkg/autonomy/approval"
	"github.com/Kermit457/gICM-sub020/pkg/cli"
	"github.com/Kermit457/gICM-sub020/pkg/config"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the approval queue",
}

var queueStatsFlags struct {
	format string
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show approval queue statistics",
	Long: `Show pending approval requests by priority and status from the
persisted queue state.

Only meaningful with a persistent state backend; a memory backend has no
state outside the running control plane.

Examples:
  autonomy queue stats
  autonomy queue stats --format json`,
	RunE: runQueueStats,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueStatsCmd)

	queueStatsCmd.Flags().StringVarP(&queueStatsFlags.format, "format", "f", "text", "output format (text, json)")
}

func runQueueStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	if cfg.State.Backend == "memory" {
		fmt.Fprintln(os.Stderr, "warning: memory state backend holds no queue state outside a running control plane")
	}

	stateBackend, err := openStateBackend(cfg)
	if err != nil {
		return fmt.Errorf("open state backend: %w", err)
	}
	defer stateBackend.Close()

	auditStore, err := openAuditStore(cfg)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	auditLog, err := audit.NewLogger(cmd.Context(), auditStore)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer auditLog.Close()

	queue := approval.NewQueue(&approval.Config{
		AutoExpireHours:       cfg.Queue.AutoExpireHours,
		EscalateAfterFraction: cfg.Queue.EscalateAfterFraction,
	}, auditLog, nil, approval.WithBackend(stateBackend))

	stats := queue.Stats(cmd.Context())

	if queueStatsFlags.format == "json" {
		formatter := cli.NewFormatter(cli.FormatJSON)
		return formatter.FormatTo(os.Stdout, stats)
	}

	fmt.Printf("pending: %d\n", stats.Pending)
	if len(stats.ByPriority) > 0 {
		fmt.Println("by priority:")
		for _, bucket := range []string{"critical", "high", "normal", "low"} {
			if n, ok := stats.ByPriority[bucket]; ok {
				fmt.Printf("  %-8s %d\n", bucket, n)
			}
		}
	}
	if len(stats.ByStatus) > 0 {
		fmt.Println("by status:")
		for status, n := range stats.ByStatus {
			fmt.Printf("  %-8s %d\n", status, n)
		}
	}
	if stats.Pending > 0 {
		fmt.Printf("oldest pending: %s\n", stats.OldestAge.Round(time.Second))
	}
	return nil
}
