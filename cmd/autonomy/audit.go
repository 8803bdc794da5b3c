package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
	"github.com/Kermit457/gICM-sub020/pkg/audit/export"
	"github.com/Kermit457/gICM-sub020/pkg/cli"
	"github.com/Kermit457/gICM-sub020/pkg/config"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
	Long:  `Verify the audit hash chain or export audit entries.`,
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit log integrity",
	Long: `Walk the audit hash chain from the oldest surviving entry and report
the first broken link, if any.

Examples:
  autonomy audit verify
  autonomy audit verify --config /etc/autonomy/config.yaml`,
	RunE: runAuditVerify,
}

var auditExportFlags struct {
	format    string
	output    string
	entryType string
	actionID  string
	since     string
	limit     int
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit entries",
	Long: `Export audit entries in JSON or CSV format.

Examples:
  # Export everything as JSON to stdout
  autonomy audit export

  # Export executions for one action as CSV
  autonomy audit export --format csv --type executed --action-id abc123

  # Export the last day to a file
  autonomy audit export --since 24h --output audit.json`,
	RunE: runAuditExport,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditExportCmd)

	auditExportCmd.Flags().StringVarP(&auditExportFlags.format, "format", "f", "json", "export format (json, csv)")
	auditExportCmd.Flags().StringVarP(&auditExportFlags.output, "output", "o", "", "output file (default stdout)")
	auditExportCmd.Flags().StringVarP(&auditExportFlags.entryType, "type", "t", "", "filter by entry type")
	auditExportCmd.Flags().StringVar(&auditExportFlags.actionID, "action-id", "", "filter by action id")
	auditExportCmd.Flags().StringVar(&auditExportFlags.since, "since", "", "only entries newer than this duration (e.g. 24h)")
	auditExportCmd.Flags().IntVar(&auditExportFlags.limit, "limit", 0, "maximum entries to export (0 = all)")
}

// openAuditLogger loads config and opens the audit log read path.
func openAuditLogger(cmd *cobra.Command) (*audit.Logger, *config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	store, err := openAuditStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit store: %w", err)
	}

	logger, err := audit.NewLogger(cmd.Context(), store)
	if err != nil {
		return nil, nil, fmt.Errorf("open audit log: %w", err)
	}
	return logger, cfg, nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	logger, _, err := openAuditLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	result, err := logger.VerifyIntegrity(cmd.Context())
	if err != nil {
		return fmt.Errorf("verify audit log: %w", err)
	}

	if result.Valid {
		fmt.Printf("audit log valid: %d entries, hash chain intact\n", result.Entries)
		return nil
	}

	fmt.Printf("audit log BROKEN at entry %d: %s\n", result.BrokenIndex, result.Reason)
	return cli.NewCommandError("audit verify",
		fmt.Errorf("hash chain broken at entry %d: %s", result.BrokenIndex, result.Reason))
}

// exportPageSize bounds one store read while the progress bar tracks the
// overall export.
const exportPageSize = 500

// collectEntries pages matching entries out of the store, reporting
// progress to stderr so piped stdout output stays clean. limit 0 means all.
func collectEntries(ctx context.Context, logger *audit.Logger, query *audit.Query, limit int) ([]*audit.Entry, error) {
	total, err := logger.Count(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count audit entries: %w", err)
	}
	if limit > 0 && int64(limit) < total {
		total = int64(limit)
	}

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(total)

	entries := make([]*audit.Entry, 0, total)
	for int64(len(entries)) < total {
		pageSize := exportPageSize
		if remaining := total - int64(len(entries)); remaining < int64(pageSize) {
			pageSize = int(remaining)
		}

		page, err := logger.List(ctx, &audit.Query{
			Type:      query.Type,
			ActionID:  query.ActionID,
			StartTime: query.StartTime,
			Offset:    len(entries),
			Limit:     pageSize,
		})
		if err != nil {
			progress.Error(err)
			return nil, fmt.Errorf("list audit entries: %w", err)
		}
		if len(page) == 0 {
			break
		}

		entries = append(entries, page...)
		progress.Update(int64(len(entries)))
	}
	progress.Finish()

	return entries, nil
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	logger, _, err := openAuditLogger(cmd)
	if err != nil {
		return err
	}
	defer logger.Close()

	query := &audit.Query{
		Type:     audit.EntryType(auditExportFlags.entryType),
		ActionID: auditExportFlags.actionID,
	}
	if auditExportFlags.since != "" {
		d, err := time.ParseDuration(auditExportFlags.since)
		if err != nil {
			return fmt.Errorf("invalid --since duration: %w", err)
		}
		start := time.Now().UTC().Add(-d)
		query.StartTime = &start
	}

	entries, err := collectEntries(cmd.Context(), logger, query, auditExportFlags.limit)
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}

	out := os.Stdout
	if auditExportFlags.output != "" {
		f, err := os.Create(auditExportFlags.output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch auditExportFlags.format {
	case "json":
		exporter := export.NewJSONExporter(true)
		if err := exporter.Export(cmd.Context(), entries, out); err != nil {
			return fmt.Errorf("export json: %w", err)
		}
	case "csv":
		exporter := export.NewCSVExporter(true)
		if err := exporter.Export(cmd.Context(), entries, out); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	default:
		return fmt.Errorf("unknown format %q (must be json or csv)", auditExportFlags.format)
	}

	if auditExportFlags.output != "" {
		fmt.Printf("exported %d entries to %s\n", len(entries), auditExportFlags.output)
	}
	return nil
}
