// Package retention enforces audit log retention: entries older than the
// configured age are pruned and the store is capped at a maximum entry count
// (oldest pruned first). Pruning never rewrites surviving entries, so chain
// verification re-anchors at the oldest survivor; when archiving is enabled,
// pruned entries are written to a JSONL archive first so the full history
// stays verifiable offline.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
	"github.com/Kermit457/gICM-sub020/pkg/audit/export"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain entries.
	// 0 means keep entries forever (no age-based pruning).
	RetentionDays int

	// MaxEntries is the maximum number of entries to keep.
	// 0 means unlimited.
	MaxEntries int64

	// PruneSchedule is a cron expression for scheduled pruning.
	// Example: "0 3 * * *" (daily at 3 AM).
	PruneSchedule string

	// ArchiveBeforeDelete writes pruned entries to a JSONL archive
	// before deleting them.
	ArchiveBeforeDelete bool

	// ArchivePath is the directory for archive files.
	ArchivePath string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays:       90,
		MaxEntries:          0,
		PruneSchedule:       "0 3 * * *",
		ArchiveBeforeDelete: false,
		ArchivePath:         "data/archives/",
	}
}

// Pruner enforces retention policy on the audit store.
type Pruner struct {
	store     audit.Store
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler
}

// NewPruner creates a retention pruner over the given store.
func NewPruner(store audit.Store, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pruner{
		store:  store,
		config: config,
		logger: slog.Default().With("component", "audit.retention"),
	}
	p.scheduler = NewScheduler(p)

	return p
}

// Scheduler returns the cron scheduler bound to this pruner.
func (p *Pruner) Scheduler() *Scheduler {
	return p.scheduler
}

// Prune deletes entries older than the retention period or exceeding the
// entry cap. Both phases can run in one cycle. Returns the number deleted.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var totalDeleted int64

	if p.config.RetentionDays > 0 {
		deleted, err := p.pruneByAge(ctx)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by age: %w", err)
		}
		totalDeleted += deleted
	}

	if p.config.MaxEntries > 0 {
		deleted, err := p.pruneByCount(ctx)
		if err != nil {
			return totalDeleted, fmt.Errorf("prune by count: %w", err)
		}
		totalDeleted += deleted
	}

	if totalDeleted > 0 {
		p.logger.Info("audit pruning completed",
			"deleted_count", totalDeleted,
			"retention_days", p.config.RetentionDays,
			"max_entries", p.config.MaxEntries,
		)
	} else {
		p.logger.Debug("no audit entries pruned")
	}

	return totalDeleted, nil
}

// pruneByAge deletes everything older than the retention cutoff.
func (p *Pruner) pruneByAge(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -p.config.RetentionDays)

	// First entry at or after the cutoff is the oldest survivor.
	survivors, err := p.store.List(ctx, &audit.Query{StartTime: &cutoff, Limit: 1})
	if err != nil {
		return 0, err
	}

	var boundary int64
	if len(survivors) == 0 {
		// Everything is older than the cutoff.
		last, err := p.store.Last(ctx)
		if err != nil {
			return 0, err
		}
		if last == nil {
			return 0, nil
		}
		boundary = last.Sequence + 1
	} else {
		boundary = survivors[0].Sequence
	}

	return p.deleteBefore(ctx, boundary)
}

// pruneByCount trims the store down to MaxEntries, oldest first.
func (p *Pruner) pruneByCount(ctx context.Context) (int64, error) {
	total, err := p.store.Count(ctx, nil)
	if err != nil {
		return 0, err
	}
	if total <= p.config.MaxEntries {
		return 0, nil
	}

	excess := total - p.config.MaxEntries
	survivors, err := p.store.List(ctx, &audit.Query{Offset: int(excess), Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(survivors) == 0 {
		return 0, nil
	}

	return p.deleteBefore(ctx, survivors[0].Sequence)
}

// deleteBefore archives (when configured) then deletes entries below seq.
// The archive is written and synced before anything leaves the store, so an
// archive failure aborts the prune with the history intact.
func (p *Pruner) deleteBefore(ctx context.Context, seq int64) (int64, error) {
	if p.config.ArchiveBeforeDelete {
		doomed, err := p.entriesBefore(ctx, seq)
		if err != nil {
			return 0, err
		}
		if len(doomed) == 0 {
			return 0, nil
		}
		if err := p.archive(ctx, doomed); err != nil {
			return 0, fmt.Errorf("archive pruned entries: %w", err)
		}
	}

	deleted, err := p.store.DeleteBefore(ctx, seq)
	if err != nil {
		return 0, err
	}
	return int64(len(deleted)), nil
}

// entriesBefore returns the stored entries with Sequence strictly below seq,
// oldest first.
func (p *Pruner) entriesBefore(ctx context.Context, seq int64) ([]*audit.Entry, error) {
	all, err := p.store.List(ctx, nil)
	if err != nil {
		return nil, err
	}

	var doomed []*audit.Entry
	for _, entry := range all {
		if entry.Sequence < seq {
			doomed = append(doomed, entry)
		}
	}
	return doomed, nil
}

// archive writes pruned entries to a timestamped JSONL file.
func (p *Pruner) archive(ctx context.Context, entries []*audit.Entry) error {
	if err := os.MkdirAll(p.config.ArchivePath, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}

	name := fmt.Sprintf("audit-%s.jsonl", time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(p.config.ArchivePath, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open archive file: %w", err)
	}
	defer f.Close()

	exporter := export.NewJSONExporter(false)
	if err := exporter.ExportLines(ctx, entries, f); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync archive file: %w", err)
	}

	p.logger.Info("archived pruned audit entries",
		"path", path,
		"entry_count", len(entries),
	)

	return nil
}
