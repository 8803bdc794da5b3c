package policy

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/autonomy/boundary"
)

const samplePolicy = `version: v3
boundaries:
  max_auto_expense_usd: 50
  max_daily_spend_usd: 500
  max_trade_size_usd: 250
  max_trades_per_day: 10
  blocked_paths:
    - .env
    - secrets/
  active_hours_start: 8
  active_hours_end: 20
`

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(samplePolicy))
	if err != nil {
		t.Fatalf("ParseDocument() error = %v", err)
	}

	if doc.Version != "v3" {
		t.Errorf("Version = %q, want v3", doc.Version)
	}
	b := doc.Boundaries
	if b.MaxTradeSizeUSD != 250 || b.MaxTradesPerDay != 10 {
		t.Errorf("trading limits = %v/%v", b.MaxTradeSizeUSD, b.MaxTradesPerDay)
	}
	if len(b.BlockedPaths) != 2 || b.BlockedPaths[0] != ".env" {
		t.Errorf("BlockedPaths = %v", b.BlockedPaths)
	}
	if b.ActiveHoursStart != 8 || b.ActiveHoursEnd != 20 {
		t.Errorf("active hours = %d-%d", b.ActiveHoursStart, b.ActiveHoursEnd)
	}
}

func TestParseDocument_RejectsUnknownFields(t *testing.T) {
	// A typoed limit name must fail loudly, not silently disable a cap.
	mistyped := `version: v1
boundaries:
  max_trade_size_used: 250
`
	if _, err := ParseDocument([]byte(mistyped)); err == nil {
		t.Error("ParseDocument() error = nil, want unknown-field error")
	}
}

func TestParseDocument_InvalidYAML(t *testing.T) {
	if _, err := ParseDocument([]byte("boundaries: [")); err == nil {
		t.Error("ParseDocument() error = nil, want parse error")
	}
}

func writePolicy(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "boundaries.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func TestFileSource_InitialLoad(t *testing.T) {
	path := writePolicy(t, t.TempDir(), samplePolicy)

	source, err := NewFileSource(&FileSourceConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	if source.PolicyID() != "v3" {
		t.Errorf("PolicyID() = %q, want v3", source.PolicyID())
	}
	if got := source.Boundaries().MaxTradeSizeUSD; got != 250 {
		t.Errorf("MaxTradeSizeUSD = %v, want 250", got)
	}
	if source.Version().LoadedAt.IsZero() {
		t.Error("LoadedAt not stamped")
	}
}

func TestFileSource_PolicyIDFallsBackToFileName(t *testing.T) {
	path := writePolicy(t, t.TempDir(), "boundaries:\n  max_trade_size_usd: 100\n")

	source, err := NewFileSource(&FileSourceConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	if id := source.PolicyID(); !strings.Contains(id, "boundaries.yaml") {
		t.Errorf("PolicyID() = %q, want file-name fallback", id)
	}
}

func TestFileSource_OnLoadFiresWithCurrentDocument(t *testing.T) {
	path := writePolicy(t, t.TempDir(), samplePolicy)

	source, err := NewFileSource(&FileSourceConfig{Path: path})
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}

	var got boundary.Boundaries
	source.OnLoad(func(b boundary.Boundaries) { got = b })

	if got.MaxTradeSizeUSD != 250 {
		t.Errorf("OnLoad boundaries = %+v, want the already-loaded document", got)
	}
}

func TestFileSource_MissingFile(t *testing.T) {
	if _, err := NewFileSource(&FileSourceConfig{Path: filepath.Join(t.TempDir(), "absent.yaml")}); err == nil {
		t.Error("NewFileSource() error = nil, want read error")
	}
}

func TestFileSource_RequiresPath(t *testing.T) {
	if _, err := NewFileSource(&FileSourceConfig{}); err == nil {
		t.Error("NewFileSource() error = nil, want path error")
	}
}

func TestDebouncer_CollapsesBursts(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Stop()

	fired := make(chan struct{}, 10)
	for i := 0; i < 5; i++ {
		d.Trigger(func() { fired <- struct{}{} })
		time.Sleep(2 * time.Millisecond)
	}

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("debounced callback never fired")
	}

	// The burst collapses to a single callback.
	select {
	case <-fired:
		t.Error("debouncer fired more than once for one burst")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)

	fired := make(chan struct{}, 1)
	d.Trigger(func() { fired <- struct{}{} })
	d.Stop()

	select {
	case <-fired:
		t.Error("callback fired after Stop")
	case <-time.After(60 * time.Millisecond):
	}
}
