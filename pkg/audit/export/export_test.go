package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
)

func sampleEntries() []*audit.Entry {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []*audit.Entry{
		{
			ID:        "e1",
			Sequence:  0,
			Timestamp: ts,
			Type:      audit.EntryActionReceived,
			ActionID:  "a1",
			Hash:      "h1",
		},
		{
			ID:         "e2",
			Sequence:   1,
			Timestamp:  ts.Add(time.Minute),
			Type:       audit.EntryDecisionMade,
			ActionID:   "a1",
			DecisionID: "d1",
			Data:       map[string]any{"outcome": "auto_execute"},
			PrevHash:   "h1",
			Hash:       "h2",
		},
	}
}

func TestJSONExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewJSONExporter(false)

	if err := exporter.Export(context.Background(), sampleEntries(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var decoded []*audit.Entry
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d entries, want 2", len(decoded))
	}
	if decoded[1].DecisionID != "d1" || decoded[1].PrevHash != "h1" {
		t.Errorf("decoded entry = %+v", decoded[1])
	}
}

func TestJSONExporter_ExportEmpty(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewJSONExporter(true)

	if err := exporter.Export(context.Background(), nil, &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if buf.String() != "[]" {
		t.Errorf("Export() of empty set = %q, want %q", buf.String(), "[]")
	}
}

func TestJSONExporter_ExportLines(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewJSONExporter(false)

	if err := exporter.ExportLines(context.Background(), sampleEntries(), &buf); err != nil {
		t.Fatalf("ExportLines() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("ExportLines() wrote %d lines, want 2", len(lines))
	}
	for i, line := range lines {
		var entry audit.Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Errorf("line %d not valid JSON: %v", i, err)
		}
	}
}

func TestCSVExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewCSVExporter(true)

	if err := exporter.Export(context.Background(), sampleEntries(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("output not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("CSV has %d rows, want 3 (header + 2)", len(records))
	}
	if records[0][0] != "id" || records[0][3] != "type" {
		t.Errorf("header row = %v", records[0])
	}
	if records[2][0] != "e2" || records[2][5] != "d1" {
		t.Errorf("data row = %v", records[2])
	}
	if !strings.Contains(records[2][6], "auto_execute") {
		t.Errorf("data column = %q, want JSON-flattened data", records[2][6])
	}
}

func TestCSVExporter_NoHeader(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewCSVExporter(false)

	if err := exporter.Export(context.Background(), sampleEntries(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	records, _ := csv.NewReader(&buf).ReadAll()
	if len(records) != 2 {
		t.Errorf("CSV has %d rows, want 2", len(records))
	}
}

func TestExport_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	if err := NewCSVExporter(false).Export(ctx, sampleEntries(), &buf); err == nil {
		t.Error("CSV Export() with canceled context returned nil error")
	}
	if err := NewJSONExporter(false).ExportLines(ctx, sampleEntries(), &buf); err == nil {
		t.Error("ExportLines() with canceled context returned nil error")
	}
}
