package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
)

// CSVExporter exports audit entries to CSV. The structured data column is
// flattened into a JSON string.
type CSVExporter struct {
	// IncludeHeader includes a header row with column names.
	IncludeHeader bool
}

// NewCSVExporter creates a new CSV exporter.
func NewCSVExporter(includeHeader bool) *CSVExporter {
	return &CSVExporter{IncludeHeader: includeHeader}
}

// Export writes entries to w in CSV format.
func (e *CSVExporter) Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if e.IncludeHeader {
		if err := writer.Write(headerRow()); err != nil {
			return fmt.Errorf("export csv header: %w", err)
		}
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := entryToRow(entry)
		if err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
	}

	return writer.Error()
}

func headerRow() []string {
	return []string{
		"id", "sequence", "timestamp", "type",
		"action_id", "decision_id", "data", "prev_hash", "hash",
	}
}

func entryToRow(entry *audit.Entry) ([]string, error) {
	data := ""
	if len(entry.Data) > 0 {
		raw, err := json.Marshal(entry.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}
		data = string(raw)
	}

	return []string{
		entry.ID,
		strconv.FormatInt(entry.Sequence, 10),
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		string(entry.Type),
		entry.ActionID,
		entry.DecisionID,
		data,
		entry.PrevHash,
		entry.Hash,
	}, nil
}
