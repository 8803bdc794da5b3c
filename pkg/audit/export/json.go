package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/Kermit457/gICM-sub020/pkg/audit"
)

// JSONExporter exports audit entries to JSON.
type JSONExporter struct {
	// Pretty enables pretty-printing with indentation.
	Pretty bool
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(pretty bool) *JSONExporter {
	return &JSONExporter{Pretty: pretty}
}

// Export writes entries to w as a JSON array.
func (e *JSONExporter) Export(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	if len(entries) == 0 {
		_, err := w.Write([]byte("[]"))
		return err
	}

	var (
		data []byte
		err  error
	)
	if e.Pretty {
		data, err = json.MarshalIndent(entries, "", "  ")
	} else {
		data, err = json.Marshal(entries)
	}
	if err != nil {
		return fmt.Errorf("export json: %w", err)
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("export json: %w", err)
	}

	return nil
}

// ExportLines writes entries to w as JSONL, one entry per line. This is the
// archive format used by retention pruning: each line is self-contained and
// the file can be replayed to verify the pre-pruning chain.
func (e *JSONExporter) ExportLines(ctx context.Context, entries []*audit.Entry, w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := enc.Encode(entry); err != nil {
			return fmt.Errorf("export jsonl: %w", err)
		}
	}
	return nil
}
