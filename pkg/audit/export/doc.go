// Package export writes audit entries to portable formats.
//
// JSONExporter emits a JSON array (or JSONL for archives), CSVExporter emits
// flattened rows. The retention pruner uses the JSONL form to archive entries
// before deletion so full-history chain verification remains possible offline.
package export
