package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// hashPayload is the canonical byte layout covered by an entry's hash.
// Field order is fixed by the struct; json.Marshal emits struct fields in
// declaration order, which keeps recomputation stable across processes.
type hashPayload struct {
	ID         string         `json:"id"`
	Timestamp  time.Time      `json:"timestamp"`
	Type       EntryType      `json:"type"`
	ActionID   string         `json:"action_id"`
	DecisionID string         `json:"decision_id"`
	Data       map[string]any `json:"data"`
	PrevHash   string         `json:"prev_hash"`
}

// ComputeHash returns the hex-encoded SHA-256 hash over the entry's canonical
// payload. The stored Hash field itself is excluded.
func ComputeHash(e *Entry) (string, error) {
	payload := hashPayload{
		ID:         e.ID,
		Timestamp:  e.Timestamp,
		Type:       e.Type,
		ActionID:   e.ActionID,
		DecisionID: e.DecisionID,
		Data:       e.Data,
		PrevHash:   e.PrevHash,
	}

	// Map keys are sorted by encoding/json, so Data marshals
	// deterministically as long as values round-trip through JSON.
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal hash payload: %w", err)
	}

	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
