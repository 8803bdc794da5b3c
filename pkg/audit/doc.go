// Package audit provides the append-only, hash-chained record of every state
// transition in the autonomy engine.
//
// Each entry embeds the SHA-256 hash of its predecessor, forming a singly
// linked chain anchored at an empty initial hash. VerifyIntegrity walks the
// chain from the oldest surviving entry and reports the first index where
// either a stored previous-hash link is broken or a stored hash no longer
// matches a fresh recomputation.
//
// Retention pruning removes the oldest entries without rewriting survivors.
// Verification therefore re-anchors at the oldest surviving entry: its stored
// previous hash points at a deleted entry and is deliberately not chased.
// The retention pruner can archive entries to JSONL before deletion so
// full-history verification remains possible offline (see audit/retention).
package audit
