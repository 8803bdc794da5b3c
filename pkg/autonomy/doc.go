// Package autonomy implements the bounded-autonomy control plane that sits
// between upstream automated engines (trading, content, build/deploy) and the
// side effects they want to trigger.
//
// For every proposed Action the engine produces exactly one Decision:
//
//   - auto_execute:    run unsupervised under rate limiting and cooldown
//   - queue_approval:  wait for human sign-off in the approval queue
//   - escalate:        immediate human notification, bypassing queue wait
//   - reject:          refused outright (boundary violation or risk too high)
//
// Every state transition is mirrored into the hash-chained audit log before
// the call that triggered it returns. Reversible actions get a rollback
// checkpoint captured before execution.
//
// The Engine is constructed explicitly at the composition root and injected
// with its collaborators; nothing in this package holds global state.
package autonomy
