package audit

import "fmt"

// StoreError represents an error from the audit storage backend.
type StoreError struct {
	Backend   string // "memory", "sqlite"
	Operation string // "append", "list", "delete", ...
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("audit store error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NewStoreError creates a new StoreError.
func NewStoreError(backend, operation string, cause error) *StoreError {
	return &StoreError{Backend: backend, Operation: operation, Cause: cause}
}

// IntegrityError is returned when chain verification fails. It is fatal to
// trust in the log, must reach an operator, and is never auto-corrected.
type IntegrityError struct {
	BrokenIndex int
	Reason      string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return fmt.Sprintf("audit chain integrity failure at index %d: %s", e.BrokenIndex, e.Reason)
}
