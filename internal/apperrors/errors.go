package apperrors

import "errors"

// ErrNotFound indicates that a requested document could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that order input failed validation before any write.
var ErrValidation = errors.New("validation error")

// ErrPermissionDenied indicates a non-admin attempted a privileged operation.
// The operation is aborted with no mutation.
var ErrPermissionDenied = errors.New("permission denied")

// ErrAccessDenied indicates the session's profile is missing or inactive.
// Callers must force sign-out when they see this.
var ErrAccessDenied = errors.New("access denied")

// ErrFetchTimeout indicates a snapshot load exceeded its bound. The caller may retry.
var ErrFetchTimeout = errors.New("fetch timeout")

// ErrTransactionConflict indicates an atomic store transaction exhausted its
// retries. Triggers the degraded non-atomic counter fallback.
var ErrTransactionConflict = errors.New("transaction conflict")

// ErrCancelled indicates the caller's confirm predicate declined a destructive
// operation. Nothing was mutated.
var ErrCancelled = errors.New("operation cancelled")
