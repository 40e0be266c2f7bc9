// Package apperrors holds the sentinel errors shared by repositories,
// services and handlers. Wrap them with fmt.Errorf("...: %w", ErrX) and
// match with errors.Is.
package apperrors

import "errors"

// ErrValidation indicates that input data failed validation checks
// (negative opening value, zero transaction amount, unknown type...).
var ErrValidation = errors.New("validation error")

// ErrConflict indicates that another register is already open for the store.
var ErrConflict = errors.New("a register is already open")

// ErrInvalidState indicates that the register is not in the state the
// operation requires (e.g. appending to a closed register).
var ErrInvalidState = errors.New("invalid register state")

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrUnauthorized indicates bad credentials or an unusable token.
var ErrUnauthorized = errors.New("unauthorized")
