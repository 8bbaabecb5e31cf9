// Package apperr defines the error taxonomy shared by all stores and
// services. The API layer maps each type to an HTTP status; everything
// else just wraps and returns.
package apperr

import (
	"fmt"
	"strings"
)

// ValidationError carries one message per failed field check. It is never
// partially applied: callers reject the whole request.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// Validation builds a ValidationError from one or more messages.
func Validation(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

// AuthorizationError means the caller's role is insufficient for the
// attempted action.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return e.Reason
}

// Forbidden builds an AuthorizationError.
func Forbidden(reason string) *AuthorizationError {
	return &AuthorizationError{Reason: reason}
}

// NotFoundError names the missing resource ("event", "version", "permission", "user").
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// NotFound builds a NotFoundError.
func NotFound(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// AlreadyExistsError reports a uniqueness violation on create.
type AlreadyExistsError struct {
	Resource string
}

func (e *AlreadyExistsError) Error() string {
	return e.Resource + " already exists"
}

// AlreadyExists builds an AlreadyExistsError.
func AlreadyExists(resource string) *AlreadyExistsError {
	return &AlreadyExistsError{Resource: resource}
}

// ConflictError reports a time-range overlap with the listed event ids.
// It is raised before field validation in create/update flows.
type ConflictError struct {
	IDs []int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("event conflict detected: %v", e.IDs)
}

// Conflict builds a ConflictError.
func Conflict(ids []int64) *ConflictError {
	return &ConflictError{IDs: ids}
}

// CorruptDataError marks stored state that fails to parse. Surfaced as a
// server fault, distinct from not-found.
type CorruptDataError struct {
	Err error
}

func (e *CorruptDataError) Error() string {
	return "stored data is corrupt: " + e.Err.Error()
}

func (e *CorruptDataError) Unwrap() error {
	return e.Err
}

// Corrupt wraps a parse failure as a CorruptDataError.
func Corrupt(err error) *CorruptDataError {
	return &CorruptDataError{Err: err}
}
