// Package errors provides standardized error types and helpers for the recch codebase.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrCatalogUnavailable indicates the schema catalog could not be fetched;
	// dependent operations must be disabled, never partially executed
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrNoPrimaryKey indicates a mutation precondition failure; the
	// operation never reaches the executor
	ErrNoPrimaryKey = errors.New("no primary key")
	// ErrExecution indicates the store rejected or failed a statement
	ErrExecution = errors.New("execution failed")
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
)

// CatalogFetchError reports a failed column/index catalog fetch. Callers
// must treat it as "no schema known" and suppress dependent operations
// rather than retry automatically.
type CatalogFetchError struct {
	Table    string // Table whose catalog was requested
	Database string // Optional database/schema qualifier
	Err      error  // Underlying executor error
}

func (e *CatalogFetchError) Error() string {
	if e.Database != "" {
		return fmt.Sprintf("fetching catalog for %s.%s: %v", e.Database, e.Table, e.Err)
	}
	return fmt.Sprintf("fetching catalog for %s: %v", e.Table, e.Err)
}

func (e *CatalogFetchError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrCatalogUnavailable
}

func (e *CatalogFetchError) Is(target error) bool {
	return target == ErrCatalogUnavailable
}

// NoPrimaryKeyError reports that a row-level mutation was requested for a
// table with no primary key column. Raised before any statement is built.
type NoPrimaryKeyError struct {
	Table     string // Table the mutation targeted
	Operation string // "update" or "delete"
}

func (e *NoPrimaryKeyError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("cannot %s rows in %s: table has no primary key", e.Operation, e.Table)
	}
	return fmt.Sprintf("table %s has no primary key", e.Table)
}

func (e *NoPrimaryKeyError) Unwrap() error {
	return ErrNoPrimaryKey
}

// ExecutionError reports a statement the store rejected or failed. The
// message is surfaced verbatim to the caller; the engine's error text is
// never parsed or categorized.
type ExecutionError struct {
	Message string // Engine error text, verbatim
	Err     error  // Underlying error, if any
}

func (e *ExecutionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("execution failed: %v", e.Err)
}

func (e *ExecutionError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrExecution
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrExecution
}

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "connection", "table")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// Helper functions for creating common errors

// NewCatalogFetch creates a CatalogFetchError
func NewCatalogFetch(table, database string, err error) *CatalogFetchError {
	return &CatalogFetchError{Table: table, Database: database, Err: err}
}

// NewNoPrimaryKey creates a NoPrimaryKeyError
func NewNoPrimaryKey(table, operation string) *NoPrimaryKeyError {
	return &NoPrimaryKeyError{Table: table, Operation: operation}
}

// NewExecution creates an ExecutionError from the engine's error
func NewExecution(err error) *ExecutionError {
	return &ExecutionError{Message: err.Error(), Err: err}
}

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
