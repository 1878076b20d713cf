// Package errors provides custom error types for the goldrec system.
// These errors enable programmatic error checking with errors.Is/As and
// carry enough context to scope a failure to a single record, lookup,
// or artifact.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Join is an alias for the standard library errors.Join.
var Join = errors.Join

// Is is an alias for the standard library errors.Is.
var Is = errors.Is

// As is an alias for the standard library errors.As.
func As(err error, target any) bool { return errors.As(err, target) }

// Wrap annotates err with a message while keeping it available to
// errors.Is/As. Returns nil if err is nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Common sentinel errors for the goldrec system
var (
	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrClientUnavailable indicates that an external client is
	// temporarily unavailable
	ErrClientUnavailable = errors.New("client unavailable")

	// ErrRateLimited indicates that an external API rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value any, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// KeyExtractionError indicates that a primary key could not be derived
// from a record. The failure is scoped to that one record; the store is
// left unchanged for it.
type KeyExtractionError struct {
	Message string
	Err     error
}

// Error implements the error interface
func (e *KeyExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("key extraction failed: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("key extraction failed: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *KeyExtractionError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *KeyExtractionError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewKeyExtractionError creates a new KeyExtractionError
func NewKeyExtractionError(message string, err error) *KeyExtractionError {
	return &KeyExtractionError{Message: message, Err: err}
}

// DuplicateLookupError indicates an attempt to create a lookup index
// under a name that is already registered.
type DuplicateLookupError struct {
	Name string
}

// Error implements the error interface
func (e *DuplicateLookupError) Error() string {
	return fmt.Sprintf("lookup %q already exists", e.Name)
}

// Is implements errors.Is support
func (e *DuplicateLookupError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// MergeError represents a failed merge for a single record. A merge
// failure never rolls back sibling records in the same batch.
type MergeError struct {
	Key      string
	Strategy string
	Err      error
}

// Error implements the error interface
func (e *MergeError) Error() string {
	if e.Strategy != "" {
		return fmt.Sprintf("merge failed for key %s (strategy %s): %v", e.Key, e.Strategy, e.Err)
	}
	return fmt.Sprintf("merge failed for key %s: %v", e.Key, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *MergeError) Unwrap() error {
	return e.Err
}

// NewMergeError creates a new MergeError
func NewMergeError(key, strategy string, err error) *MergeError {
	return &MergeError{Key: key, Strategy: strategy, Err: err}
}

// ClientError represents an error from an external synthesis or
// embedding client.
type ClientError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *ClientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("client error from %s (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("client error from %s: %s", e.Provider, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ClientError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *ClientError) Is(target error) bool {
	if e.StatusCode == 429 {
		return target == ErrRateLimited
	}
	if e.StatusCode >= 500 {
		return target == ErrClientUnavailable
	}
	return false
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// Helper functions for error checking

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsMergeError checks if an error is a merge error
func IsMergeError(err error) bool {
	var me *MergeError
	return errors.As(err, &me)
}

// Helper wrapping functions for common patterns

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, File: file, Message: err.Error(), Err: err}
}
