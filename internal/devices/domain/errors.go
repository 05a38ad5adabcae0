package devices

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("device: validation failed")
	// ErrUnauthenticated is returned when no principal is present.
	ErrUnauthenticated = errors.New("device: unauthenticated")
	// ErrStore matches every *StoreError via errors.Is.
	ErrStore = errors.New("device: store failure")
	// ErrNilStore is returned when a store dependency is missing.
	ErrNilStore = errors.New("device: nil store")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// NewValidationError constructs a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return newValidationError(field, message)
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("device: invalid %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreError wraps a Device Store failure and keeps the original detail.
type StoreError struct {
	Op  string
	Err error
}

// NewStoreError wraps err; nil stays nil.
func NewStoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StoreError
	if errors.As(err, &existing) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func (e *StoreError) Error() string {
	if e.Err == nil {
		return "device store: " + e.Op
	}
	return fmt.Sprintf("device store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrStore) hold.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}
