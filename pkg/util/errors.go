// Package util provides logging, common error types and small parsing helpers.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// match with errors.Is without caring about the concrete type.
var (
	ErrDuplicateEntry    = errors.New("entry already exists")
	ErrNotFound          = errors.New("entry not found")
	ErrHardwareRejected  = errors.New("hardware rejected operation")
	ErrInvalidReference  = errors.New("invalid reference")
	ErrValidationFailed  = errors.New("validation failed")
	ErrDependencyMissing = errors.New("required dependency missing")
)

// DuplicateEntryError is returned when an add targets a key that already
// has a live (resolved or unresolved) entry.
type DuplicateEntryError struct {
	Resource string
	Key      string
}

func (e *DuplicateEntryError) Error() string {
	return fmt.Sprintf("%s %s already exists", e.Resource, e.Key)
}

func (e *DuplicateEntryError) Unwrap() error {
	return ErrDuplicateEntry
}

// NewDuplicateEntryError creates a duplicate entry error
func NewDuplicateEntryError(resource, key string) *DuplicateEntryError {
	return &DuplicateEntryError{Resource: resource, Key: key}
}

// NotFoundError is returned when a remove or change targets a key with no
// live entry.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

// HardwareError records a create/remove/set call refused by the hardware
// API. It matches both ErrHardwareRejected and the backend's own error.
type HardwareError struct {
	Op  string
	Key string
	Err error
}

func (e *HardwareError) Error() string {
	return fmt.Sprintf("hardware %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *HardwareError) Unwrap() []error {
	return []error{ErrHardwareRejected, e.Err}
}

// NewHardwareError creates a hardware error
func NewHardwareError(op, key string, err error) *HardwareError {
	return &HardwareError{Op: op, Key: key, Err: err}
}

// InvalidReferenceError represents an entity referring to another entity
// that is absent from the same snapshot.
type InvalidReferenceError struct {
	Resource string
	RefType  string
	RefName  string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("%s references missing %s '%s'", e.Resource, e.RefType, e.RefName)
}

func (e *InvalidReferenceError) Unwrap() error {
	return ErrInvalidReference
}

// NewInvalidReferenceError creates an invalid reference error
func NewInvalidReferenceError(resource, refType, refName string) *InvalidReferenceError {
	return &InvalidReferenceError{Resource: resource, RefType: refType, RefName: refName}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []error
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0].Error()
	}
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Unwrap exposes ErrValidationFailed and every collected error, so a
// validation error made of dangling references also matches ErrInvalidReference.
func (e *ValidationError) Unwrap() []error {
	return append([]error{ErrValidationFailed}, e.Errors...)
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []error
}

// Add adds err if condition is false
func (v *ValidationBuilder) Add(condition bool, err error) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, err)
	}
	return v
}

// AddError adds an error unconditionally
func (v *ValidationBuilder) AddError(err error) *ValidationBuilder {
	v.errors = append(v.errors, err)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Errorf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// DependencyError represents a missing dependency
type DependencyError struct {
	Resource      string
	DependsOn     string
	DependsOnType string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("%s requires %s '%s' to be programmed", e.Resource, e.DependsOnType, e.DependsOn)
}

func (e *DependencyError) Unwrap() error {
	return ErrDependencyMissing
}

// NewDependencyError creates a dependency error
func NewDependencyError(resource, dependsOnType, dependsOn string) *DependencyError {
	return &DependencyError{
		Resource:      resource,
		DependsOn:     dependsOn,
		DependsOnType: dependsOnType,
	}
}
