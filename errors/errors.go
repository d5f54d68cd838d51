/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package errors

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	// ErrNotFound is returned when an entity is not found
	ErrNotFound = errors.New("entity not found")

	// ErrAlreadyExists is returned when attempting to create an entity that already exists
	ErrAlreadyExists = errors.New("entity already exists")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrIntrospection is returned when a type cannot be described by the registry.
	// It signals a programming or schema error and is never transient.
	ErrIntrospection = errors.New("introspection failed")

	// ErrSessionClosed is returned by collections whose session has been closed
	ErrSessionClosed = errors.New("session closed")

	// ErrTypeMismatch is returned when an alias is already bound to another entity type
	ErrTypeMismatch = errors.New("collection type mismatch")
)

// NotFoundError represents an error when an entity is not found
type NotFoundError struct {
	Type string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with key %q not found", e.Type, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// AlreadyExistsError represents an error when an entity already exists
type AlreadyExistsError struct {
	Type string
	Key  string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s with key %q already exists", e.Type, e.Key)
}

func (e *AlreadyExistsError) Is(target error) bool {
	return target == ErrAlreadyExists
}

// ValidationError represents an input validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %q: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// IntrospectionError describes a type that the registry cannot describe,
// or a field that has no accessor for the requested operation.
type IntrospectionError struct {
	Type   string
	Field  string
	Reason string
}

func (e *IntrospectionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("introspection of %s.%s failed: %s", e.Type, e.Field, e.Reason)
	}
	return fmt.Sprintf("introspection of %s failed: %s", e.Type, e.Reason)
}

func (e *IntrospectionError) Is(target error) bool {
	return target == ErrIntrospection
}

// TypeMismatchError is returned when an alias resolves to a collection of another type
type TypeMismatchError struct {
	Alias    string
	Existing string
	Wanted   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("collection %q holds %s, not %s", e.Alias, e.Existing, e.Wanted)
}

func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

// Helper functions for creating errors

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(entityType, key string) error {
	return &NotFoundError{Type: entityType, Key: key}
}

// NewAlreadyExistsError creates a new AlreadyExistsError
func NewAlreadyExistsError(entityType, key string) error {
	return &AlreadyExistsError{Type: entityType, Key: key}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NewIntrospectionError creates a new IntrospectionError for a whole type
func NewIntrospectionError(entityType, reason string) error {
	return &IntrospectionError{Type: entityType, Reason: reason}
}

// NewFieldIntrospectionError creates a new IntrospectionError for one field
func NewFieldIntrospectionError(entityType, field, reason string) error {
	return &IntrospectionError{Type: entityType, Field: field, Reason: reason}
}

// NewTypeMismatchError creates a new TypeMismatchError
func NewTypeMismatchError(alias, existing, wanted string) error {
	return &TypeMismatchError{Alias: alias, Existing: existing, Wanted: wanted}
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsIntrospection checks if an error is an introspection error
func IsIntrospection(err error) bool {
	return errors.Is(err, ErrIntrospection)
}

// IsSessionClosed checks if an error was caused by a closed session
func IsSessionClosed(err error) bool {
	return errors.Is(err, ErrSessionClosed)
}
