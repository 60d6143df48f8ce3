// Package shared holds cross-module primitives: the domain error model
// and list filtering used by every vertical.
package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain errors for the HTTP envelope.
type ErrorKind string

const (
	// KindValidation indicates malformed or out-of-range input.
	KindValidation ErrorKind = "VALIDATION"
	// KindInsufficientQuantity indicates an allocation exceeding availability.
	KindInsufficientQuantity ErrorKind = "INSUFFICIENT_QUANTITY"
	// KindHold indicates an allocation against an ON_HOLD batch.
	KindHold ErrorKind = "HOLD"
	// KindDuplicateKey indicates a unique-constraint violation on a natural key.
	KindDuplicateKey ErrorKind = "DUPLICATE_KEY"
	// KindInvariant indicates an internal consistency check failed (caller bug).
	KindInvariant ErrorKind = "INVARIANT_VIOLATION"
	// KindConflict indicates a concurrent mutation lost the race after retries.
	KindConflict ErrorKind = "CONFLICT"
	// KindNotFound indicates the referenced record does not exist.
	KindNotFound ErrorKind = "NOT_FOUND"
)

// DomainError carries an ErrorKind alongside the message so callers can
// render a user-facing response without string matching.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Validation builds a KindValidation error.
func Validation(format string, args ...any) error {
	return &DomainError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &DomainError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// DuplicateKey builds a KindDuplicateKey error.
func DuplicateKey(format string, args ...any) error {
	return &DomainError{Kind: KindDuplicateKey, Message: fmt.Sprintf(format, args...)}
}

// Invariant builds a KindInvariant error.
func Invariant(format string, args ...any) error {
	return &DomainError{Kind: KindInvariant, Message: fmt.Sprintf(format, args...)}
}

// Conflict builds a KindConflict error, optionally wrapping the storage error.
func Conflict(err error, format string, args ...any) error {
	return &DomainError{Kind: KindConflict, Message: fmt.Sprintf(format, args...), Err: err}
}

// Hold builds a KindHold error.
func Hold(format string, args ...any) error {
	return &DomainError{Kind: KindHold, Message: fmt.Sprintf(format, args...)}
}

// InsufficientQuantityError reports requested vs available bag counts.
type InsufficientQuantityError struct {
	Requested int64
	Available int64
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("insufficient quantity: requested %d bags, %d available", e.Requested, e.Available)
}

// KindOf extracts the ErrorKind from err, or "" for untyped errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	var iq *InsufficientQuantityError
	if errors.As(err, &iq) {
		return KindInsufficientQuantity
	}
	return ""
}
