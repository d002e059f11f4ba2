package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies recoverable failures of the routing core.
type ErrorKind int

const (
	// KindUnknown is the zero value for errors that carry no classification.
	KindUnknown ErrorKind = iota
	// KindValidation marks malformed input such as a bad postal code or a missing required field.
	KindValidation
	// KindNotFound marks an unresolvable postal code, address, or entity.
	KindNotFound
	// KindDuplicate marks a dedup hit. It is a skip signal, not a failure.
	KindDuplicate
	// KindPersistence marks a store write failure.
	KindPersistence
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindDuplicate:
		return "duplicate"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is a classified domain error.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidation wraps err as a validation error.
func NewValidation(op string, err error) *Error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// NewNotFound wraps err as a not-found error.
func NewNotFound(op string, err error) *Error {
	return &Error{Kind: KindNotFound, Op: op, Err: err}
}

// NewDuplicate wraps err as a duplicate signal.
func NewDuplicate(op string, err error) *Error {
	return &Error{Kind: KindDuplicate, Op: op, Err: err}
}

// NewPersistence wraps err as a persistence error.
func NewPersistence(op string, err error) *Error {
	return &Error{Kind: KindPersistence, Op: op, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsValidation reports whether err is classified as a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsNotFound reports whether err is classified as a not-found error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsDuplicate reports whether err is a dedup signal.
func IsDuplicate(err error) bool { return KindOf(err) == KindDuplicate }

// IsPersistence reports whether err is classified as a persistence error.
func IsPersistence(err error) bool { return KindOf(err) == KindPersistence }
