// Package util holds small helpers shared across gwswitch packages.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrNotSupported   = errors.New("not supported on this platform")
	ErrPermission     = errors.New("permission denied")
	ErrDefaultProfile = errors.New("default profile cannot be deleted")
	ErrBadPassword    = errors.New("invalid password")
)

// WrapError wraps err with msg. A nil err stays nil.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf is WrapError with a format string.
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsNotSupported reports whether err wraps ErrNotSupported.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

// MultiError collects independent failures, e.g. one per route.
type MultiError struct {
	Errors []error
}

// NewMultiError creates an empty MultiError.
func NewMultiError() *MultiError {
	return &MultiError{}
}

// Add records err if it is non-nil.
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Len returns the number of collected errors.
func (m *MultiError) Len() int {
	return len(m.Errors)
}

// Err returns nil when nothing was collected.
func (m *MultiError) Err() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// Summary joins at most limit messages with "; ". A limit <= 0 means all.
func (m *MultiError) Summary(limit int) string {
	errs := m.Errors
	if limit > 0 && len(errs) > limit {
		errs = errs[:limit]
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return ""
	case 1:
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors occurred: %s", len(m.Errors), m.Summary(0))
}

// Unwrap supports errors.Is and errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}
