// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error leaving the engine wraps exactly one of these.
var (
	// ErrValidation marks malformed input or a violated precondition.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a missing transaction, entry, rule or account.
	ErrNotFound = errors.New("not found")
	// ErrInternal marks storage failures and unexpected faults.
	ErrInternal = errors.New("internal error")
)

// Kind is the coarse classification of an error.
type Kind int

// Error kinds.
const (
	KindNone Kind = iota
	KindValidation
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Validationf creates a validation error with a human-readable message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFoundf creates a not-found error naming the missing object.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Internal wraps err as an internal failure of op. Errors that are already
// classified keep their classification.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindInternal {
		return err
	}
	if errors.Is(err, ErrInternal) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}

// KindOf classifies err. Unclassified errors count as internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// Message strips the taxonomy prefix so the text can be shown to a user.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, sentinel := range []error{ErrValidation, ErrNotFound, ErrInternal} {
		prefix := sentinel.Error() + ": "
		if len(msg) > len(prefix) && msg[:len(prefix)] == prefix {
			return msg[len(prefix):]
		}
	}
	return msg
}
