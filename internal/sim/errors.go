package sim

import (
	"errors"
	"fmt"
)

// DesignError represents an invalid design or an invalid stimulus.
//
// Design errors are reported while building a design or scheduling drives:
//   - unknown instance, signal or element references
//   - duplicate names
//   - widths outside 1..64
//   - drives scheduled before the current time
type DesignError struct {
	// Code identifies the error category.
	Code DesignErrorCode

	// Message is a human-readable description.
	Message string

	// Ref names the offending instance or signal, if any.
	Ref string
}

// DesignErrorCode categorizes design errors.
type DesignErrorCode string

const (
	// ErrCodeUnknownRef indicates a reference to a missing instance, signal or element.
	ErrCodeUnknownRef DesignErrorCode = "UNKNOWN_REF"

	// ErrCodeDuplicate indicates a name declared twice.
	ErrCodeDuplicate DesignErrorCode = "DUPLICATE"

	// ErrCodeWidth indicates a signal width outside 1..64.
	ErrCodeWidth DesignErrorCode = "BAD_WIDTH"

	// ErrCodeTimeRegression indicates a drive scheduled in the past.
	ErrCodeTimeRegression DesignErrorCode = "TIME_REGRESSION"

	// ErrCodeBadProcess indicates a malformed process.
	ErrCodeBadProcess DesignErrorCode = "BAD_PROCESS"
)

// Error implements the error interface.
func (e *DesignError) Error() string {
	if e.Ref != "" {
		return fmt.Sprintf("%s: %s (ref=%s)", e.Code, e.Message, e.Ref)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsDesignError reports whether err wraps a DesignError with the given code.
// Uses errors.As to handle wrapped errors.
func IsDesignError(err error, code DesignErrorCode) bool {
	var de *DesignError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

func unknownRef(kind, ref string) *DesignError {
	return &DesignError{Code: ErrCodeUnknownRef, Message: "unknown " + kind, Ref: ref}
}

// DefaultMaxDeltas is the default number of delta steps allowed within one
// physical instant. Zero-delay feedback loops hit this limit instead of
// spinning forever.
const DefaultMaxDeltas = 1000

// DeltaLimitError is returned when a physical instant needs more delta
// steps than the configured limit.
type DeltaLimitError struct {
	Time  Time // slot that exceeded the limit
	Limit uint32
}

// Error implements the error interface.
func (e *DeltaLimitError) Error() string {
	return fmt.Sprintf("delta step limit exceeded at %s: %d > %d", e.Time, e.Time.Delta, e.Limit)
}

// IsDeltaLimitError reports whether err wraps a DeltaLimitError.
func IsDeltaLimitError(err error) bool {
	var de *DeltaLimitError
	return errors.As(err, &de)
}
