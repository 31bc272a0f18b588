package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrColumnNotFound = fmt.Errorf("%w: column", ErrNotFound)
	ErrSOPNotFound    = fmt.Errorf("%w: sop", ErrNotFound)
	ErrReportNotFound = fmt.Errorf("%w: report", ErrNotFound)

	// Input contract errors
	ErrSchema        = errors.New("schema violation")
	ErrShapeMismatch = fmt.Errorf("%w: shape mismatch", ErrSchema)
	ErrBadEnum       = fmt.Errorf("%w: invalid enumeration value", ErrSchema)
	ErrMissingColumn = fmt.Errorf("%w: missing required column", ErrSchema)

	// Operation prerequisites
	ErrPrecondition      = errors.New("precondition failed")
	ErrInsufficientData  = fmt.Errorf("%w: insufficient data", ErrPrecondition)
	ErrInvalidTransition = fmt.Errorf("%w: invalid state transition", ErrPrecondition)
	ErrNoLinearityRefs   = fmt.Errorf("%w: no linearity reference samples", ErrPrecondition)
	ErrWrongPlatform     = fmt.Errorf("%w: operation not supported for platform", ErrPrecondition)

	// Configuration errors
	ErrConfiguration       = errors.New("invalid configuration")
	ErrThresholdOutOfRange = fmt.Errorf("%w: threshold out of range", ErrConfiguration)

	// Degenerate data is normally encoded in returned values; this is used
	// only where a caller explicitly asks for a hard failure.
	ErrDegenerate = errors.New("degenerate data")
)

// NewSchemaError reports an input table that violates the dataset contract.
func NewSchemaError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrSchema, field, reason)
}

// NewMissingColumnError reports a required column absent from a table.
func NewMissingColumnError(table, column string) error {
	return fmt.Errorf("%w %q in %s", ErrMissingColumn, column, table)
}

// NewPreconditionError reports an operation whose prerequisites are not met.
func NewPreconditionError(op string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrPrecondition, op, reason)
}

// NewConfigurationError reports an out-of-range or inconsistent setting.
func NewConfigurationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrConfiguration, field, reason)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsSchemaError(err error) bool {
	return errors.Is(err, ErrSchema)
}

func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrPrecondition)
}

func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
