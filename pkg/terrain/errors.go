package terrain

import (
	"errors"
	"fmt"

	"github.com/siohaza/terragen/pkg/noise"
)

var (
	// ErrInvalidParameter is reported before any computation starts.
	ErrInvalidParameter = noise.ErrInvalidParameter
	// ErrCancelled means the run was abandoned cooperatively; callers may
	// discard it silently.
	ErrCancelled = errors.New("generation cancelled")
	// ErrInternalFault is an unexpected failure mid-run.
	ErrInternalFault = errors.New("internal fault")
)

// ParamError names the offending Params field.
type ParamError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ParamError) Unwrap() error {
	return ErrInvalidParameter
}

func invalid(field string, value any, reason string) error {
	return &ParamError{Field: field, Value: value, Reason: reason}
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}

func fault(stage Stage, cause error) error {
	return fmt.Errorf("%w: stage %s: %w", ErrInternalFault, stage, cause)
}

func isCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
