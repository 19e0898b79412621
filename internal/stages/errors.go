package stages

import (
	"errors"
	"fmt"

	"github.com/ternarybob/trendreel/internal/models"
)

// ErrorKind classifies stage failures.
type ErrorKind string

const (
	// KindValidation: the stage input violated a precondition. Raised before
	// any external call and never retried automatically.
	KindValidation ErrorKind = "validation"
	// KindCapability: an external capability failed, timed out or returned a
	// non-conforming payload.
	KindCapability ErrorKind = "capability"
	// KindSequencing: a stage was invoked without a satisfied prerequisite.
	KindSequencing ErrorKind = "sequencing"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrCapability          = errors.New("capability failure")
	ErrMissingPrerequisite = errors.New("missing prerequisite")
)

// StageError ties a failure to the stage that raised it.
type StageError struct {
	Stage models.StageName
	Kind  ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel belonging to the error's kind.
func (e *StageError) Is(target error) bool {
	switch target {
	case ErrInvalidInput:
		return e.Kind == KindValidation
	case ErrCapability:
		return e.Kind == KindCapability
	case ErrMissingPrerequisite:
		return e.Kind == KindSequencing
	}
	return false
}

// invalidInput builds a validation error naming the offending field.
func invalidInput(stage models.StageName, format string, args ...interface{}) error {
	return &StageError{Stage: stage, Kind: KindValidation, Err: fmt.Errorf(format, args...)}
}

// capabilityFailure wraps a non-conforming capability result.
func capabilityFailure(stage models.StageName, format string, args ...interface{}) error {
	return &StageError{Stage: stage, Kind: KindCapability, Err: fmt.Errorf(format, args...)}
}

// MissingPrerequisite builds a sequencing error.
func MissingPrerequisite(stage models.StageName, what string) error {
	return &StageError{
		Stage: stage,
		Kind:  KindSequencing,
		Err:   fmt.Errorf("missing prerequisite: %s", what),
	}
}

// KindOf returns the kind of a stage error, or capability for anything else
// (an unclassified error always comes from outside the stage's own checks).
func KindOf(err error) ErrorKind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindCapability
}

// InvalidOutput builds a capability error for a stage whose output breaks
// the stage contract.
func InvalidOutput(stage models.StageName, format string, args ...interface{}) error {
	return capabilityFailure(stage, format, args...)
}

// Attribute ties an unclassified error to stage. Stage errors pass through
// unchanged.
func Attribute(stage models.StageName, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Kind: KindCapability, Err: err}
}
