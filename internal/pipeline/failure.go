package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/statement-normalizer/internal/statement"
)

// FailureKind classifies a failed run in the result envelope.
type FailureKind string

const (
	KindNoValidAccounts     FailureKind = "NO_VALID_ACCOUNTS"
	KindTextEmpty           FailureKind = "TEXT_EMPTY"
	KindInvalidAIOutput     FailureKind = "INVALID_AI_OUTPUT"
	KindModelUnavailable    FailureKind = "MODEL_UNAVAILABLE"
	KindFileTooLarge        FailureKind = "FILE_TOO_LARGE"
	KindUnsupportedFileType FailureKind = "UNSUPPORTED_FILE_TYPE"
	KindSourceUnavailable   FailureKind = "SOURCE_UNAVAILABLE"
	KindCancelled           FailureKind = "CANCELLED"
	KindInternal            FailureKind = "INTERNAL_ERROR"
)

// Failure is the error part of the result envelope.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// ProcessError tags an error with the failure kind it maps to.
type ProcessError struct {
	Kind FailureKind
	Err  error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }

func fail(kind FailureKind, format string, args ...any) error {
	return &ProcessError{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// FailureFrom classifies any error returned by the pipeline.
func FailureFrom(err error) *Failure {
	if err == nil {
		return nil
	}

	var pe *ProcessError
	var se *statement.StatementError
	switch {
	case errors.As(err, &pe):
		return &Failure{Kind: pe.Kind, Message: pe.Err.Error()}
	case errors.As(err, &se):
		return &Failure{Kind: KindNoValidAccounts, Message: se.Error()}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: KindCancelled, Message: err.Error()}
	default:
		return &Failure{Kind: KindInternal, Message: err.Error()}
	}
}
