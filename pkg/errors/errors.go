// Package errors defines the sentinel errors shared by the tweet topic
// pipeline and maps them to process exit codes at the command boundary.
package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("no tweets stored for date")
	ErrArtifactMissing    = errors.New("artifact missing")
	ErrExhaustedCorpus    = errors.New("no pending documents")
	ErrDuplicateKey       = errors.New("record already exists")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrEmptyBatch         = errors.New("empty training batch")
	ErrInvalidInput       = errors.New("invalid input")
	ErrInternal           = errors.New("internal error")
)

// Exit codes returned by the commands.
const (
	ExitOK          = 0
	ExitInternal    = 1
	ExitUsage       = 2
	ExitNotFound    = 3
	ExitStorageDown = 4
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// ExitCode picks the process exit code for an error that reached the
// invocation boundary.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.ExitCode != 0 {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return ExitUsage
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrStorageUnavailable):
		return ExitStorageDown
	default:
		return ExitInternal
	}
}

// Recoverable reports whether err is one of the conditions the lifecycle
// manager turns into a state transition instead of a failure.
func Recoverable(err error) bool {
	return errors.Is(err, ErrArtifactMissing) ||
		errors.Is(err, ErrExhaustedCorpus) ||
		errors.Is(err, ErrDuplicateKey) ||
		errors.Is(err, ErrEmptyBatch)
}
