package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfigConflict   = errors.New("conflicting options")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrHeaderNotFound   = errors.New("header not found")
	ErrPathNotDerivable = errors.New("log path not derivable")
	ErrInvalidFilter    = errors.New("invalid filter expression")
	ErrNumericParse     = errors.New("numeric parse error")
	ErrInput            = errors.New("input unavailable")
	ErrDelivery         = errors.New("bulk delivery failed")
	ErrProvision        = errors.New("provisioning failed")
	ErrInternal         = errors.New("internal error")
)

// Process exit codes. Any non-zero code means no or partial data was written.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfig        = 2
	ExitMissingOpen   = 3
	ExitMissingPath   = 4
	ExitInvalidFilter = 5
	ExitInput         = 6
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

// HeaderError reports a missing or malformed Zeek metadata line. Tag is the
// line's prefix token, e.g. "#open".
type HeaderError struct {
	Tag    string
	Source string
}

func (e *HeaderError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s: %s", ErrHeaderNotFound, e.Tag)
	}
	return fmt.Sprintf("%s: %s in %s", ErrHeaderNotFound, e.Tag, e.Source)
}

func (e *HeaderError) Unwrap() error {
	return ErrHeaderNotFound
}

// ExitCode maps an error returned from a run to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.ExitCode != 0 {
		return appErr.ExitCode
	}
	var hdrErr *HeaderError
	if errors.As(err, &hdrErr) {
		if hdrErr.Tag == "#path" {
			return ExitMissingPath
		}
		return ExitMissingOpen
	}

	switch {
	case errors.Is(err, ErrConfigConflict), errors.Is(err, ErrInvalidConfig):
		return ExitConfig
	case errors.Is(err, ErrHeaderNotFound):
		return ExitMissingOpen
	case errors.Is(err, ErrPathNotDerivable):
		return ExitMissingPath
	case errors.Is(err, ErrInvalidFilter):
		return ExitInvalidFilter
	case errors.Is(err, ErrInput):
		return ExitInput
	default:
		return ExitFailure
	}
}

// Is and As re-export the standard helpers so callers importing this package
// under its usual alias do not also need the standard errors package.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
