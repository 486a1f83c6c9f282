package predicate

import (
	"errors"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/zeek2es/pkg/errors"
)

var (
	ErrUnterminatedString = errors.New("unterminated string")
	ErrUnexpectedChar     = errors.New("unexpected character")
	ErrEmptyExpression    = errors.New("empty expression")
	ErrUnexpectedToken    = errors.New("unexpected token")
	ErrUnmatchedParen     = errors.New("unmatched parenthesis")
)

// ParseError reports where an expression failed to parse. It matches both
// its specific cause and errors.ErrInvalidFilter.
type ParseError struct {
	Pos     int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("filter parse error at position %d: %s", e.Pos, e.Message)
}

func (e *ParseError) Unwrap() []error {
	return []error{e.Err, apperrors.ErrInvalidFilter}
}

func newParseError(pos int, err error, format string, args ...any) *ParseError {
	return &ParseError{Pos: pos, Message: fmt.Sprintf(format, args...), Err: err}
}
