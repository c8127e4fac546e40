package filterengine

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Status classifies the outcome of a match call.
type Status int

const (
	StatusOk Status = iota
	StatusNotMatched
	StatusInvalid
	StatusMatchError
	StatusOptionError
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusNotMatched:
		return "NotMatched"
	case StatusInvalid:
		return "Invalid"
	case StatusMatchError:
		return "MatchError"
	case StatusOptionError:
		return "OptionError"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// UnknownKey is the failure path of faults that carry no taxonomy status.
const UnknownKey = "<UNKNOWN>"

var (
	// ErrNullValue is returned by getters when the field holds no value.
	ErrNullValue = errors.New("field value is null")
	// ErrTargetNotFound is returned by lazy accessors that cannot produce a target.
	ErrTargetNotFound = errors.New("target not found")
)

// Error is a classified failure carrying the path where it happened.
type Error struct {
	Status   Status
	Message  string
	Operator string
	Operand  string
	Path     *FailurePath
	cause    error
}

func newError(status Status, key, msg string) *Error {
	e := &Error{Status: status, Message: msg}
	if key != "" {
		e.Path = NewFailurePath(key)
	}
	return e
}

func NotMatchedf(key, format string, args ...any) *Error {
	return newError(StatusNotMatched, key, fmt.Sprintf(format, args...))
}

func Invalidf(key, format string, args ...any) *Error {
	return newError(StatusInvalid, key, fmt.Sprintf(format, args...))
}

func MatchErrorf(key, format string, args ...any) *Error {
	return newError(StatusMatchError, key, fmt.Sprintf(format, args...))
}

func OptionErrorf(format string, args ...any) *Error {
	return newError(StatusOptionError, "", fmt.Sprintf(format, args...))
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Status.String())
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Path != nil {
		b.WriteString(" [")
		b.WriteString(e.Path.String())
		b.WriteString("]")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// WithOperand records the operator and its serialized operand.
func (e *Error) WithOperand(operator string, operand Value) *Error {
	e.Operator = operator
	e.Operand = operand.String()
	return e
}

// Prepend returns a copy of e with key in front of its failure path.
func (e *Error) Prepend(key string) *Error {
	cp := *e
	cp.Path = e.Path.Prepend(key)
	return &cp
}

// Keys flattens the failure path. A nil error has no keys.
func (e *Error) Keys() []string {
	if e == nil {
		return nil
	}
	return e.Path.Keys()
}

// AsError finds the classified error in err's chain. Anything else becomes a
// MatchError at UnknownKey with the original message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return MatchErrorf(UnknownKey, "%s", err.Error()).WithCause(err)
}

// StatusOf is StatusOk for nil and the classified status otherwise.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOk
	}
	return AsError(err).Status
}
