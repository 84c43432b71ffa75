package errors

import (
	"errors"
	"fmt"

	xe "github.com/Lelouch-Britannia/KubePlayground/pkg/errors"
)

type wrappingError struct {
	message  string
	causedBy error
}

func as[E error](err error) bool {
	if err == nil {
		return false
	}
	p := new(E)
	return errors.As(err, p)
}

func format(e struct {
	message  string
	causedBy error
}) string {
	if e.causedBy == nil {
		return e.message
	}
	if e.message == "" {
		return fmt.Sprintf("caused by: %+v", e.causedBy)
	}

	return fmt.Sprintf("%s / caused by: %+v", e.message, e.causedBy)
}

// Requested resource does not exist.
//
// Verify for an owner without a prior Deploy ends here,
// as does resolving a scope that has been reset or reaped.
type ErrMissing wrappingError

var AsMissingError = as[*ErrMissing]

func NewMissing(message string) error {
	return xe.WrapAsOuter(&ErrMissing{message: message}, 1)
}

func NewMissingCausedBy(message string, err error) error {
	return xe.WrapAsOuter(&ErrMissing{message: message, causedBy: err}, 1)
}

func (e *ErrMissing) Error() string {
	return format(*e)
}

func (e *ErrMissing) Unwrap() error {
	return e.causedBy
}

// Something already exists where a new thing should be created.
type ErrConflict wrappingError

var AsConflict = as[*ErrConflict]

func NewConflict(message string) error {
	return xe.WrapAsOuter(&ErrConflict{message: message}, 1)
}

func NewConflictCausedBy(message string, err error) error {
	return xe.WrapAsOuter(&ErrConflict{message: message, causedBy: err}, 1)
}

func (e *ErrConflict) Error() string {
	return format(*e)
}

func (e *ErrConflict) Unwrap() error {
	return e.causedBy
}

// Too many live isolation scopes.
// The user should retry later, or wait for a reaper cycle.
type ErrExhausted wrappingError

var AsExhausted = as[*ErrExhausted]

func NewExhausted(message string) error {
	return xe.WrapAsOuter(&ErrExhausted{message: message}, 1)
}

func (e *ErrExhausted) Error() string {
	return format(*e)
}

func (e *ErrExhausted) Unwrap() error {
	return e.causedBy
}

// Malformed input: a bad envelope, an unparsable manifest, an unknown
// predicate. Rejected before any cluster interaction.
type ErrInvalid wrappingError

var AsInvalid = as[*ErrInvalid]

func NewInvalid(message string) error {
	return xe.WrapAsOuter(&ErrInvalid{message: message}, 1)
}

func NewInvalidCausedBy(message string, err error) error {
	return xe.WrapAsOuter(&ErrInvalid{message: message, causedBy: err}, 1)
}

func (e *ErrInvalid) Error() string {
	return format(*e)
}

func (e *ErrInvalid) Unwrap() error {
	return e.causedBy
}

// operation takes too long time.
var ErrDeadlineExceeded = errors.New("deadline exceeded")
