package session

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrJoinFailed       = errors.New("join failed")
	ErrSignalParse      = errors.New("malformed signal")
	ErrLayoutSkipped    = errors.New("layout skipped")
	ErrStreamIgnored    = errors.New("stream ignored")
	ErrDuplicateRemote  = errors.New("duplicate remote connection")
	ErrRegistryFull     = errors.New("remote participant limit reached")
	ErrSessionLost      = errors.New("session lost")
	ErrTransportMissing = errors.New("no transport")
)

// Error ties a failure to the operation it happened in. Kind is one of the
// sentinels above; Err is the underlying cause. Both match errors.Is.
type Error struct {
	Op      string
	Kind    error
	Err     error
	Details string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")

	switch {
	case e.Kind != nil && e.Err != nil:
		fmt.Fprintf(&b, "%v: %v", e.Kind, e.Err)
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	}

	if e.Details != "" {
		fmt.Fprintf(&b, " (%s)", e.Details)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	var errs []error
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func NewError(op string, kind, err error) *Error {
	return &Error{Op: op, Kind: kind, Err: err}
}

func WrapError(op string, kind error, details string) *Error {
	return &Error{Op: op, Kind: kind, Details: details}
}
