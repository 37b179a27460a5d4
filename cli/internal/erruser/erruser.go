// Package erruser provides errors whose Error() returns only a user-facing
// message. The cause stays reachable through Unwrap and is printed by the CLI
// on a separate "Details:" line.
package erruser

import (
	"errors"
	"fmt"
)

// Err is a user-facing message with an optional technical cause.
type Err struct {
	Msg string
	Err error
}

// Error returns the user-facing message only.
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// Unwrap returns the cause.
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an error with the given user-facing message. A nil cause yields
// a plain error.
func New(msg string, err error) error {
	if err == nil {
		return errors.New(msg)
	}
	return &Err{Msg: msg, Err: err}
}

// Newf is New with a formatted message.
func Newf(err error, format string, args ...any) error {
	return New(fmt.Sprintf(format, args...), err)
}

// Details returns the cause behind a user-facing error anywhere in err's
// chain, or nil.
func Details(err error) error {
	var ue *Err
	if errors.As(err, &ue) {
		return ue.Unwrap()
	}
	return nil
}
