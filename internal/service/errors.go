package service

import (
	"errors"
	"fmt"

	"github.com/Hussein-Mazeh/credvault/internal/vault"
)

// Error kinds returned by Session operations. Every error a Session returns
// is an *Error whose Kind is one of these.
var (
	ErrInvalidInput = vault.ErrInvalidInput
	ErrIntegrity    = vault.ErrIntegrity
	ErrNotFound     = vault.ErrNotFound
	ErrUnlock       = errors.New("unlock failed")
	ErrPersist      = errors.New("persist failed")
	ErrClosed       = errors.New("session is closed")
)

// Error describes a failed session operation. errors.Is matches both the
// Kind and anything in the wrapped cause chain.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	case errors.Is(e.Err, e.Kind):
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// classify picks the Kind for an error coming out of the store layer.
func classify(op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return newError(op, ErrNotFound, err)
	case errors.Is(err, ErrIntegrity):
		return newError(op, ErrIntegrity, err)
	default:
		return newError(op, ErrInvalidInput, err)
	}
}
