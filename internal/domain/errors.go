package domain

import (
	"errors"
	"fmt"
)

// Error codes exposed to API clients.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeNotFound        = "NOT_FOUND"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique key collision.
	ErrAlreadyExists = errors.New("already exists")
)

// Error is an application error carrying a machine readable code.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code and message, so a wrapped copy
// still satisfies errors.Is against the sentinel it came from.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code && t.Message == e.Message
}

// Wrap returns a copy of base with cause attached.
func Wrap(base *Error, cause error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Err: cause}
}

var (
	ErrUnauthenticated  = &Error{Code: CodeUnauthenticated, Message: "not authenticated: an Authorization bearer token is required"}
	ErrProductNotFound  = &Error{Code: CodeNotFound, Message: "product not found", Err: ErrNotFound}
	ErrInvalidQuantity  = &Error{Code: CodeBadUserInput, Message: "quantity must be greater than zero"}
	ErrQuantityTooLarge = &Error{Code: CodeBadUserInput, Message: "quantity exceeds the per-line limit of 2147483647"}
	ErrInvalidProduct   = &Error{Code: CodeBadUserInput, Message: "invalid product"}
)

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	if errors.Is(err, ErrNotFound) {
		return CodeNotFound
	}
	return CodeInternal
}
