package domain

import "fmt"

// Handlers map these to HTTP statuses with errors.As; anything else is a 500.

// ErrNotFound: the resource is missing or belongs to another user. The two
// cases are indistinguishable to callers.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ErrValidation is a user-correctable problem with one request field.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Field + ": " + e.Message
}

// ErrInvalidArgument means a pure helper got a value it has no rule for, such
// as an unknown frequency. Callers never see it unless the code is wrong.
type ErrInvalidArgument struct {
	Argument string
	Reason   string
}

func (e *ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Argument, e.Reason)
}

// ErrConflict: a unique value, such as a username, is already taken.
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string { return e.Message }

// ErrUnauthorized covers bad credentials and bad tokens alike.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message == "" {
		return "unauthorized"
	}
	return e.Message
}

// ErrExternalService wraps a failure of the database or the broker.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error { return e.Err }
