package httperr

import "errors"

type BadRequestError struct {
	msg string
}

func (e *BadRequestError) Error() string { return e.msg }

func NewBadRequest(msg string) error { return &BadRequestError{msg: msg} }

func IsBadRequest(err error) bool {
	_, ok := errors.AsType[*BadRequestError](err)
	return ok
}

type NotFoundError struct {
	msg string
}

func (e *NotFoundError) Error() string { return e.msg }

func NewNotFound(msg string) error { return &NotFoundError{msg: msg} }

func IsNotFound(err error) bool {
	_, ok := errors.AsType[*NotFoundError](err)
	return ok
}

// ConflictError reports a request that is well formed but refused by the
// current state, e.g. deleting a protected role.
type ConflictError struct {
	msg string
}

func (e *ConflictError) Error() string { return e.msg }

func NewConflict(msg string) error { return &ConflictError{msg: msg} }

func IsConflict(err error) bool {
	_, ok := errors.AsType[*ConflictError](err)
	return ok
}

// ForbiddenError reports an action the caller's role may not take on the
// target, even though the route permission was granted.
type ForbiddenError struct {
	msg string
}

func (e *ForbiddenError) Error() string { return e.msg }

func NewForbidden(msg string) error { return &ForbiddenError{msg: msg} }

func IsForbidden(err error) bool {
	_, ok := errors.AsType[*ForbiddenError](err)
	return ok
}
