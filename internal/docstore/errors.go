package docstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("docstore: not found")
	ErrAlreadyExists    = errors.New("docstore: already exists")
	ErrPermissionDenied = errors.New("docstore: permission denied")
	ErrInvalidField     = errors.New("docstore: invalid field name")
)

// IsTransient reports whether err is a failure that might succeed on a
// later attempt: anything that is not one of the store's definitive
// answers. Nothing in this codebase retries, the distinction only
// shapes the message shown to users.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyExists),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrInvalidField),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
