package store

import "errors"

var (
	// ErrNotFound means the account id or email is not in the store.
	ErrNotFound = errors.New("account not found")
	// ErrDuplicate means the email is already registered.
	ErrDuplicate = errors.New("account already exists")
	// ErrBadArgument means a device-profile argument was rejected.
	ErrBadArgument = errors.New("bad argument")
)
