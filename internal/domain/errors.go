package domain

import "errors"

// Sentinel errors shared across layers. The HTTP transport maps these to
// status codes; everything else compares with errors.Is.
var (
	// ErrNotFound means the requested account does not exist in the store.
	ErrNotFound = errors.New("account not found")

	// ErrDuplicateAccount means an account with the same did or handle is
	// already monitored.
	ErrDuplicateAccount = errors.New("account already monitored")

	// ErrProfileNotFound means the remote API does not know the handle.
	// Permanent: never retried.
	ErrProfileNotFound = errors.New("profile not found")

	// ErrInvalidChannel means a preference update named an unknown channel type.
	ErrInvalidChannel = errors.New("unknown notification channel")

	// ErrInvalidHandle means the request carried an empty or unusable handle.
	ErrInvalidHandle = errors.New("invalid handle")
)
