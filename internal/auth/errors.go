package auth

import "errors"

var (
	// ErrDuplicateUser is returned by Register when the username is taken.
	ErrDuplicateUser = errors.New("username already registered")

	// ErrInvalidCredentials is returned by Login for an unknown username or a
	// wrong password. The two cases are indistinguishable.
	ErrInvalidCredentials = errors.New("incorrect username or password")

	// ErrInvalidToken covers malformed, expired, badly signed, and subject-less tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrInvalidRequest is returned for missing or unusable input.
	ErrInvalidRequest = errors.New("invalid request")
)
