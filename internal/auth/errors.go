package auth

import "errors"

var (
	ErrNotFound     = errors.New("auth: not found")
	ErrConflict     = errors.New("auth: resource conflict")
	ErrInvalidInput = errors.New("auth: invalid input")
	ErrUnauthorized = errors.New("auth: unauthorized")
)

// ErrInvalidToken indicates the token failed validation. Bad signature,
// expiry, malformed input and wrong token type all collapse to this single
// value so callers cannot tell which check failed.
var ErrInvalidToken = errors.New("auth: invalid token")
