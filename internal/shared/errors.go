package shared

import "errors"

// Sentinels shared across domains; package-local rejections live with their
// own package.
var (
	// ErrNotFound covers any lookup miss the caller may not distinguish
	// from a row they are not allowed to see.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials is returned for every login failure, deliberately
	// vague so responses never reveal whether the email exists.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
