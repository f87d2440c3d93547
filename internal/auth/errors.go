package auth

import "errors"

var (
	ErrTokenInvalid = errors.New("invalid token")
	ErrForbidden    = errors.New("insufficient scope")
	ErrNoSecret     = errors.New("signing secret is required")
)
