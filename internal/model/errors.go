package model

import "errors"

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")

	// Token related errors
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenNotFound = errors.New("token not found")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// OAuth related errors
	ErrUnknownProvider     = errors.New("unknown oauth provider")
	ErrProviderUnavailable = errors.New("oauth provider unavailable")
	ErrInvalidOAuthState   = errors.New("invalid oauth state")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
