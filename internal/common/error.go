// Package common defines shared constants and sentinel errors used across
// the SDK layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Storage / cache errors.
	ErrorNotFound = errors.New("not found")

	// Generic flow-control errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Token lifecycle errors.
	ErrInvalidToken    = errors.New("invalid token")
	ErrTokenExpired    = errors.New("token expired")
	ErrNoRefreshToken  = errors.New("no refresh token")
	ErrRefreshInFlight = errors.New("refresh already in flight")
	ErrNoSession       = errors.New("no active session")

	// OAuth flow errors.
	ErrNoNonce = errors.New("missing oauth nonce")
)
