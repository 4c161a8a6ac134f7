package service

import "errors"

// Sentinel errors for the auth flows; the handler maps them to HTTP statuses.
// Unknown email and wrong password both surface as ErrInvalidCredentials so a
// caller cannot enumerate accounts; the precise cause lives in the audit trail.
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountLocked       = errors.New("account locked")
	ErrTwoFactorRequired   = errors.New("two-factor verification required")
	ErrInvalidToken        = errors.New("invalid refresh token")
	ErrTokenUnusable       = errors.New("refresh token reuse detected; sessions revoked")
	ErrTokenExpired        = errors.New("refresh token expired")
	ErrConcurrencyConflict = errors.New("concurrent session update; re-authenticate")
	ErrMalformedAccountID  = errors.New("malformed account id")
)
