package auth

import "errors"

// Terminal, caller-visible outcomes of the identity operations. Infrastructure
// failures (store or clock trouble) are never mapped onto these; they
// propagate as wrapped errors of their own so an outage is not recorded
// against an official as a failed attempt.
var (
	ErrInvalidCredentials     = errors.New("auth: invalid credentials")
	ErrAccountLocked          = errors.New("auth: account locked")
	ErrAccountInactive        = errors.New("auth: account inactive")
	ErrInvalidOTP             = errors.New("auth: invalid one-time code")
	ErrInvalidToken           = errors.New("auth: invalid token")
	ErrInsufficientPermission = errors.New("auth: insufficient permission")
	ErrOutOfScope             = errors.New("auth: target outside organizational scope")
	ErrDeliveryFailure        = errors.New("auth: one-time code delivery failed")
	ErrNotFound               = errors.New("auth: not found")
	ErrInvalidInput           = errors.New("auth: invalid input")
)
