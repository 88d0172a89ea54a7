package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
)

// Messages surfaced to clients on auth failures. Deliberately coarse so the
// response does not reveal which check rejected the request.
const (
	MsgUnableToVerify  = "Unable to verify"
	MsgTryAgainLater   = "Try again in 30 minutes"
	MsgInvalidAccount  = "Invalid Credentials"
	MsgTooManyListings = "Posted too many items"
)
