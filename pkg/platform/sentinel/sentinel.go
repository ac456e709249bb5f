package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and upstream clients return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store (unknown principal, form, or login state)
// - ErrExpired: pending login attempt's TTL has elapsed
// - ErrConflict: unique constraint violated on insert
// - ErrTokenRejected: upstream rejected the access token (expired or revoked)
// - ErrUnavailable: upstream temporarily unavailable (timeout, network, 5xx)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrExpired       = errors.New("expired")
	ErrTokenRejected = errors.New("token rejected")
	ErrUnavailable   = errors.New("unavailable")
)
