// Package claimtrie is the claim/support/activation/takeover engine: it
// keeps every name's competing claims, the supports boosting them, and
// resolves which claim controls a name as of each block.
package claimtrie

import "errors"

var (
	// ErrClaimNotFound is returned when a claim hash has no claim record.
	ErrClaimNotFound = errors.New("claimtrie: claim not found")
	// ErrSupportNotFound is returned when a support lookup misses.
	ErrSupportNotFound = errors.New("claimtrie: support not found")
	// ErrNoControllingClaim is returned when a name currently has no
	// controlling claim (every claim on it has expired or been abandoned).
	ErrNoControllingClaim = errors.New("claimtrie: name has no controlling claim")
)
