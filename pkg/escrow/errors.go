// Copyright 2025 Certen Protocol

package escrow

import "errors"

var (
	// ErrInvalidDefendant is returned when a live fileDispute call is given
	// the zero address; the dry-run backend permits it as a convenience.
	ErrInvalidDefendant = errors.New("escrow: defendant must be non-zero")

	// ErrDisputeNotFound is returned by GetDispute for an unknown disputeId.
	ErrDisputeNotFound = errors.New("escrow: dispute not found")

	// ErrAlreadyResolved is returned when SubmitRuling targets a dispute
	// that already has a winner recorded.
	ErrAlreadyResolved = errors.New("escrow: dispute already resolved")

	// ErrUnsupportedOperation is returned when the configured ABI variant
	// lacks the requested capability.
	ErrUnsupportedOperation = errors.New("escrow: operation not supported by this contract")
)
