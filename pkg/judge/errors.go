// Copyright 2025 Certen Protocol

package judge

import "errors"

var (
	// ErrAuthorization is returned when the configured signing key does not
	// match the on-chain judge address at ruling time.
	ErrAuthorization = errors.New("judge: signing key does not match judge address")

	// ErrAlreadyProcessed is returned when a dispute id already has a
	// stored verdict.
	ErrAlreadyProcessed = errors.New("judge: dispute already processed")

	// ErrEvidenceUnavailable is returned when the evidence service cannot
	// supply the anchor, clause, or receipts for a dispute.
	ErrEvidenceUnavailable = errors.New("judge: evidence bundle unavailable")

	// ErrNotFound is returned when a requested verdict does not exist.
	ErrNotFound = errors.New("judge: verdict not found")
)
