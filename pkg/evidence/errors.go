// Copyright 2025 Certen Protocol

package evidence

import "errors"

var (
	// ErrValidation is returned for schema violations and hash mismatches.
	ErrValidation = errors.New("evidence: validation failed")

	// ErrNotFound is returned when a clause, receipt, or anchor is missing.
	ErrNotFound = errors.New("evidence: not found")

	// ErrDuplicateAgreement is returned when a clause already exists for
	// an agreement.
	ErrDuplicateAgreement = errors.New("evidence: clause already exists for agreement")

	// ErrDuplicateSequence is returned when a receipt's (agreementId,
	// sequence) pair is already stored.
	ErrDuplicateSequence = errors.New("evidence: receipt sequence already recorded")

	// ErrChainInvalid is returned when appending a receipt would break the
	// agreement's hash chain.
	ErrChainInvalid = errors.New("evidence: receipt chain verification failed")

	// ErrEmptyAgreement is returned when anchoring an agreement with no
	// receipts.
	ErrEmptyAgreement = errors.New("evidence: no receipts for agreement")
)
