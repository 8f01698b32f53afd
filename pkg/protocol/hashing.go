// Copyright 2025 Certen Protocol
//
// Content-address computation for clauses, receipts, and verdicts: each
// hash is the keccak-256 of the canonical JSON encoding of the document
// with its own hash (and, where present, signature) fields removed.

package protocol

import (
	"fmt"

	"github.com/certen/agentcourt/pkg/canonical"
)

// ComputeClauseHash returns the clauseHash for c, excluding c.ClauseHash.
func ComputeClauseHash(c ArbitrationClause) (string, error) {
	m, err := canonical.ToMap(c)
	if err != nil {
		return "", fmt.Errorf("protocol: clause to map: %w", err)
	}
	m = canonical.WithoutFields(m, "clauseHash")
	return canonical.HashCanonicalMap(m)
}

// ComputeReceiptHash returns the receiptHash for r, excluding r.ReceiptHash
// and r.Signature.
func ComputeReceiptHash(r EventReceipt) (string, error) {
	m, err := canonical.ToMap(r)
	if err != nil {
		return "", fmt.Errorf("protocol: receipt to map: %w", err)
	}
	m = canonical.WithoutFields(m, "receiptHash", "signature")
	return canonical.HashCanonicalMap(m)
}

// ComputeVerdictHash returns the verdictHash for v, excluding
// v.VerdictHash and v.JudgeSignature.
func ComputeVerdictHash(v VerdictPackage) (string, error) {
	m, err := canonical.ToMap(v)
	if err != nil {
		return "", fmt.Errorf("protocol: verdict to map: %w", err)
	}
	m = canonical.WithoutFields(m, "verdictHash", "judgeSignature")
	return canonical.HashCanonicalMap(m)
}

// ComputePayloadHash returns the payloadHash for arbitrary request/response
// payload bytes, used by EventReceipt.PayloadHash.
func ComputePayloadHash(payload interface{}) (string, error) {
	return canonical.HashCanonical(payload)
}
