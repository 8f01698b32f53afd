// Copyright 2025 Certen Protocol
//
// Receipt-chain linkage verification and anchor-root verification.

package protocol

import (
	"fmt"
	"sort"

	"github.com/certen/agentcourt/pkg/canonical"
	"github.com/certen/agentcourt/pkg/merkle"
)

// ChainExpectations pins the header fields every receipt in an agreement
// must share.
type ChainExpectations struct {
	ChainID         int64
	ContractAddress string
	AgreementID     string
	ClauseHash      string
}

// ReceiptChainResult is the accumulated outcome of VerifyReceiptChain.
// OK is true iff Errors is empty.
type ReceiptChainResult struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors"`
}

// VerifyReceiptChain checks sequence contiguity from 0, header-field
// consistency, recomputed content hashes, prevHash linkage, and EIP-191
// signature recovery for every receipt. It never short-circuits: all
// findings are collected before returning.
func VerifyReceiptChain(receipts []EventReceipt, expected ChainExpectations) *ReceiptChainResult {
	result := &ReceiptChainResult{Errors: []string{}}

	ordered := append([]EventReceipt(nil), receipts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	prevHash := ZeroHash
	for i, r := range ordered {
		if r.Sequence != i {
			result.Errors = append(result.Errors, fmt.Sprintf("%v: expected sequence %d, got %d", ErrChainDiscontinuity, i, r.Sequence))
		}
		if r.ChainID != expected.ChainID {
			result.Errors = append(result.Errors, fmt.Sprintf("receipt %s: chainId mismatch", r.ReceiptID))
		}
		if r.ContractAddress != expected.ContractAddress {
			result.Errors = append(result.Errors, fmt.Sprintf("receipt %s: contractAddress mismatch", r.ReceiptID))
		}
		if r.AgreementID != expected.AgreementID {
			result.Errors = append(result.Errors, fmt.Sprintf("receipt %s: agreementId mismatch", r.ReceiptID))
		}
		if r.ClauseHash != expected.ClauseHash {
			result.Errors = append(result.Errors, fmt.Sprintf("receipt %s: clauseHash mismatch", r.ReceiptID))
		}

		recomputed, err := ComputeReceiptHash(r)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("receipt %s: %v", r.ReceiptID, err))
		} else if recomputed != r.ReceiptHash {
			result.Errors = append(result.Errors, fmt.Sprintf("receipt %s: %v", r.ReceiptID, ErrHashMismatch))
		}

		if r.PrevHash != prevHash {
			result.Errors = append(result.Errors, fmt.Sprintf("receipt %s: prevHash linkage broken", r.ReceiptID))
		}
		prevHash = r.ReceiptHash

		addr, err := canonical.DIDToAddress(r.ActorID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("receipt %s: %v", r.ReceiptID, ErrInvalidFormat))
			continue
		}
		ok, err := canonical.VerifySignatureEIP191(r.ReceiptHash, r.Signature, addr)
		if err != nil || !ok {
			result.Errors = append(result.Errors, fmt.Sprintf("receipt %s: %v", r.ReceiptID, ErrSignatureMismatch))
		}
	}

	result.OK = len(result.Errors) == 0
	return result
}

// VerifyAnchor reports whether expectedRoot equals the Merkle root of
// receipts' hashes taken in sequence order.
func VerifyAnchor(expectedRoot string, receipts []EventReceipt) (bool, error) {
	ordered := append([]EventReceipt(nil), receipts...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })

	leaves := make([]string, len(ordered))
	for i, r := range ordered {
		leaves[i] = r.ReceiptHash
	}

	computed, err := merkle.RootHash(leaves)
	if err != nil {
		return false, fmt.Errorf("protocol: compute anchor root: %w", err)
	}
	return computed == expectedRoot, nil
}
