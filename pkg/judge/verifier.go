// Copyright 2025 Certen Protocol
//
// Re-verification of an evidence bundle at dispute time. Grounded on
// original_source/apps/judge_service/verifier.py.

package judge

import (
	"fmt"

	"github.com/certen/agentcourt/pkg/protocol"
)

// VerifyEvidenceBundle re-derives the receipt chain's validity and checks
// that the receipts' recomputed Merkle root matches expectedRoot (the root
// the dispute was actually filed against on-chain).
func VerifyEvidenceBundle(receipts []protocol.EventReceipt, expectedRoot string, expectations protocol.ChainExpectations) (bool, []string) {
	chainResult := protocol.VerifyReceiptChain(receipts, expectations)
	errs := append([]string{}, chainResult.Errors...)

	ok, err := protocol.VerifyAnchor(expectedRoot, receipts)
	if err != nil {
		errs = append(errs, fmt.Sprintf("anchor verification error: %v", err))
	} else if !ok {
		errs = append(errs, fmt.Sprintf("anchor root mismatch expected=%s", expectedRoot))
	}

	return len(errs) == 0, errs
}
