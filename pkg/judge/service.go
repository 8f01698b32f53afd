// Copyright 2025 Certen Protocol
//
// Dispute-handling orchestration: load the on-chain dispute, re-assemble
// and re-verify its evidence, extract deterministic facts, escalate to the
// AI panel when inconclusive, build and sign a verdict, and submit the
// ruling when authorized. Grounded on
// original_source/apps/judge_service/server.py's _handle_dispute.

package judge

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/certen/agentcourt/pkg/canonical"
	"github.com/certen/agentcourt/pkg/escrow"
	"github.com/certen/agentcourt/pkg/protocol"
)

// ConfidenceSubmitThreshold is the minimum confidence at which a verdict is
// submitted on-chain rather than flagged for manual review.
const ConfidenceSubmitThreshold = 0.70

// Service ties together the evidence client, AI panel, escrow adapter, and
// verdict store into the dispute-handling pipeline.
type Service struct {
	Store           *Store
	Escrow          escrow.Backend
	Evidence        *EvidenceClient
	Panel           *Panel
	Sink            VerdictSink
	ChainID         int64
	ContractAddress string
	JudgePrivateKey string
	log             *log.Logger
}

// VerdictSink is a best-effort external mirror for published verdicts
// (e.g. Firestore, a public verdict API). Failures are logged and
// swallowed by the caller.
type VerdictSink interface {
	Publish(ctx context.Context, verdict protocol.VerdictPackage) error
}

// NewService builds a judge Service.
func NewService(store *Store, backend escrow.Backend, evidence *EvidenceClient, panel *Panel, sink VerdictSink, chainID int64, contractAddress, judgePrivateKey string) *Service {
	return &Service{
		Store:           store,
		Escrow:          backend,
		Evidence:        evidence,
		Panel:           panel,
		Sink:            sink,
		ChainID:         chainID,
		ContractAddress: contractAddress,
		JudgePrivateKey: judgePrivateKey,
		log:             log.New(log.Writer(), "[Judge] ", log.LstdFlags),
	}
}

// HandleDispute processes one DisputeFiled event end to end. It is
// idempotent: a disputeId already present in the store is skipped.
func (s *Service) HandleDispute(ctx context.Context, disputeID string) error {
	processed, err := s.Store.IsProcessed(ctx, disputeID)
	if err != nil {
		return err
	}
	if processed {
		return ErrAlreadyProcessed
	}

	dispute, err := s.Escrow.GetDispute(ctx, disputeID)
	if err != nil {
		return fmt.Errorf("judge: load dispute: %w", err)
	}

	rootHash := dispute.PlaintiffEvidence
	if !strings.HasPrefix(rootHash, "0x") {
		rootHash = "0x" + rootHash
	}

	bundle, err := s.Evidence.GetBundle(ctx, rootHash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEvidenceUnavailable, err)
	}

	verdict := s.buildVerdict(ctx, disputeID, dispute, bundle, rootHash)

	hash, err := protocol.ComputeVerdictHash(verdict)
	if err != nil {
		return fmt.Errorf("judge: compute verdict hash: %w", err)
	}
	verdict.VerdictHash = hash

	if s.JudgePrivateKey != "" {
		sig, err := canonical.SignEIP191(s.JudgePrivateKey, hash)
		if err != nil {
			return fmt.Errorf("judge: sign verdict: %w", err)
		}
		verdict.JudgeSignature = sig
	}

	status := StatusManualReview
	var submitTxHash string

	if verdict.Confidence >= ConfidenceSubmitThreshold {
		authorized, err := s.isAuthorized(ctx)
		if err != nil {
			s.log.Printf("authorization check failed: %v", err)
		}
		if authorized {
			tx, err := s.Escrow.SubmitRuling(ctx, disputeID, verdict)
			if err != nil {
				s.log.Printf("submit ruling failed for dispute %s: %v", disputeID, err)
			} else {
				status = StatusSubmitted
				submitTxHash = tx.TxHash
			}
		} else {
			verdict.Flags = append(verdict.Flags, "needs_manual_review")
		}
	} else {
		verdict.Flags = append(verdict.Flags, "needs_manual_review")
	}

	stored := StoredVerdict{
		Verdict:      verdict,
		Status:       string(status),
		SubmitTxHash: submitTxHash,
	}
	if err := s.Store.StoreVerdict(ctx, stored); err != nil {
		return err
	}

	if s.Sink != nil {
		if err := s.Sink.Publish(ctx, verdict); err != nil {
			s.log.Printf("verdict sink publish failed for dispute %s: %v", disputeID, err)
		}
	}

	return nil
}

func (s *Service) buildVerdict(ctx context.Context, disputeID string, dispute *escrow.Dispute, bundle *EvidenceBundle, rootHash string) protocol.VerdictPackage {
	expectations := protocol.ChainExpectations{
		ChainID:         bundle.Clause.ChainID,
		ContractAddress: bundle.Clause.ContractAddress,
		AgreementID:     bundle.AgreementID,
		ClauseHash:      bundle.Clause.ClauseHash,
	}

	receiptIDs := make([]string, len(bundle.Receipts))
	for i, r := range bundle.Receipts {
		receiptIDs[i] = r.ReceiptID
	}

	ok, errs := VerifyEvidenceBundle(bundle.Receipts, rootHash, expectations)

	var (
		reasonCodes []string
		flags       []string
		confidence  float64
		opinion     string
		facts       map[string]interface{}
		winner      string
	)

	if !ok {
		reasonCodes = append(reasonCodes, "hash_mismatch")
		flags = append(flags, errs...)
		winner = dispute.Defendant
		confidence = 0.99
		facts = map[string]interface{}{"integrity_ok": false, "errors": errs}
	} else {
		extracted, codes, logicalWinner := ExtractFacts(bundle.Clause, bundle.Receipts)
		facts = extracted.ToMap()
		reasonCodes = codes
		confidence = 0.95

		switch logicalWinner {
		case "plaintiff":
			winner = dispute.Plaintiff
		case "defendant":
			winner = dispute.Defendant
		default:
			clauseMap, _ := canonical.ToMap(bundle.Clause)
			panelCodes, panelWinner, panelConfidence, panelOpinion := s.Panel.Judge(ctx, clauseMap, facts, map[string]interface{}{
				"receiptCount": len(bundle.Receipts),
				"reasonCodes":  reasonCodes,
			}, dispute.Tier)
			reasonCodes = append(reasonCodes, panelCodes...)
			confidence = panelConfidence
			opinion = panelOpinion
			switch panelWinner {
			case "plaintiff":
				winner = dispute.Plaintiff
			default:
				winner = dispute.Defendant
			}
		}
	}

	return protocol.VerdictPackage{
		SchemaVersion:     protocol.SchemaVersion,
		VerdictID:         uuid.NewString(),
		DisputeID:         disputeID,
		ChainID:           s.ChainID,
		ContractAddress:   s.ContractAddress,
		AgreementID:       bundle.AgreementID,
		ClauseHash:        bundle.Clause.ClauseHash,
		Plaintiff:         dispute.Plaintiff,
		Defendant:         dispute.Defendant,
		PlaintiffEvidence: rootHash,
		PlaintiffStake:    dispute.Stake,
		DefendantStake:    dispute.Stake,
		Tier:              dispute.Tier,
		Transfers:         []protocol.Transfer{{To: winner, Amount: dispute.Stake, Reason: "dispute_resolution"}},
		JudgeFeePercent:   bundle.Clause.JudgeFeePercent,
		ReasonCodes:       reasonCodes,
		ReceiptIDs:        receiptIDs,
		Facts:             facts,
		Confidence:        confidence,
		Flags:             flags,
		Opinion:           opinion,
	}
}

// isAuthorized reports whether the configured judge private key matches the
// on-chain judge address, or the backend is dry-run (which never enforces
// signer identity).
func (s *Service) isAuthorized(ctx context.Context) (bool, error) {
	sanity, err := s.Escrow.ContractSanity(ctx)
	if err == nil && sanity.DryRun {
		return true, nil
	}
	if s.JudgePrivateKey == "" {
		return false, nil
	}
	addr, err := addressFromPrivateKeyHex(s.JudgePrivateKey)
	if err != nil {
		return false, err
	}
	expected, err := s.Escrow.JudgeAddress(ctx)
	if err != nil {
		return false, err
	}
	return common.HexToAddress(addr) == common.HexToAddress(expected), nil
}
