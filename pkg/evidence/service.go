// Copyright 2025 Certen Protocol
//
// Service implements the evidence HTTP API's business logic: validated
// ingestion, append-only receipt-chain enforcement, and anchor commitment.
// Grounded on original_source/apps/evidence_service/routes.py's handler
// shapes.

package evidence

import (
	"context"
	"fmt"
	"log"

	"github.com/certen/agentcourt/pkg/escrow"
	"github.com/certen/agentcourt/pkg/merkle"
	"github.com/certen/agentcourt/pkg/protocol"
)

// Service owns the evidence datastore and the escrow adapter used to
// anchor agreements on-chain.
type Service struct {
	Store     *Store
	Escrow    escrow.Backend
	SignerKey string
	log       *log.Logger
}

// NewService wires a Store and an escrow.Backend into a Service.
func NewService(store *Store, backend escrow.Backend, signerKey string) *Service {
	return &Service{
		Store:     store,
		Escrow:    backend,
		SignerKey: signerKey,
		log:       log.New(log.Writer(), "[Evidence] ", log.LstdFlags),
	}
}

// CreateClause validates raw as a clause document, recomputes and checks
// clauseHash, and persists it.
func (s *Service) CreateClause(ctx context.Context, raw []byte) (*protocol.ArbitrationClause, error) {
	clause, errs := protocol.ValidateClauseDoc(raw)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrValidation, errs)
	}

	computed, err := protocol.ComputeClauseHash(*clause)
	if err != nil {
		return nil, fmt.Errorf("evidence: compute clause hash: %w", err)
	}
	if clause.ClauseHash != computed {
		return nil, fmt.Errorf("%w: clauseHash mismatch, expected %s", ErrValidation, computed)
	}

	if err := s.Store.StoreClause(ctx, *clause); err != nil {
		return nil, err
	}
	return clause, nil
}

// PostReceipt validates raw as a receipt document, recomputes and checks
// receiptHash, verifies the full chain (existing ∥ incoming), and persists
// it atomically.
func (s *Service) PostReceipt(ctx context.Context, raw []byte) (*protocol.EventReceipt, error) {
	receipt, errs := protocol.ValidateReceiptDoc(raw)
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrValidation, errs)
	}

	computed, err := protocol.ComputeReceiptHash(*receipt)
	if err != nil {
		return nil, fmt.Errorf("evidence: compute receipt hash: %w", err)
	}
	if receipt.ReceiptHash != computed {
		return nil, fmt.Errorf("%w: receiptHash mismatch, expected %s", ErrValidation, computed)
	}

	clause, err := s.Store.GetClauseByAgreement(ctx, receipt.AgreementID)
	if err != nil {
		return nil, fmt.Errorf("evidence: load clause for chain check: %w", err)
	}

	existing, err := s.Store.ListReceipts(ctx, receipt.AgreementID, "")
	if err != nil {
		return nil, err
	}

	chainResult := protocol.VerifyReceiptChain(append(existing, *receipt), protocol.ChainExpectations{
		ChainID:         clause.ChainID,
		ContractAddress: clause.ContractAddress,
		AgreementID:     clause.AgreementID,
		ClauseHash:      clause.ClauseHash,
	})
	if !chainResult.OK {
		return nil, fmt.Errorf("%w: %v", ErrChainInvalid, chainResult.Errors)
	}

	if err := s.Store.StoreReceipt(ctx, *receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Anchor loads an agreement's receipts ordered by sequence, computes the
// Merkle root, commits it via the escrow adapter, and persists the anchor.
func (s *Service) Anchor(ctx context.Context, agreementID string) (*protocol.AnchorRecord, error) {
	receipts, err := s.Store.ListReceipts(ctx, agreementID, "")
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, ErrEmptyAgreement
	}

	receiptIDs := make([]string, len(receipts))
	leaves := make([]string, len(receipts))
	for i, r := range receipts {
		receiptIDs[i] = r.ReceiptID
		leaves[i] = r.ReceiptHash
	}

	rootHash, err := merkle.RootHash(leaves)
	if err != nil {
		return nil, fmt.Errorf("evidence: compute merkle root: %w", err)
	}

	tx, err := s.Escrow.CommitEvidenceHash(ctx, s.SignerKey, agreementID, rootHash)
	if err != nil {
		return nil, fmt.Errorf("evidence: commit evidence hash: %w", err)
	}

	if err := s.Store.StoreAnchor(ctx, agreementID, rootHash, tx.TxHash, receiptIDs); err != nil {
		return nil, err
	}

	return &protocol.AnchorRecord{
		AgreementID: agreementID,
		RootHash:    rootHash,
		TxHash:      tx.TxHash,
		ReceiptIDs:  receiptIDs,
	}, nil
}

// AgreementBundle is the response shape for GET /agreements/{id}.
type AgreementBundle struct {
	Clause            *protocol.ArbitrationClause  `json:"clause,omitempty"`
	Receipts          []protocol.EventReceipt      `json:"receipts"`
	Anchor            *protocol.AnchorRecord       `json:"anchor,omitempty"`
	ChainVerification *protocol.ReceiptChainResult `json:"chainVerification"`
	ExpectedRoot      string                       `json:"expectedRoot"`
	AnchoredRoot      string                       `json:"anchoredRoot,omitempty"`
	RootsMatch        bool                         `json:"rootsMatch"`
}

// GetAgreementBundle assembles the clause, receipts, anchor, chain
// verification result, and expected-vs-anchored root comparison for an
// agreement.
func (s *Service) GetAgreementBundle(ctx context.Context, agreementID string) (*AgreementBundle, error) {
	clause, err := s.Store.GetClauseByAgreement(ctx, agreementID)
	if err != nil {
		return nil, err
	}

	receipts, err := s.Store.ListReceipts(ctx, agreementID, "")
	if err != nil {
		return nil, err
	}

	chainResult := protocol.VerifyReceiptChain(receipts, protocol.ChainExpectations{
		ChainID:         clause.ChainID,
		ContractAddress: clause.ContractAddress,
		AgreementID:     clause.AgreementID,
		ClauseHash:      clause.ClauseHash,
	})

	leaves := make([]string, len(receipts))
	for i, r := range receipts {
		leaves[i] = r.ReceiptHash
	}
	expectedRoot, err := merkle.RootHash(leaves)
	if err != nil {
		return nil, fmt.Errorf("evidence: compute expected root: %w", err)
	}

	bundle := &AgreementBundle{
		Clause:            clause,
		Receipts:          receipts,
		ChainVerification: chainResult,
		ExpectedRoot:      expectedRoot,
	}

	if anchor, err := s.Store.GetAnchor(ctx, agreementID); err == nil {
		bundle.Anchor = anchor
		bundle.AnchoredRoot = anchor.RootHash
		bundle.RootsMatch = anchor.RootHash == expectedRoot
	} else if err != ErrNotFound {
		return nil, err
	}

	return bundle, nil
}

// HealthStatus is the GET /health response shape.
type HealthStatus struct {
	Status string               `json:"status"`
	Escrow *escrow.SanityReport `json:"escrow,omitempty"`
}

// Health reports degraded status when the escrow contract has no code and
// dry-run is not enabled.
func (s *Service) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{Status: "ok"}

	if err := s.Store.Health(ctx); err != nil {
		status.Status = "degraded"
		return status
	}

	sanity, err := s.Escrow.ContractSanity(ctx)
	if err != nil {
		status.Status = "degraded"
		return status
	}
	status.Escrow = sanity
	if !sanity.DryRun && !sanity.CodeAtAddress {
		status.Status = "degraded"
	}
	return status
}
