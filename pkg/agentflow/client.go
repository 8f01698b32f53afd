// Copyright 2025 Certen Protocol
//
// HTTP client to the evidence service used by the scripted agent flows to
// create clauses, post receipts, and anchor agreements. Grounded on
// original_source/apps/consumer_agent/src/consumer_agent/receipt_client.py.

package agentflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/certen/agentcourt/pkg/canonical"
	"github.com/certen/agentcourt/pkg/protocol"
)

// Actor is one signing identity in the agent flow, derived from a raw
// private key the same way the consumer/provider agents are configured.
type Actor struct {
	PrivateKey string
	Address    string
	DID        string
}

// ActorFromKey derives an Actor's address and DID from a hex private key.
func ActorFromKey(privateKey string) (Actor, error) {
	digest := "0x0000000000000000000000000000000000000000000000000000000000000000"
	sig, err := canonical.SignEIP191(privateKey, digest)
	if err != nil {
		return Actor{}, fmt.Errorf("agentflow: derive actor: %w", err)
	}
	address, err := canonical.RecoverSignerEIP191(digest, sig)
	if err != nil {
		return Actor{}, fmt.Errorf("agentflow: recover actor address: %w", err)
	}
	return Actor{
		PrivateKey: privateKey,
		Address:    address,
		DID:        canonical.AddressToDID(address),
	}, nil
}

// EvidenceClient posts clauses and receipts to, and anchors agreements
// with, the evidence service.
type EvidenceClient struct {
	baseURL string
	client  *http.Client
}

// NewEvidenceClient builds an EvidenceClient against baseURL.
func NewEvidenceClient(baseURL string) *EvidenceClient {
	return &EvidenceClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// NewClause builds the standard demo arbitration clause for agreementID:
// a 3000ms latency SLA, a 60rpm abuse rule, and a consumer-refund remedy.
func NewClause(agreementID string, chainID int64, contractAddress string, windowSec int) (protocol.ArbitrationClause, error) {
	clause := protocol.ArbitrationClause{
		SchemaVersion:     protocol.SchemaVersion,
		ClauseID:          uuid.NewString(),
		ChainID:           chainID,
		ContractAddress:   contractAddress,
		AgreementID:       agreementID,
		ServiceScope:      "GET /api/data",
		SLARules:          []protocol.Rule{{RuleID: "sla-latency", Metric: "latency_ms", Operator: protocol.OpLTE, Value: 3000, Unit: "ms"}},
		AbuseRules:        []protocol.Rule{{RuleID: "abuse-rate", Metric: "requests_per_minute", Operator: protocol.OpLTE, Value: 60, Unit: "rpm"}},
		DisputeWindowSec:  windowSec,
		EvidenceWindowSec: windowSec,
		RemedyRules:       []protocol.RemedyRule{{Condition: "sla_breach", Action: "consumer_refund", Percent: 100}},
		JudgeFeePercent:   5,
	}
	hash, err := protocol.ComputeClauseHash(clause)
	if err != nil {
		return protocol.ArbitrationClause{}, fmt.Errorf("agentflow: hash clause: %w", err)
	}
	clause.ClauseHash = hash
	return clause, nil
}

// NewReceipt builds and signs one hash-chained receipt.
func NewReceipt(clause protocol.ArbitrationClause, sequence int, actor, counterparty Actor, eventType, requestID string, payload map[string]interface{}, prevHash string, metadata map[string]interface{}) (protocol.EventReceipt, error) {
	payloadHash, err := canonical.HashCanonicalMap(payload)
	if err != nil {
		return protocol.EventReceipt{}, fmt.Errorf("agentflow: hash payload: %w", err)
	}

	receipt := protocol.EventReceipt{
		SchemaVersion:   protocol.SchemaVersion,
		ReceiptID:       uuid.NewString(),
		ChainID:         clause.ChainID,
		ContractAddress: clause.ContractAddress,
		AgreementID:     clause.AgreementID,
		ClauseHash:      clause.ClauseHash,
		Sequence:        sequence,
		EventType:       eventType,
		TimestampMs:     time.Now().UnixMilli(),
		ActorID:         actor.DID,
		CounterpartyID:  counterparty.DID,
		RequestID:       requestID,
		PayloadHash:     payloadHash,
		PrevHash:        prevHash,
		Metadata:        metadata,
	}

	hash, err := protocol.ComputeReceiptHash(receipt)
	if err != nil {
		return protocol.EventReceipt{}, fmt.Errorf("agentflow: hash receipt: %w", err)
	}
	receipt.ReceiptHash = hash

	sig, err := canonical.SignEIP191(actor.PrivateKey, hash)
	if err != nil {
		return protocol.EventReceipt{}, fmt.Errorf("agentflow: sign receipt: %w", err)
	}
	receipt.Signature = sig

	return receipt, nil
}

func (c *EvidenceClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("agentflow: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("agentflow: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("agentflow: request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("agentflow: %s returned %d", path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// PostClause submits a clause to the evidence service.
func (c *EvidenceClient) PostClause(ctx context.Context, clause protocol.ArbitrationClause) error {
	return c.post(ctx, "/clauses", clause, nil)
}

// PostReceipt submits a receipt to the evidence service.
func (c *EvidenceClient) PostReceipt(ctx context.Context, receipt protocol.EventReceipt) error {
	return c.post(ctx, "/receipts", receipt, nil)
}

// Anchor commits the Merkle root of agreementID's receipts on-chain via
// the evidence service, returning the anchor record.
func (c *EvidenceClient) Anchor(ctx context.Context, agreementID string) (*protocol.AnchorRecord, error) {
	var anchor protocol.AnchorRecord
	if err := c.post(ctx, "/anchor", map[string]string{"agreementId": agreementID}, &anchor); err != nil {
		return nil, fmt.Errorf("agentflow: anchor: %w", err)
	}
	return &anchor, nil
}
