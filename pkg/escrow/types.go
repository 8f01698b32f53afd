// Copyright 2025 Certen Protocol
//
// Escrow is the uniform capability surface over the arbitration contract,
// independent of which backend (live chain or persistent dry-run mock)
// is configured underneath.

package escrow

import (
	"context"

	"github.com/certen/agentcourt/pkg/protocol"
)

// Event names both backends agree on.
const (
	EventEvidenceCommitted = "EvidenceCommitted"
	EventDisputeFiled      = "DisputeFiled"
	EventRulingSubmitted   = "RulingSubmitted"
	EventPayoutExecuted    = "PayoutExecuted"
)

// TxResult is the uniform result shape for every write operation.
type TxResult struct {
	TxHash      string                 `json:"txHash"`
	BlockNumber int64                  `json:"blockNumber"`
	Status      string                 `json:"status"`
	Extra       map[string]interface{} `json:"extra,omitempty"`
}

// Event is one observed contract event, ordered across backends by
// (BlockNumber, InsertionIndex).
type Event struct {
	Name           string                 `json:"name"`
	BlockNumber    int64                  `json:"blockNumber"`
	InsertionIndex int64                  `json:"insertionIndex"`
	TxHash         string                 `json:"txHash"`
	Args           map[string]interface{} `json:"args"`
}

// Dispute mirrors the on-chain dispute struct.
type Dispute struct {
	DisputeID         string `json:"disputeId"`
	TransactionID     string `json:"transactionId,omitempty"`
	Plaintiff         string `json:"plaintiff"`
	Defendant         string `json:"defendant"`
	Stake             string `json:"stake"`
	JudgeFee          string `json:"judgeFee"`
	Tier              int    `json:"tier"`
	PlaintiffEvidence string `json:"plaintiffEvidence"`
	DefendantEvidence string `json:"defendantEvidence,omitempty"`
	Resolved          bool   `json:"resolved"`
	Winner            string `json:"winner,omitempty"`
}

// FileDisputeParams are the inputs to Backend.FileDispute.
type FileDisputeParams struct {
	AgreementID       string
	Defendant         string
	TxID              string
	Stake             string
	PlaintiffEvidence string
}

// Capabilities reports which functions the configured contract ABI
// variant actually supports.
type Capabilities struct {
	DepositPool        bool `json:"depositPool"`
	PostBond           bool `json:"postBond"`
	CommitEvidenceHash bool `json:"commitEvidenceHash"`
	FileDispute        bool `json:"fileDispute"`
	SubmitRuling       bool `json:"submitRuling"`
}

// SanityReport is the health-check shape contractSanity returns.
type SanityReport struct {
	RPCReachable  bool `json:"rpcReachable"`
	CodeAtAddress bool `json:"codeAtAddress"`
	DryRun        bool `json:"dryRun"`
}

// Backend is the escrow capability surface. Both the live chain client and
// the persistent dry-run mock implement it identically, including event
// ordering: callers never branch on which backend is configured.
type Backend interface {
	DepositPool(ctx context.Context, signerKey, agreementID, amount string) (*TxResult, error)
	PostBond(ctx context.Context, signerKey, agreementID, amount string) (*TxResult, error)
	CommitEvidenceHash(ctx context.Context, signerKey, agreementID, rootHash string) (*TxResult, error)
	FileDispute(ctx context.Context, signerKey string, params FileDisputeParams) (*TxResult, error)
	SubmitRuling(ctx context.Context, disputeID string, verdict protocol.VerdictPackage) (*TxResult, error)
	GetDispute(ctx context.Context, disputeID string) (*Dispute, error)
	JudgeAddress(ctx context.Context) (string, error)
	PollEvents(ctx context.Context, name string, fromBlock int64, toBlock int64) ([]Event, error)
	Capabilities() Capabilities
	ContractSanity(ctx context.Context) (*SanityReport, error)
}
