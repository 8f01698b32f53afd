// Copyright 2025 Certen Protocol
//
// Canonical data model for arbitration clauses, event receipts, anchor
// records, verdict packages, and reputation entries.

package protocol

// SchemaVersion is the schema version stamped on every content-addressed
// document produced by this module.
const SchemaVersion = "1.0"

// Event types an EventReceipt may carry.
const (
	EventTypeRequest      = "request"
	EventTypeResponse     = "response"
	EventTypePayment      = "payment"
	EventTypeSLACheck     = "sla_check"
	EventTypeDisputeFiled = "dispute_filed"
)

// ZeroHash is the sentinel prevHash value for the first receipt in a chain.
const ZeroHash = "0x0"

// Rule is the shared shape for SLA and abuse rules: a named metric compared
// against a threshold by a relational operator.
type Rule struct {
	RuleID   string  `json:"ruleId"`
	Metric   string  `json:"metric"`
	Operator string  `json:"operator"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit"`
}

// Relational operators legal on a Rule.
const (
	OpLTE = "<="
	OpGTE = ">="
	OpLT  = "<"
	OpGT  = ">"
	OpEQ  = "=="
)

// RemedyRule ties a condition to a payout action.
type RemedyRule struct {
	Condition string `json:"condition"`
	Action    string `json:"action"`
	Percent   int    `json:"percent"`
}

// ArbitrationClause is the content-addressed arbitration contract for one
// agreement. Immutable once created; one clause per agreementId.
type ArbitrationClause struct {
	SchemaVersion     string       `json:"schemaVersion"`
	ClauseID          string       `json:"clauseId"`
	ChainID           int64        `json:"chainId"`
	ContractAddress   string       `json:"contractAddress"`
	AgreementID        string       `json:"agreementId"`
	ServiceScope      string       `json:"serviceScope"`
	SLARules          []Rule       `json:"slaRules"`
	AbuseRules        []Rule       `json:"abuseRules"`
	DisputeWindowSec  int          `json:"disputeWindowSec"`
	EvidenceWindowSec int          `json:"evidenceWindowSec"`
	RemedyRules       []RemedyRule `json:"remedyRules"`
	JudgeFeePercent   float64      `json:"judgeFeePercent"`
	ClauseHash        string       `json:"clauseHash"`
}

// EventReceipt is one signed, hash-chained entry in an agreement's evidence
// log. Never mutated once accepted by the evidence service.
type EventReceipt struct {
	SchemaVersion   string                 `json:"schemaVersion"`
	ReceiptID       string                 `json:"receiptId"`
	ChainID         int64                  `json:"chainId"`
	ContractAddress string                 `json:"contractAddress"`
	AgreementID     string                 `json:"agreementId"`
	ClauseHash      string                 `json:"clauseHash"`
	Sequence        int                    `json:"sequence"`
	EventType       string                 `json:"eventType"`
	TimestampMs     int64                  `json:"timestampMs"`
	ActorID         string                 `json:"actorId"`
	CounterpartyID  string                 `json:"counterpartyId"`
	RequestID       string                 `json:"requestId"`
	PayloadHash     string                 `json:"payloadHash"`
	PrevHash        string                 `json:"prevHash"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	ReceiptHash     string                 `json:"receiptHash"`
	Signature       string                 `json:"signature"`
}

// AnchorRecord commits the Merkle root of one agreement's receipts on-chain.
type AnchorRecord struct {
	AgreementID string   `json:"agreementId"`
	RootHash    string   `json:"rootHash"`
	TxHash      string   `json:"txHash"`
	ReceiptIDs  []string `json:"receiptIds"`
}

// Transfer is one payout leg of a verdict. Amount is a decimal string since
// settlement amounts may exceed safe JSON-number precision.
type Transfer struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

// VerdictPackage is the judge's signed ruling bundle for one dispute.
type VerdictPackage struct {
	SchemaVersion     string                 `json:"schemaVersion"`
	VerdictID         string                 `json:"verdictId"`
	DisputeID         string                 `json:"disputeId"`
	ChainID           int64                  `json:"chainId"`
	ContractAddress   string                 `json:"contractAddress"`
	AgreementID       string                 `json:"agreementId"`
	ClauseHash        string                 `json:"clauseHash"`
	Plaintiff         string                 `json:"plaintiff"`
	Defendant         string                 `json:"defendant"`
	PlaintiffEvidence string                 `json:"plaintiffEvidence"`
	DefendantEvidence string                 `json:"defendantEvidence,omitempty"`
	PlaintiffStake    string                 `json:"plaintiffStake"`
	DefendantStake    string                 `json:"defendantStake"`
	Tier              int                    `json:"tier"`
	Transfers         []Transfer             `json:"transfers"`
	JudgeFeePercent   float64                `json:"judgeFeePercent"`
	ReasonCodes       []string               `json:"reasonCodes"`
	ReceiptIDs        []string               `json:"receiptIds"`
	Facts             map[string]interface{} `json:"facts,omitempty"`
	Confidence        float64                `json:"confidence"`
	Flags             []string               `json:"flags,omitempty"`
	Opinion           string                 `json:"opinion,omitempty"`
	VerdictHash       string                 `json:"verdictHash"`
	JudgeSignature    string                 `json:"judgeSignature"`
}

// ReputationEvent is one idempotent reputation-affecting event applied to
// an actor's score.
type ReputationEvent struct {
	EventKey    string `json:"eventKey"`
	Delta       int    `json:"delta"`
	Reason      string `json:"reason"`
	AppliedAtMs int64  `json:"appliedAtMs"`
}

// ReputationEntry is an actor's running score and applied-event history.
type ReputationEntry struct {
	ActorID string            `json:"actorId"`
	Score   int               `json:"score"`
	History []ReputationEvent `json:"history"`
}

// DefaultReputationScore is the starting score for any actor not yet seen.
const DefaultReputationScore = 100
