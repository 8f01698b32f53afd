// Copyright 2025 Certen Protocol
//
// Scripted agent-to-agent flows exercising the full evidence/escrow/judge
// pipeline, grounded on
// original_source/apps/consumer_agent/src/consumer_agent/flow.py's
// run_happy_flow and run_dispute_flow.

package agentflow

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/certen/agentcourt/pkg/escrow"
)

const poolDeposit = "1000000000000000"   // 10^15, matches the demo's fixed deposit/bond amounts
const bondAmount = "1000000000000000"

// FlowConfig carries the identities, chain parameters, and client
// dependencies shared by both scripted flows.
type FlowConfig struct {
	EvidenceURL       string
	ChainID           int64
	ContractAddress   string
	ProviderKey       string
	ConsumerKey       string
	Escrow            escrow.Backend
	Provider          ProviderClient
	AgreementWindowSec int
}

// FlowResult is the artifact bundle returned by a completed flow, mirroring
// the original's return dict shape so the orchestrator can surface the
// same fields (agreementId, txHashes, receiptIds, anchor) to subscribers.
type FlowResult struct {
	Mode                 string   `json:"mode"`
	AgreementID          string   `json:"agreementId"`
	DepositTxHash        string   `json:"depositTx"`
	BondTxHash           string   `json:"bondTx"`
	DisputeTxHash        string   `json:"disputeTx,omitempty"`
	ReceiptIDs           []string `json:"receiptIds"`
	RootHash             string   `json:"rootHash"`
	AnchorTxHash         string   `json:"anchorTx,omitempty"`
	X402PaymentReference string   `json:"x402PaymentReference"`
}

func buildActors(cfg FlowConfig) (provider, consumer Actor, err error) {
	if cfg.ProviderKey == "" || cfg.ConsumerKey == "" {
		return Actor{}, Actor{}, fmt.Errorf("agentflow: PROVIDER_PRIVATE_KEY and CONSUMER_PRIVATE_KEY are required")
	}
	provider, err = ActorFromKey(cfg.ProviderKey)
	if err != nil {
		return Actor{}, Actor{}, err
	}
	consumer, err = ActorFromKey(cfg.ConsumerKey)
	if err != nil {
		return Actor{}, Actor{}, err
	}
	return provider, consumer, nil
}

// RunHappyFlow executes the uncontested path: clause, escrow funding,
// a single successful provider call with its three receipts, and anchoring.
// It returns once the root is anchored; it does not wait out the dispute
// window.
func RunHappyFlow(ctx context.Context, cfg FlowConfig, on ProgressFunc) (FlowResult, error) {
	provider, consumer, err := buildActors(cfg)
	if err != nil {
		return FlowResult{}, err
	}
	stepDone(on, "agent_init", "Initialize agents and wallets", "Loaded provider and consumer identities", nil)

	rc := NewEvidenceClient(cfg.EvidenceURL)
	agreementID := uuid.NewString()

	stepStart(on, "clause_created", "Create arbitration clause", "Preparing clause fields")
	clause, err := NewClause(agreementID, cfg.ChainID, cfg.ContractAddress, cfg.AgreementWindowSec)
	if err != nil {
		return FlowResult{}, err
	}
	if err := rc.PostClause(ctx, clause); err != nil {
		return FlowResult{}, err
	}
	stepDone(on, "clause_created", "Create arbitration clause", "Clause stored in evidence service",
		map[string]interface{}{"agreementId": agreementID, "clauseId": clause.ClauseID})

	stepStart(on, "deposit_pool", "Provider deposits escrow pool", "Submitting deposit transaction")
	depositTx, err := cfg.Escrow.DepositPool(ctx, cfg.ProviderKey, agreementID, poolDeposit)
	if err != nil {
		return FlowResult{}, fmt.Errorf("agentflow: deposit pool: %w", err)
	}
	stepDone(on, "deposit_pool", "Provider deposits escrow pool", "Pool deposit complete",
		map[string]interface{}{"txHash": depositTx.TxHash, "contractAddress": cfg.ContractAddress})

	stepStart(on, "post_bond", "Consumer posts bond", "Submitting bond transaction")
	bondTx, err := cfg.Escrow.PostBond(ctx, cfg.ConsumerKey, agreementID, bondAmount)
	if err != nil {
		return FlowResult{}, fmt.Errorf("agentflow: post bond: %w", err)
	}
	stepDone(on, "post_bond", "Consumer posts bond", "Bond transaction complete",
		map[string]interface{}{"txHash": bondTx.TxHash, "agreementId": agreementID})

	stepStart(on, "provider_call", "Provider API call", "Requesting /api/data")
	requestID := uuid.NewString()

	reqReceipt, err := NewReceipt(clause, 0, consumer, provider, "request", requestID,
		map[string]interface{}{"path": "/api/data", "requestId": requestID}, "0x0", nil)
	if err != nil {
		return FlowResult{}, err
	}
	if err := rc.PostReceipt(ctx, reqReceipt); err != nil {
		return FlowResult{}, err
	}

	response, err := cfg.Provider.Get(ctx, "/api/data")
	if err != nil {
		return FlowResult{}, fmt.Errorf("agentflow: provider call: %w", err)
	}

	resReceipt, err := NewReceipt(clause, 1, provider, consumer, "response", requestID, response.Payload,
		reqReceipt.ReceiptHash, map[string]interface{}{
			"statusCode":   response.StatusCode,
			"evidenceHash": response.EvidenceHash,
		})
	if err != nil {
		return FlowResult{}, err
	}
	if err := rc.PostReceipt(ctx, resReceipt); err != nil {
		return FlowResult{}, err
	}
	stepDone(on, "provider_call", "Provider response receipt", "Response receipt recorded",
		map[string]interface{}{"receiptId": resReceipt.ReceiptID, "statusCode": response.StatusCode})

	stepStart(on, "payment_receipt", "Record payment event", "Signing payment evidence")
	paymentReceipt, err := NewReceipt(clause, 2, consumer, provider, "payment", requestID,
		map[string]interface{}{"network": "eip155:84532"}, resReceipt.ReceiptHash,
		map[string]interface{}{"x402PaymentReference": response.PaymentReference})
	if err != nil {
		return FlowResult{}, err
	}
	if err := rc.PostReceipt(ctx, paymentReceipt); err != nil {
		return FlowResult{}, err
	}
	stepDone(on, "payment_receipt", "Record payment event", "Payment receipt recorded",
		map[string]interface{}{"receiptId": paymentReceipt.ReceiptID, "paymentReference": response.PaymentReference})

	stepStart(on, "anchor", "Anchor evidence root", "Committing evidence hash on chain")
	anchor, err := rc.Anchor(ctx, agreementID)
	if err != nil {
		return FlowResult{}, err
	}
	stepDone(on, "anchor", "Anchor evidence root", "Merkle root committed on chain",
		map[string]interface{}{"agreementId": agreementID, "rootHash": anchor.RootHash, "txHash": anchor.TxHash})

	return FlowResult{
		Mode:                 "happy",
		AgreementID:          agreementID,
		DepositTxHash:        depositTx.TxHash,
		BondTxHash:           bondTx.TxHash,
		ReceiptIDs:           []string{reqReceipt.ReceiptID, resReceipt.ReceiptID, paymentReceipt.ReceiptID},
		RootHash:             anchor.RootHash,
		AnchorTxHash:         anchor.TxHash,
		X402PaymentReference: response.PaymentReference,
	}, nil
}

// RunDisputeFlow executes the contested path: same setup through posting
// bond, then a slow/degraded provider response, an sla_check receipt
// flagging the breach, anchoring, and filing a dispute against the
// anchored root.
func RunDisputeFlow(ctx context.Context, cfg FlowConfig, on ProgressFunc) (FlowResult, error) {
	provider, consumer, err := buildActors(cfg)
	if err != nil {
		return FlowResult{}, err
	}
	stepDone(on, "agent_init", "Initialize agents and wallets", "Loaded provider and consumer identities", nil)

	rc := NewEvidenceClient(cfg.EvidenceURL)
	agreementID := uuid.NewString()

	stepStart(on, "clause_created", "Create arbitration clause", "Preparing clause fields")
	clause, err := NewClause(agreementID, cfg.ChainID, cfg.ContractAddress, cfg.AgreementWindowSec)
	if err != nil {
		return FlowResult{}, err
	}
	if err := rc.PostClause(ctx, clause); err != nil {
		return FlowResult{}, err
	}
	stepDone(on, "clause_created", "Create arbitration clause", "Clause stored for dispute path",
		map[string]interface{}{"agreementId": agreementID, "clauseId": clause.ClauseID})

	stepStart(on, "deposit_pool", "Provider deposits escrow pool", "Submitting deposit transaction")
	depositTx, err := cfg.Escrow.DepositPool(ctx, cfg.ProviderKey, agreementID, poolDeposit)
	if err != nil {
		return FlowResult{}, fmt.Errorf("agentflow: deposit pool: %w", err)
	}
	stepDone(on, "deposit_pool", "Provider deposits escrow pool", "Pool deposit complete",
		map[string]interface{}{"txHash": depositTx.TxHash})

	stepStart(on, "post_bond", "Consumer posts bond", "Submitting bond transaction")
	bondTx, err := cfg.Escrow.PostBond(ctx, cfg.ConsumerKey, agreementID, bondAmount)
	if err != nil {
		return FlowResult{}, fmt.Errorf("agentflow: post bond: %w", err)
	}
	stepDone(on, "post_bond", "Consumer posts bond", "Bond transaction complete",
		map[string]interface{}{"txHash": bondTx.TxHash})

	stepStart(on, "provider_call", "Provider API call (bad path)", "Requesting /api/data?bad=true")
	requestID := uuid.NewString()

	reqReceipt, err := NewReceipt(clause, 0, consumer, provider, "request", requestID,
		map[string]interface{}{"path": "/api/data?bad=true", "requestId": requestID}, "0x0", nil)
	if err != nil {
		return FlowResult{}, err
	}
	if err := rc.PostReceipt(ctx, reqReceipt); err != nil {
		return FlowResult{}, err
	}

	response, err := cfg.Provider.Get(ctx, "/api/data?bad=true")
	if err != nil {
		return FlowResult{}, fmt.Errorf("agentflow: provider call: %w", err)
	}

	resReceipt, err := NewReceipt(clause, 1, provider, consumer, "response", requestID, response.Payload,
		reqReceipt.ReceiptHash, map[string]interface{}{
			"statusCode":   response.StatusCode,
			"evidenceHash": response.EvidenceHash,
			"bad":          true,
		})
	if err != nil {
		return FlowResult{}, err
	}
	if err := rc.PostReceipt(ctx, resReceipt); err != nil {
		return FlowResult{}, err
	}

	slaReceipt, err := NewReceipt(clause, 2, consumer, provider, "sla_check", requestID,
		map[string]interface{}{"latencyMs": response.LatencyMs, "responseOk": false},
		resReceipt.ReceiptHash, map[string]interface{}{"violation": "sla_breach:latency"})
	if err != nil {
		return FlowResult{}, err
	}
	if err := rc.PostReceipt(ctx, slaReceipt); err != nil {
		return FlowResult{}, err
	}
	stepDone(on, "provider_call", "Provider bad response receipts", "Request, response, and SLA-check receipts recorded",
		map[string]interface{}{
			"requestReceiptId":  reqReceipt.ReceiptID,
			"responseReceiptId": resReceipt.ReceiptID,
			"slaReceiptId":      slaReceipt.ReceiptID,
		})

	stepStart(on, "anchor", "Anchor evidence root", "Committing evidence hash on chain")
	anchor, err := rc.Anchor(ctx, agreementID)
	if err != nil {
		return FlowResult{}, err
	}
	stepDone(on, "anchor", "Anchor evidence root", "Merkle root committed on chain",
		map[string]interface{}{"rootHash": anchor.RootHash, "txHash": anchor.TxHash})

	stepStart(on, "file_dispute", "File dispute", "Submitting dispute transaction")
	disputeTx, err := cfg.Escrow.FileDispute(ctx, cfg.ConsumerKey, escrow.FileDisputeParams{
		AgreementID:       agreementID,
		Defendant:         provider.Address,
		TxID:              requestID,
		Stake:             bondAmount,
		PlaintiffEvidence: anchor.RootHash,
	})
	if err != nil {
		return FlowResult{}, fmt.Errorf("agentflow: file dispute: %w", err)
	}
	stepDone(on, "file_dispute", "File dispute", "Dispute filed on-chain", map[string]interface{}{"txHash": disputeTx.TxHash})

	return FlowResult{
		Mode:                 "dispute",
		AgreementID:          agreementID,
		DepositTxHash:        depositTx.TxHash,
		BondTxHash:           bondTx.TxHash,
		DisputeTxHash:        disputeTx.TxHash,
		ReceiptIDs:           []string{reqReceipt.ReceiptID, resReceipt.ReceiptID, slaReceipt.ReceiptID},
		RootHash:             anchor.RootHash,
		AnchorTxHash:         anchor.TxHash,
		X402PaymentReference: response.PaymentReference,
	}, nil
}
