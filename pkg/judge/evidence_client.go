// Copyright 2025 Certen Protocol
//
// HTTP client to the evidence service, used by the judge watcher to
// re-assemble the evidence bundle for a disputed root hash. Grounded on
// original_source/apps/judge_service/server.py's _get_evidence_bundle.

package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/certen/agentcourt/pkg/protocol"
)

// EvidenceClient fetches anchors, clauses, and receipts from the evidence
// service.
type EvidenceClient struct {
	baseURL string
	client  *http.Client
}

// NewEvidenceClient builds an EvidenceClient against baseURL.
func NewEvidenceClient(baseURL string) *EvidenceClient {
	return &EvidenceClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// EvidenceBundle is the re-assembled clause and receipt set for an
// agreement, keyed by the root hash a dispute was filed against.
type EvidenceBundle struct {
	AgreementID string
	Clause      protocol.ArbitrationClause
	Receipts    []protocol.EventReceipt
}

func (c *EvidenceClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("judge: build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("judge: request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: %s returned %d", ErrEvidenceUnavailable, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetBundle fetches the anchor for rootHash, then the clause and receipts
// for the agreement it belongs to.
func (c *EvidenceClient) GetBundle(ctx context.Context, rootHash string) (*EvidenceBundle, error) {
	var anchor protocol.AnchorRecord
	if err := c.get(ctx, "/anchors/by-root/"+url.PathEscape(rootHash), &anchor); err != nil {
		return nil, err
	}

	var clause protocol.ArbitrationClause
	if err := c.get(ctx, "/clauses/"+url.PathEscape(anchor.AgreementID), &clause); err != nil {
		return nil, err
	}

	var receiptsResp struct {
		Items []protocol.EventReceipt `json:"items"`
	}
	if err := c.get(ctx, "/receipts?agreementId="+url.QueryEscape(anchor.AgreementID), &receiptsResp); err != nil {
		return nil, err
	}

	return &EvidenceBundle{
		AgreementID: anchor.AgreementID,
		Clause:      clause,
		Receipts:    receiptsResp.Items,
	}, nil
}
