// Copyright 2025 Certen Protocol

package escrow

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/certen/agentcourt/pkg/protocol"
)

func newTestBackend(t *testing.T) *DryRunBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "escrow.db")
	backend, err := NewDryRunBackend(path, "0x0000000000000000000000000000000000000099")
	if err != nil {
		t.Fatalf("open dry-run backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })
	return backend
}

const testSignerKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690"

func TestDryRunBackend_EventOrdering(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := backend.CommitEvidenceHash(ctx, testSignerKey, "agreement-1", "0xroot"); err != nil {
			t.Fatalf("commit evidence: %v", err)
		}
	}

	events, err := backend.PollEvents(ctx, EventEvidenceCommitted, 0, -1)
	if err != nil {
		t.Fatalf("poll events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	for i := 1; i < len(events); i++ {
		prev, cur := events[i-1], events[i]
		if cur.BlockNumber < prev.BlockNumber ||
			(cur.BlockNumber == prev.BlockNumber && cur.InsertionIndex <= prev.InsertionIndex) {
			t.Fatalf("events out of (blockNumber, insertionIndex) order: %+v then %+v", prev, cur)
		}
	}
}

func TestDryRunBackend_SubmitRulingIdempotent(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	result, err := backend.FileDispute(ctx, testSignerKey, FileDisputeParams{
		AgreementID:       "agreement-1",
		Defendant:         "0x0000000000000000000000000000000000000002",
		Stake:             "1000000000000000",
		PlaintiffEvidence: "0xroot",
	})
	if err != nil {
		t.Fatalf("file dispute: %v", err)
	}
	_ = result

	disputeID := "agreement-1-dispute"
	verdict := protocol.VerdictPackage{
		DisputeID: disputeID,
		Defendant: "0x0000000000000000000000000000000000000002",
		Transfers: []protocol.Transfer{{To: "0x0000000000000000000000000000000000000002", Amount: "1000000000000000", Reason: "win"}},
	}

	if _, err := backend.SubmitRuling(ctx, disputeID, verdict); err != nil {
		t.Fatalf("first submitRuling: %v", err)
	}
	if _, err := backend.SubmitRuling(ctx, disputeID, verdict); err != ErrAlreadyResolved {
		t.Fatalf("expected ErrAlreadyResolved on replay, got %v", err)
	}

	events, err := backend.PollEvents(ctx, EventRulingSubmitted, 0, -1)
	if err != nil {
		t.Fatalf("poll ruling events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one RulingSubmitted event, got %d", len(events))
	}
}

func TestDryRunBackend_GetDisputeNotFound(t *testing.T) {
	backend := newTestBackend(t)
	_, err := backend.GetDispute(context.Background(), "missing")
	if err != ErrDisputeNotFound {
		t.Fatalf("expected ErrDisputeNotFound, got %v", err)
	}
}
