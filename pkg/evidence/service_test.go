// Copyright 2025 Certen Protocol

package evidence

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/certen/agentcourt/pkg/canonical"
	"github.com/certen/agentcourt/pkg/escrow"
	"github.com/certen/agentcourt/pkg/protocol"
)

const testSignerKey = "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690"

func testActorID(t *testing.T) string {
	t.Helper()
	digest := "0x0000000000000000000000000000000000000000000000000000000000000000"
	sig, err := canonical.SignEIP191(testSignerKey, digest)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	addr, err := canonical.RecoverSignerEIP191(digest, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	return canonical.AddressToDID(addr)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "evidence.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	backend, err := escrow.NewDryRunBackend(filepath.Join(t.TempDir(), "escrow.db"), "0x0000000000000000000000000000000000000099")
	if err != nil {
		t.Fatalf("open dry-run backend: %v", err)
	}
	t.Cleanup(func() { _ = backend.Close() })

	return NewService(store, backend, testSignerKey)
}

func testClause(t *testing.T, agreementID string) protocol.ArbitrationClause {
	t.Helper()
	c := protocol.ArbitrationClause{
		SchemaVersion:   protocol.SchemaVersion,
		ClauseID:        "clause-" + agreementID,
		ChainID:         48816,
		ContractAddress: "0x0000000000000000000000000000000000000001",
		AgreementID:     agreementID,
		ServiceScope:    "test service",
	}
	hash, err := protocol.ComputeClauseHash(c)
	if err != nil {
		t.Fatalf("compute clause hash: %v", err)
	}
	c.ClauseHash = hash
	return c
}

func testReceipt(t *testing.T, clause protocol.ArbitrationClause, actorID, prevHash string, sequence int) protocol.EventReceipt {
	t.Helper()
	r := protocol.EventReceipt{
		SchemaVersion:   protocol.SchemaVersion,
		ReceiptID:       "receipt-" + clause.AgreementID + "-" + string(rune('a'+sequence)),
		ChainID:         clause.ChainID,
		ContractAddress: clause.ContractAddress,
		AgreementID:     clause.AgreementID,
		ClauseHash:      clause.ClauseHash,
		Sequence:        sequence,
		EventType:       protocol.EventTypeRequest,
		TimestampMs:     int64(1000 + sequence),
		ActorID:         actorID,
		CounterpartyID:  actorID,
		RequestID:       "req-1",
		PayloadHash:     "0xdead",
		PrevHash:        prevHash,
	}
	hash, err := protocol.ComputeReceiptHash(r)
	if err != nil {
		t.Fatalf("compute receipt hash: %v", err)
	}
	r.ReceiptHash = hash
	sig, err := canonical.SignEIP191(testSignerKey, hash)
	if err != nil {
		t.Fatalf("sign receipt: %v", err)
	}
	r.Signature = sig
	return r
}

func TestService_CreateClause_HashMismatchRejected(t *testing.T) {
	svc := newTestService(t)
	clause := testClause(t, "agreement-1")
	clause.ClauseHash = "0xtampered"

	raw, _ := json.Marshal(clause)
	if _, err := svc.CreateClause(context.Background(), raw); err == nil {
		t.Fatal("expected hash mismatch to be rejected")
	}
}

func TestService_PostReceipt_BuildsChainAndAnchors(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	actorID := testActorID(t)

	clause := testClause(t, "agreement-1")
	raw, _ := json.Marshal(clause)
	if _, err := svc.CreateClause(ctx, raw); err != nil {
		t.Fatalf("create clause: %v", err)
	}

	prevHash := protocol.ZeroHash
	for i := 0; i < 3; i++ {
		receipt := testReceipt(t, clause, actorID, prevHash, i)
		raw, _ := json.Marshal(receipt)
		if _, err := svc.PostReceipt(ctx, raw); err != nil {
			t.Fatalf("post receipt %d: %v", i, err)
		}
		prevHash = receipt.ReceiptHash
	}

	anchor, err := svc.Anchor(ctx, clause.AgreementID)
	if err != nil {
		t.Fatalf("anchor: %v", err)
	}
	if anchor.RootHash == "" || anchor.TxHash == "" {
		t.Fatalf("expected populated anchor, got %+v", anchor)
	}

	bundle, err := svc.GetAgreementBundle(ctx, clause.AgreementID)
	if err != nil {
		t.Fatalf("get bundle: %v", err)
	}
	if !bundle.ChainVerification.OK {
		t.Fatalf("expected chain to verify, got errors: %v", bundle.ChainVerification.Errors)
	}
	if !bundle.RootsMatch {
		t.Fatalf("expected anchored root to match expected root")
	}
}

func TestService_PostReceipt_BrokenChainRejected(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	actorID := testActorID(t)

	clause := testClause(t, "agreement-1")
	raw, _ := json.Marshal(clause)
	if _, err := svc.CreateClause(ctx, raw); err != nil {
		t.Fatalf("create clause: %v", err)
	}

	receipt := testReceipt(t, clause, actorID, protocol.ZeroHash, 0)
	raw, _ = json.Marshal(receipt)
	if _, err := svc.PostReceipt(ctx, raw); err != nil {
		t.Fatalf("post first receipt: %v", err)
	}

	broken := testReceipt(t, clause, actorID, "0xwrongprev", 1)
	raw, _ = json.Marshal(broken)
	if _, err := svc.PostReceipt(ctx, raw); err == nil {
		t.Fatal("expected broken chain link to be rejected")
	}
}

// TestService_PostReceipt_ConcurrentDuplicateSequence exercises the
// invariant that concurrent posts of the same (agreementId, sequence) pair
// succeed exactly once.
func TestService_PostReceipt_ConcurrentDuplicateSequence(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	actorID := testActorID(t)

	clause := testClause(t, "agreement-1")
	raw, _ := json.Marshal(clause)
	if _, err := svc.CreateClause(ctx, raw); err != nil {
		t.Fatalf("create clause: %v", err)
	}

	receipt := testReceipt(t, clause, actorID, protocol.ZeroHash, 0)
	payload, _ := json.Marshal(receipt)

	const attempts = 8
	var wg sync.WaitGroup
	successes := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := svc.PostReceipt(ctx, payload)
			successes[idx] = err == nil
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, ok := range successes {
		if ok {
			successCount++
		}
	}
	if successCount != 1 {
		t.Fatalf("expected exactly 1 success out of %d concurrent posts, got %d", attempts, successCount)
	}
}
