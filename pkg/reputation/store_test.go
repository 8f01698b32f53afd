// Copyright 2025 Certen Protocol

package reputation

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "reputation.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_ApplyEvent_UpdatesScore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	applied, err := store.ApplyEvent(ctx, "did:8004:0xabc", DeltaFor("won_dispute"), "won_dispute", "ruling-win-1-0xabc", map[string]interface{}{"disputeId": "1"})
	if err != nil {
		t.Fatalf("apply event: %v", err)
	}
	if !applied {
		t.Fatalf("expected event to apply")
	}

	rep, err := store.GetReputation(ctx, "did:8004:0xabc")
	if err != nil {
		t.Fatalf("get reputation: %v", err)
	}
	if rep.Score != startingScore+ScoreWonDispute {
		t.Fatalf("expected score %d, got %d", startingScore+ScoreWonDispute, rep.Score)
	}
	if len(rep.History) != 1 || rep.History[0].Reason != "won_dispute" {
		t.Fatalf("unexpected history: %+v", rep.History)
	}
}

func TestStore_ApplyEvent_DuplicateEventKeyIgnored(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	actor := "did:8004:0xdef"
	for i := 0; i < 3; i++ {
		applied, err := store.ApplyEvent(ctx, actor, DeltaFor("completed_without_dispute"), "completed_without_dispute", "evidence-commit-0xtx-0xdef", map[string]interface{}{"txHash": "0xtx"})
		if err != nil {
			t.Fatalf("apply event: %v", err)
		}
		if i == 0 && !applied {
			t.Fatalf("expected first apply to succeed")
		}
		if i > 0 && applied {
			t.Fatalf("expected replay of the same event key to be a no-op")
		}
	}

	rep, err := store.GetReputation(ctx, actor)
	if err != nil {
		t.Fatalf("get reputation: %v", err)
	}
	if rep.Score != startingScore+ScoreCompletedWithoutDispute {
		t.Fatalf("expected score to reflect exactly one application, got %d", rep.Score)
	}
	if len(rep.History) != 1 {
		t.Fatalf("expected exactly one history entry, got %d", len(rep.History))
	}
}

func TestStore_GetReputation_NewActorStartsAtBaseline(t *testing.T) {
	store := newTestStore(t)
	rep, err := store.GetReputation(context.Background(), "did:8004:0xnew")
	if err != nil {
		t.Fatalf("get reputation: %v", err)
	}
	if rep.Score != startingScore {
		t.Fatalf("expected baseline score %d, got %d", startingScore, rep.Score)
	}
	if len(rep.History) != 0 {
		t.Fatalf("expected no history for a new actor")
	}
}

func TestToDID_Idempotent(t *testing.T) {
	if got := ToDID("0xabc"); got != "did:8004:0xabc" {
		t.Fatalf("unexpected DID: %s", got)
	}
	if got := ToDID("did:8004:0xabc"); got != "did:8004:0xabc" {
		t.Fatalf("expected already-qualified DID to pass through, got %s", got)
	}
}
