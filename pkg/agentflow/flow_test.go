// Copyright 2025 Certen Protocol

package agentflow

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/certen/agentcourt/pkg/escrow"
	"github.com/certen/agentcourt/pkg/evidence"
)

const (
	testProviderKey = "1111111111111111111111111111111111111111111111111111111111111111"
	testConsumerKey = "2222222222222222222222222222222222222222222222222222222222222222"
)

func newTestFlowConfig(t *testing.T) (FlowConfig, func()) {
	t.Helper()
	dir := t.TempDir()

	store, err := evidence.NewStore(filepath.Join(dir, "evidence.db"))
	if err != nil {
		t.Fatalf("open evidence store: %v", err)
	}

	backend, err := escrow.NewDryRunBackend(filepath.Join(dir, "escrow.db"), "0xJudge")
	if err != nil {
		t.Fatalf("open dry-run backend: %v", err)
	}

	service := evidence.NewService(store, backend, "")
	handlers := evidence.NewHandlers(service, nil)
	server := httptest.NewServer(handlers.Router())

	cfg := FlowConfig{
		EvidenceURL:        server.URL,
		ChainID:            84532,
		ContractAddress:    "0xEscrowContract",
		ProviderKey:        testProviderKey,
		ConsumerKey:        testConsumerKey,
		Escrow:             backend,
		Provider:           NewStubProviderClient(""),
		AgreementWindowSec: 3600,
	}

	cleanup := func() {
		server.Close()
		store.Close()
	}
	return cfg, cleanup
}

func TestRunHappyFlow_ProducesAnchoredReceipts(t *testing.T) {
	cfg, cleanup := newTestFlowConfig(t)
	defer cleanup()

	var events []ProgressEvent
	result, err := RunHappyFlow(context.Background(), cfg, func(ev ProgressEvent) {
		events = append(events, ev)
	})
	if err != nil {
		t.Fatalf("RunHappyFlow: %v", err)
	}

	if result.Mode != "happy" {
		t.Fatalf("expected mode happy, got %s", result.Mode)
	}
	if result.AgreementID == "" {
		t.Fatalf("expected non-empty agreementId")
	}
	if len(result.ReceiptIDs) != 3 {
		t.Fatalf("expected 3 receipts, got %d", len(result.ReceiptIDs))
	}
	if result.RootHash == "" {
		t.Fatalf("expected anchored root hash")
	}

	foundDone := false
	for _, ev := range events {
		if ev.StepID == "anchor" && ev.Status == "done" {
			foundDone = true
		}
	}
	if !foundDone {
		t.Fatalf("expected an anchor.done progress event")
	}
}

func TestRunDisputeFlow_FilesDispute(t *testing.T) {
	cfg, cleanup := newTestFlowConfig(t)
	defer cleanup()

	result, err := RunDisputeFlow(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("RunDisputeFlow: %v", err)
	}

	if result.Mode != "dispute" {
		t.Fatalf("expected mode dispute, got %s", result.Mode)
	}
	if result.DisputeTxHash == "" {
		t.Fatalf("expected a dispute transaction hash")
	}
	if len(result.ReceiptIDs) != 3 {
		t.Fatalf("expected 3 receipts (request, response, sla_check), got %d", len(result.ReceiptIDs))
	}
}

func TestBuildActors_RequiresKeys(t *testing.T) {
	_, _, err := buildActors(FlowConfig{})
	if err == nil {
		t.Fatalf("expected error when provider/consumer keys are missing")
	}
}
