// Copyright 2025 Certen Protocol

package orchestrator

import (
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/certen/agentcourt/pkg/agentflow"
	"github.com/certen/agentcourt/pkg/escrow"
	"github.com/certen/agentcourt/pkg/evidence"
)

func newTestManager(t *testing.T) (*Manager, func()) {
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
	server := httptest.NewServer(evidence.NewHandlers(service, nil).Router())

	flowCfg := agentflow.FlowConfig{
		EvidenceURL:        server.URL,
		ChainID:            84532,
		ContractAddress:    "0xEscrowContract",
		ProviderKey:        testProviderKey,
		ConsumerKey:        testConsumerKey,
		Escrow:             backend,
		Provider:           agentflow.NewStubProviderClient(""),
		AgreementWindowSec: 3600,
	}

	manager := NewManager(flowCfg)
	cleanup := func() {
		server.Close()
		store.Close()
	}
	return manager, cleanup
}

const (
	testProviderKey = "1111111111111111111111111111111111111111111111111111111111111111"
	testConsumerKey = "2222222222222222222222222222222222222222222222222222222222222222"
)

func TestCreateAndStartRun_CompletesHappyPath(t *testing.T) {
	manager, cleanup := newTestManager(t)
	defer cleanup()

	run := manager.CreateRun(ModeHappy)
	if run.Status != StatusPending {
		t.Fatalf("expected pending status, got %s", run.Status)
	}
	if err := manager.Start(run.RunID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var final *Run
	for time.Now().Before(deadline) {
		got, err := manager.Get(run.RunID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status == StatusComplete || got.Status == StatusError {
			final = got
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if final == nil {
		t.Fatalf("run did not finish within deadline")
	}
	if final.Status != StatusComplete {
		t.Fatalf("expected complete, got %s (error=%s)", final.Status, final.Error)
	}
	if final.Artifacts["agreementId"] == "" || final.Artifacts["agreementId"] == nil {
		t.Fatalf("expected agreementId artifact, got %v", final.Artifacts)
	}
}

func TestSubscribe_ReplaysHistoryThenLiveEvents(t *testing.T) {
	manager, cleanup := newTestManager(t)
	defer cleanup()

	run := manager.CreateRun(ModeHappy)
	if err := manager.Start(run.RunID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	live, history, unsubscribe, err := manager.Subscribe(run.RunID)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer unsubscribe()

	if len(history) == 0 {
		t.Fatalf("expected at least run.started in history")
	}

	deadline := time.Now().Add(5 * time.Second)
	sawComplete := false
	for time.Now().Before(deadline) && !sawComplete {
		select {
		case ev := <-live:
			if ev.Type == "run.complete" {
				sawComplete = true
			}
		case <-time.After(100 * time.Millisecond):
		}
	}
	if !sawComplete {
		t.Fatalf("expected to observe run.complete on the live channel")
	}
}

func TestGet_UnknownRunReturnsNotFound(t *testing.T) {
	manager, cleanup := newTestManager(t)
	defer cleanup()

	_, err := manager.Get("does-not-exist")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
