// Demo Runner
// Drives the happy-path and dispute scripted agent flows against the
// evidence, judge, and reputation services, exposing run state over a
// server-sent events stream. Grounded on
// original_source/apps/demo_runner/src/demo_runner/orchestrator.py.

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/certen/agentcourt/pkg/agentflow"
	"github.com/certen/agentcourt/pkg/config"
	"github.com/certen/agentcourt/pkg/escrow"
	"github.com/certen/agentcourt/pkg/ethereum"
	"github.com/certen/agentcourt/pkg/orchestrator"
)

// Demo default private keys, used only when the environment leaves the
// provider/consumer/judge keys unset, so the demo can run with zero setup
// against the dry-run escrow backend. Never used against a live chain:
// applyDemoDefaults leaves the keys untouched unless EscrowDryRun is set.
const (
	demoProviderKey = "1111111111111111111111111111111111111111111111111111111111111111"
	demoConsumerKey = "2222222222222222222222222222222222222222222222222222222222222222"
	demoJudgeKey    = "3333333333333333333333333333333333333333333333333333333333333333"
)

func applyDemoDefaults(cfg *config.ServiceConfig) {
	if !cfg.EscrowDryRun {
		return
	}
	if cfg.ProviderPrivateKey == "" {
		cfg.ProviderPrivateKey = demoProviderKey
	}
	if cfg.ConsumerPrivateKey == "" {
		cfg.ConsumerPrivateKey = demoConsumerKey
	}
	if cfg.JudgePrivateKey == "" {
		cfg.JudgePrivateKey = demoJudgeKey
	}
}

func main() {
	cfg := config.LoadServiceConfig()
	applyDemoDefaults(cfg)

	backend, err := buildEscrowBackend(cfg)
	if err != nil {
		log.Fatalf("❌ failed to configure escrow backend: %v", err)
	}

	flowCfg := agentflow.FlowConfig{
		EvidenceURL:        cfg.EvidenceServiceURL,
		ChainID:            cfg.ChainID,
		ContractAddress:    cfg.EscrowContractAddress,
		ProviderKey:        cfg.ProviderPrivateKey,
		ConsumerKey:        cfg.ConsumerPrivateKey,
		Escrow:             backend,
		Provider:           agentflow.NewStubProviderClient(""),
		AgreementWindowSec: cfg.AgreementWindowSec,
	}

	manager := orchestrator.NewManager(flowCfg)
	handlers := orchestrator.NewHandlers(manager, nil)

	addr := ":" + strconv.Itoa(cfg.DemoRunnerPort)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handlers.Router(),
	}

	go func() {
		log.Printf("🌐 Demo Runner listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ demo runner HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 shutting down Demo Runner...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("✅ Demo Runner stopped")
}

func buildEscrowBackend(cfg *config.ServiceConfig) (escrow.Backend, error) {
	if cfg.EscrowDryRun {
		judgeAddress := cfg.EscrowContractAddress
		if cfg.JudgePrivateKey != "" {
			if addr, err := escrow.AddressFromPrivateKey(cfg.JudgePrivateKey); err == nil {
				judgeAddress = addr
			}
		}
		return escrow.NewDryRunBackend(cfg.EscrowMockDBPath, judgeAddress)
	}
	eth, err := ethereum.NewClient(cfg.ChainRPCURL, cfg.ChainID)
	if err != nil {
		return nil, err
	}
	return escrow.NewLiveBackend(eth, cfg.EscrowContractAddress, cfg.JudgePrivateKey)
}
