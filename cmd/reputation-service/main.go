// Reputation Service
// Tracks a per-actor score derived from RulingSubmitted and
// EvidenceCommitted events emitted by the escrow contract.

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

	"github.com/certen/agentcourt/pkg/config"
	"github.com/certen/agentcourt/pkg/escrow"
	"github.com/certen/agentcourt/pkg/ethereum"
	"github.com/certen/agentcourt/pkg/reputation"
)

func main() {
	cfg := config.LoadServiceConfig()

	store, err := reputation.NewStore(cfg.ReputationStorePath)
	if err != nil {
		log.Fatalf("❌ failed to open reputation store: %v", err)
	}
	defer store.Close()

	backend, err := buildEscrowBackend(cfg)
	if err != nil {
		log.Fatalf("❌ failed to configure escrow backend: %v", err)
	}

	watcher := reputation.NewWatcher(store, backend, cfg.ReputationPollInterval())
	ctx, cancel := context.WithCancel(context.Background())
	watcher.Start(ctx)

	handlers := reputation.NewHandlers(store, backend, nil)
	addr := ":" + strconv.Itoa(cfg.ReputationServicePort)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handlers.Router(),
	}

	go func() {
		log.Printf("🌐 Reputation Service listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ reputation service HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 shutting down Reputation Service...")
	cancel()
	watcher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("✅ Reputation Service stopped")
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
