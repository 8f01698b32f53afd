// Evidence Service
// Content-addressed arbitration clauses, hash-chained event receipts, and
// Merkle anchoring over the escrow contract.

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
	"github.com/certen/agentcourt/pkg/evidence"
)

func main() {
	cfg := config.LoadServiceConfig()

	store, err := evidence.NewStore(cfg.EvidenceStorePath)
	if err != nil {
		log.Fatalf("❌ failed to open evidence store: %v", err)
	}
	defer store.Close()

	backend, err := buildEscrowBackend(cfg)
	if err != nil {
		log.Fatalf("❌ failed to configure escrow backend: %v", err)
	}

	service := evidence.NewService(store, backend, cfg.JudgePrivateKey)
	handlers := evidence.NewHandlers(service, nil)

	addr := ":" + strconv.Itoa(cfg.EvidenceServicePort)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handlers.Router(),
	}

	go func() {
		log.Printf("🌐 Evidence Service listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ evidence service HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 shutting down Evidence Service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("✅ Evidence Service stopped")
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
