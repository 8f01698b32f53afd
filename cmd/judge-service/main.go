// Judge Service
// Polls for filed disputes, re-verifies their evidence, extracts
// deterministic facts, escalates inconclusive cases to the tiered AI
// panel, and submits signed rulings to the escrow contract.

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
	"github.com/certen/agentcourt/pkg/judge"
)

func main() {
	cfg := config.LoadServiceConfig()

	store, err := judge.NewStore(cfg.VerdictStorePath)
	if err != nil {
		log.Fatalf("❌ failed to open verdict store: %v", err)
	}
	defer store.Close()

	backend, err := buildEscrowBackend(cfg)
	if err != nil {
		log.Fatalf("❌ failed to configure escrow backend: %v", err)
	}

	evidenceClient := judge.NewEvidenceClient(cfg.EvidenceServiceURL)
	panel := judge.NewPanel(cfg.LLMAPIKey, cfg.LLMEndpointURL, cfg.LLMTimeout(),
		cfg.LLMModelDistrict, cfg.LLMModelAppeals, cfg.LLMModelSupreme)

	sink, err := buildVerdictSink(cfg)
	if err != nil {
		log.Printf("⚠️ verdict sink disabled: %v", err)
	}

	service := judge.NewService(store, backend, evidenceClient, panel, sink,
		cfg.ChainID, cfg.EscrowContractAddress, cfg.JudgePrivateKey)

	watcher := judge.NewWatcher(service, cfg.JudgePollInterval())
	ctx, cancel := context.WithCancel(context.Background())
	watcher.Start(ctx)

	handlers := judge.NewHandlers(service, nil)
	addr := ":" + strconv.Itoa(cfg.JudgeServicePort)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handlers.Router(),
	}

	go func() {
		log.Printf("🌐 Judge Service listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ judge service HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 shutting down Judge Service...")
	cancel()
	watcher.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Printf("✅ Judge Service stopped")
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

func buildVerdictSink(cfg *config.ServiceConfig) (judge.VerdictSink, error) {
	var sinks []judge.VerdictSink

	if cfg.VerdictSinkFirestoreProject != "" {
		firestoreSink, err := judge.NewFirestoreSink(context.Background(), cfg.VerdictSinkFirestoreProject, cfg.VerdictSinkFirestoreCollection)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, firestoreSink)
	}

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		sinks = append(sinks, judge.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID))
	}

	if len(sinks) == 0 {
		return nil, nil
	}
	return judge.NewMultiSink(sinks...), nil
}
