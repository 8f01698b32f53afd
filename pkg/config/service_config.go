// Copyright 2025 Certen Protocol
//
// Configuration for the evidence, judge, reputation, and demo-runner
// services. Reuses the getEnv/getEnvInt/getEnvBool helpers defined in
// config.go alongside Load()'s validator configuration rather than
// duplicating them.

package config

import "time"

// ServiceConfig holds the configuration shared by the dispute-resolution
// services (evidence, judge, reputation, demo runner).
type ServiceConfig struct {
	// Chain / escrow
	ChainRPCURL            string
	ChainID                int64
	EscrowContractAddress  string
	EscrowDryRun           bool
	EscrowMockDBPath       string

	// Polling cadence
	JudgePollSec      int
	ReputationPollSec int
	AgreementWindowSec int

	// Storage paths
	EvidenceStorePath   string
	VerdictStorePath    string
	ReputationStorePath string

	// LLM panel
	LLMAPIKey         string
	LLMModelDistrict  string
	LLMModelAppeals   string
	LLMModelSupreme   string
	LLMTimeoutSec     int
	LLMEndpointURL    string

	// Signing keys
	JudgePrivateKey    string
	ProviderPrivateKey string
	ConsumerPrivateKey string

	// Service ports
	EvidenceServicePort   int
	JudgeServicePort      int
	ReputationServicePort int
	DemoRunnerPort        int

	// Evidence service URL, as consumed by the judge watcher
	EvidenceServiceURL string
	VerdictAPIURL      string

	// Optional Firestore verdict sink
	VerdictSinkFirestoreProject    string
	VerdictSinkFirestoreCollection string

	// Optional Telegram verdict notifier
	TelegramBotToken string
	TelegramChatID   string
}

// LoadServiceConfig reads ServiceConfig from the environment, applying the
// same defaults the reference services use.
func LoadServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		ChainRPCURL:           getEnv("CHAIN_RPC_URL", "https://rpc.testnet3.goat.network"),
		ChainID:               getEnvInt64("CHAIN_ID", 48816),
		EscrowContractAddress: getEnv("ESCROW_CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000000"),
		EscrowDryRun:          getEnvBool("ESCROW_DRY_RUN", false),
		EscrowMockDBPath:      getEnv("ESCROW_MOCK_DB_PATH", "./data/escrow_mock.db"),

		JudgePollSec:       getEnvInt("JUDGE_POLL_SEC", 5),
		ReputationPollSec:  getEnvInt("REPUTATION_POLL_SEC", 5),
		AgreementWindowSec: getEnvInt("AGREEMENT_WINDOW_SEC", 3600),

		EvidenceStorePath:   getEnv("EVIDENCE_STORE_PATH", "./data/evidence.db"),
		VerdictStorePath:    getEnv("VERDICT_STORE_PATH", "./data/verdict.db"),
		ReputationStorePath: getEnv("REPUTATION_STORE_PATH", "./data/reputation.db"),

		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		LLMModelDistrict: getEnv("LLM_MODEL_DISTRICT", "claude-haiku-4-5-20251001"),
		LLMModelAppeals:  getEnv("LLM_MODEL_APPEALS", "claude-sonnet-4-6"),
		LLMModelSupreme:  getEnv("LLM_MODEL_SUPREME", "claude-opus-4-6"),
		LLMTimeoutSec:    getEnvInt("LLM_TIMEOUT_SEC", 30),
		LLMEndpointURL:   getEnv("LLM_ENDPOINT_URL", ""),

		JudgePrivateKey:    getEnv("JUDGE_PRIVATE_KEY", ""),
		ProviderPrivateKey: getEnv("PROVIDER_PRIVATE_KEY", ""),
		ConsumerPrivateKey: getEnv("CONSUMER_PRIVATE_KEY", ""),

		EvidenceServicePort:   getEnvInt("EVIDENCE_SERVICE_PORT", 4001),
		JudgeServicePort:      getEnvInt("JUDGE_SERVICE_PORT", 4002),
		ReputationServicePort: getEnvInt("REPUTATION_SERVICE_PORT", 4003),
		DemoRunnerPort:        getEnvInt("DEMO_RUNNER_PORT", 4000),

		EvidenceServiceURL: getEnv("EVIDENCE_SERVICE_URL", "http://127.0.0.1:4001"),
		VerdictAPIURL:      getEnv("VERDICT_API_URL", ""),

		VerdictSinkFirestoreProject:    getEnv("VERDICT_SINK_FIRESTORE_PROJECT", ""),
		VerdictSinkFirestoreCollection: getEnv("VERDICT_SINK_FIRESTORE_COLLECTION", "verdicts"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
	}
}

// LLMTimeout returns LLMTimeoutSec as a time.Duration.
func (c *ServiceConfig) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSec) * time.Second
}

// JudgePollInterval returns JudgePollSec as a time.Duration.
func (c *ServiceConfig) JudgePollInterval() time.Duration {
	return time.Duration(c.JudgePollSec) * time.Second
}

// ReputationPollInterval returns ReputationPollSec as a time.Duration.
func (c *ServiceConfig) ReputationPollInterval() time.Duration {
	return time.Duration(c.ReputationPollSec) * time.Second
}
