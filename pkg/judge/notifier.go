// Copyright 2025 Certen Protocol
//
// TelegramNotifier posts a one-line summary of a published verdict to a
// Telegram chat via the Bot API. Grounded on
// original_source/apps/judge_service/src/judge_service/telegram_notifier.py:
// same "no-op if token/chat unset, swallow all errors" behavior, ported from
// httpx to net/http since no Telegram SDK appears anywhere in the pack.

package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/certen/agentcourt/pkg/protocol"
)

// TelegramNotifier sends a best-effort Telegram message for every published
// verdict. Publish is a no-op when BotToken or ChatID is empty.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	client   *http.Client
}

// NewTelegramNotifier builds a notifier posting to botToken's bot in chatID.
func NewTelegramNotifier(botToken, chatID string) *TelegramNotifier {
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Publish sends a verdict summary to Telegram, swallowing any failure:
// notification delivery never blocks the ruling pipeline.
func (n *TelegramNotifier) Publish(ctx context.Context, verdict protocol.VerdictPackage) error {
	if n.BotToken == "" || n.ChatID == "" {
		return nil
	}

	text := fmt.Sprintf("Verdict %s for dispute %s (agreement %s): tier=%d confidence=%.2f reasons=%v",
		verdict.VerdictID, verdict.DisputeID, verdict.AgreementID, verdict.Tier, verdict.Confidence, verdict.ReasonCodes)

	payload, err := json.Marshal(map[string]string{"chat_id": n.ChatID, "text": text})
	if err != nil {
		return nil
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	return nil
}

// MultiSink fans a verdict out to every sink; one sink's error never stops
// the others from being called, and the first error is returned.
type MultiSink struct {
	sinks []VerdictSink
}

// NewMultiSink builds a sink that publishes to every non-nil sink in sinks.
func NewMultiSink(sinks ...VerdictSink) *MultiSink {
	nonNil := make([]VerdictSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			nonNil = append(nonNil, s)
		}
	}
	return &MultiSink{sinks: nonNil}
}

// Publish calls Publish on every wrapped sink, collecting the first error
// but still attempting the rest.
func (m *MultiSink) Publish(ctx context.Context, verdict protocol.VerdictPackage) error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Publish(ctx, verdict); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
