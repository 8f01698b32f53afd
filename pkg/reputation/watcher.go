// Copyright 2025 Certen Protocol
//
// Watcher polls RulingSubmitted and EvidenceCommitted events and applies
// the corresponding score deltas, grounded on
// original_source/apps/reputation_service/watcher.py. Lifecycle follows
// the same start/stop shape as pkg/judge.Watcher, without its pause state.

package reputation

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/certen/agentcourt/pkg/escrow"
)

const reputationCursorKey = "reputation.from_block"

// Watcher applies reputation deltas for ruling and evidence-commit events.
type Watcher struct {
	mu sync.RWMutex

	store  *Store
	escrow escrow.Backend

	interval time.Duration
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}

	logger *log.Logger
}

// NewWatcher builds a reputation Watcher polling at interval.
func NewWatcher(store *Store, backend escrow.Backend, interval time.Duration) *Watcher {
	return &Watcher{
		store:    store,
		escrow:   backend,
		interval: interval,
		logger:   log.New(log.Writer(), "[ReputationWatcher] ", log.LstdFlags),
	}
}

// Start begins the polling loop in a background goroutine.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.running = true
	go w.run(ctx)
	w.logger.Printf("watcher started (interval=%s)", w.interval)
}

// Stop halts the polling loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.running = false
	w.mu.Unlock()

	<-w.doneCh
	w.logger.Println("watcher stopped")
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	fromBlock, err := w.store.GetCursor(ctx, reputationCursorKey, 0)
	if err != nil {
		w.logger.Printf("failed to load cursor, starting from 0: %v", err)
		fromBlock = 0
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			fromBlock = w.pollOnce(ctx, fromBlock)
		}
	}
}

// pollOnce applies reputation deltas for every RulingSubmitted and
// EvidenceCommitted event since fromBlock, and returns the next
// fromBlock to resume from.
func (w *Watcher) pollOnce(ctx context.Context, fromBlock int64) int64 {
	next := fromBlock

	rulings, err := w.escrow.PollEvents(ctx, escrow.EventRulingSubmitted, fromBlock, -1)
	if err != nil {
		w.logger.Printf("poll rulings failed: %v", err)
		return fromBlock
	}
	for _, ev := range rulings {
		disputeID, _ := ev.Args["disputeId"].(string)
		winner, _ := ev.Args["winner"].(string)
		loser, _ := ev.Args["loser"].(string)

		var plaintiff string
		if dispute, err := w.escrow.GetDispute(ctx, disputeID); err == nil && dispute != nil {
			plaintiff = dispute.Plaintiff
		}

		if winner != "" {
			w.apply(ctx, winner, "won_dispute", fmt.Sprintf("ruling-win-%s-%s", disputeID, winner),
				map[string]interface{}{"disputeId": disputeID})
		}
		if loser != "" {
			w.apply(ctx, loser, "lost_dispute", fmt.Sprintf("ruling-lose-%s-%s", disputeID, loser),
				map[string]interface{}{"disputeId": disputeID})
			if plaintiff != "" && strings.EqualFold(loser, plaintiff) {
				w.apply(ctx, loser, "lost_as_filer", fmt.Sprintf("ruling-filer-loss-%s-%s", disputeID, loser),
					map[string]interface{}{"disputeId": disputeID})
			}
		}

		if ev.BlockNumber+1 > next {
			next = ev.BlockNumber + 1
		}
	}

	commits, err := w.escrow.PollEvents(ctx, escrow.EventEvidenceCommitted, fromBlock, -1)
	if err != nil {
		w.logger.Printf("poll evidence commits failed: %v", err)
		return fromBlock
	}
	for _, ev := range commits {
		agent, _ := ev.Args["agent"].(string)
		if agent != "" {
			w.apply(ctx, agent, "completed_without_dispute", fmt.Sprintf("evidence-commit-%s-%s", ev.TxHash, agent),
				map[string]interface{}{"txHash": ev.TxHash})
		}
		if ev.BlockNumber+1 > next {
			next = ev.BlockNumber + 1
		}
	}

	if err := w.store.SetCursor(ctx, reputationCursorKey, next); err != nil {
		w.logger.Printf("failed to persist cursor: %v", err)
	}
	return next
}

func (w *Watcher) apply(ctx context.Context, address, reason, eventKey string, payload map[string]interface{}) {
	_, err := w.store.ApplyEvent(ctx, ToDID(address), DeltaFor(reason), reason, eventKey, payload)
	if err != nil {
		w.logger.Printf("apply event %s failed: %v", eventKey, err)
	}
}
