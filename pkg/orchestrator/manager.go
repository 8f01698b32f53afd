// Copyright 2025 Certen Protocol
//
// DemoRunManager drives scripted agent flows end to end, publishing a
// replayable event log each run's subscribers can stream. Grounded on
// original_source/apps/demo_runner/src/demo_runner/orchestrator.py's
// DemoRunManager.

package orchestrator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/certen/agentcourt/pkg/agentflow"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = fmt.Errorf("orchestrator: run not found")

func nowMs() int64 {
	return time.Now().UnixMilli()
}

type subscriber struct {
	ch chan Event
}

// runState bundles a Run with its mutex, event log, and cancel func; kept
// separate from the public Run so JSON responses never leak internals.
type runState struct {
	mu          sync.Mutex
	run         Run
	events      []Event
	subscribers map[int]*subscriber
	nextSubID   int
	cancel      context.CancelFunc
}

// Manager creates, runs, and streams demo runs.
type Manager struct {
	mu   sync.Mutex
	runs map[string]*runState

	evidenceURL string
	escrowCfg   agentflow.FlowConfig
	log         *log.Logger
}

// NewManager builds a Manager using flowCfg as the template FlowConfig for
// every run it executes (evidence URL, escrow backend, signing keys).
func NewManager(flowCfg agentflow.FlowConfig) *Manager {
	return &Manager{
		runs:      make(map[string]*runState),
		escrowCfg: flowCfg,
		log:       log.New(log.Writer(), "[DemoRunner] ", log.LstdFlags),
	}
}

// CreateRun registers a new run in the pending state without starting it.
func (m *Manager) CreateRun(mode Mode) *Run {
	now := nowMs()
	rs := &runState{
		run: Run{
			RunID:     uuid.NewString(),
			Mode:      mode,
			Status:    StatusPending,
			StartMs:   now,
			UpdateMs:  now,
			Steps:     []Step{},
			Artifacts: map[string]interface{}{},
		},
		subscribers: make(map[int]*subscriber),
	}

	m.mu.Lock()
	m.runs[rs.run.RunID] = rs
	m.mu.Unlock()

	snapshot := rs.run
	return &snapshot
}

// Get returns a snapshot of the named run.
func (m *Manager) Get(runID string) (*Run, error) {
	rs, err := m.find(runID)
	if err != nil {
		return nil, err
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	snapshot := rs.run
	return &snapshot, nil
}

// List returns a snapshot of every known run.
func (m *Manager) List() []Run {
	m.mu.Lock()
	states := make([]*runState, 0, len(m.runs))
	for _, rs := range m.runs {
		states = append(states, rs)
	}
	m.mu.Unlock()

	out := make([]Run, 0, len(states))
	for _, rs := range states {
		rs.mu.Lock()
		out = append(out, rs.run)
		rs.mu.Unlock()
	}
	return out
}

func (m *Manager) find(runID string) (*runState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return rs, nil
}

// Start transitions a pending run to queued and begins executing it in the
// background.
func (m *Manager) Start(runID string) error {
	rs, err := m.find(runID)
	if err != nil {
		return err
	}

	rs.mu.Lock()
	if rs.run.Status != StatusPending {
		rs.mu.Unlock()
		return fmt.Errorf("orchestrator: run %s is not pending", runID)
	}
	rs.run.Status = StatusQueued
	rs.run.UpdateMs = nowMs()
	ctx, cancel := context.WithCancel(context.Background())
	rs.cancel = cancel
	rs.mu.Unlock()

	go m.execute(ctx, rs)
	return nil
}

// Cancel requests cooperative cancellation of a running run.
func (m *Manager) Cancel(runID string) error {
	rs, err := m.find(runID)
	if err != nil {
		return err
	}
	rs.mu.Lock()
	cancel := rs.cancel
	rs.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Subscribe returns a channel of events for runID, first replaying its
// history, then streaming live updates. The returned unsubscribe func must
// be called when the caller stops reading.
func (m *Manager) Subscribe(runID string) (<-chan Event, []Event, func(), error) {
	rs, err := m.find(runID)
	if err != nil {
		return nil, nil, nil, err
	}

	rs.mu.Lock()
	history := make([]Event, len(rs.events))
	copy(history, rs.events)
	sub := &subscriber{ch: make(chan Event, 64)}
	id := rs.nextSubID
	rs.nextSubID++
	rs.subscribers[id] = sub
	rs.mu.Unlock()

	unsubscribe := func() {
		rs.mu.Lock()
		delete(rs.subscribers, id)
		rs.mu.Unlock()
	}
	return sub.ch, history, unsubscribe, nil
}

func (m *Manager) execute(ctx context.Context, rs *runState) {
	rs.mu.Lock()
	rs.run.Status = StatusRunning
	rs.run.UpdateMs = nowMs()
	mode := rs.run.Mode
	rs.mu.Unlock()

	m.publish(rs, Event{Type: "run.started", Message: "run started"})

	progress := func(ev agentflow.ProgressEvent) {
		step := Step{
			StepID:    ev.StepID,
			Label:     ev.Label,
			Status:    ev.Status,
			Message:   ev.Message,
			Artifacts: ev.Artifacts,
			AtMs:      ev.AtMs,
		}
		rs.mu.Lock()
		rs.run.CurrentStep = ev.StepID
		rs.run.UpdateMs = nowMs()
		rs.run.upsertStep(step)
		rs.mu.Unlock()
		m.publish(rs, Event{Type: ev.Type, StepID: ev.StepID, Message: ev.Message, Artifacts: ev.Artifacts})
	}

	var (
		result agentflow.FlowResult
		err    error
	)
	switch mode {
	case ModeDispute:
		result, err = agentflow.RunDisputeFlow(ctx, m.escrowCfg, progress)
	default:
		result, err = agentflow.RunHappyFlow(ctx, m.escrowCfg, progress)
	}

	rs.mu.Lock()
	rs.run.UpdateMs = nowMs()
	if err != nil {
		if ctx.Err() != nil {
			rs.run.Status = StatusCancelled
			rs.run.Error = "cancelled"
		} else {
			rs.run.Status = StatusError
			rs.run.Error = err.Error()
		}
	} else {
		rs.run.Status = StatusComplete
		rs.run.Artifacts = flowResultArtifacts(result)
	}
	final := rs.run
	rs.mu.Unlock()

	if err != nil {
		m.publish(rs, Event{Type: "run.error", Message: final.Error})
		m.log.Printf("run %s failed: %v", final.RunID, err)
		return
	}
	m.publish(rs, Event{Type: "run.complete", Artifacts: final.Artifacts, Message: "run complete"})
}

func flowResultArtifacts(r agentflow.FlowResult) map[string]interface{} {
	artifacts := map[string]interface{}{
		"mode":                 r.Mode,
		"agreementId":          r.AgreementID,
		"depositTx":            r.DepositTxHash,
		"bondTx":               r.BondTxHash,
		"receiptIds":           r.ReceiptIDs,
		"rootHash":             r.RootHash,
		"anchorTx":             r.AnchorTxHash,
		"x402PaymentReference": r.X402PaymentReference,
	}
	if r.DisputeTxHash != "" {
		artifacts["disputeTx"] = r.DisputeTxHash
	}
	return artifacts
}

func (m *Manager) publish(rs *runState, ev Event) {
	rs.mu.Lock()
	ev.RunID = rs.run.RunID
	ev.Seq = int64(len(rs.events))
	ev.AtMs = nowMs()
	rs.events = append(rs.events, ev)
	subs := make([]*subscriber, 0, len(rs.subscribers))
	for _, sub := range rs.subscribers {
		subs = append(subs, sub)
	}
	rs.mu.Unlock()

	for _, sub := range subs {
		select {
		case sub.ch <- ev:
		default:
			// slow subscriber, drop rather than block the run
		}
	}
}
