// Copyright 2025 Certen Protocol
//
// Persistent verdict store and watcher cursor, grounded on
// original_source/apps/judge_service/storage.py, rebuilt on
// modernc.org/sqlite via pkg/sqlitestore.

package judge

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/certen/agentcourt/pkg/protocol"
	"github.com/certen/agentcourt/pkg/sqlitestore"
)

const schema = `
CREATE TABLE IF NOT EXISTS verdicts (
	verdict_id   TEXT PRIMARY KEY,
	dispute_id   TEXT NOT NULL,
	agreement_id TEXT,
	status       TEXT NOT NULL,
	payload_json TEXT NOT NULL,
	created_at   INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_verdicts_dispute ON verdicts(dispute_id);

CREATE TABLE IF NOT EXISTS cursors (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// VerdictStatus is the lifecycle stage of a stored verdict.
type VerdictStatus string

const (
	StatusSubmitted    VerdictStatus = "submitted"
	StatusManualReview VerdictStatus = "manual_review"
)

// StoredVerdict pairs a VerdictPackage with its lifecycle status and the
// on-chain ruling transaction hash, if submitted.
type StoredVerdict struct {
	Verdict       protocol.VerdictPackage `json:"verdict"`
	Status        string                  `json:"status"`
	SubmitTxHash  string                  `json:"submitTxHash,omitempty"`
	ProcessedAtMs int64                   `json:"processedAtMs"`
}

// Store is the judge service's verdict datastore and watcher cursor.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the judge store at path.
func NewStore(path string) (*Store, error) {
	db, err := sqlitestore.Open(sqlitestore.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("judge: open store: %w", err)
	}
	if err := sqlitestore.ApplySchema(db, schema); err != nil {
		return nil, fmt.Errorf("judge: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Health(ctx context.Context) error { return s.db.PingContext(ctx) }

// GetCursor returns the named cursor value, or def if unset.
func (s *Store) GetCursor(ctx context.Context, key string, def int64) (int64, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cursors WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return 0, fmt.Errorf("judge: get cursor: %w", err)
	}
	var parsed int64
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil {
		return def, nil
	}
	return parsed, nil
}

// SetCursor persists the named cursor value.
func (s *Store) SetCursor(ctx context.Context, key string, value int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cursors(key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, fmt.Sprintf("%d", value))
	if err != nil {
		return fmt.Errorf("judge: set cursor: %w", err)
	}
	return nil
}

// IsProcessed reports whether disputeID already has a stored verdict.
func (s *Store) IsProcessed(ctx context.Context, disputeID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM verdicts WHERE dispute_id = ? LIMIT 1`, disputeID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("judge: check processed: %w", err)
	}
	return true, nil
}

// StoreVerdict upserts verdict keyed by its disputeId. Intentionally an
// upsert rather than an insert-only: a dispute that is re-handled after a
// transient submission failure must be able to transition from
// manual_review to submitted without violating the unique constraint on
// dispute_id that IsProcessed relies on for idempotency.
func (s *Store) StoreVerdict(ctx context.Context, sv StoredVerdict) error {
	payload, err := json.Marshal(sv)
	if err != nil {
		return fmt.Errorf("judge: marshal verdict: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verdicts(verdict_id, dispute_id, agreement_id, status, payload_json)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(dispute_id) DO UPDATE SET
			verdict_id = excluded.verdict_id,
			status = excluded.status,
			payload_json = excluded.payload_json`,
		sv.Verdict.VerdictID, sv.Verdict.DisputeID, sv.Verdict.AgreementID, sv.Status, string(payload))
	if err != nil {
		return fmt.Errorf("judge: store verdict: %w", err)
	}
	return nil
}

// ListVerdicts returns all stored verdicts, most recent first.
func (s *Store) ListVerdicts(ctx context.Context) ([]StoredVerdict, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload_json FROM verdicts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("judge: list verdicts: %w", err)
	}
	defer rows.Close()

	var result []StoredVerdict
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var sv StoredVerdict
		if err := json.Unmarshal([]byte(payload), &sv); err != nil {
			return nil, fmt.Errorf("judge: decode verdict: %w", err)
		}
		result = append(result, sv)
	}
	return result, rows.Err()
}

// GetVerdictByDispute returns the verdict for disputeID, if any.
func (s *Store) GetVerdictByDispute(ctx context.Context, disputeID string) (*StoredVerdict, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload_json FROM verdicts WHERE dispute_id = ?`, disputeID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("judge: get verdict: %w", err)
	}
	var sv StoredVerdict
	if err := json.Unmarshal([]byte(payload), &sv); err != nil {
		return nil, fmt.Errorf("judge: decode verdict: %w", err)
	}
	return &sv, nil
}
