// Copyright 2025 Certen Protocol
//
// Reputation store: per-actor score plus an append-only event history,
// grounded on original_source/apps/reputation_service/storage.py, rebuilt
// on modernc.org/sqlite via pkg/sqlitestore.

package reputation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/certen/agentcourt/pkg/sqlitestore"
)

// ErrNotFound is returned when an actor has no recorded reputation.
var ErrNotFound = errors.New("reputation: actor not found")

const schema = `
CREATE TABLE IF NOT EXISTS agent_scores (
	actor_id   TEXT PRIMARY KEY,
	score      INTEGER NOT NULL,
	updated_at INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS score_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	actor_id     TEXT NOT NULL,
	delta        INTEGER NOT NULL,
	reason       TEXT NOT NULL,
	event_key    TEXT NOT NULL UNIQUE,
	payload_json TEXT NOT NULL,
	created_at   INTEGER NOT NULL DEFAULT (unixepoch())
);

CREATE TABLE IF NOT EXISTS cursors (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// startingScore is the baseline score assigned the first time an actor is
// observed, matching the original service's default of 100.
const startingScore = 100

// ScoreEvent is one applied reputation-affecting event.
type ScoreEvent struct {
	Delta     int                    `json:"delta"`
	Reason    string                 `json:"reason"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt int64                  `json:"createdAt"`
}

// Reputation is an actor's current score plus its event history, most
// recent first.
type Reputation struct {
	ActorID string       `json:"actorId"`
	Score   int          `json:"score"`
	History []ScoreEvent `json:"history"`
}

// Summary is the score-only projection used by the list endpoint.
type Summary struct {
	ActorID string `json:"actorId"`
	Score   int    `json:"score"`
}

// Store is the reputation service's score and event datastore.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the reputation store at path.
func NewStore(path string) (*Store, error) {
	db, err := sqlitestore.Open(sqlitestore.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("reputation: open store: %w", err)
	}
	if err := sqlitestore.ApplySchema(db, schema); err != nil {
		return nil, fmt.Errorf("reputation: apply schema: %w", err)
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
		return 0, fmt.Errorf("reputation: get cursor: %w", err)
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
		return fmt.Errorf("reputation: set cursor: %w", err)
	}
	return nil
}

func (s *Store) ensureActor(ctx context.Context, tx *sql.Tx, actorID string) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO agent_scores (actor_id, score) VALUES (?, ?)`, actorID, startingScore)
	return err
}

// ApplyEvent records one reputation-affecting event and adjusts the
// actor's score. event_key is unique: replaying the same underlying
// chain event a second time is a no-op and ApplyEvent reports applied =
// false rather than erroring, satisfying exactly-once scoring.
func (s *Store) ApplyEvent(ctx context.Context, actorID string, delta int, reason, eventKey string, payload map[string]interface{}) (applied bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("reputation: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensureActor(ctx, tx, actorID); err != nil {
		return false, fmt.Errorf("reputation: ensure actor: %w", err)
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Errorf("reputation: marshal payload: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO score_events (actor_id, delta, reason, event_key, payload_json) VALUES (?, ?, ?, ?, ?)`,
		actorID, delta, reason, eventKey, string(payloadJSON))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return false, nil
		}
		return false, fmt.Errorf("reputation: insert event: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE agent_scores SET score = score + ?, updated_at = unixepoch() WHERE actor_id = ?`,
		delta, actorID); err != nil {
		return false, fmt.Errorf("reputation: update score: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("reputation: commit: %w", err)
	}
	return true, nil
}

func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed: UNIQUE")
}

// GetReputation returns actorID's score and full event history, most
// recent event first. An actor with no events yet is created with the
// starting score rather than reporting ErrNotFound, matching the
// original service's first-touch semantics.
func (s *Store) GetReputation(ctx context.Context, actorID string) (*Reputation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("reputation: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensureActor(ctx, tx, actorID); err != nil {
		return nil, fmt.Errorf("reputation: ensure actor: %w", err)
	}

	var score int
	if err := tx.QueryRowContext(ctx, `SELECT score FROM agent_scores WHERE actor_id = ?`, actorID).Scan(&score); err != nil {
		return nil, fmt.Errorf("reputation: read score: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT delta, reason, payload_json, created_at FROM score_events WHERE actor_id = ? ORDER BY id DESC`, actorID)
	if err != nil {
		return nil, fmt.Errorf("reputation: read history: %w", err)
	}
	defer rows.Close()

	history := []ScoreEvent{}
	for rows.Next() {
		var ev ScoreEvent
		var payloadJSON string
		if err := rows.Scan(&ev.Delta, &ev.Reason, &payloadJSON, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("reputation: scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(payloadJSON), &ev.Payload); err != nil {
			return nil, fmt.Errorf("reputation: decode payload: %w", err)
		}
		history = append(history, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("reputation: commit: %w", err)
	}

	return &Reputation{ActorID: actorID, Score: score, History: history}, nil
}

// ListReputations returns every tracked actor's score, highest first.
func (s *Store) ListReputations(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT actor_id, score FROM agent_scores ORDER BY score DESC, actor_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("reputation: list: %w", err)
	}
	defer rows.Close()

	summaries := []Summary{}
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ActorID, &sm.Score); err != nil {
			return nil, err
		}
		summaries = append(summaries, sm)
	}
	return summaries, rows.Err()
}
