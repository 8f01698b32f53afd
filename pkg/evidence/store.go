// Copyright 2025 Certen Protocol
//
// Persistent store for clauses, receipts, and anchors. Grounded on
// original_source/apps/evidence_service/storage.py's table shapes,
// rebuilt on modernc.org/sqlite in WAL mode via pkg/sqlitestore rather
// than Postgres, since the evidence service must run with zero external
// setup (a single clause-per-agreement, append-only receipt log, and
// one anchor row per agreement do not need a standalone database server).

package evidence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/certen/agentcourt/pkg/protocol"
	"github.com/certen/agentcourt/pkg/sqlitestore"
)

const schema = `
CREATE TABLE IF NOT EXISTS clauses (
	clause_id        TEXT PRIMARY KEY,
	agreement_id     TEXT NOT NULL,
	chain_id         INTEGER NOT NULL,
	contract_address TEXT NOT NULL,
	clause_hash      TEXT NOT NULL,
	payload_json     TEXT NOT NULL,
	created_at       INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_clauses_agreement ON clauses(agreement_id);

CREATE TABLE IF NOT EXISTS receipts (
	receipt_id    TEXT PRIMARY KEY,
	agreement_id  TEXT NOT NULL,
	actor_id      TEXT NOT NULL,
	sequence      INTEGER NOT NULL,
	receipt_hash  TEXT NOT NULL,
	prev_hash     TEXT NOT NULL,
	payload_json  TEXT NOT NULL,
	created_at    INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_receipts_agreement_sequence ON receipts(agreement_id, sequence);
CREATE INDEX IF NOT EXISTS idx_receipts_agreement_actor ON receipts(agreement_id, actor_id);

CREATE TABLE IF NOT EXISTS anchors (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	agreement_id     TEXT NOT NULL,
	root_hash        TEXT NOT NULL,
	tx_hash          TEXT NOT NULL,
	receipt_ids_json TEXT NOT NULL,
	created_at       INTEGER NOT NULL DEFAULT (unixepoch())
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_anchors_agreement ON anchors(agreement_id);
CREATE INDEX IF NOT EXISTS idx_anchors_root ON anchors(root_hash);
`

// Store is the evidence service's exclusive datastore.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the evidence store at path.
func NewStore(path string) (*Store, error) {
	db, err := sqlitestore.Open(sqlitestore.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("evidence: open store: %w", err)
	}
	if err := sqlitestore.ApplySchema(db, schema); err != nil {
		return nil, fmt.Errorf("evidence: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// StoreClause persists clause, rejecting a second clause for the same
// agreementId.
func (s *Store) StoreClause(ctx context.Context, clause protocol.ArbitrationClause) error {
	payload, err := json.Marshal(clause)
	if err != nil {
		return fmt.Errorf("evidence: marshal clause: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO clauses(clause_id, agreement_id, chain_id, contract_address, clause_hash, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		clause.ClauseID, clause.AgreementID, clause.ChainID, clause.ContractAddress, clause.ClauseHash, string(payload))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrDuplicateAgreement
		}
		return fmt.Errorf("evidence: store clause: %w", err)
	}
	return nil
}

func (s *Store) GetClauseByAgreement(ctx context.Context, agreementID string) (*protocol.ArbitrationClause, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM clauses WHERE agreement_id = ?`, agreementID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("evidence: get clause: %w", err)
	}

	var clause protocol.ArbitrationClause
	if err := json.Unmarshal([]byte(payload), &clause); err != nil {
		return nil, fmt.Errorf("evidence: decode clause: %w", err)
	}
	return &clause, nil
}

// StoreReceipt persists receipt, enforcing the unique (agreementId,
// sequence) constraint that makes concurrent duplicate appends fail
// exactly once.
func (s *Store) StoreReceipt(ctx context.Context, receipt protocol.EventReceipt) error {
	payload, err := json.Marshal(receipt)
	if err != nil {
		return fmt.Errorf("evidence: marshal receipt: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO receipts(receipt_id, agreement_id, actor_id, sequence, receipt_hash, prev_hash, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		receipt.ReceiptID, receipt.AgreementID, receipt.ActorID, receipt.Sequence, receipt.ReceiptHash, receipt.PrevHash, string(payload))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return ErrDuplicateSequence
		}
		return fmt.Errorf("evidence: store receipt: %w", err)
	}
	return nil
}

func (s *Store) GetReceipt(ctx context.Context, receiptID string) (*protocol.EventReceipt, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload_json FROM receipts WHERE receipt_id = ?`, receiptID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("evidence: get receipt: %w", err)
	}

	var r protocol.EventReceipt
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("evidence: decode receipt: %w", err)
	}
	return &r, nil
}

// ListReceipts returns receipts ordered by sequence, optionally filtered
// by agreementId and/or actorId.
func (s *Store) ListReceipts(ctx context.Context, agreementID, actorID string) ([]protocol.EventReceipt, error) {
	query := "SELECT payload_json FROM receipts"
	var clauses []string
	var args []interface{}

	if agreementID != "" {
		clauses = append(clauses, "agreement_id = ?")
		args = append(args, agreementID)
	}
	if actorID != "" {
		clauses = append(clauses, "actor_id = ?")
		args = append(args, actorID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY sequence ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("evidence: list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []protocol.EventReceipt
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r protocol.EventReceipt
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("evidence: decode receipt: %w", err)
		}
		receipts = append(receipts, r)
	}
	return receipts, rows.Err()
}

// StoreAnchor upserts the single anchor row for agreementID.
func (s *Store) StoreAnchor(ctx context.Context, agreementID, rootHash, txHash string, receiptIDs []string) error {
	idsJSON, err := json.Marshal(receiptIDs)
	if err != nil {
		return fmt.Errorf("evidence: marshal receipt ids: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO anchors(agreement_id, root_hash, tx_hash, receipt_ids_json)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(agreement_id) DO UPDATE SET
			root_hash = excluded.root_hash,
			tx_hash = excluded.tx_hash,
			receipt_ids_json = excluded.receipt_ids_json`,
		agreementID, rootHash, txHash, string(idsJSON))
	if err != nil {
		return fmt.Errorf("evidence: store anchor: %w", err)
	}
	return nil
}

func (s *Store) GetAnchor(ctx context.Context, agreementID string) (*protocol.AnchorRecord, error) {
	var anchor protocol.AnchorRecord
	var idsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT agreement_id, root_hash, tx_hash, receipt_ids_json FROM anchors WHERE agreement_id = ?`, agreementID,
	).Scan(&anchor.AgreementID, &anchor.RootHash, &anchor.TxHash, &idsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("evidence: get anchor: %w", err)
	}
	if err := json.Unmarshal([]byte(idsJSON), &anchor.ReceiptIDs); err != nil {
		return nil, fmt.Errorf("evidence: decode anchor receipt ids: %w", err)
	}
	return &anchor, nil
}

func (s *Store) GetAnchorByRoot(ctx context.Context, rootHash string) (*protocol.AnchorRecord, error) {
	var anchor protocol.AnchorRecord
	var idsJSON string
	anchor.RootHash = rootHash
	err := s.db.QueryRowContext(ctx,
		`SELECT agreement_id, tx_hash, receipt_ids_json FROM anchors WHERE root_hash = ?`, rootHash,
	).Scan(&anchor.AgreementID, &anchor.TxHash, &idsJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("evidence: get anchor by root: %w", err)
	}
	if err := json.Unmarshal([]byte(idsJSON), &anchor.ReceiptIDs); err != nil {
		return nil, fmt.Errorf("evidence: decode anchor receipt ids: %w", err)
	}
	return &anchor, nil
}

func isUniqueConstraintErr(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint") || strings.Contains(err.Error(), "constraint failed")
}
