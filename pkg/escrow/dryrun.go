// Copyright 2025 Certen Protocol
//
// Dry-run escrow backend: a persistent SQLite-backed mock that assigns
// monotonically increasing block numbers and synthetic transaction hashes,
// preserving the same event ordering and dispute-state semantics as the
// live chain backend. Grounded on original_source's escrow_client.py
// dry-run tables (counters, events, disputes), rebuilt on modernc.org/sqlite
// in WAL mode since Postgres cannot serve as a zero-setup embedded store.

package escrow

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/certen/agentcourt/pkg/protocol"
	"github.com/certen/agentcourt/pkg/sqlitestore"
)

const dryRunSchema = `
CREATE TABLE IF NOT EXISTS counters (
	name  TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	name            TEXT NOT NULL,
	block_number    INTEGER NOT NULL,
	insertion_index INTEGER NOT NULL,
	tx_hash         TEXT NOT NULL,
	args_json       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_name_block ON events(name, block_number, insertion_index);

CREATE TABLE IF NOT EXISTS disputes (
	dispute_id         TEXT PRIMARY KEY,
	transaction_id     TEXT,
	plaintiff          TEXT NOT NULL,
	defendant          TEXT NOT NULL,
	stake              TEXT NOT NULL,
	judge_fee          TEXT NOT NULL,
	tier               INTEGER NOT NULL,
	plaintiff_evidence TEXT NOT NULL,
	defendant_evidence TEXT,
	resolved           INTEGER NOT NULL DEFAULT 0,
	winner             TEXT
);
`

// DryRunBackend is a persistent in-process mock escrow. State survives
// restarts and is safe for concurrent use.
type DryRunBackend struct {
	db          *sql.DB
	mu          sync.Mutex
	judgeAddr   string
	log         *log.Logger
}

// NewDryRunBackend opens (or creates) the dry-run store at path.
func NewDryRunBackend(path, judgeAddress string) (*DryRunBackend, error) {
	db, err := sqlitestore.Open(sqlitestore.DefaultConfig(path))
	if err != nil {
		return nil, fmt.Errorf("escrow: open dry-run store: %w", err)
	}
	if err := sqlitestore.ApplySchema(db, dryRunSchema); err != nil {
		return nil, fmt.Errorf("escrow: apply dry-run schema: %w", err)
	}
	return &DryRunBackend{
		db:        db,
		judgeAddr: judgeAddress,
		log:       log.New(log.Writer(), "[EscrowDryRun] ", log.LstdFlags),
	}, nil
}

func (b *DryRunBackend) Close() error {
	return b.db.Close()
}

func (b *DryRunBackend) Capabilities() Capabilities {
	return Capabilities{
		DepositPool:        true,
		PostBond:           true,
		CommitEvidenceHash: true,
		FileDispute:        true,
		SubmitRuling:       true,
	}
}

func (b *DryRunBackend) ContractSanity(ctx context.Context) (*SanityReport, error) {
	return &SanityReport{RPCReachable: true, CodeAtAddress: true, DryRun: true}, nil
}

// nextCounter atomically increments and returns a named counter, starting
// at 1 for an unseen name. Must be called with b.mu held.
func (b *DryRunBackend) nextCounter(tx *sql.Tx, name string) (int64, error) {
	var value int64
	err := tx.QueryRow(`SELECT value FROM counters WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		value = 0
	} else if err != nil {
		return 0, err
	}
	value++
	if _, err := tx.Exec(`INSERT INTO counters(name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value); err != nil {
		return 0, err
	}
	return value, nil
}

func syntheticTxHash() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}

// emit records one event inside tx, assigning the next block number and a
// fresh synthetic tx hash. blockNumber increments monotonically per
// emission, matching the live backend's one-event-per-block-in-practice
// ordering closely enough to preserve (blockNumber, insertionIndex) total
// order across backends.
func (b *DryRunBackend) emit(tx *sql.Tx, name string, args map[string]interface{}) (*TxResult, error) {
	blockNumber, err := b.nextCounter(tx, "block_number")
	if err != nil {
		return nil, err
	}
	insertionIndex, err := b.nextCounter(tx, "insertion_index")
	if err != nil {
		return nil, err
	}
	txHash := syntheticTxHash()

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(
		`INSERT INTO events(name, block_number, insertion_index, tx_hash, args_json) VALUES (?, ?, ?, ?, ?)`,
		name, blockNumber, insertionIndex, txHash, string(argsJSON),
	); err != nil {
		return nil, err
	}

	return &TxResult{
		TxHash:      txHash,
		BlockNumber: blockNumber,
		Status:      "success",
		Extra:       map[string]interface{}{"dryRun": true},
	}, nil
}

func (b *DryRunBackend) withTx(fn func(tx *sql.Tx) (*TxResult, error)) (*TxResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	tx, err := b.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("escrow: begin tx: %w", err)
	}
	result, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("escrow: commit tx: %w", err)
	}
	return result, nil
}

func (b *DryRunBackend) DepositPool(ctx context.Context, signerKey, agreementID, amount string) (*TxResult, error) {
	return b.withTx(func(tx *sql.Tx) (*TxResult, error) {
		return b.emit(tx, "PoolDeposited", map[string]interface{}{"agreementId": agreementID, "amount": amount})
	})
}

func (b *DryRunBackend) PostBond(ctx context.Context, signerKey, agreementID, amount string) (*TxResult, error) {
	return b.withTx(func(tx *sql.Tx) (*TxResult, error) {
		return b.emit(tx, "BondPosted", map[string]interface{}{"agreementId": agreementID, "amount": amount})
	})
}

func (b *DryRunBackend) CommitEvidenceHash(ctx context.Context, signerKey, agreementID, rootHash string) (*TxResult, error) {
	return b.withTx(func(tx *sql.Tx) (*TxResult, error) {
		return b.emit(tx, EventEvidenceCommitted, map[string]interface{}{
			"agreementId": agreementID,
			"rootHash":    rootHash,
			"agent":       signerAddressOrEmpty(signerKey),
		})
	})
}

func (b *DryRunBackend) FileDispute(ctx context.Context, signerKey string, params FileDisputeParams) (*TxResult, error) {
	return b.withTx(func(tx *sql.Tx) (*TxResult, error) {
		disputeID := params.AgreementID + "-dispute"
		plaintiff := signerAddressOrEmpty(signerKey)

		if _, err := tx.Exec(
			`INSERT INTO disputes(dispute_id, transaction_id, plaintiff, defendant, stake, judge_fee, tier, plaintiff_evidence, resolved)
			 VALUES (?, ?, ?, ?, ?, '0', 0, ?, 0)
			 ON CONFLICT(dispute_id) DO UPDATE SET
				plaintiff = excluded.plaintiff,
				defendant = excluded.defendant,
				stake = excluded.stake,
				plaintiff_evidence = excluded.plaintiff_evidence`,
			disputeID, params.TxID, plaintiff, params.Defendant, params.Stake, params.PlaintiffEvidence,
		); err != nil {
			return nil, err
		}

		return b.emit(tx, EventDisputeFiled, map[string]interface{}{
			"disputeId": disputeID,
			"plaintiff": plaintiff,
			"defendant": params.Defendant,
		})
	})
}

func (b *DryRunBackend) SubmitRuling(ctx context.Context, disputeID string, verdict protocol.VerdictPackage) (*TxResult, error) {
	return b.withTx(func(tx *sql.Tx) (*TxResult, error) {
		winner := resolveWinner(verdict)
		loser := verdict.Plaintiff
		if winner == verdict.Plaintiff {
			loser = verdict.Defendant
		}

		res, err := tx.Exec(
			`UPDATE disputes SET resolved = 1, winner = ? WHERE dispute_id = ? AND resolved = 0`,
			winner, disputeID,
		)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, ErrAlreadyResolved
		}

		if _, err := b.emit(tx, EventRulingSubmitted, map[string]interface{}{
			"disputeId": disputeID,
			"winner":    winner,
			"loser":     loser,
		}); err != nil {
			return nil, err
		}

		result, err := b.emit(tx, EventPayoutExecuted, map[string]interface{}{
			"disputeId": disputeID,
			"to":        winner,
			"transfers": verdict.Transfers,
		})
		return result, err
	})
}

func (b *DryRunBackend) GetDispute(ctx context.Context, disputeID string) (*Dispute, error) {
	row := b.db.QueryRowContext(ctx,
		`SELECT transaction_id, plaintiff, defendant, stake, judge_fee, tier, plaintiff_evidence, defendant_evidence, resolved, winner
		 FROM disputes WHERE dispute_id = ?`, disputeID)

	var d Dispute
	var txID, defendantEvidence, winner sql.NullString
	var resolved int
	d.DisputeID = disputeID
	if err := row.Scan(&txID, &d.Plaintiff, &d.Defendant, &d.Stake, &d.JudgeFee, &d.Tier, &d.PlaintiffEvidence, &defendantEvidence, &resolved, &winner); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("escrow: get dispute: %w", err)
	}
	d.TransactionID = txID.String
	d.DefendantEvidence = defendantEvidence.String
	d.Resolved = resolved != 0
	d.Winner = winner.String
	return &d, nil
}

func (b *DryRunBackend) JudgeAddress(ctx context.Context) (string, error) {
	return b.judgeAddr, nil
}

func (b *DryRunBackend) PollEvents(ctx context.Context, name string, fromBlock, toBlock int64) ([]Event, error) {
	query := `SELECT block_number, insertion_index, tx_hash, args_json FROM events WHERE name = ? AND block_number >= ?`
	args := []interface{}{name, fromBlock}
	if toBlock >= 0 {
		query += ` AND block_number <= ?`
		args = append(args, toBlock)
	}
	query += ` ORDER BY block_number ASC, insertion_index ASC`

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("escrow: poll events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var argsJSON string
		if err := rows.Scan(&ev.BlockNumber, &ev.InsertionIndex, &ev.TxHash, &argsJSON); err != nil {
			return nil, err
		}
		ev.Name = name
		if err := json.Unmarshal([]byte(argsJSON), &ev.Args); err != nil {
			return nil, fmt.Errorf("escrow: decode event args: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// signerAddressOrEmpty best-effort derives an address from a private key
// for dry-run event attribution; an empty or malformed key yields "".
func signerAddressOrEmpty(signerKey string) string {
	addr, err := addressFromPrivateKey(signerKey)
	if err != nil {
		return ""
	}
	return addr
}
