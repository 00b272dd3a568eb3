package txlog

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresJournal persists journal entries in PostgreSQL.
type PostgresJournal struct {
	db *pgxpool.Pool
}

// NewPostgresJournal constructs a Postgres-backed journal.
func NewPostgresJournal(db *pgxpool.Pool) *PostgresJournal {
	return &PostgresJournal{db: db}
}

const entryColumns = `hash, session_id, address, method, panel, status, block_number, error, created_at, updated_at`

// Record inserts a pending entry.
func (j *PostgresJournal) Record(ctx context.Context, entry Entry) error {
	if entry.Status == "" {
		entry.Status = StatusPending
	}
	_, err := j.db.Exec(ctx, `INSERT INTO tx_journal (hash, session_id, address, method, panel, status)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Hash.Hex(), entry.SessionID, entry.Address.Hex(), entry.Method, entry.Panel, string(entry.Status))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrDuplicate
	}
	return err
}

// Complete stores the outcome of a pending entry.
func (j *PostgresJournal) Complete(ctx context.Context, hash common.Hash, outcome Outcome) (Entry, error) {
	var block *int64
	if outcome.BlockNumber > 0 {
		b := int64(outcome.BlockNumber)
		block = &b
	}
	row := j.db.QueryRow(ctx, `UPDATE tx_journal SET status = $1, block_number = $2, error = $3, updated_at = now()
        WHERE hash = $4 RETURNING `+entryColumns, string(outcome.Status), block, outcome.Error, hash.Hex())
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return entry, err
}

// ListByAddress returns the most recent entries of address.
func (j *PostgresJournal) ListByAddress(ctx context.Context, address common.Address, limit int) ([]Entry, error) {
	rows, err := j.db.Query(ctx, `SELECT `+entryColumns+` FROM tx_journal
        WHERE address = $1 ORDER BY created_at DESC, hash LIMIT $2`, address.Hex(), clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		entry            Entry
		hash, address    string
		status, errorMsg string
		block            *int64
	)
	if err := row.Scan(&hash, &entry.SessionID, &address, &entry.Method, &entry.Panel, &status,
		&block, &errorMsg, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		return Entry{}, err
	}
	if !common.IsHexAddress(address) {
		return Entry{}, fmt.Errorf("journal row %s: invalid address %q", hash, address)
	}
	entry.Hash = common.HexToHash(hash)
	entry.Address = common.HexToAddress(address)
	entry.Status = Status(status)
	entry.Error = errorMsg
	if block != nil {
		entry.BlockNumber = uint64(*block)
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return entry, nil
}
