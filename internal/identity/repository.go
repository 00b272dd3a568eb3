package identity

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no account exists for an address.
	ErrNotFound = errors.New("account not found")
	// ErrAccountExists is returned when creating an account twice.
	ErrAccountExists = errors.New("account exists")
)

// Repository persists wallet accounts.
type Repository interface {
	Create(ctx context.Context, account Account) error
	FindByAddress(ctx context.Context, address common.Address) (Account, error)
	UpdateLastLogin(ctx context.Context, address common.Address, at time.Time) error
	UpdateTokenVersion(ctx context.Context, address common.Address) (int, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	id, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO wallet_accounts (id, address, token_version, created_at, last_login)
        VALUES ($1, $2, $3, $4, $5)`, id, account.Address.Hex(), account.TokenVersion, account.CreatedAt.UTC(), nullTime(account.LastLogin))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrAccountExists
	}
	return err
}

// FindByAddress fetches an account by wallet address.
func (r *PostgresRepository) FindByAddress(ctx context.Context, address common.Address) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT id, token_version, created_at, last_login FROM wallet_accounts WHERE address = $1`, address.Hex())
	var (
		id        uuid.UUID
		lastLogin *time.Time
		account   = Account{Address: address}
	)
	if err := row.Scan(&id, &account.TokenVersion, &account.CreatedAt, &lastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.CreatedAt = account.CreatedAt.UTC()
	if lastLogin != nil {
		account.LastLogin = lastLogin.UTC()
	}
	return account, nil
}

// UpdateLastLogin stamps the last sign-in time.
func (r *PostgresRepository) UpdateLastLogin(ctx context.Context, address common.Address, at time.Time) error {
	cmd, err := r.db.Exec(ctx, `UPDATE wallet_accounts SET last_login = $1 WHERE address = $2`, at.UTC(), address.Hex())
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTokenVersion increments the token version, revoking every token issued before.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, address common.Address) (int, error) {
	var version int
	err := r.db.QueryRow(ctx, `UPDATE wallet_accounts SET token_version = token_version + 1
        WHERE address = $1 RETURNING token_version`, address.Hex()).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return version, err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	utc := t.UTC()
	return &utc
}
