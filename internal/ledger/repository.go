package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/atlasbank/atlasbank/internal/accounts"
)

// Repository is the ledger store: account snapshots plus the atomic unit
// scoping primitive used by the poster.
type Repository interface {
	GetAccount(ctx context.Context, id uuid.UUID) (accounts.Account, error)
	GetAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]accounts.Account, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository exposes the read-modify-write primitives available inside one
// atomic unit. GetAccountForUpdate takes a row lock so concurrent postings
// against the same account serialize on the balance check.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, id uuid.UUID) (accounts.Account, error)
	InsertTransaction(ctx context.Context, tx Transaction) (Transaction, error)
	ApplyBalanceDelta(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed ledger store.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountColumns = `id, owner_id, account_number, account_type, balance, currency, status, is_default, created_at, updated_at`

func scanAccount(row pgx.Row) (accounts.Account, error) {
	var a accounts.Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.Number, &a.Type, &a.Balance, &a.Currency, &a.Status, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return accounts.Account{}, accounts.ErrAccountNotFound
		}
		return accounts.Account{}, err
	}
	return a, nil
}

func (r *repository) GetAccount(ctx context.Context, id uuid.UUID) (accounts.Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
	return scanAccount(row)
}

func (r *repository) GetAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]accounts.Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE owner_id=$1 ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounts.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// WithTx runs fn inside one repeatable-read transaction, rolling back entirely
// when fn returns an error.
//
// At repeatable read a FOR UPDATE that blocks on a concurrently committed row
// aborts with a serialization failure instead of re-reading. Those aborts
// (and deadlocks) surface as ErrTxConflict so the poster can retry against a
// fresh snapshot.
func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		return asConflict(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return asConflict(err)
	}
	return nil
}

func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 40001 serialization_failure, 40P01 deadlock_detected
		if pgErr.Code == "40001" || pgErr.Code == "40P01" {
			return ErrTxConflict
		}
	}
	return err
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (accounts.Account, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 FOR UPDATE`, id)
	return scanAccount(row)
}

func (r *txRepository) InsertTransaction(ctx context.Context, in Transaction) (Transaction, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO transactions (from_account_id, to_account_id, amount, currency, type, status, reference, description, category_id)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		in.FromAccountID, in.ToAccountID, in.Amount, in.Currency, in.Type, in.Status, in.Reference, in.Description, in.CategoryID)
	created := in
	if err := row.Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Transaction{}, ErrDuplicateReference
		}
		return Transaction{}, err
	}
	return created, nil
}

func (r *txRepository) ApplyBalanceDelta(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET balance = balance + $2, updated_at=NOW() WHERE id=$1`, accountID, delta)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return accounts.ErrAccountNotFound
	}
	return nil
}
