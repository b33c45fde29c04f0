package accounts

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlasbank/atlasbank/internal/platform/db"
)

// Repository defines data access for account lifecycle operations.
type Repository interface {
	Create(ctx context.Context, account Account) (Account, error)
	Get(ctx context.Context, id uuid.UUID) (Account, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Account, error)
	UpdateSettings(ctx context.Context, account Account) (Account, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed Repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const accountColumns = `id, owner_id, account_number, account_type, balance, currency, status, is_default, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.OwnerID, &a.Number, &a.Type, &a.Balance, &a.Currency, &a.Status, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

// Create inserts the account, clearing any previous default for the owner in
// the same transaction when the new account is marked default.
func (r *repository) Create(ctx context.Context, account Account) (Account, error) {
	var created Account
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if account.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE accounts SET is_default=false, updated_at=NOW() WHERE owner_id=$1 AND is_default`, account.OwnerID); err != nil {
				return err
			}
		}

		row := tx.QueryRow(ctx, `INSERT INTO accounts (owner_id, account_number, account_type, balance, currency, status, is_default)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING `+accountColumns,
			account.OwnerID, account.Number, account.Type, account.Balance, account.Currency, account.Status, account.IsDefault)
		var err error
		created, err = scanAccount(row)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrNumberCollision
			}
			return err
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return created, nil
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id)
	return scanAccount(row)
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE owner_id=$1 ORDER BY created_at ASC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateSettings persists status/is_default changes. Balance is never written
// here; only the ledger poster mutates it.
func (r *repository) UpdateSettings(ctx context.Context, account Account) (Account, error) {
	var updated Account
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if account.IsDefault {
			if _, err := tx.Exec(ctx, `UPDATE accounts SET is_default=false, updated_at=NOW() WHERE owner_id=$1 AND is_default AND id<>$2`, account.OwnerID, account.ID); err != nil {
				return err
			}
		}

		row := tx.QueryRow(ctx, `UPDATE accounts SET status=$2, is_default=$3, updated_at=NOW() WHERE id=$1 RETURNING `+accountColumns,
			account.ID, account.Status, account.IsDefault)
		var err error
		updated, err = scanAccount(row)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	return updated, nil
}
