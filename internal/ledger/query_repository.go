package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlasbank/atlasbank/internal/shared"
)

type queryRepository struct {
	pool *pgxpool.Pool
}

// NewQueryRepository constructs a PostgreSQL backed QueryRepository.
func NewQueryRepository(pool *pgxpool.Pool) QueryRepository {
	return &queryRepository{pool: pool}
}

func (r *queryRepository) ListEntriesByAccounts(ctx context.Context, accountIDs []uuid.UUID, page shared.PageRequest) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT
  t.id, t.from_account_id, t.to_account_id, t.amount, t.currency, t.type, t.status,
  t.reference, t.description, t.category_id, t.created_at, t.updated_at,
  COALESCE(c.name, ''), COALESCE(c.color, ''),
  COALESCE(fa.account_number, ''), COALESCE(fa.account_type, ''),
  COALESCE(ta.account_number, ''), COALESCE(ta.account_type, '')
FROM transactions t
LEFT JOIN categories c ON t.category_id = c.id
LEFT JOIN accounts fa ON t.from_account_id = fa.id
LEFT JOIN accounts ta ON t.to_account_id = ta.id
WHERE t.from_account_id = ANY($1) OR t.to_account_id = ANY($1)
ORDER BY t.created_at DESC
LIMIT $2 OFFSET $3`, accountIDs, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var description *string
		if err := rows.Scan(
			&e.ID, &e.FromAccountID, &e.ToAccountID, &e.Amount, &e.Currency, &e.Type, &e.Status,
			&e.Reference, &description, &e.CategoryID, &e.CreatedAt, &e.UpdatedAt,
			&e.CategoryName, &e.CategoryColor,
			&e.FromAccountNumber, &e.FromAccountType,
			&e.ToAccountNumber, &e.ToAccountType,
		); err != nil {
			return nil, err
		}
		if description != nil {
			e.Description = *description
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
