package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CategorySpend aggregates completed outgoing amounts per category.
type CategorySpend struct {
	CategoryID   *uuid.UUID      `json:"categoryId,omitempty"`
	Name         string          `json:"name"`
	Color        string          `json:"color,omitempty"`
	Total        decimal.Decimal `json:"total"`
	TotalDisplay string          `json:"totalDisplay"`
	Count        int             `json:"count"`
}

// RepositoryPort defines the read queries the analytics service needs.
type RepositoryPort interface {
	SpendingByCategory(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]CategorySpend, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed RepositoryPort.
func NewRepository(pool *pgxpool.Pool) RepositoryPort {
	return &repository{pool: pool}
}

func (r *repository) SpendingByCategory(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]CategorySpend, error) {
	rows, err := r.pool.Query(ctx, `SELECT
  t.category_id,
  COALESCE(c.name, 'Uncategorized'),
  COALESCE(c.color, ''),
  COALESCE(SUM(t.amount), 0),
  COUNT(*)
FROM transactions t
JOIN accounts a ON t.from_account_id = a.id
LEFT JOIN categories c ON t.category_id = c.id
WHERE a.owner_id = $1
  AND t.status = 'completed'
  AND t.created_at >= $2
  AND t.created_at < $3
GROUP BY t.category_id, c.name, c.color
ORDER BY SUM(t.amount) DESC`, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CategorySpend
	for rows.Next() {
		var s CategorySpend
		if err := rows.Scan(&s.CategoryID, &s.Name, &s.Color, &s.Total, &s.Count); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
