package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/atlasbank/atlasbank/internal/accounts"
	"github.com/atlasbank/atlasbank/internal/shared"
)

// QueryRepository lists enriched transaction rows for display.
type QueryRepository interface {
	ListEntriesByAccounts(ctx context.Context, accountIDs []uuid.UUID, page shared.PageRequest) ([]Entry, error)
}

// QueryService is the read-only side of the ledger: transaction history per
// account or per owner with category and counterparty enrichment. It never
// mutates state.
type QueryService struct {
	repo    Repository
	entries QueryRepository
}

// NewQueryService builds QueryService instance.
func NewQueryService(repo Repository, entries QueryRepository) *QueryService {
	return &QueryService{repo: repo, entries: entries}
}

// ListByAccount returns the account's history, newest first. The caller must
// own the account.
func (q *QueryService) ListByAccount(ctx context.Context, callerID, accountID uuid.UUID, page shared.PageRequest) ([]Entry, error) {
	account, err := q.repo.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.OwnerID != callerID {
		return nil, accounts.ErrAccessDenied
	}
	return q.list(ctx, []uuid.UUID{accountID}, page)
}

// ListByOwner returns history across all accounts owned by the caller. Owners
// with no accounts get an empty sequence, not an error.
func (q *QueryService) ListByOwner(ctx context.Context, ownerID uuid.UUID, page shared.PageRequest) ([]Entry, error) {
	owned, err := q.repo.GetAccountsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(owned) == 0 {
		return []Entry{}, nil
	}
	ids := make([]uuid.UUID, 0, len(owned))
	for _, account := range owned {
		ids = append(ids, account.ID)
	}
	return q.list(ctx, ids, page)
}

func (q *QueryService) list(ctx context.Context, ids []uuid.UUID, page shared.PageRequest) ([]Entry, error) {
	if page.Limit <= 0 {
		page.Limit = shared.DefaultPageLimit
	}
	if page.Offset < 0 {
		page.Offset = 0
	}
	entries, err := q.entries.ListEntriesByAccounts(ctx, ids, page)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
