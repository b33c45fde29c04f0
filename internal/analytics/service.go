package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Service produces read-only spending projections over the ledger. It never
// mutates ledger state.
type Service struct {
	repo    RepositoryPort
	cache   *Cache
	group   singleflight.Group
	printer *message.Printer
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{
		repo:    repo,
		cache:   cache,
		printer: message.NewPrinter(language.English),
	}
}

// Spending returns per-category totals of the caller's completed outgoing
// transactions in [from, to). Concurrent identical requests collapse into one
// database query.
func (s *Service) Spending(ctx context.Context, ownerID uuid.UUID, from, to time.Time) ([]CategorySpend, error) {
	key := s.cache.BuildKey("spending", ownerID.String(), from.Format("2006-01-02"), to.Format("2006-01-02"))

	result, err, _ := s.group.Do(key, func() (any, error) {
		var spending []CategorySpend
		err := s.cache.FetchJSON(ctx, key, &spending, func(ctx context.Context) (any, error) {
			loaded, err := s.repo.SpendingByCategory(ctx, ownerID, from, to)
			if err != nil {
				return nil, err
			}
			return loaded, nil
		})
		if err != nil {
			return nil, err
		}
		return spending, nil
	})
	if err != nil {
		return nil, fmt.Errorf("analytics: spending: %w", err)
	}

	spending, _ := result.([]CategorySpend)
	if spending == nil {
		spending = []CategorySpend{}
	}
	for i := range spending {
		amount, _ := spending[i].Total.Round(2).Float64()
		spending[i].TotalDisplay = s.printer.Sprintf("%.2f", amount)
	}
	return spending, nil
}
