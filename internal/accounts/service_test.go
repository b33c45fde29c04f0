package accounts

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	accounts   map[uuid.UUID]Account
	collisions int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{accounts: make(map[uuid.UUID]Account)}
}

func (r *memoryRepo) Create(ctx context.Context, account Account) (Account, error) {
	if r.collisions > 0 {
		r.collisions--
		return Account{}, ErrNumberCollision
	}
	for _, existing := range r.accounts {
		if existing.Number == account.Number {
			return Account{}, ErrNumberCollision
		}
	}
	if account.IsDefault {
		r.clearDefault(account.OwnerID, uuid.Nil)
	}
	account.ID = uuid.New()
	r.accounts[account.ID] = account
	return account, nil
}

func (r *memoryRepo) Get(ctx context.Context, id uuid.UUID) (Account, error) {
	if a, ok := r.accounts[id]; ok {
		return a, nil
	}
	return Account{}, ErrAccountNotFound
}

func (r *memoryRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Account, error) {
	var out []Account
	for _, a := range r.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) UpdateSettings(ctx context.Context, account Account) (Account, error) {
	stored, ok := r.accounts[account.ID]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	if account.IsDefault {
		r.clearDefault(account.OwnerID, account.ID)
	}
	stored.Status = account.Status
	stored.IsDefault = account.IsDefault
	r.accounts[account.ID] = stored
	return stored, nil
}

func (r *memoryRepo) clearDefault(ownerID, except uuid.UUID) {
	for id, a := range r.accounts {
		if a.OwnerID == ownerID && a.IsDefault && id != except {
			a.IsDefault = false
			r.accounts[id] = a
		}
	}
}

func TestOpenAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	owner := uuid.New()

	account, err := svc.Open(context.Background(), OpenInput{OwnerID: owner, Type: TypeChecking})
	require.NoError(t, err)
	require.Equal(t, StatusActive, account.Status)
	require.Equal(t, "USD", account.Currency)
	require.Len(t, account.Number, 10)
	require.True(t, account.Balance.IsZero(), "accounts open empty; funds arrive via postings")
}

func TestOpenAccountValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	owner := uuid.New()

	_, err := svc.Open(context.Background(), OpenInput{OwnerID: owner, Type: "margin"})
	require.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Open(context.Background(), OpenInput{OwnerID: owner, Type: TypeSavings, Currency: "DOLLARS"})
	require.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestOpenAccountRetriesNumberCollision(t *testing.T) {
	repo := newMemoryRepo()
	repo.collisions = 2
	svc := NewService(repo, nil)

	account, err := svc.Open(context.Background(), OpenInput{OwnerID: uuid.New(), Type: TypeChecking})
	require.NoError(t, err)
	require.NotEmpty(t, account.Number)
}

func TestDefaultAccountFlip(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	owner := uuid.New()

	first, err := svc.Open(context.Background(), OpenInput{OwnerID: owner, Type: TypeChecking, IsDefault: true})
	require.NoError(t, err)

	second, err := svc.Open(context.Background(), OpenInput{OwnerID: owner, Type: TypeSavings, IsDefault: true})
	require.NoError(t, err)
	require.True(t, second.IsDefault)

	stored, err := svc.Get(context.Background(), owner, first.ID)
	require.NoError(t, err)
	require.False(t, stored.IsDefault, "only one default account per owner")
}

func TestGetEnforcesOwnership(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	owner := uuid.New()

	account, err := svc.Open(context.Background(), OpenInput{OwnerID: owner, Type: TypeChecking})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), uuid.New(), account.ID)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestCloseRequiresZeroBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	owner := uuid.New()

	account, err := svc.Open(context.Background(), OpenInput{OwnerID: owner, Type: TypeChecking})
	require.NoError(t, err)

	funded := repo.accounts[account.ID]
	funded.Balance = decimal.RequireFromString("12.34")
	repo.accounts[account.ID] = funded

	closed := StatusClosed
	_, err = svc.UpdateSettings(context.Background(), owner, account.ID, UpdateInput{Status: &closed})
	require.ErrorIs(t, err, ErrBalanceNotZero)

	funded.Balance = decimal.Zero
	repo.accounts[account.ID] = funded

	updated, err := svc.UpdateSettings(context.Background(), owner, account.ID, UpdateInput{Status: &closed})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, updated.Status)
}

func TestUpdateSettingsRejectsUnknownStatus(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	owner := uuid.New()

	account, err := svc.Open(context.Background(), OpenInput{OwnerID: owner, Type: TypeChecking})
	require.NoError(t, err)

	bogus := AccountStatus("frozen")
	_, err = svc.UpdateSettings(context.Background(), owner, account.ID, UpdateInput{Status: &bogus})
	require.ErrorIs(t, err, ErrInvalidStatus)
}
