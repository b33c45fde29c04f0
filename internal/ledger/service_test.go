package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/atlasbank/atlasbank/internal/accounts"
)

// memoryRepo serializes atomic units on a mutex the way the row locks do in
// Postgres, and restores a snapshot when the unit fails.
type memoryRepo struct {
	mu           sync.Mutex
	accounts     map[uuid.UUID]accounts.Account
	transactions []Transaction
	references   map[string]bool

	failDelta  bool
	collisions int
	conflicts  int
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		accounts:   make(map[uuid.UUID]accounts.Account),
		references: make(map[string]bool),
	}
}

func (r *memoryRepo) addAccount(a accounts.Account) {
	r.accounts[a.ID] = a
}

func (r *memoryRepo) GetAccount(ctx context.Context, id uuid.UUID) (accounts.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		return a, nil
	}
	return accounts.Account{}, accounts.ErrAccountNotFound
}

func (r *memoryRepo) GetAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]accounts.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []accounts.Account
	for _, a := range r.accounts {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Mimics a repeatable-read abort: the unit never runs and the caller
	// must retry against the state a concurrent winner left behind.
	if r.conflicts > 0 {
		r.conflicts--
		return ErrTxConflict
	}

	snapshot := make(map[uuid.UUID]accounts.Account, len(r.accounts))
	for id, a := range r.accounts {
		snapshot[id] = a
	}
	txCount := len(r.transactions)
	refs := make(map[string]bool, len(r.references))
	for ref := range r.references {
		refs[ref] = true
	}

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.accounts = snapshot
		r.transactions = r.transactions[:txCount]
		r.references = refs
		return err
	}
	return nil
}

func (tx *memoryTx) GetAccountForUpdate(ctx context.Context, id uuid.UUID) (accounts.Account, error) {
	if a, ok := tx.repo.accounts[id]; ok {
		return a, nil
	}
	return accounts.Account{}, accounts.ErrAccountNotFound
}

func (tx *memoryTx) InsertTransaction(ctx context.Context, in Transaction) (Transaction, error) {
	if tx.repo.collisions > 0 {
		tx.repo.collisions--
		return Transaction{}, ErrDuplicateReference
	}
	if tx.repo.references[in.Reference] {
		return Transaction{}, ErrDuplicateReference
	}
	tx.repo.references[in.Reference] = true
	created := in
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	tx.repo.transactions = append(tx.repo.transactions, created)
	return created, nil
}

func (tx *memoryTx) ApplyBalanceDelta(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) error {
	if tx.repo.failDelta {
		return errors.New("storage fault")
	}
	a, ok := tx.repo.accounts[accountID]
	if !ok {
		return accounts.ErrAccountNotFound
	}
	a.Balance = a.Balance.Add(delta)
	tx.repo.accounts[accountID] = a
	return nil
}

func newTestAccount(owner uuid.UUID, balance string) accounts.Account {
	return accounts.Account{
		ID:       uuid.New(),
		OwnerID:  owner,
		Number:   "1000000001",
		Type:     accounts.TypeChecking,
		Balance:  decimal.RequireFromString(balance),
		Currency: "USD",
		Status:   accounts.StatusActive,
	}
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPostDeposit(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	account := newTestAccount(owner, "0")
	repo.addAccount(account)
	poster := NewPoster(repo, nil)

	posted, err := poster.Post(context.Background(), PostRequest{
		ActorID:     owner,
		Type:        TypeDeposit,
		Amount:      amount("250.00"),
		ToAccountID: &account.ID,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, posted.Status)
	require.Equal(t, "USD", posted.Currency)
	require.NotEmpty(t, posted.Reference)

	stored, err := repo.GetAccount(context.Background(), account.ID)
	require.NoError(t, err)
	require.True(t, stored.Balance.Equal(amount("250.00")), "balance = %s", stored.Balance)
}

func TestPostWithdrawal(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	account := newTestAccount(owner, "250.00")
	repo.addAccount(account)
	poster := NewPoster(repo, nil)

	_, err := poster.Post(context.Background(), PostRequest{
		ActorID:       owner,
		Type:          TypeWithdrawal,
		Amount:        amount("85.43"),
		FromAccountID: &account.ID,
	})
	require.NoError(t, err)

	stored, _ := repo.GetAccount(context.Background(), account.ID)
	require.True(t, stored.Balance.Equal(amount("164.57")), "balance = %s", stored.Balance)
}

func TestPostTransferMovesBothBalances(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	source := newTestAccount(owner, "164.57")
	dest := newTestAccount(owner, "0")
	dest.Number = "1000000002"
	repo.addAccount(source)
	repo.addAccount(dest)
	poster := NewPoster(repo, nil)

	_, err := poster.Post(context.Background(), PostRequest{
		ActorID:       owner,
		Type:          TypeTransfer,
		Amount:        amount("120.00"),
		FromAccountID: &source.ID,
		ToAccountID:   &dest.ID,
	})
	require.NoError(t, err)

	s, _ := repo.GetAccount(context.Background(), source.ID)
	d, _ := repo.GetAccount(context.Background(), dest.ID)
	require.True(t, s.Balance.Equal(amount("44.57")), "source = %s", s.Balance)
	require.True(t, d.Balance.Equal(amount("120.00")), "dest = %s", d.Balance)
}

func TestPostRejectionsPersistNothing(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()

	cases := []struct {
		name    string
		setup   func(repo *memoryRepo) PostRequest
		wantErr error
	}{
		{
			name: "overdraw",
			setup: func(repo *memoryRepo) PostRequest {
				a := newTestAccount(owner, "50.00")
				repo.addAccount(a)
				return PostRequest{ActorID: owner, Type: TypeWithdrawal, Amount: amount("80.00"), FromAccountID: &a.ID}
			},
			wantErr: ErrInsufficientFunds,
		},
		{
			name: "deposit naming a source account",
			setup: func(repo *memoryRepo) PostRequest {
				src := newTestAccount(owner, "100.00")
				dst := newTestAccount(owner, "0")
				repo.addAccount(src)
				repo.addAccount(dst)
				return PostRequest{ActorID: owner, Type: TypeDeposit, Amount: amount("25.00"), FromAccountID: &src.ID, ToAccountID: &dst.ID}
			},
			wantErr: ErrEndpointMismatch,
		},
		{
			name: "withdrawal naming a destination account",
			setup: func(repo *memoryRepo) PostRequest {
				src := newTestAccount(owner, "100.00")
				dst := newTestAccount(owner, "0")
				repo.addAccount(src)
				repo.addAccount(dst)
				return PostRequest{ActorID: owner, Type: TypeWithdrawal, Amount: amount("25.00"), FromAccountID: &src.ID, ToAccountID: &dst.ID}
			},
			wantErr: ErrEndpointMismatch,
		},
		{
			name: "cross currency transfer",
			setup: func(repo *memoryRepo) PostRequest {
				src := newTestAccount(owner, "500.00")
				dst := newTestAccount(owner, "0")
				dst.Currency = "EUR"
				repo.addAccount(src)
				repo.addAccount(dst)
				return PostRequest{ActorID: owner, Type: TypeTransfer, Amount: amount("10.00"), FromAccountID: &src.ID, ToAccountID: &dst.ID}
			},
			wantErr: ErrCurrencyMismatch,
		},
		{
			name: "same account transfer",
			setup: func(repo *memoryRepo) PostRequest {
				a := newTestAccount(owner, "500.00")
				repo.addAccount(a)
				return PostRequest{ActorID: owner, Type: TypeTransfer, Amount: amount("10.00"), FromAccountID: &a.ID, ToAccountID: &a.ID}
			},
			wantErr: ErrSameAccount,
		},
		{
			name: "inactive source",
			setup: func(repo *memoryRepo) PostRequest {
				a := newTestAccount(owner, "500.00")
				a.Status = accounts.StatusSuspended
				repo.addAccount(a)
				return PostRequest{ActorID: owner, Type: TypeWithdrawal, Amount: amount("10.00"), FromAccountID: &a.ID}
			},
			wantErr: ErrAccountInactive,
		},
		{
			name: "foreign source account",
			setup: func(repo *memoryRepo) PostRequest {
				a := newTestAccount(owner, "500.00")
				repo.addAccount(a)
				return PostRequest{ActorID: stranger, Type: TypeWithdrawal, Amount: amount("10.00"), FromAccountID: &a.ID}
			},
			wantErr: accounts.ErrAccessDenied,
		},
		{
			name: "unknown destination",
			setup: func(repo *memoryRepo) PostRequest {
				missing := uuid.New()
				return PostRequest{ActorID: owner, Type: TypeDeposit, Amount: amount("10.00"), ToAccountID: &missing}
			},
			wantErr: accounts.ErrAccountNotFound,
		},
		{
			name: "sub-cent precision",
			setup: func(repo *memoryRepo) PostRequest {
				a := newTestAccount(owner, "500.00")
				repo.addAccount(a)
				return PostRequest{ActorID: owner, Type: TypeWithdrawal, Amount: amount("10.001"), FromAccountID: &a.ID}
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "negative amount",
			setup: func(repo *memoryRepo) PostRequest {
				a := newTestAccount(owner, "500.00")
				repo.addAccount(a)
				return PostRequest{ActorID: owner, Type: TypeDeposit, Amount: amount("-5.00"), ToAccountID: &a.ID}
			},
			wantErr: ErrInvalidAmount,
		},
		{
			name: "unpostable type",
			setup: func(repo *memoryRepo) PostRequest {
				a := newTestAccount(owner, "500.00")
				repo.addAccount(a)
				return PostRequest{ActorID: owner, Type: TypeFee, Amount: amount("5.00"), FromAccountID: &a.ID}
			},
			wantErr: ErrInvalidType,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryRepo()
			req := tc.setup(repo)

			before := make(map[uuid.UUID]decimal.Decimal)
			for id, a := range repo.accounts {
				before[id] = a.Balance
			}

			_, err := NewPoster(repo, nil).Post(context.Background(), req)
			require.ErrorIs(t, err, tc.wantErr)
			require.Empty(t, repo.transactions, "rejected request must not persist a transaction")
			for id, balance := range before {
				after, _ := repo.GetAccount(context.Background(), id)
				require.True(t, after.Balance.Equal(balance), "balance of %s changed: %s -> %s", id, balance, after.Balance)
			}
		})
	}
}

func TestPostStorageFaultRollsBack(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	account := newTestAccount(owner, "100.00")
	repo.addAccount(account)
	repo.failDelta = true
	poster := NewPoster(repo, nil)

	_, err := poster.Post(context.Background(), PostRequest{
		ActorID:       owner,
		Type:          TypeWithdrawal,
		Amount:        amount("40.00"),
		FromAccountID: &account.ID,
	})
	require.ErrorIs(t, err, ErrPostingFailed)
	require.Empty(t, repo.transactions, "failed unit must roll back the transaction row")

	stored, _ := repo.GetAccount(context.Background(), account.ID)
	require.True(t, stored.Balance.Equal(amount("100.00")))
}

func TestPostRetriesReferenceCollision(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	account := newTestAccount(owner, "0")
	repo.addAccount(account)
	repo.collisions = 2
	poster := NewPoster(repo, nil)

	posted, err := poster.Post(context.Background(), PostRequest{
		ActorID:     owner,
		Type:        TypeDeposit,
		Amount:      amount("10.00"),
		ToAccountID: &account.ID,
	})
	require.NoError(t, err)
	require.NotEmpty(t, posted.Reference)
	require.Len(t, repo.transactions, 1)
}

func TestPostExhaustedReferenceRetries(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	account := newTestAccount(owner, "0")
	repo.addAccount(account)
	repo.collisions = 10
	poster := NewPoster(repo, nil)

	_, err := poster.Post(context.Background(), PostRequest{
		ActorID:     owner,
		Type:        TypeDeposit,
		Amount:      amount("10.00"),
		ToAccountID: &account.ID,
	})
	require.ErrorIs(t, err, ErrPostingFailed)
	require.Empty(t, repo.transactions)
}

func TestPostRetriesSerializationConflict(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	account := newTestAccount(owner, "100.00")
	repo.addAccount(account)
	repo.conflicts = 1
	poster := NewPoster(repo, nil)

	posted, err := poster.Post(context.Background(), PostRequest{
		ActorID:       owner,
		Type:          TypeWithdrawal,
		Amount:        amount("40.00"),
		FromAccountID: &account.ID,
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, posted.Status)
	require.Equal(t, "60.00", repo.accounts[account.ID].Balance.StringFixed(2))
}

func TestPostConflictLoserSeesInsufficientFunds(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	account := newTestAccount(owner, "20.00")
	repo.addAccount(account)
	// A concurrent winner already drained the account; this attempt loses
	// the serialization race once, then re-reads and must come back as a
	// business rejection, not a storage failure.
	repo.conflicts = 1
	poster := NewPoster(repo, nil)

	_, err := poster.Post(context.Background(), PostRequest{
		ActorID:       owner,
		Type:          TypeWithdrawal,
		Amount:        amount("80.00"),
		FromAccountID: &account.ID,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)
	require.Empty(t, repo.transactions)
	require.Equal(t, "20.00", repo.accounts[account.ID].Balance.StringFixed(2))
}

func TestPostExhaustedConflictRetries(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	account := newTestAccount(owner, "100.00")
	repo.addAccount(account)
	repo.conflicts = 10
	poster := NewPoster(repo, nil)

	_, err := poster.Post(context.Background(), PostRequest{
		ActorID:       owner,
		Type:          TypeWithdrawal,
		Amount:        amount("10.00"),
		FromAccountID: &account.ID,
	})
	require.ErrorIs(t, err, ErrPostingFailed)
	require.Empty(t, repo.transactions)
	require.Equal(t, "100.00", repo.accounts[account.ID].Balance.StringFixed(2))
}

func TestPostConcurrentWithdrawalsSerialize(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	account := newTestAccount(owner, "100.00")
	repo.addAccount(account)
	poster := NewPoster(repo, nil)

	req := PostRequest{
		ActorID:       owner,
		Type:          TypeWithdrawal,
		Amount:        amount("80.00"),
		FromAccountID: &account.ID,
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = poster.Post(context.Background(), req)
		}(i)
	}
	wg.Wait()

	var ok, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, ok, "exactly one withdrawal must succeed")
	require.Equal(t, 1, rejected, "the loser must be rejected, not applied")

	stored, _ := repo.GetAccount(context.Background(), account.ID)
	require.True(t, stored.Balance.Equal(amount("20.00")), "balance = %s", stored.Balance)
	require.Len(t, repo.transactions, 1)
}

func TestPostDefaultsCurrency(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	account := newTestAccount(owner, "0")
	repo.addAccount(account)
	poster := NewPoster(repo, nil)

	posted, err := poster.Post(context.Background(), PostRequest{
		ActorID:     owner,
		Type:        TypeDeposit,
		Amount:      amount("5.00"),
		Currency:    "usd",
		ToAccountID: &account.ID,
	})
	require.NoError(t, err)
	require.Equal(t, "USD", posted.Currency)
}

type recordingObserver struct {
	outcomes []string
}

func (r *recordingObserver) ObservePosting(txType, outcome string) {
	r.outcomes = append(r.outcomes, txType+"/"+outcome)
}

func TestPostReportsOutcomes(t *testing.T) {
	owner := uuid.New()
	repo := newMemoryRepo()
	account := newTestAccount(owner, "10.00")
	repo.addAccount(account)
	poster := NewPoster(repo, nil)
	obs := &recordingObserver{}
	poster.WithObserver(obs)

	_, err := poster.Post(context.Background(), PostRequest{
		ActorID:       owner,
		Type:          TypeWithdrawal,
		Amount:        amount("4.00"),
		FromAccountID: &account.ID,
	})
	require.NoError(t, err)

	_, err = poster.Post(context.Background(), PostRequest{
		ActorID:       owner,
		Type:          TypeWithdrawal,
		Amount:        amount("100.00"),
		FromAccountID: &account.ID,
	})
	require.ErrorIs(t, err, ErrInsufficientFunds)

	require.Equal(t, []string{"withdrawal/completed", "withdrawal/rejected"}, obs.outcomes)
}
