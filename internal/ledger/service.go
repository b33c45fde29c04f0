package ledger

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atlasbank/atlasbank/internal/accounts"
	"github.com/atlasbank/atlasbank/internal/shared"
)

// AuditPort records posting events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// PostingObserver counts posting outcomes for monitoring.
type PostingObserver interface {
	ObservePosting(txType, outcome string)
}

// Poster orchestrates validation and atomic balance movement. It is the only
// writer of account balances in the system.
type Poster struct {
	repo         Repository
	audit        AuditPort
	observer     PostingObserver
	now          func() time.Time
	newReference func() string
	maxRetries   int
}

// NewPoster builds a Poster instance.
func NewPoster(repo Repository, audit AuditPort) *Poster {
	return &Poster{
		repo:         repo,
		audit:        audit,
		now:          time.Now,
		newReference: generateReference,
		maxRetries:   3,
	}
}

// WithNow overrides the clock, used by tests.
func (p *Poster) WithNow(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// WithObserver attaches a posting outcome counter.
func (p *Poster) WithObserver(obs PostingObserver) {
	p.observer = obs
}

// Post validates the request against a locked snapshot of the involved
// accounts and, when admissible, inserts a completed transaction and applies
// the balance deltas inside one atomic unit. Rejected requests write nothing.
//
// A reference collision aborts the whole unit and the posting is retried with
// a fresh reference; any other storage fault rolls back and surfaces as
// ErrPostingFailed.
func (p *Poster) Post(ctx context.Context, req PostRequest) (Transaction, error) {
	if !req.Type.Postable() {
		return Transaction{}, ErrInvalidType
	}
	if err := ValidateAmount(req); err != nil {
		return Transaction{}, err
	}
	if (req.Type == TypeDeposit && req.FromAccountID != nil) ||
		(req.Type == TypeWithdrawal && req.ToAccountID != nil) {
		return Transaction{}, ErrEndpointMismatch
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Currency == "" {
		req.Currency = "USD"
	}

	var posted Transaction
	var err error
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		posted, err = p.attempt(ctx, req, p.newReference())
		// Both cases abort the whole atomic unit: a reference collision
		// needs a fresh code, a serialization loss needs a fresh snapshot
		// (which turns a concurrent overdraw into InsufficientFunds).
		if !errors.Is(err, ErrDuplicateReference) && !errors.Is(err, ErrTxConflict) {
			break
		}
	}
	if err != nil {
		if isRejection(err) {
			p.observe(req.Type, "rejected")
			return Transaction{}, err
		}
		p.observe(req.Type, "failed")
		return Transaction{}, fmt.Errorf("%w: %v", ErrPostingFailed, err)
	}
	p.observe(req.Type, "completed")

	if p.audit != nil {
		_ = p.audit.Record(ctx, shared.AuditLog{
			ActorID:  req.ActorID.String(),
			Action:   "ledger.post",
			Entity:   "transaction",
			EntityID: posted.ID.String(),
			Meta: map[string]any{
				"reference": posted.Reference,
				"type":      string(posted.Type),
				"amount":    posted.Amount.StringFixed(2),
				"currency":  posted.Currency,
			},
			At: p.now(),
		})
	}
	return posted, nil
}

func (p *Poster) observe(txType TransactionType, outcome string) {
	if p.observer != nil {
		p.observer.ObservePosting(string(txType), outcome)
	}
}

func (p *Poster) attempt(ctx context.Context, req PostRequest, reference string) (Transaction, error) {
	var posted Transaction
	err := p.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		from, to, err := lockAccounts(ctx, tx, req)
		if err != nil {
			return err
		}
		if err := Validate(req, from, to); err != nil {
			return err
		}

		entry := Transaction{
			FromAccountID: req.FromAccountID,
			ToAccountID:   req.ToAccountID,
			Amount:        req.Amount,
			Currency:      req.Currency,
			Type:          req.Type,
			Status:        StatusCompleted,
			Reference:     reference,
			Description:   req.Description,
			CategoryID:    req.CategoryID,
		}
		inserted, err := tx.InsertTransaction(ctx, entry)
		if err != nil {
			return err
		}

		if req.Type.debitsSource() && from != nil {
			if err := tx.ApplyBalanceDelta(ctx, from.ID, req.Amount.Neg()); err != nil {
				return err
			}
		}
		if req.Type.creditsDestination() && to != nil {
			if err := tx.ApplyBalanceDelta(ctx, to.ID, req.Amount); err != nil {
				return err
			}
		}

		posted = inserted
		return nil
	})
	if err != nil {
		return Transaction{}, err
	}
	return posted, nil
}

// lockAccounts loads the accounts named by the request with row locks, in a
// deterministic order so two opposite transfers cannot deadlock.
func lockAccounts(ctx context.Context, tx TxRepository, req PostRequest) (from, to *accounts.Account, err error) {
	ids := make([]uuid.UUID, 0, 2)
	if req.FromAccountID != nil {
		ids = append(ids, *req.FromAccountID)
	}
	if req.ToAccountID != nil && (req.FromAccountID == nil || *req.ToAccountID != *req.FromAccountID) {
		ids = append(ids, *req.ToAccountID)
	}
	if len(ids) == 2 && bytes.Compare(ids[0][:], ids[1][:]) > 0 {
		ids[0], ids[1] = ids[1], ids[0]
	}

	loaded := make(map[uuid.UUID]*accounts.Account, len(ids))
	for _, id := range ids {
		account, err := tx.GetAccountForUpdate(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		a := account
		loaded[id] = &a
	}

	if req.FromAccountID != nil {
		from = loaded[*req.FromAccountID]
	}
	if req.ToAccountID != nil {
		to = loaded[*req.ToAccountID]
	}
	return from, to, nil
}

// isRejection reports whether the error is a validation or business rejection
// rather than a storage anomaly.
func isRejection(err error) bool {
	for _, rejection := range []error{
		ErrInvalidType,
		ErrInvalidAmount,
		ErrEndpointMismatch,
		ErrCurrencyMismatch,
		ErrSameAccount,
		ErrAccountInactive,
		ErrInsufficientFunds,
		accounts.ErrAccountNotFound,
		accounts.ErrAccessDenied,
	} {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}

// generateReference produces a tracking code unique with high probability
// under concurrent posting; collisions are handled by the retry loop.
func generateReference() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10_000))
	if err != nil {
		n = big.NewInt(time.Now().UnixNano() % 10_000)
	}
	return fmt.Sprintf("TXN-%d-%04d", time.Now().UnixNano(), n.Int64())
}
