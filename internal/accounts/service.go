package accounts

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atlasbank/atlasbank/internal/shared"
)

// AuditPort records account lifecycle events.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles account lifecycle business rules.
type Service struct {
	repo       Repository
	audit      AuditPort
	now        func() time.Time
	numberGen  func() string
	maxRetries int
}

// NewService builds Service instance.
func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{
		repo:       repo,
		audit:      audit,
		now:        time.Now,
		numberGen:  generateAccountNumber,
		maxRetries: 3,
	}
}

// Open creates a new account with a zero balance and a generated number.
func (s *Service) Open(ctx context.Context, input OpenInput) (Account, error) {
	if input.OwnerID == uuid.Nil {
		return Account{}, errors.New("accounts: owner required")
	}
	if !input.Type.Valid() {
		return Account{}, ErrInvalidType
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return Account{}, ErrInvalidCurrency
	}

	account := Account{
		OwnerID:   input.OwnerID,
		Type:      input.Type,
		Balance:   decimal.Zero,
		Currency:  currency,
		Status:    StatusActive,
		IsDefault: input.IsDefault,
	}

	var created Account
	var err error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		account.Number = s.numberGen()
		created, err = s.repo.Create(ctx, account)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrNumberCollision) {
			return Account{}, err
		}
	}
	if err != nil {
		return Account{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.OwnerID.String(),
			Action:   "account.open",
			Entity:   "account",
			EntityID: created.ID.String(),
			Meta: map[string]any{
				"account_number": created.Number,
				"account_type":   string(created.Type),
				"currency":       created.Currency,
			},
			At: s.now(),
		})
	}
	return created, nil
}

// Get returns an account the caller owns.
func (s *Service) Get(ctx context.Context, callerID, id uuid.UUID) (Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if account.OwnerID != callerID {
		return Account{}, ErrAccessDenied
	}
	return account, nil
}

// ListByOwner returns all accounts owned by the caller.
func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Account, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// UpdateSettings changes status and/or default flag. Closing requires a zero
// balance; accounts are never physically deleted.
func (s *Service) UpdateSettings(ctx context.Context, callerID, id uuid.UUID, input UpdateInput) (Account, error) {
	account, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if account.OwnerID != callerID {
		return Account{}, ErrAccessDenied
	}

	if input.Status != nil {
		if !input.Status.Valid() {
			return Account{}, ErrInvalidStatus
		}
		if *input.Status == StatusClosed && !account.Balance.IsZero() {
			return Account{}, ErrBalanceNotZero
		}
		account.Status = *input.Status
	}
	if input.IsDefault != nil {
		account.IsDefault = *input.IsDefault
	}

	updated, err := s.repo.UpdateSettings(ctx, account)
	if err != nil {
		return Account{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  callerID.String(),
			Action:   "account.update",
			Entity:   "account",
			EntityID: updated.ID.String(),
			Meta: map[string]any{
				"status":     string(updated.Status),
				"is_default": updated.IsDefault,
			},
			At: s.now(),
		})
	}
	return updated, nil
}

// generateAccountNumber produces a random 10-digit account number.
func generateAccountNumber() string {
	max := big.NewInt(9_000_000_000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return fmt.Sprintf("%010d", time.Now().UnixNano()%10_000_000_000)
	}
	return fmt.Sprintf("%d", n.Int64()+1_000_000_000)
}
