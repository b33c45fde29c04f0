// Package ledger implements transaction posting and balance consistency: the
// append-only transaction log plus the derived account balances. Account
// balances are mutated here and nowhere else.
package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType enumerates supported ledger entry kinds.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeTransfer   TransactionType = "transfer"
	TypePayment    TransactionType = "payment"
	TypeFee        TransactionType = "fee"
	TypeInterest   TransactionType = "interest"
)

// Postable reports whether the type may be submitted through the posting API.
func (t TransactionType) Postable() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeTransfer:
		return true
	}
	return false
}

// debitsSource reports whether posting this type decrements the source account.
func (t TransactionType) debitsSource() bool {
	return t != TypeDeposit
}

// creditsDestination reports whether posting this type increments the destination account.
func (t TransactionType) creditsDestination() bool {
	return t != TypeWithdrawal
}

// TransactionStatus enumerates transaction lifecycle values. Completed rows
// are immutable; corrections are new offsetting postings.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Transaction is a persisted ledger entry.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	FromAccountID *uuid.UUID        `json:"fromAccountId,omitempty"`
	ToAccountID   *uuid.UUID        `json:"toAccountId,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	Type          TransactionType   `json:"type"`
	Status        TransactionStatus `json:"status"`
	Reference     string            `json:"reference"`
	Description   string            `json:"description,omitempty"`
	CategoryID    *uuid.UUID        `json:"categoryId,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// PostRequest describes a proposed posting. ActorID is the authenticated
// caller; ownership rules apply against it.
type PostRequest struct {
	ActorID       uuid.UUID
	Type          TransactionType
	Amount        decimal.Decimal
	Currency      string
	FromAccountID *uuid.UUID
	ToAccountID   *uuid.UUID
	Description   string
	CategoryID    *uuid.UUID
}

// Entry is a transaction enriched for display with category and counterparty
// account details.
type Entry struct {
	Transaction
	CategoryName      string `json:"categoryName,omitempty"`
	CategoryColor     string `json:"categoryColor,omitempty"`
	FromAccountNumber string `json:"fromAccountNumber,omitempty"`
	FromAccountType   string `json:"fromAccountType,omitempty"`
	ToAccountNumber   string `json:"toAccountNumber,omitempty"`
	ToAccountType     string `json:"toAccountType,omitempty"`
}

// Rejection kinds. Validation failures never write anything; only requests
// that pass validation and then hit a storage fault surface ErrPostingFailed.
var (
	ErrInvalidType       = errors.New("ledger: invalid transaction type")
	ErrInvalidAmount     = errors.New("ledger: invalid amount")
	ErrEndpointMismatch  = errors.New("ledger: account endpoints do not match transaction type")
	ErrCurrencyMismatch  = errors.New("ledger: currency mismatch")
	ErrSameAccount       = errors.New("ledger: source and destination account must differ")
	ErrAccountInactive   = errors.New("ledger: account is not active")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrPostingFailed     = errors.New("ledger: posting failed")
	// ErrDuplicateReference indicates a reference code collision on insert.
	ErrDuplicateReference = errors.New("ledger: duplicate reference")
	// ErrTxConflict indicates the atomic unit lost a serialization or
	// deadlock race and must be retried against a fresh snapshot.
	ErrTxConflict = errors.New("ledger: transaction conflict")
)
