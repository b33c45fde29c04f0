package accounts

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates supported account products.
type AccountType string

const (
	TypeChecking   AccountType = "checking"
	TypeSavings    AccountType = "savings"
	TypeInvestment AccountType = "investment"
	TypeJoint      AccountType = "joint"
	TypeBusiness   AccountType = "business"
)

// Valid reports whether the account type is known.
func (t AccountType) Valid() bool {
	switch t {
	case TypeChecking, TypeSavings, TypeInvestment, TypeJoint, TypeBusiness:
		return true
	}
	return false
}

// AccountStatus enumerates account lifecycle values.
type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusInactive  AccountStatus = "inactive"
	StatusSuspended AccountStatus = "suspended"
	StatusClosed    AccountStatus = "closed"
)

// Valid reports whether the status is known.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusSuspended, StatusClosed:
		return true
	}
	return false
}

// Account is the persisted account record. Balance is derived from completed
// ledger postings and is only ever written by the transaction poster.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"ownerId"`
	Number    string          `json:"accountNumber"`
	Type      AccountType     `json:"accountType"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	Status    AccountStatus   `json:"status"`
	IsDefault bool            `json:"isDefault"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// OpenInput groups fields required to open an account.
type OpenInput struct {
	OwnerID   uuid.UUID
	Type      AccountType
	Currency  string
	IsDefault bool
}

// UpdateInput carries the mutable account settings. Balance is deliberately
// absent: settings updates must never touch it.
type UpdateInput struct {
	Status    *AccountStatus
	IsDefault *bool
}

var (
	// ErrAccountNotFound indicates the account id does not resolve.
	ErrAccountNotFound = errors.New("accounts: account not found")
	// ErrAccessDenied indicates the caller does not own the account.
	ErrAccessDenied = errors.New("accounts: access denied")
	// ErrInvalidType indicates an unknown account type.
	ErrInvalidType = errors.New("accounts: invalid account type")
	// ErrInvalidStatus indicates an unknown status value.
	ErrInvalidStatus = errors.New("accounts: invalid account status")
	// ErrInvalidCurrency indicates a malformed ISO 4217 code.
	ErrInvalidCurrency = errors.New("accounts: invalid currency code")
	// ErrBalanceNotZero indicates a close attempt on a funded account.
	ErrBalanceNotZero = errors.New("accounts: balance must be zero to close")
	// ErrNumberCollision indicates the generated account number already exists.
	ErrNumberCollision = errors.New("accounts: account number collision")
)
