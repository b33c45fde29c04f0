package ledger

import (
	"strings"

	"github.com/atlasbank/atlasbank/internal/accounts"
)

// ValidateAmount checks that the amount is strictly positive with at most two
// fraction digits. Amounts with more precision are rejected, not rounded.
func ValidateAmount(req PostRequest) error {
	if !req.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if req.Amount.Exponent() < -2 {
		return ErrInvalidAmount
	}
	return nil
}

// Validate decides whether a proposed posting is admissible given the current
// snapshot of the involved accounts. It is pure: no side effects, no I/O.
//
// The from/to pointers mirror the request: nil when the request names no
// account on that side, otherwise the loaded snapshot. A request side that is
// named but unresolved must be reported by the caller as
// accounts.ErrAccountNotFound before calling Validate.
//
// Destination ownership is deliberately not enforced for deposits: an external
// source may fund any existing account in the matching currency.
func Validate(req PostRequest, from, to *accounts.Account) error {
	if !req.Type.Postable() {
		return ErrInvalidType
	}
	if err := ValidateAmount(req); err != nil {
		return err
	}
	// A deposit credits exactly one account and a withdrawal debits exactly
	// one; an extraneous side would be persisted without a matching balance
	// delta and break the derived-balance invariant.
	if req.Type == TypeDeposit && req.FromAccountID != nil {
		return ErrEndpointMismatch
	}
	if req.Type == TypeWithdrawal && req.ToAccountID != nil {
		return ErrEndpointMismatch
	}
	currency := strings.ToUpper(req.Currency)

	if req.Type == TypeWithdrawal || req.Type == TypeTransfer {
		if from == nil {
			return accounts.ErrAccountNotFound
		}
		if from.Status != accounts.StatusActive {
			return ErrAccountInactive
		}
		if from.OwnerID != req.ActorID {
			return accounts.ErrAccessDenied
		}
		if from.Currency != currency {
			return ErrCurrencyMismatch
		}
		if from.Balance.LessThan(req.Amount) {
			return ErrInsufficientFunds
		}
	}

	if req.Type == TypeDeposit || req.Type == TypeTransfer {
		if to == nil {
			return accounts.ErrAccountNotFound
		}
		if to.Currency != currency {
			return ErrCurrencyMismatch
		}
	}

	if req.Type == TypeTransfer {
		if from.ID == to.ID {
			return ErrSameAccount
		}
		if from.Currency != to.Currency {
			return ErrCurrencyMismatch
		}
	}

	return nil
}
