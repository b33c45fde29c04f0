package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/atlasbank/atlasbank/internal/accounts"
)

func TestValidateAmount(t *testing.T) {
	cases := []struct {
		name    string
		amount  string
		wantErr error
	}{
		{"whole", "100", nil},
		{"two decimals", "99.99", nil},
		{"one cent", "0.01", nil},
		{"trailing zeros", "10.50", nil},
		{"zero", "0", ErrInvalidAmount},
		{"negative", "-1.00", ErrInvalidAmount},
		{"three decimals", "10.001", ErrInvalidAmount},
		{"sub-cent", "0.005", ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateAmount(PostRequest{Amount: decimal.RequireFromString(tc.amount)})
			if tc.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestValidate(t *testing.T) {
	owner := uuid.New()
	stranger := uuid.New()

	active := func(currency string) *accounts.Account {
		return &accounts.Account{
			ID:       uuid.New(),
			OwnerID:  owner,
			Balance:  decimal.RequireFromString("100.00"),
			Currency: currency,
			Status:   accounts.StatusActive,
		}
	}

	t.Run("withdrawal requires active source", func(t *testing.T) {
		src := active("USD")
		src.Status = accounts.StatusClosed
		err := Validate(PostRequest{ActorID: owner, Type: TypeWithdrawal, Amount: decimal.RequireFromString("1"), Currency: "USD"}, src, nil)
		require.ErrorIs(t, err, ErrAccountInactive)
	})

	t.Run("withdrawal requires ownership", func(t *testing.T) {
		src := active("USD")
		err := Validate(PostRequest{ActorID: stranger, Type: TypeWithdrawal, Amount: decimal.RequireFromString("1"), Currency: "USD"}, src, nil)
		require.ErrorIs(t, err, accounts.ErrAccessDenied)
	})

	t.Run("withdrawal requires funds", func(t *testing.T) {
		src := active("USD")
		err := Validate(PostRequest{ActorID: owner, Type: TypeWithdrawal, Amount: decimal.RequireFromString("100.01"), Currency: "USD"}, src, nil)
		require.ErrorIs(t, err, ErrInsufficientFunds)
	})

	t.Run("withdrawal of full balance is allowed", func(t *testing.T) {
		src := active("USD")
		err := Validate(PostRequest{ActorID: owner, Type: TypeWithdrawal, Amount: decimal.RequireFromString("100.00"), Currency: "USD"}, src, nil)
		require.NoError(t, err)
	})

	t.Run("deposit does not require destination ownership", func(t *testing.T) {
		dst := active("USD")
		err := Validate(PostRequest{ActorID: stranger, Type: TypeDeposit, Amount: decimal.RequireFromString("1"), Currency: "USD"}, nil, dst)
		require.NoError(t, err)
	})

	t.Run("deposit must not name a source account", func(t *testing.T) {
		src := active("USD")
		dst := active("USD")
		err := Validate(PostRequest{ActorID: owner, Type: TypeDeposit, Amount: decimal.RequireFromString("1"), Currency: "USD", FromAccountID: &src.ID, ToAccountID: &dst.ID}, src, dst)
		require.ErrorIs(t, err, ErrEndpointMismatch)
	})

	t.Run("withdrawal must not name a destination account", func(t *testing.T) {
		src := active("USD")
		dst := active("USD")
		err := Validate(PostRequest{ActorID: owner, Type: TypeWithdrawal, Amount: decimal.RequireFromString("1"), Currency: "USD", FromAccountID: &src.ID, ToAccountID: &dst.ID}, src, dst)
		require.ErrorIs(t, err, ErrEndpointMismatch)
	})

	t.Run("deposit currency must match destination", func(t *testing.T) {
		dst := active("EUR")
		err := Validate(PostRequest{ActorID: owner, Type: TypeDeposit, Amount: decimal.RequireFromString("1"), Currency: "USD"}, nil, dst)
		require.ErrorIs(t, err, ErrCurrencyMismatch)
	})

	t.Run("currency comparison is case insensitive", func(t *testing.T) {
		dst := active("USD")
		err := Validate(PostRequest{ActorID: owner, Type: TypeDeposit, Amount: decimal.RequireFromString("1"), Currency: "usd"}, nil, dst)
		require.NoError(t, err)
	})

	t.Run("transfer rejects same account", func(t *testing.T) {
		src := active("USD")
		err := Validate(PostRequest{ActorID: owner, Type: TypeTransfer, Amount: decimal.RequireFromString("1"), Currency: "USD"}, src, src)
		require.ErrorIs(t, err, ErrSameAccount)
	})

	t.Run("transfer rejects cross currency", func(t *testing.T) {
		src := active("USD")
		dst := active("USD")
		dst.Currency = "EUR"
		err := Validate(PostRequest{ActorID: owner, Type: TypeTransfer, Amount: decimal.RequireFromString("1"), Currency: "USD"}, src, dst)
		require.ErrorIs(t, err, ErrCurrencyMismatch)
	})

	t.Run("missing source reported as not found", func(t *testing.T) {
		err := Validate(PostRequest{ActorID: owner, Type: TypeWithdrawal, Amount: decimal.RequireFromString("1"), Currency: "USD"}, nil, nil)
		require.ErrorIs(t, err, accounts.ErrAccountNotFound)
	})

	t.Run("unpostable type", func(t *testing.T) {
		src := active("USD")
		err := Validate(PostRequest{ActorID: owner, Type: TypeInterest, Amount: decimal.RequireFromString("1"), Currency: "USD"}, src, nil)
		require.ErrorIs(t, err, ErrInvalidType)
	})
}
