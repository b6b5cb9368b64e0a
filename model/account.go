package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/harbor/internal/apierror"
)

const (
	AccountPending = "PENDING"
	AccountActive  = "ACTIVE"
	AccountFrozen  = "FROZEN"
	AccountClosed  = "CLOSED"
)

// Account is a customer deposit account. The balance is mutated only through
// the transfer executor and admin-validated deposits; Version is the
// optimistic concurrency column on the balance row.
type Account struct {
	ID         int64                  `json:"-"`
	AccountID  string                 `json:"account_id"`
	IdentityID string                 `json:"identity_id"`
	Name       string                 `json:"name"`
	Number     string                 `json:"number"`
	Currency   string                 `json:"currency"`
	Balance    decimal.Decimal        `json:"balance"`
	Status     string                 `json:"status"`
	Version    int64                  `json:"version"`
	CreatedAt  time.Time              `json:"created_at"`
	MetaData   map[string]interface{} `json:"meta_data,omitempty"`
}

// CanDebit reports whether the executor may take money out of this account.
// Only ACTIVE accounts are debitable.
func (a *Account) CanDebit() bool {
	return a.Status == AccountActive
}

// CanCredit reports whether the account may receive money. Frozen accounts
// may still be credited; pending and closed accounts may not.
func (a *Account) CanCredit() bool {
	return a.Status == AccountActive || a.Status == AccountFrozen
}

// OwnedBy reports whether the given identity owns this account.
func (a *Account) OwnedBy(identityID string) bool {
	return a.IdentityID == identityID
}

// ApplyDebit subtracts amount from the balance. The balance must never go
// negative through the executor.
func (a *Account) ApplyDebit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return apierror.NewAPIError(apierror.ErrInvalidAmount, "amount must be greater than zero", nil)
	}
	if a.Balance.LessThan(amount) {
		return apierror.NewAPIError(apierror.ErrInsufficientFunds, "insufficient funds in source account", nil)
	}
	a.Balance = a.Balance.Sub(amount)
	return nil
}

// ApplyCredit adds amount to the balance.
func (a *Account) ApplyCredit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return apierror.NewAPIError(apierror.ErrInvalidAmount, "amount must be greater than zero", nil)
	}
	a.Balance = a.Balance.Add(amount)
	return nil
}
