package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeTransferIn       = "transfer_in"
	TypeTransferOut      = "transfer_out"
	TypePayment          = "payment"
	TypeDeposit          = "deposit"
	TypeLoanDisbursement = "loan_disbursement"
	TypeRefund           = "refund"

	TransferInternal = "internal"
	TransferExternal = "external"
)

const (
	StatusPending  = "PENDING"
	StatusApplied  = "APPLIED"
	StatusRejected = "REJECTED"
	StatusFailed   = "FAILED"
	StatusFlagged  = "FLAGGED"
)

// Transaction is one leg of a money movement as it appears on an account
// statement. Rows are append-only; only PENDING payments and deposits ever
// have their status flipped, by an admin action.
type Transaction struct {
	ID                int64                  `json:"-"`
	TransactionID     string                 `json:"transaction_id"`
	ParentTransaction string                 `json:"parent_transaction,omitempty"`
	Reference         string                 `json:"reference"`
	Type              string                 `json:"type"`
	Status            string                 `json:"status"`
	Amount            decimal.Decimal        `json:"amount"`
	FromAccount       string                 `json:"from_account,omitempty"`
	ToAccount         string                 `json:"to_account,omitempty"`
	IdentityID        string                 `json:"identity_id"`
	Description       string                 `json:"description"`
	BalanceBefore     decimal.Decimal        `json:"balance_before"`
	BalanceAfter      decimal.Decimal        `json:"balance_after"`
	Hash              string                 `json:"hash,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
	MetaData          map[string]interface{} `json:"meta_data,omitempty"`
}

// HashTxn fingerprints the fields that make this row what it is. Two rows
// with the same hash are the same economic event.
func (transaction *Transaction) HashTxn() string {
	return hashFields(
		transaction.Amount.String(),
		transaction.Reference,
		transaction.Type,
		transaction.FromAccount,
		transaction.ToAccount,
	)
}

func (transaction *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(transaction)
}

// Transfer is the ephemeral request handed to the executor. It is never
// persisted as its own entity; the executor turns it into transaction rows.
type Transfer struct {
	Reference              string          `json:"reference"`
	FromAccountID          string          `json:"from_account_id"`
	Type                   string          `json:"type"`
	RecipientAccountNumber string          `json:"recipient_account_number"`
	RecipientName          string          `json:"recipient_name,omitempty"`
	Amount                 decimal.Decimal `json:"amount"`
	Description            string          `json:"description,omitempty"`
	IdentityID             string          `json:"identity_id"`
	CreatedAt              time.Time       `json:"created_at"`
}

// DefaultDescription synthesizes a description when the caller gave none.
func (t *Transfer) DefaultDescription() string {
	if t.Description != "" {
		return t.Description
	}
	return fmt.Sprintf("%s to %s", t.Type, t.RecipientAccountNumber)
}
