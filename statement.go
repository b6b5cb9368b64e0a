package harbor

import (
	"context"
	"fmt"
	"time"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

// Statement is one account's transaction history over a window, newest
// first. Each record carries its balance_after snapshot, so the running
// balance needs no recomputation.
type Statement struct {
	Account      *model.Account      `json:"account"`
	From         time.Time           `json:"from"`
	To           time.Time           `json:"to"`
	Transactions []model.Transaction `json:"transactions"`
}

// GetStatement returns the statement for an account the caller may read.
func (h *Harbor) GetStatement(ctx context.Context, identityID, accountID string, from, to time.Time, limit, offset int) (*Statement, error) {
	account, err := h.GetOwnedAccount(ctx, identityID, accountID)
	if err != nil {
		return nil, err
	}

	if to.IsZero() {
		to = time.Now()
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	if limit <= 0 {
		limit = 100
	}

	transactions, err := h.datasource.GetTransactionsByAccount(ctx, accountID, from, to, limit, offset)
	if err != nil {
		return nil, err
	}

	return &Statement{
		Account:      account,
		From:         from,
		To:           to,
		Transactions: transactions,
	}, nil
}

// GetOwnedTransactionByRef lets a caller that never saw the response to a
// submitted transfer look the outcome up by its own reference.
func (h *Harbor) GetOwnedTransactionByRef(ctx context.Context, identityID, reference string) (*model.Transaction, error) {
	txn, err := h.datasource.GetTransactionByRef(ctx, reference)
	if err != nil {
		return nil, err
	}
	if txn.IdentityID != identityID {
		identity, err := h.datasource.GetIdentity(ctx, identityID)
		if err != nil {
			return nil, err
		}
		if !identity.IsAdmin() {
			return nil, apierror.NewAPIError(apierror.ErrUnauthorized,
				fmt.Sprintf("transaction '%s' does not belong to the caller", reference), nil)
		}
	}
	return &txn, nil
}

func (h *Harbor) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return h.datasource.GetTransaction(ctx, id)
}
