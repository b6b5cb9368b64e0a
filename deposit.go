package harbor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

// RequestDeposit records a PENDING deposit against an account. No balance
// moves until an admin validates it.
func (h *Harbor) RequestDeposit(ctx context.Context, identityID, accountID, reference string, amount decimal.Decimal, description string) (*model.Transaction, error) {
	if reference == "" {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "reference is required", nil)
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidAmount, "amount must be greater than zero", nil)
	}

	account, err := h.datasource.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.OwnedBy(identityID) {
		return nil, apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("account '%s' does not belong to the caller", accountID), nil)
	}
	if !account.CanCredit() {
		return nil, apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("account '%s' is %s and can not receive deposits", accountID, account.Status), nil)
	}

	if description == "" {
		description = fmt.Sprintf("deposit to %s", account.Number)
	}
	record := &model.Transaction{
		TransactionID: model.GenerateUUIDWithSuffix("txn"),
		Reference:     reference,
		Type:          model.TypeDeposit,
		Status:        model.StatusPending,
		Amount:        amount,
		ToAccount:     accountID,
		IdentityID:    identityID,
		Description:   description,
		CreatedAt:     time.Now(),
	}
	record.Hash = record.HashTxn()

	return h.datasource.RecordTransaction(ctx, record)
}

// ValidateDeposit is the admin action that lands a pending deposit: the
// credit, the applied child record, and the pending row's flip to APPLIED
// commit together.
func (h *Harbor) ValidateDeposit(ctx context.Context, actorID, transactionID string) (*model.Transaction, error) {
	pending, err := h.datasource.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if pending.Type != model.TypeDeposit {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("transaction '%s' is a %s, not a deposit", transactionID, pending.Type), nil)
	}
	if pending.Status != model.StatusPending {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("deposit '%s' is %s, not pending validation", transactionID, pending.Status), nil)
	}

	applied := &model.Transaction{
		TransactionID:     model.GenerateUUIDWithSuffix("txn"),
		ParentTransaction: pending.TransactionID,
		Reference:         fmt.Sprintf("%s_applied", pending.Reference),
		Type:              model.TypeDeposit,
		Status:            model.StatusApplied,
		Amount:            pending.Amount,
		ToAccount:         pending.ToAccount,
		IdentityID:        pending.IdentityID,
		Description:       pending.Description,
		CreatedAt:         time.Now(),
	}
	applied.Hash = applied.HashTxn()

	if err := h.datasource.ApplyDeposit(ctx, pending.ToAccount, pending.Amount, applied, pending.TransactionID); err != nil {
		return nil, err
	}
	h.recordAudit(ctx, actorID, "deposit.validate", pending.TransactionID, map[string]interface{}{
		"amount":  pending.Amount.String(),
		"account": pending.ToAccount,
	})
	return applied, nil
}

// RejectDeposit refuses a pending deposit. No balance effect.
func (h *Harbor) RejectDeposit(ctx context.Context, actorID, transactionID, reason string) error {
	pending, err := h.datasource.GetTransaction(ctx, transactionID)
	if err != nil {
		return err
	}
	if pending.Type != model.TypeDeposit || pending.Status != model.StatusPending {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("transaction '%s' is not a pending deposit", transactionID), nil)
	}
	if err := h.datasource.UpdateTransactionStatus(ctx, transactionID, model.StatusRejected); err != nil {
		return err
	}
	h.recordAudit(ctx, actorID, "deposit.reject", transactionID, map[string]interface{}{"reason": reason})
	return nil
}
