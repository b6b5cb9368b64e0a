package harbor

import (
	"context"
	"fmt"
	"time"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/internal/notification"
	"github.com/harborbank/harbor/model"
)

// SettlePayment confirms an external payment left the bank. The debit already
// happened when the payment was recorded; settlement only flips the record.
func (h *Harbor) SettlePayment(ctx context.Context, actorID, transactionID string) error {
	payment, err := h.pendingPayment(ctx, transactionID)
	if err != nil {
		return err
	}
	if err := h.datasource.UpdateTransactionStatus(ctx, payment.TransactionID, model.StatusApplied); err != nil {
		return err
	}
	h.recordAudit(ctx, actorID, "payment.settle", payment.TransactionID, nil)
	return nil
}

// FailPayment marks an external payment as failed and refunds the debit. The
// refund leg and the payment's flip to FAILED commit together; when that
// transaction can not land the payment holds its current state, the error
// escalates loudly with the partial-transfer code, and the fail can be
// retried.
func (h *Harbor) FailPayment(ctx context.Context, actorID, transactionID, reason string) (*model.Transaction, error) {
	payment, err := h.pendingPayment(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	refund := &model.Transaction{
		TransactionID:     model.GenerateUUIDWithSuffix("txn"),
		ParentTransaction: payment.TransactionID,
		Reference:         fmt.Sprintf("%s_refund", payment.Reference),
		Type:              model.TypeRefund,
		Status:            model.StatusApplied,
		Amount:            payment.Amount.Abs(),
		ToAccount:         payment.FromAccount,
		IdentityID:        payment.IdentityID,
		Description:       fmt.Sprintf("refund of %s", payment.Reference),
		CreatedAt:         time.Now(),
	}
	refund.Hash = refund.HashTxn()

	if err := h.datasource.RefundPayment(ctx, refund); err != nil {
		wrapped := apierror.NewAPIError(apierror.ErrPartialTransfer,
			fmt.Sprintf("payment '%s' failed but the refund did not apply", payment.TransactionID), err)
		notification.NotifyError(wrapped)
		return nil, wrapped
	}
	h.recordAudit(ctx, actorID, "payment.fail", payment.TransactionID, map[string]interface{}{"reason": reason})
	return refund, nil
}

func (h *Harbor) pendingPayment(ctx context.Context, transactionID string) (*model.Transaction, error) {
	payment, err := h.datasource.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if payment.Type != model.TypePayment {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("transaction '%s' is a %s, not a payment", transactionID, payment.Type), nil)
	}
	if payment.Status != model.StatusPending && payment.Status != model.StatusFlagged {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("payment '%s' is %s and can not be settled or failed", transactionID, payment.Status), nil)
	}
	return payment, nil
}
