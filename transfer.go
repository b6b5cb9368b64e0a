package harbor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/internal/lock"
	"github.com/harborbank/harbor/internal/notification"
	"github.com/harborbank/harbor/model"
)

const (
	lockTimeout     = 30 * time.Second
	lockWaitTimeout = 10 * time.Second
)

// RecordTransfer is the money-movement executor. It validates the request,
// serializes work on the source account, and applies the transfer as one
// database transaction. Internal transfers write both statement legs; external
// payments debit the source and leave a PENDING payment record for back-office
// settlement.
//
// The returned transaction is the sender's leg.
func (h *Harbor) RecordTransfer(ctx context.Context, transfer *model.Transfer) (*model.Transaction, error) {
	if err := h.validateTransferRequest(transfer); err != nil {
		return nil, err
	}

	identity, err := h.datasource.GetIdentity(ctx, transfer.IdentityID)
	if err != nil {
		return nil, err
	}
	if !identity.CanTransact() {
		return nil, apierror.NewAPIError(apierror.ErrUnauthorized,
			fmt.Sprintf("identity '%s' is not approved to transact", identity.IdentityID), nil)
	}

	// Idempotency gate. A reused reference is rejected before any mutation,
	// and the unique column catches the race this read leaves open.
	exists, err := h.datasource.TransactionExistsByRef(ctx, transfer.Reference)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apierror.NewAPIError(apierror.ErrDuplicateReference,
			fmt.Sprintf("reference %s has already been used", transfer.Reference), nil)
	}

	source, err := h.datasource.GetAccount(ctx, transfer.FromAccountID)
	if err != nil {
		return nil, err
	}
	if !source.OwnedBy(transfer.IdentityID) {
		return nil, apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("account '%s' does not belong to the caller", source.AccountID), nil)
	}
	if !source.CanDebit() {
		return nil, apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("account '%s' is %s and can not be debited", source.AccountID, source.Status), nil)
	}

	mutex := lock.ForAccount(h.redis, source.AccountID, lockTimeout)
	if err := mutex.Acquire(ctx, lockWaitTimeout); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrConflict, "source account is busy, retry shortly", err)
	}
	defer func() {
		if err := mutex.Release(context.Background()); err != nil {
			logErr := fmt.Errorf("failed to release account lock %s: %w", source.AccountID, err)
			notification.NotifyError(logErr)
		}
	}()

	switch transfer.Type {
	case model.TransferInternal:
		return h.applyInternalTransfer(ctx, transfer, source)
	case model.TransferExternal:
		return h.applyExternalPayment(ctx, transfer, source)
	default:
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput,
			fmt.Sprintf("unknown transfer type '%s'", transfer.Type), nil)
	}
}

func (h *Harbor) validateTransferRequest(transfer *model.Transfer) error {
	if transfer.Reference == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "reference is required", nil)
	}
	if transfer.FromAccountID == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "from_account_id is required", nil)
	}
	if transfer.RecipientAccountNumber == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "recipient_account_number is required", nil)
	}
	if transfer.Type == model.TransferExternal && transfer.RecipientName == "" {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "recipient_name is required for external payments", nil)
	}
	if transfer.Amount.LessThanOrEqual(decimal.Zero) {
		return apierror.NewAPIError(apierror.ErrInvalidAmount, "amount must be greater than zero", nil)
	}
	return nil
}

func (h *Harbor) applyInternalTransfer(ctx context.Context, transfer *model.Transfer, source *model.Account) (*model.Transaction, error) {
	destination, err := h.datasource.GetAccountByNumber(ctx, transfer.RecipientAccountNumber)
	if err != nil {
		if apierror.Is(err, apierror.ErrNotFound) {
			return nil, apierror.NewAPIError(apierror.ErrRecipientNotFound,
				fmt.Sprintf("no account with number '%s'", transfer.RecipientAccountNumber), err)
		}
		return nil, err
	}
	if destination.AccountID == source.AccountID {
		return nil, apierror.NewAPIError(apierror.ErrSelfTransfer, "source and recipient are the same account", nil)
	}
	if !destination.CanCredit() {
		return nil, apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("account '%s' is %s and can not be credited", destination.AccountID, destination.Status), nil)
	}
	if source.Balance.LessThan(transfer.Amount) {
		return nil, apierror.NewAPIError(apierror.ErrInsufficientFunds, "insufficient funds in source account", nil)
	}

	outRecord, inRecord := buildTransferRecords(transfer, source, destination)
	if err := h.datasource.ApplyInternalTransfer(ctx, source.AccountID, destination.AccountID, transfer.Amount, outRecord, inRecord); err != nil {
		return nil, err
	}
	return outRecord, nil
}

func (h *Harbor) applyExternalPayment(ctx context.Context, transfer *model.Transfer, source *model.Account) (*model.Transaction, error) {
	if source.Balance.LessThan(transfer.Amount) {
		return nil, apierror.NewAPIError(apierror.ErrInsufficientFunds, "insufficient funds in source account", nil)
	}

	record := &model.Transaction{
		TransactionID: model.GenerateUUIDWithSuffix("txn"),
		Reference:     transfer.Reference,
		Type:          model.TypePayment,
		Status:        model.StatusPending,
		Amount:        transfer.Amount.Neg(),
		FromAccount:   source.AccountID,
		IdentityID:    transfer.IdentityID,
		Description:   transfer.DefaultDescription(),
		CreatedAt:     time.Now(),
		MetaData: map[string]interface{}{
			"recipient_account_number": transfer.RecipientAccountNumber,
			"recipient_name":           transfer.RecipientName,
		},
	}
	record.Hash = record.HashTxn()

	if err := h.datasource.ApplyExternalPayment(ctx, source.AccountID, transfer.Amount, record); err != nil {
		return nil, err
	}
	return record, nil
}

// buildTransferRecords produces the two statement legs of an internal
// transfer: a negative transfer_out for the sender and a positive transfer_in
// for the recipient, linked through parent_transaction.
func buildTransferRecords(transfer *model.Transfer, source, destination *model.Account) (*model.Transaction, *model.Transaction) {
	now := time.Now()
	outRecord := &model.Transaction{
		TransactionID: model.GenerateUUIDWithSuffix("txn"),
		Reference:     transfer.Reference,
		Type:          model.TypeTransferOut,
		Status:        model.StatusApplied,
		Amount:        transfer.Amount.Neg(),
		FromAccount:   source.AccountID,
		ToAccount:     destination.AccountID,
		IdentityID:    transfer.IdentityID,
		Description:   transfer.DefaultDescription(),
		CreatedAt:     now,
	}
	outRecord.Hash = outRecord.HashTxn()

	inRecord := &model.Transaction{
		TransactionID:     model.GenerateUUIDWithSuffix("txn"),
		ParentTransaction: outRecord.TransactionID,
		Reference:         fmt.Sprintf("%s_in", transfer.Reference),
		Type:              model.TypeTransferIn,
		Status:            model.StatusApplied,
		Amount:            transfer.Amount,
		FromAccount:       source.AccountID,
		ToAccount:         destination.AccountID,
		IdentityID:        destination.IdentityID,
		Description:       transfer.DefaultDescription(),
		CreatedAt:         now,
	}
	inRecord.Hash = inRecord.HashTxn()

	return outRecord, inRecord
}

// QueueTransfer validates the request shape and hands it to the workers. The
// full executor runs when the task is consumed.
func (h *Harbor) QueueTransfer(ctx context.Context, transfer *model.Transfer) error {
	if err := h.validateTransferRequest(transfer); err != nil {
		return err
	}
	if transfer.CreatedAt.IsZero() {
		transfer.CreatedAt = time.Now()
	}
	return h.queue.Enqueue(ctx, transfer)
}

// RejectTransfer records a REJECTED statement row for a transfer the executor
// refused, so the rejection shows up in the account history. Duplicate
// references are not recorded again.
func (h *Harbor) RejectTransfer(ctx context.Context, transfer *model.Transfer, reason error) (*model.Transaction, error) {
	code := apierror.ErrInternalServer
	if apiErr, ok := reason.(apierror.APIError); ok {
		code = apiErr.Code
	}
	if code == apierror.ErrDuplicateReference {
		return nil, reason
	}

	record := &model.Transaction{
		TransactionID: model.GenerateUUIDWithSuffix("txn"),
		Reference:     transfer.Reference,
		Type:          model.TypeTransferOut,
		Status:        model.StatusRejected,
		Amount:        transfer.Amount.Neg(),
		FromAccount:   transfer.FromAccountID,
		IdentityID:    transfer.IdentityID,
		Description:   transfer.DefaultDescription(),
		CreatedAt:     time.Now(),
		MetaData: map[string]interface{}{
			"rejection_reason": reason.Error(),
			"rejection_code":   string(code),
		},
	}
	record.Hash = record.HashTxn()

	return h.datasource.RecordTransaction(ctx, record)
}

// IsBusinessRejection reports whether a transfer error is a terminal business
// decision rather than a transient fault. Workers use it to decide between
// recording a rejection and retrying the task.
func IsBusinessRejection(err error) bool {
	apiErr, ok := err.(apierror.APIError)
	if !ok {
		return false
	}
	switch apiErr.Code {
	case apierror.ErrInvalidInput, apierror.ErrInvalidAmount, apierror.ErrAccountNotEligible,
		apierror.ErrInsufficientFunds, apierror.ErrRecipientNotFound, apierror.ErrSelfTransfer,
		apierror.ErrDuplicateReference, apierror.ErrUnauthorized, apierror.ErrNotFound:
		return true
	default:
		return false
	}
}
