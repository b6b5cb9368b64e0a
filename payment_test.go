package harbor

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

func paymentRows(id, ref, status, amount string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"transaction_id", "parent_transaction", "reference", "type", "status", "amount", "from_account", "to_account", "identity_id", "description", "balance_before", "balance_after", "hash", "created_at", "meta_data"}).
		AddRow(id, nil, ref, model.TypePayment, status, amount, "acc_1", nil, "idt_1", "external to 8800123456", "100.0000", "58.0000", nil, time.Now(), nil)
}

func TestSettlePayment(t *testing.T) {
	h, mock := newTestHarbor(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE transaction_id = $1`)).
		WithArgs("txn_1").
		WillReturnRows(paymentRows("txn_1", "ref_1", model.StatusPending, "-42.0000"))
	mock.ExpectExec(`UPDATE transactions SET status`).
		WithArgs("txn_1", model.StatusApplied).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))

	err := h.SettlePayment(context.Background(), "idt_admin", "txn_1")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettlePaymentAlreadyApplied(t *testing.T) {
	h, mock := newTestHarbor(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE transaction_id = $1`)).
		WithArgs("txn_1").
		WillReturnRows(paymentRows("txn_1", "ref_1", model.StatusApplied, "-42.0000"))

	err := h.SettlePayment(context.Background(), "idt_admin", "txn_1")

	assert.True(t, apierror.Is(err, apierror.ErrConflict))
}

func TestSettlePaymentRejectsNonPayments(t *testing.T) {
	h, mock := newTestHarbor(t)

	rows := sqlmock.NewRows([]string{"transaction_id", "parent_transaction", "reference", "type", "status", "amount", "from_account", "to_account", "identity_id", "description", "balance_before", "balance_after", "hash", "created_at", "meta_data"}).
		AddRow("txn_1", nil, "ref_1", model.TypeDeposit, model.StatusPending, "42.0000", nil, "acc_1", "idt_1", "deposit to 2000000001", nil, nil, nil, time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE transaction_id = $1`)).
		WithArgs("txn_1").
		WillReturnRows(rows)

	err := h.SettlePayment(context.Background(), "idt_admin", "txn_1")

	assert.True(t, apierror.Is(err, apierror.ErrConflict))
}

func TestFailPaymentRefundsTheDebit(t *testing.T) {
	h, mock := newTestHarbor(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE transaction_id = $1`)).
		WithArgs("txn_1").
		WillReturnRows(paymentRows("txn_1", "ref_1", model.StatusPending, "-42.0000"))

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("acc_1").
		WillReturnRows(lockedRows("acc_1", "idt_1", model.AccountActive, "58.0000"))
	mock.ExpectExec(`UPDATE accounts SET balance`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE transactions SET status`).
		WithArgs("txn_1", model.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))

	refund, err := h.FailPayment(context.Background(), "idt_admin", "txn_1", "beneficiary bank bounced it")

	assert.NoError(t, err)
	assert.Equal(t, model.TypeRefund, refund.Type)
	assert.Equal(t, "txn_1", refund.ParentTransaction)
	assert.Equal(t, "ref_1_refund", refund.Reference)
	assert.Equal(t, "acc_1", refund.ToAccount)
	assert.True(t, refund.Amount.Equal(decimal.NewFromInt(42)))
	assert.True(t, refund.BalanceAfter.Equal(decimal.NewFromInt(100)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailPaymentEscalatesWhenRefundDoesNotApply(t *testing.T) {
	h, mock := newTestHarbor(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE transaction_id = $1`)).
		WithArgs("txn_1").
		WillReturnRows(paymentRows("txn_1", "ref_1", model.StatusPending, "-42.0000"))

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("acc_1").
		WillReturnRows(lockedRows("acc_1", "idt_1", model.AccountActive, "58.0000"))
	mock.ExpectExec(`UPDATE accounts SET balance`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := h.FailPayment(context.Background(), "idt_admin", "txn_1", "beneficiary bank bounced it")

	assert.True(t, apierror.Is(err, apierror.ErrPartialTransfer))
}

func TestFailPaymentRollsBackRefundWhenFlipFails(t *testing.T) {
	h, mock := newTestHarbor(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE transaction_id = $1`)).
		WithArgs("txn_1").
		WillReturnRows(paymentRows("txn_1", "ref_1", model.StatusPending, "-42.0000"))

	// The flip fails after the refund was written: both roll back together,
	// the payment stays PENDING, and a retry is clean.
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("acc_1").
		WillReturnRows(lockedRows("acc_1", "idt_1", model.AccountActive, "58.0000"))
	mock.ExpectExec(`UPDATE accounts SET balance`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE transactions SET status`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := h.FailPayment(context.Background(), "idt_admin", "txn_1", "beneficiary bank bounced it")
	assert.True(t, apierror.Is(err, apierror.ErrPartialTransfer))
	assert.NoError(t, mock.ExpectationsWereMet())

	// Retry finds the payment still pending; the refund applies without
	// tripping over its own reference.
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE transaction_id = $1`)).
		WithArgs("txn_1").
		WillReturnRows(paymentRows("txn_1", "ref_1", model.StatusPending, "-42.0000"))
	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("acc_1").
		WillReturnRows(lockedRows("acc_1", "idt_1", model.AccountActive, "58.0000"))
	mock.ExpectExec(`UPDATE accounts SET balance`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE transactions SET status`).
		WithArgs("txn_1", model.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))

	refund, err := h.FailPayment(context.Background(), "idt_admin", "txn_1", "beneficiary bank bounced it")
	assert.NoError(t, err)
	assert.Equal(t, "ref_1_refund", refund.Reference)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailPaymentOnFlaggedPayment(t *testing.T) {
	h, mock := newTestHarbor(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE transaction_id = $1`)).
		WithArgs("txn_1").
		WillReturnRows(paymentRows("txn_1", "ref_1", model.StatusFlagged, "-42.0000"))

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs("acc_1").
		WillReturnRows(lockedRows("acc_1", "idt_1", model.AccountActive, "58.0000"))
	mock.ExpectExec(`UPDATE accounts SET balance`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO transactions`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE transactions SET status`).
		WithArgs("txn_1", model.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := h.FailPayment(context.Background(), "idt_admin", "txn_1", "stale payment written off")

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
