package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

func lockedAccountRow(id, identity, status, balance string, version int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"account_id", "identity_id", "name", "number", "currency", "balance", "status", "version"}).
		AddRow(id, identity, "Checking", "2000000001", "USD", balance, status, version)
}

func transferRecords(amount decimal.Decimal) (*model.Transaction, *model.Transaction) {
	now := time.Now()
	out := &model.Transaction{
		TransactionID: "txn_out",
		Reference:     "ref_1",
		Type:          model.TypeTransferOut,
		Status:        model.StatusApplied,
		Amount:        amount,
		FromAccount:   "acc_1",
		ToAccount:     "acc_2",
		IdentityID:    "idt_1",
		CreatedAt:     now,
	}
	in := &model.Transaction{
		TransactionID:     "txn_in",
		ParentTransaction: "txn_out",
		Reference:         "ref_1_in",
		Type:              model.TypeTransferIn,
		Status:            model.StatusApplied,
		Amount:            amount,
		FromAccount:       "acc_1",
		ToAccount:         "acc_2",
		IdentityID:        "idt_1",
		CreatedAt:         now,
	}
	return out, in
}

func TestApplyInternalTransfer(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectBegin()
	// Rows lock in id order: acc_1 first, then acc_2.
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_1").
		WillReturnRows(lockedAccountRow("acc_1", "idt_1", model.AccountActive, "100.0000", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_2").
		WillReturnRows(lockedAccountRow("acc_2", "idt_2", model.AccountActive, "20.0000", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET balance = $2, version = version + 1 WHERE account_id = $1`)).
		WithArgs("acc_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts SET balance = $2, version = version + 1 WHERE account_id = $1`)).
		WithArgs("acc_2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	out, in := transferRecords(decimal.NewFromInt(30))
	err := ds.ApplyInternalTransfer(context.Background(), "acc_1", "acc_2", decimal.NewFromInt(30), out, in)

	assert.NoError(t, err)
	assert.True(t, out.BalanceBefore.Equal(decimal.NewFromInt(100)))
	assert.True(t, out.BalanceAfter.Equal(decimal.NewFromInt(70)))
	assert.True(t, in.BalanceBefore.Equal(decimal.NewFromInt(20)))
	assert.True(t, in.BalanceAfter.Equal(decimal.NewFromInt(50)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyInternalTransferLocksInIdOrder(t *testing.T) {
	ds, mock := newTestDatasource(t)

	// Source id sorts after destination; destination must be locked first.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_1").
		WillReturnRows(lockedAccountRow("acc_1", "idt_2", model.AccountActive, "20.0000", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_9").
		WillReturnRows(lockedAccountRow("acc_9", "idt_1", model.AccountActive, "100.0000", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts`)).
		WithArgs("acc_9", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts`)).
		WithArgs("acc_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	out, in := transferRecords(decimal.NewFromInt(30))
	out.FromAccount, out.ToAccount = "acc_9", "acc_1"
	in.FromAccount, in.ToAccount = "acc_9", "acc_1"
	err := ds.ApplyInternalTransfer(context.Background(), "acc_9", "acc_1", decimal.NewFromInt(30), out, in)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyInternalTransferInsufficientFunds(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_1").
		WillReturnRows(lockedAccountRow("acc_1", "idt_1", model.AccountActive, "10.0000", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_2").
		WillReturnRows(lockedAccountRow("acc_2", "idt_2", model.AccountActive, "20.0000", 1))
	mock.ExpectRollback()

	out, in := transferRecords(decimal.NewFromInt(30))
	err := ds.ApplyInternalTransfer(context.Background(), "acc_1", "acc_2", decimal.NewFromInt(30), out, in)

	assert.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.ErrInsufficientFunds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Two transfers drain the same source back to back. Against a live database
// the second FOR UPDATE blocks until the first commits; what matters here is
// that the second recheck runs against the committed balance, not the stale
// read the caller started from.
func TestBackToBackTransfersRecheckCommittedBalance(t *testing.T) {
	ds, mock := newTestDatasource(t)

	// First transfer takes 80 of the 100 and commits.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_1").
		WillReturnRows(lockedAccountRow("acc_1", "idt_1", model.AccountActive, "100.0000", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_2").
		WillReturnRows(lockedAccountRow("acc_2", "idt_2", model.AccountActive, "20.0000", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts`)).
		WithArgs("acc_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts`)).
		WithArgs("acc_2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	// Second transfer locks the row after the commit and sees 20 left.
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_1").
		WillReturnRows(lockedAccountRow("acc_1", "idt_1", model.AccountActive, "20.0000", 2))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_2").
		WillReturnRows(lockedAccountRow("acc_2", "idt_2", model.AccountActive, "100.0000", 2))
	mock.ExpectRollback()

	out, in := transferRecords(decimal.NewFromInt(80))
	err := ds.ApplyInternalTransfer(context.Background(), "acc_1", "acc_2", decimal.NewFromInt(80), out, in)
	assert.NoError(t, err)
	assert.True(t, out.BalanceAfter.Equal(decimal.NewFromInt(20)))

	out2, in2 := transferRecords(decimal.NewFromInt(80))
	out2.TransactionID, out2.Reference = "txn_out2", "ref_2"
	in2.TransactionID, in2.Reference, in2.ParentTransaction = "txn_in2", "ref_2_in", "txn_out2"
	err = ds.ApplyInternalTransfer(context.Background(), "acc_1", "acc_2", decimal.NewFromInt(80), out2, in2)

	assert.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.ErrInsufficientFunds))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyInternalTransferFrozenDestinationStillCredits(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_1").
		WillReturnRows(lockedAccountRow("acc_1", "idt_1", model.AccountActive, "100.0000", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_2").
		WillReturnRows(lockedAccountRow("acc_2", "idt_2", model.AccountFrozen, "20.0000", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts`)).
		WithArgs("acc_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts`)).
		WithArgs("acc_2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	out, in := transferRecords(decimal.NewFromInt(30))
	err := ds.ApplyInternalTransfer(context.Background(), "acc_1", "acc_2", decimal.NewFromInt(30), out, in)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyInternalTransferFrozenSourceRejected(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_1").
		WillReturnRows(lockedAccountRow("acc_1", "idt_1", model.AccountFrozen, "100.0000", 1))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_2").
		WillReturnRows(lockedAccountRow("acc_2", "idt_2", model.AccountActive, "20.0000", 1))
	mock.ExpectRollback()

	out, in := transferRecords(decimal.NewFromInt(30))
	err := ds.ApplyInternalTransfer(context.Background(), "acc_1", "acc_2", decimal.NewFromInt(30), out, in)

	assert.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.ErrAccountNotEligible))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyExternalPayment(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).
		WithArgs("acc_1").
		WillReturnRows(lockedAccountRow("acc_1", "idt_1", model.AccountActive, "100.0000", 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE accounts`)).
		WithArgs("acc_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record := &model.Transaction{
		TransactionID: "txn_pay",
		Reference:     "ref_pay_1",
		Type:          model.TypePayment,
		Status:        model.StatusPending,
		Amount:        decimal.NewFromInt(25),
		FromAccount:   "acc_1",
		IdentityID:    "idt_1",
		CreatedAt:     time.Now(),
	}
	err := ds.ApplyExternalPayment(context.Background(), "acc_1", decimal.NewFromInt(25), record)

	assert.NoError(t, err)
	assert.True(t, record.BalanceAfter.Equal(decimal.NewFromInt(75)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordTransactionDuplicateReference(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO transactions`)).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "transactions_reference_key"})

	_, err := ds.RecordTransaction(context.Background(), &model.Transaction{
		TransactionID: "txn_dup",
		Reference:     "ref_1",
		Type:          model.TypePayment,
		Status:        model.StatusPending,
		Amount:        decimal.NewFromInt(5),
		IdentityID:    "idt_1",
		CreatedAt:     time.Now(),
	})

	assert.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.ErrDuplicateReference))
}

func TestTransactionExistsByRef(t *testing.T) {
	ds, mock := newTestDatasource(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS(SELECT 1 FROM transactions WHERE reference = $1)`)).
		WithArgs("ref_1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := ds.TransactionExistsByRef(context.Background(), "ref_1")

	assert.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTransactionsByStatus(t *testing.T) {
	ds, mock := newTestDatasource(t)

	cutoff := time.Now().Add(-72 * time.Hour)
	rows := sqlmock.NewRows([]string{"transaction_id", "parent_transaction", "reference", "type", "status", "amount", "from_account", "to_account", "identity_id", "description", "balance_before", "balance_after", "hash", "created_at", "meta_data"}).
		AddRow("txn_old", nil, "ref_old", model.TypePayment, model.StatusPending, "42.0000", "acc_1", nil, "idt_1", "stale payment", "100.0000", "58.0000", nil, time.Now().Add(-100*time.Hour), nil)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE type = $1 AND status = $2 AND created_at < $3`)).
		WithArgs(model.TypePayment, model.StatusPending, cutoff).
		WillReturnRows(rows)

	transactions, err := ds.GetTransactionsByStatus(context.Background(), model.TypePayment, model.StatusPending, cutoff)

	assert.NoError(t, err)
	assert.Len(t, transactions, 1)
	assert.Equal(t, "txn_old", transactions[0].TransactionID)
	assert.True(t, transactions[0].Amount.Equal(decimal.NewFromInt(42)))
	assert.NoError(t, mock.ExpectationsWereMet())
}
