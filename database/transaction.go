package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

const transactionQueryFields = `transaction_id, parent_transaction, reference, type, status, amount, from_account, to_account, identity_id, description, balance_before, balance_after, hash, created_at, meta_data`

// lockAccount reads an account row under FOR UPDATE so no concurrent
// transfer can move its balance until the transaction ends.
func lockAccount(ctx context.Context, tx *sql.Tx, accountID string) (*model.Account, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT account_id, identity_id, name, number, currency, balance, status, version
		FROM accounts
		WHERE account_id = $1
		FOR UPDATE
	`, accountID)

	account := &model.Account{}
	var balanceStr string
	err := row.Scan(&account.AccountID, &account.IdentityID, &account.Name, &account.Number,
		&account.Currency, &balanceStr, &account.Status, &account.Version)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account '%s' not found", accountID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to lock account", err)
	}

	account.Balance, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to parse account balance", err)
	}

	return account, nil
}

// writeBalance writes a locked account's balance back inside the transaction.
// The version bump keeps the optimistic column honest for readers outside it.
func writeBalance(ctx context.Context, tx *sql.Tx, account *model.Account) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts SET balance = $2, version = version + 1 WHERE account_id = $1
	`, account.AccountID, account.Balance)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrRemoteWrite, "Failed to write account balance", err)
	}
	account.Version++
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, txn *model.Transaction) error {
	metaDataJSON, err := json.Marshal(txn.MetaData)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (transaction_id, parent_transaction, reference, type, status, amount, from_account, to_account, identity_id, description, balance_before, balance_after, hash, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, txn.TransactionID, txn.ParentTransaction, txn.Reference, txn.Type, txn.Status, txn.Amount,
		txn.FromAccount, txn.ToAccount, txn.IdentityID, txn.Description, txn.BalanceBefore, txn.BalanceAfter,
		txn.Hash, txn.CreatedAt, metaDataJSON)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return apierror.NewAPIError(apierror.ErrDuplicateReference,
				fmt.Sprintf("reference %s has already been used", txn.Reference), err)
		}
		return apierror.NewAPIError(apierror.ErrRemoteWrite, "Failed to record transaction", err)
	}

	return nil
}

// ApplyInternalTransfer moves amount between two held accounts and appends
// both statement legs in one database transaction. Rows are locked in
// deterministic id order to avoid deadlocks between crossing transfers, and
// funds sufficiency is re-checked against the locked row, never the caller's
// stale read.
func (d Datasource) ApplyInternalTransfer(ctx context.Context, sourceID, destinationID string, amount decimal.Decimal, outRecord, inRecord *model.Transaction) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	firstID, secondID := sourceID, destinationID
	if firstID > secondID {
		firstID, secondID = secondID, firstID
	}

	first, err := lockAccount(ctx, tx, firstID)
	if err != nil {
		return err
	}
	second, err := lockAccount(ctx, tx, secondID)
	if err != nil {
		return err
	}

	source, destination := first, second
	if source.AccountID != sourceID {
		source, destination = second, first
	}

	if !source.CanDebit() {
		return apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("account '%s' is %s and can not be debited", source.AccountID, source.Status), nil)
	}
	if !destination.CanCredit() {
		return apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("account '%s' is %s and can not be credited", destination.AccountID, destination.Status), nil)
	}
	if source.Balance.LessThan(amount) {
		return apierror.NewAPIError(apierror.ErrInsufficientFunds, "insufficient funds in source account", nil)
	}

	outRecord.BalanceBefore = source.Balance
	source.Balance = source.Balance.Sub(amount)
	outRecord.BalanceAfter = source.Balance

	inRecord.BalanceBefore = destination.Balance
	destination.Balance = destination.Balance.Add(amount)
	inRecord.BalanceAfter = destination.Balance

	if err := writeBalance(ctx, tx, source); err != nil {
		return err
	}
	if err := writeBalance(ctx, tx, destination); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, outRecord); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, inRecord); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrRemoteWrite, "Failed to commit transfer", err)
	}

	return nil
}

// ApplyExternalPayment debits the source and appends the single payment leg.
// The record stays PENDING until back-office settlement.
func (d Datasource) ApplyExternalPayment(ctx context.Context, sourceID string, amount decimal.Decimal, record *model.Transaction) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	source, err := lockAccount(ctx, tx, sourceID)
	if err != nil {
		return err
	}

	if !source.CanDebit() {
		return apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("account '%s' is %s and can not be debited", source.AccountID, source.Status), nil)
	}
	if source.Balance.LessThan(amount) {
		return apierror.NewAPIError(apierror.ErrInsufficientFunds, "insufficient funds in source account", nil)
	}

	record.BalanceBefore = source.Balance
	source.Balance = source.Balance.Sub(amount)
	record.BalanceAfter = source.Balance

	if err := writeBalance(ctx, tx, source); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrRemoteWrite, "Failed to commit payment", err)
	}

	return nil
}

// RefundPayment reverses a failed external payment: credits the debited
// amount back to the source, appends the refund leg, and flips the parent
// payment to FAILED in the same transaction. A flip that can not land rolls
// the refund back with it, so a retried fail never trips over the refund
// leg's unique reference.
func (d Datasource) RefundPayment(ctx context.Context, record *model.Transaction) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	account, err := lockAccount(ctx, tx, record.ToAccount)
	if err != nil {
		return err
	}

	record.BalanceBefore = account.Balance
	account.Balance = account.Balance.Add(record.Amount)
	record.BalanceAfter = account.Balance

	if err := writeBalance(ctx, tx, account); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = $2 WHERE transaction_id = $1
	`, record.ParentTransaction, model.StatusFailed)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrRemoteWrite, "Failed to update payment status", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound,
			fmt.Sprintf("Transaction with ID '%s' not found", record.ParentTransaction), nil)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrRemoteWrite, "Failed to commit refund", err)
	}

	return nil
}

func (d Datasource) RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	metaDataJSON, err := json.Marshal(txn.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO transactions (transaction_id, parent_transaction, reference, type, status, amount, from_account, to_account, identity_id, description, balance_before, balance_after, hash, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, txn.TransactionID, txn.ParentTransaction, txn.Reference, txn.Type, txn.Status, txn.Amount,
		txn.FromAccount, txn.ToAccount, txn.IdentityID, txn.Description, txn.BalanceBefore, txn.BalanceAfter,
		txn.Hash, txn.CreatedAt, metaDataJSON)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, apierror.NewAPIError(apierror.ErrDuplicateReference,
				fmt.Sprintf("reference %s has already been used", txn.Reference), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrRemoteWrite, "Failed to record transaction", err)
	}

	return txn, nil
}

func scanTransactionColumns(scan func(dest ...interface{}) error) (*model.Transaction, error) {
	txn := &model.Transaction{}
	var metaDataJSON []byte
	var amountStr string
	var balanceBefore, balanceAfter sql.NullString
	var fromAccount, toAccount, parent, hash, description sql.NullString

	err := scan(&txn.TransactionID, &parent, &txn.Reference, &txn.Type, &txn.Status, &amountStr,
		&fromAccount, &toAccount, &txn.IdentityID, &description, &balanceBefore, &balanceAfter,
		&hash, &txn.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}

	txn.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return nil, err
	}
	if balanceBefore.Valid {
		txn.BalanceBefore, err = decimal.NewFromString(balanceBefore.String)
		if err != nil {
			return nil, err
		}
	}
	if balanceAfter.Valid {
		txn.BalanceAfter, err = decimal.NewFromString(balanceAfter.String)
		if err != nil {
			return nil, err
		}
	}
	txn.ParentTransaction = parent.String
	txn.FromAccount = fromAccount.String
	txn.ToAccount = toAccount.String
	txn.Hash = hash.String
	txn.Description = description.String

	if metaDataJSON != nil {
		if err := json.Unmarshal(metaDataJSON, &txn.MetaData); err != nil {
			return nil, err
		}
	}

	return txn, nil
}

func (d Datasource) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+transactionQueryFields+`
		FROM transactions
		WHERE transaction_id = $1
	`, id)

	txn, err := scanTransactionColumns(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}

	return txn, nil
}

func (d Datasource) GetTransactionByRef(ctx context.Context, reference string) (model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+transactionQueryFields+`
		FROM transactions
		WHERE reference = $1
	`, reference)

	txn, err := scanTransactionColumns(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return model.Transaction{}, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with reference '%s' not found", reference), err)
		}
		return model.Transaction{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}

	return *txn, nil
}

func (d Datasource) TransactionExistsByRef(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE reference = $1)
	`, reference).Scan(&exists)

	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check if transaction exists", err)
	}

	return exists, nil
}

func (d Datasource) UpdateTransactionStatus(ctx context.Context, id string, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions SET status = $2 WHERE transaction_id = $1
	`, id, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update transaction status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), nil)
	}

	return nil
}

func (d Datasource) GetTransactionsByAccount(ctx context.Context, accountID string, from, to time.Time, limit, offset int) ([]model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+transactionQueryFields+`
		FROM transactions
		WHERE (from_account = $1 OR to_account = $1)
		AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`, accountID, from, to, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transactions", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransactionColumns(rows.Scan)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction", err)
		}
		transactions = append(transactions, *txn)
	}

	return transactions, rows.Err()
}

func (d Datasource) GetTransactionsByStatus(ctx context.Context, txnType, status string, olderThan time.Time) ([]model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+transactionQueryFields+`
		FROM transactions
		WHERE type = $1 AND status = $2 AND created_at < $3
		ORDER BY created_at ASC
	`, txnType, status, olderThan)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transactions", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransactionColumns(rows.Scan)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction", err)
		}
		transactions = append(transactions, *txn)
	}

	return transactions, rows.Err()
}
