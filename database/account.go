package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

const accountQueryFields = `account_id, identity_id, name, number, currency, balance, status, version, created_at, meta_data`

// GenerateAccountNumber produces a 10-digit external-facing account number.
// Uniqueness is enforced by the column constraint; collisions surface as a
// conflict on insert.
func GenerateAccountNumber() string {
	return fmt.Sprintf("2%09d", rand.Int63n(1_000_000_000))
}

func (d Datasource) CreateAccount(account model.Account) (model.Account, error) {
	metaDataJSON, err := json.Marshal(account.MetaData)
	if err != nil {
		return model.Account{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	account.AccountID = model.GenerateUUIDWithSuffix("acc")
	account.CreatedAt = time.Now()
	if account.Number == "" {
		account.Number = GenerateAccountNumber()
	}
	if account.Status == "" {
		account.Status = model.AccountPending
	}
	if account.Currency == "" {
		account.Currency = "USD"
	}

	_, err = d.Conn.Exec(`
		INSERT INTO accounts (account_id, identity_id, name, number, currency, balance, status, version, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)
	`, account.AccountID, account.IdentityID, account.Name, account.Number, account.Currency, account.Balance, account.Status, account.CreatedAt, metaDataJSON)
	if err != nil {
		return model.Account{}, apierror.NewAPIError(apierror.ErrConflict, "Failed to create account", err)
	}

	return account, nil
}

func (d Datasource) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+accountQueryFields+`
		FROM accounts
		WHERE account_id = $1
	`, id)

	return scanAccountRow(row, id)
}

func (d Datasource) GetAccountByNumber(ctx context.Context, number string) (*model.Account, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+accountQueryFields+`
		FROM accounts
		WHERE number = $1
	`, number)

	return scanAccountRow(row, number)
}

func scanAccountRow(row *sql.Row, key string) (*model.Account, error) {
	account := &model.Account{}
	var metaDataJSON []byte
	var balanceStr string
	err := row.Scan(&account.AccountID, &account.IdentityID, &account.Name, &account.Number,
		&account.Currency, &balanceStr, &account.Status, &account.Version, &account.CreatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account '%s' not found", key), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve account", err)
	}

	account.Balance, err = decimal.NewFromString(balanceStr)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to parse account balance", err)
	}

	if metaDataJSON != nil {
		if err := json.Unmarshal(metaDataJSON, &account.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}

	return account, nil
}

func scanAccountRows(rows *sql.Rows) ([]model.Account, error) {
	var accounts []model.Account
	for rows.Next() {
		account := model.Account{}
		var metaDataJSON []byte
		var balanceStr string
		err := rows.Scan(&account.AccountID, &account.IdentityID, &account.Name, &account.Number,
			&account.Currency, &balanceStr, &account.Status, &account.Version, &account.CreatedAt, &metaDataJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan account", err)
		}
		account.Balance, err = decimal.NewFromString(balanceStr)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to parse account balance", err)
		}
		if metaDataJSON != nil {
			if err := json.Unmarshal(metaDataJSON, &account.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (d Datasource) GetAccountsByIdentity(ctx context.Context, identityID string) ([]model.Account, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+accountQueryFields+`
		FROM accounts
		WHERE identity_id = $1
		ORDER BY created_at DESC
	`, identityID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve accounts", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanAccountRows(rows)
}

func (d Datasource) GetAccountsByStatus(ctx context.Context, status string, limit, offset int) ([]model.Account, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+accountQueryFields+`
		FROM accounts
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve accounts", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanAccountRows(rows)
}

func (d Datasource) UpdateAccountStatus(ctx context.Context, id, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE accounts SET status = $2, version = version + 1 WHERE account_id = $1
	`, id, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update account status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Account '%s' not found", id), nil)
	}

	return nil
}

// UpdateAccountBalance writes the balance back guarded by the version column.
// A zero rows-affected result means another writer got there first.
func (d Datasource) UpdateAccountBalance(ctx context.Context, account *model.Account) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $2, version = version + 1
		WHERE account_id = $1 AND version = $3
	`, account.AccountID, account.Balance, account.Version)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update account balance", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Optimistic locking failure: account '%s' was updated by another transaction", account.AccountID), nil)
	}

	account.Version++
	return nil
}

// ApplyDeposit credits a validated deposit to the account, appends the
// applied record, and flips the pending row to APPLIED in one transaction.
// Either all three land or none do, so a retry never finds a credited
// account with the deposit still pending.
func (d Datasource) ApplyDeposit(ctx context.Context, accountID string, amount decimal.Decimal, record *model.Transaction, pendingID string) error {
	tx, err := d.Conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelDefault})
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to begin transaction", err)
	}
	defer func(tx *sql.Tx) {
		_ = tx.Rollback()
	}(tx)

	account, err := lockAccount(ctx, tx, accountID)
	if err != nil {
		return err
	}

	record.BalanceBefore = account.Balance
	account.Balance = account.Balance.Add(amount)
	record.BalanceAfter = account.Balance

	if err := writeBalance(ctx, tx, account); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, record); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE transactions SET status = $2 WHERE transaction_id = $1 AND status = $3
	`, pendingID, model.StatusApplied, model.StatusPending)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update transaction status", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("deposit '%s' is no longer pending validation", pendingID), nil)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit transaction", err)
	}

	return nil
}
