package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

const loanQueryFields = `loan_id, identity_id, account_id, principal, annual_rate, term_months, monthly_payment, status, purpose, created_at, meta_data`

func (d Datasource) CreateLoan(loan model.Loan) (model.Loan, error) {
	metaDataJSON, err := json.Marshal(loan.MetaData)
	if err != nil {
		return model.Loan{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	loan.LoanID = model.GenerateUUIDWithSuffix("lon")
	loan.CreatedAt = time.Now()
	if loan.Status == "" {
		loan.Status = model.LoanPending
	}
	loan.MonthlyPayment = model.MonthlyPayment(loan.Principal, loan.AnnualRate, loan.TermMonths)

	_, err = d.Conn.Exec(`
		INSERT INTO loans (loan_id, identity_id, account_id, principal, annual_rate, term_months, monthly_payment, status, purpose, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, loan.LoanID, loan.IdentityID, loan.AccountID, loan.Principal, loan.AnnualRate, loan.TermMonths,
		loan.MonthlyPayment, loan.Status, loan.Purpose, loan.CreatedAt, metaDataJSON)
	if err != nil {
		return model.Loan{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create loan", err)
	}

	return loan, nil
}

func scanLoanColumns(scan func(dest ...interface{}) error) (*model.Loan, error) {
	loan := &model.Loan{}
	var metaDataJSON []byte
	var principalStr, rateStr, monthlyStr string
	var purpose sql.NullString

	err := scan(&loan.LoanID, &loan.IdentityID, &loan.AccountID, &principalStr, &rateStr,
		&loan.TermMonths, &monthlyStr, &loan.Status, &purpose, &loan.CreatedAt, &metaDataJSON)
	if err != nil {
		return nil, err
	}

	loan.Principal, err = decimal.NewFromString(principalStr)
	if err != nil {
		return nil, err
	}
	loan.AnnualRate, err = decimal.NewFromString(rateStr)
	if err != nil {
		return nil, err
	}
	loan.MonthlyPayment, err = decimal.NewFromString(monthlyStr)
	if err != nil {
		return nil, err
	}
	loan.Purpose = purpose.String

	if metaDataJSON != nil {
		if err := json.Unmarshal(metaDataJSON, &loan.MetaData); err != nil {
			return nil, err
		}
	}

	return loan, nil
}

func (d Datasource) GetLoan(ctx context.Context, id string) (*model.Loan, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+loanQueryFields+`
		FROM loans
		WHERE loan_id = $1
	`, id)

	loan, err := scanLoanColumns(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Loan '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve loan", err)
	}

	return loan, nil
}

func (d Datasource) GetLoansByIdentity(ctx context.Context, identityID string) ([]model.Loan, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+loanQueryFields+`
		FROM loans
		WHERE identity_id = $1
		ORDER BY created_at DESC
	`, identityID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve loans", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectLoans(rows)
}

func (d Datasource) GetLoansByStatus(ctx context.Context, status string, limit, offset int) ([]model.Loan, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+loanQueryFields+`
		FROM loans
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, status, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve loans", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return collectLoans(rows)
}

func collectLoans(rows *sql.Rows) ([]model.Loan, error) {
	var loans []model.Loan
	for rows.Next() {
		loan, err := scanLoanColumns(rows.Scan)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan loan", err)
		}
		loans = append(loans, *loan)
	}
	return loans, rows.Err()
}

func (d Datasource) UpdateLoanStatus(ctx context.Context, id, status string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE loans SET status = $2 WHERE loan_id = $1
	`, id, status)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update loan status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Loan '%s' not found", id), nil)
	}

	return nil
}

// DisburseLoan credits the principal to the linked account, appends the
// disbursement record, and flips the loan to APPROVED in one transaction.
func (d Datasource) DisburseLoan(ctx context.Context, loanID string, record *model.Transaction) error {
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

	if !account.CanCredit() {
		return apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("account '%s' is %s and can not be credited", account.AccountID, account.Status), nil)
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
		UPDATE loans SET status = $2 WHERE loan_id = $1 AND status = $3
	`, loanID, model.LoanApproved, model.LoanPending)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update loan status", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("loan '%s' is not pending approval", loanID), nil)
	}

	if err := tx.Commit(); err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to commit disbursement", err)
	}

	return nil
}
