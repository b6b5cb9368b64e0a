package harbor

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

// QuoteMonthlyPayment computes the amortized monthly payment without creating
// an application. Used by the quote endpoint.
func (h *Harbor) QuoteMonthlyPayment(principal, annualRate decimal.Decimal, termMonths int) (decimal.Decimal, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInvalidAmount, "principal must be greater than zero", nil)
	}
	if annualRate.IsNegative() {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInvalidAmount, "annual rate can not be negative", nil)
	}
	if termMonths <= 0 {
		return decimal.Zero, apierror.NewAPIError(apierror.ErrInvalidInput, "term must be at least one month", nil)
	}
	return model.MonthlyPayment(principal, annualRate, termMonths), nil
}

// ApplyForLoan files a loan application for an approved identity. The target
// account must belong to the applicant and be able to receive the
// disbursement.
func (h *Harbor) ApplyForLoan(ctx context.Context, loan model.Loan) (model.Loan, error) {
	if _, err := h.QuoteMonthlyPayment(loan.Principal, loan.AnnualRate, loan.TermMonths); err != nil {
		return model.Loan{}, err
	}

	identity, err := h.datasource.GetIdentity(ctx, loan.IdentityID)
	if err != nil {
		return model.Loan{}, err
	}
	if !identity.CanTransact() {
		return model.Loan{}, apierror.NewAPIError(apierror.ErrUnauthorized,
			fmt.Sprintf("identity '%s' is not approved to apply for loans", identity.IdentityID), nil)
	}

	account, err := h.datasource.GetAccount(ctx, loan.AccountID)
	if err != nil {
		return model.Loan{}, err
	}
	if !account.OwnedBy(loan.IdentityID) {
		return model.Loan{}, apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("account '%s' does not belong to the applicant", loan.AccountID), nil)
	}
	if !account.CanCredit() {
		return model.Loan{}, apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("account '%s' is %s and can not receive a disbursement", loan.AccountID, account.Status), nil)
	}

	return h.datasource.CreateLoan(loan)
}

func (h *Harbor) GetLoan(ctx context.Context, id string) (*model.Loan, error) {
	return h.datasource.GetLoan(ctx, id)
}

func (h *Harbor) GetLoansByIdentity(ctx context.Context, identityID string) ([]model.Loan, error) {
	return h.datasource.GetLoansByIdentity(ctx, identityID)
}

func (h *Harbor) GetLoansByStatus(ctx context.Context, status string, limit, offset int) ([]model.Loan, error) {
	if limit <= 0 {
		limit = 50
	}
	return h.datasource.GetLoansByStatus(ctx, status, limit, offset)
}

// ApproveLoan disburses the principal to the linked account and flips the
// application to APPROVED, atomically.
func (h *Harbor) ApproveLoan(ctx context.Context, actorID, loanID string) (*model.Transaction, error) {
	loan, err := h.datasource.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Status != model.LoanPending {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("loan '%s' is %s, not pending approval", loanID, loan.Status), nil)
	}

	record := &model.Transaction{
		TransactionID: model.GenerateUUIDWithSuffix("txn"),
		Reference:     fmt.Sprintf("%s_disbursement", loan.LoanID),
		Type:          model.TypeLoanDisbursement,
		Status:        model.StatusApplied,
		Amount:        loan.Principal,
		ToAccount:     loan.AccountID,
		IdentityID:    loan.IdentityID,
		Description:   fmt.Sprintf("loan disbursement for %s", loan.LoanID),
		CreatedAt:     time.Now(),
	}
	record.Hash = record.HashTxn()

	if err := h.datasource.DisburseLoan(ctx, loanID, record); err != nil {
		return nil, err
	}
	h.recordAudit(ctx, actorID, "loan.approve", loanID, map[string]interface{}{
		"principal": loan.Principal.String(),
		"account":   loan.AccountID,
	})
	return record, nil
}

// RejectLoan refuses a pending application.
func (h *Harbor) RejectLoan(ctx context.Context, actorID, loanID, reason string) error {
	loan, err := h.datasource.GetLoan(ctx, loanID)
	if err != nil {
		return err
	}
	if loan.Status != model.LoanPending {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("loan '%s' is %s, not pending approval", loanID, loan.Status), nil)
	}
	if err := h.datasource.UpdateLoanStatus(ctx, loanID, model.LoanRejected); err != nil {
		return err
	}
	h.recordAudit(ctx, actorID, "loan.reject", loanID, map[string]interface{}{"reason": reason})
	return nil
}
