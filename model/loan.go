package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	LoanPending  = "PENDING"
	LoanApproved = "APPROVED"
	LoanRejected = "REJECTED"
	LoanClosed   = "CLOSED"
)

// Loan is a customer loan application. Approval disburses the principal to
// the target account.
type Loan struct {
	ID             int64                  `json:"-"`
	LoanID         string                 `json:"loan_id"`
	IdentityID     string                 `json:"identity_id"`
	AccountID      string                 `json:"account_id"`
	Principal      decimal.Decimal        `json:"principal"`
	AnnualRate     decimal.Decimal        `json:"annual_rate"`
	TermMonths     int                    `json:"term_months"`
	MonthlyPayment decimal.Decimal        `json:"monthly_payment"`
	Status         string                 `json:"status"`
	Purpose        string                 `json:"purpose,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

// MonthlyPayment computes the amortized monthly payment for a principal at an
// annual percentage rate over a term in months:
//
//	M = P * r * (1+r)^n / ((1+r)^n - 1), r = rate/12/100
//
// A zero rate degrades to principal/n. Result is rounded to 2 places.
func MonthlyPayment(principal, annualRate decimal.Decimal, termMonths int) decimal.Decimal {
	if termMonths <= 0 {
		return decimal.Zero
	}
	n := decimal.NewFromInt(int64(termMonths))
	if annualRate.IsZero() {
		return principal.Div(n).Round(2)
	}

	r := annualRate.Div(decimal.NewFromInt(12)).Div(decimal.NewFromInt(100))
	growth := decimal.NewFromInt(1).Add(r).Pow(n)
	payment := principal.Mul(r).Mul(growth).Div(growth.Sub(decimal.NewFromInt(1)))
	return payment.Round(2)
}
