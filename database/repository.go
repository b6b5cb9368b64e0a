package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborbank/harbor/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	identity
	account
	transaction
	loan
	audit
	reporting
}

// identity defines methods for handling identities.
type identity interface {
	CreateIdentity(identity model.Identity) (model.Identity, error)
	GetIdentity(ctx context.Context, id string) (*model.Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error)
	GetIdentitiesByApproval(ctx context.Context, approvalStatus string, limit, offset int) ([]model.Identity, error)
	UpdateIdentityApproval(ctx context.Context, id, approvalStatus string) error
}

// account defines methods for handling accounts.
type account interface {
	CreateAccount(account model.Account) (model.Account, error)
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountByNumber(ctx context.Context, number string) (*model.Account, error)
	GetAccountsByIdentity(ctx context.Context, identityID string) ([]model.Account, error)
	GetAccountsByStatus(ctx context.Context, status string, limit, offset int) ([]model.Account, error)
	UpdateAccountStatus(ctx context.Context, id, status string) error
	UpdateAccountBalance(ctx context.Context, account *model.Account) error
	ApplyDeposit(ctx context.Context, accountID string, amount decimal.Decimal, record *model.Transaction, pendingID string) error
}

// transaction defines methods for handling transaction records and the
// atomic transfer apply.
type transaction interface {
	RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionByRef(ctx context.Context, reference string) (model.Transaction, error)
	TransactionExistsByRef(ctx context.Context, reference string) (bool, error)
	UpdateTransactionStatus(ctx context.Context, id string, status string) error
	GetTransactionsByAccount(ctx context.Context, accountID string, from, to time.Time, limit, offset int) ([]model.Transaction, error)
	GetTransactionsByStatus(ctx context.Context, txnType, status string, olderThan time.Time) ([]model.Transaction, error)
	ApplyInternalTransfer(ctx context.Context, sourceID, destinationID string, amount decimal.Decimal, outRecord, inRecord *model.Transaction) error
	ApplyExternalPayment(ctx context.Context, sourceID string, amount decimal.Decimal, record *model.Transaction) error
	RefundPayment(ctx context.Context, record *model.Transaction) error
}

// loan defines methods for handling loan applications.
type loan interface {
	CreateLoan(loan model.Loan) (model.Loan, error)
	GetLoan(ctx context.Context, id string) (*model.Loan, error)
	GetLoansByIdentity(ctx context.Context, identityID string) ([]model.Loan, error)
	GetLoansByStatus(ctx context.Context, status string, limit, offset int) ([]model.Loan, error)
	UpdateLoanStatus(ctx context.Context, id, status string) error
	DisburseLoan(ctx context.Context, loanID string, record *model.Transaction) error
}

// audit defines methods for the append-only back-office audit log.
type audit interface {
	RecordAuditEntry(ctx context.Context, entry *model.AuditEntry) (*model.AuditEntry, error)
	GetAuditEntries(ctx context.Context, limit, offset int) ([]model.AuditEntry, error)
}

// reporting defines the aggregation queries behind the admin dashboards.
type reporting interface {
	GetTransactionTotalsByType(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error)
	GetDailyTransactionVolume(ctx context.Context, from, to time.Time) ([]DailyVolume, error)
	GetAccountCountsByStatus(ctx context.Context) (map[string]int64, error)
}

// DailyVolume is one point of the daily transaction volume series.
type DailyVolume struct {
	Day    time.Time       `json:"day"`
	Count  int64           `json:"count"`
	Volume decimal.Decimal `json:"volume"`
}
