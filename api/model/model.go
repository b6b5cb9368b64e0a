package model

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"

	"github.com/harborbank/harbor/model"
)

type CreateIdentity struct {
	FirstName    string                 `json:"first_name"`
	LastName     string                 `json:"last_name"`
	EmailAddress string                 `json:"email_address"`
	PhoneNumber  string                 `json:"phone_number"`
	MetaData     map[string]interface{} `json:"meta_data"`
}

func (i *CreateIdentity) ValidateCreateIdentity() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.FirstName, validation.Required),
		validation.Field(&i.LastName, validation.Required),
		validation.Field(&i.EmailAddress, validation.Required, is.EmailFormat),
	)
}

func (i *CreateIdentity) ToIdentity() model.Identity {
	return model.Identity{
		FirstName:    i.FirstName,
		LastName:     i.LastName,
		EmailAddress: i.EmailAddress,
		PhoneNumber:  i.PhoneNumber,
		MetaData:     i.MetaData,
	}
}

type CreateAccount struct {
	Name     string                 `json:"name"`
	Currency string                 `json:"currency"`
	MetaData map[string]interface{} `json:"meta_data"`
}

func (a *CreateAccount) ValidateCreateAccount() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.Name, validation.Required),
		validation.Field(&a.Currency, validation.Length(3, 3)),
	)
}

func (a *CreateAccount) ToAccount(identityID string) model.Account {
	return model.Account{
		IdentityID: identityID,
		Name:       a.Name,
		Currency:   a.Currency,
		MetaData:   a.MetaData,
	}
}

func positiveAmount(value interface{}) error {
	amount, ok := value.(decimal.Decimal)
	if !ok {
		return errors.New("must be a decimal amount")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return errors.New("must be greater than zero")
	}
	return nil
}

type RecordTransfer struct {
	Reference              string          `json:"reference"`
	FromAccountID          string          `json:"from_account_id"`
	Type                   string          `json:"type"`
	RecipientAccountNumber string          `json:"recipient_account_number"`
	RecipientName          string          `json:"recipient_name"`
	Amount                 decimal.Decimal `json:"amount"`
	Description            string          `json:"description"`
}

func (t *RecordTransfer) ValidateRecordTransfer() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.Reference, validation.Required),
		validation.Field(&t.FromAccountID, validation.Required),
		validation.Field(&t.Type, validation.Required, validation.In(model.TransferInternal, model.TransferExternal)),
		validation.Field(&t.RecipientAccountNumber, validation.Required),
		validation.Field(&t.RecipientName, validation.Required.When(t.Type == model.TransferExternal)),
		validation.Field(&t.Amount, validation.By(positiveAmount)),
	)
}

func (t *RecordTransfer) ToTransfer(identityID string) *model.Transfer {
	return &model.Transfer{
		Reference:              t.Reference,
		FromAccountID:          t.FromAccountID,
		Type:                   t.Type,
		RecipientAccountNumber: t.RecipientAccountNumber,
		RecipientName:          t.RecipientName,
		Amount:                 t.Amount,
		Description:            t.Description,
		IdentityID:             identityID,
	}
}

type RequestDeposit struct {
	AccountID   string          `json:"account_id"`
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

func (d *RequestDeposit) ValidateRequestDeposit() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.AccountID, validation.Required),
		validation.Field(&d.Reference, validation.Required),
		validation.Field(&d.Amount, validation.By(positiveAmount)),
	)
}

type ApplyLoan struct {
	AccountID  string          `json:"account_id"`
	Principal  decimal.Decimal `json:"principal"`
	AnnualRate decimal.Decimal `json:"annual_rate"`
	TermMonths int             `json:"term_months"`
	Purpose    string          `json:"purpose"`
}

func (l *ApplyLoan) ValidateApplyLoan() error {
	return validation.ValidateStruct(l,
		validation.Field(&l.AccountID, validation.Required),
		validation.Field(&l.Principal, validation.By(positiveAmount)),
		validation.Field(&l.TermMonths, validation.Required, validation.Min(1)),
	)
}

func (l *ApplyLoan) ToLoan(identityID string) model.Loan {
	return model.Loan{
		IdentityID: identityID,
		AccountID:  l.AccountID,
		Principal:  l.Principal,
		AnnualRate: l.AnnualRate,
		TermMonths: l.TermMonths,
		Purpose:    l.Purpose,
	}
}

type QuoteLoan struct {
	Principal  decimal.Decimal `json:"principal"`
	AnnualRate decimal.Decimal `json:"annual_rate"`
	TermMonths int             `json:"term_months"`
}

func (q *QuoteLoan) ValidateQuoteLoan() error {
	return validation.ValidateStruct(q,
		validation.Field(&q.Principal, validation.By(positiveAmount)),
		validation.Field(&q.TermMonths, validation.Required, validation.Min(1)),
	)
}

// Decision carries the optional reason for an admin reject/freeze action.
type Decision struct {
	Reason string `json:"reason"`
}
