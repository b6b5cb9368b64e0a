package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/harborbank/harbor/model"
)

func TestValidateCreateIdentityChecksEmailSyntaxOnly(t *testing.T) {
	// The rule must not resolve the domain: a well-formed address on a
	// non-existent domain still passes.
	identity := &CreateIdentity{
		FirstName:    "Jordan",
		LastName:     "Rivers",
		EmailAddress: "jordan.rivers@no-such-domain.invalid",
	}
	assert.NoError(t, identity.ValidateCreateIdentity())

	identity.EmailAddress = "not-an-email"
	assert.Error(t, identity.ValidateCreateIdentity())

	identity.EmailAddress = ""
	assert.Error(t, identity.ValidateCreateIdentity())
}

func TestValidateRecordTransferAmount(t *testing.T) {
	transfer := &RecordTransfer{
		Reference:              "ref_1",
		FromAccountID:          "acc_1",
		Type:                   model.TransferInternal,
		RecipientAccountNumber: "2000000002",
		Amount:                 decimal.NewFromInt(25),
	}
	assert.NoError(t, transfer.ValidateRecordTransfer())

	transfer.Amount = decimal.Zero
	assert.Error(t, transfer.ValidateRecordTransfer())

	transfer.Amount = decimal.NewFromInt(-5)
	assert.Error(t, transfer.ValidateRecordTransfer())
}

func TestValidateRequestDepositAmount(t *testing.T) {
	deposit := &RequestDeposit{
		AccountID: "acc_1",
		Reference: "dep_ref_1",
		Amount:    decimal.NewFromFloat(0.01),
	}
	assert.NoError(t, deposit.ValidateRequestDeposit())

	deposit.Amount = decimal.NewFromInt(-1)
	assert.Error(t, deposit.ValidateRequestDeposit())
}
