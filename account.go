package harbor

import (
	"context"
	"fmt"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

// CreateAccount opens an account request for an approved identity. The
// account starts PENDING and needs back-office approval before it can hold
// money.
func (h *Harbor) CreateAccount(ctx context.Context, account model.Account) (model.Account, error) {
	identity, err := h.datasource.GetIdentity(ctx, account.IdentityID)
	if err != nil {
		return model.Account{}, err
	}
	if identity.ApprovalStatus != model.ApprovalApproved {
		return model.Account{}, apierror.NewAPIError(apierror.ErrAccountNotEligible,
			fmt.Sprintf("identity '%s' is not approved", identity.IdentityID), nil)
	}
	if account.Name == "" {
		return model.Account{}, apierror.NewAPIError(apierror.ErrInvalidInput, "account name is required", nil)
	}
	return h.datasource.CreateAccount(account)
}

func (h *Harbor) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return h.datasource.GetAccount(ctx, id)
}

func (h *Harbor) GetAccountByNumber(ctx context.Context, number string) (*model.Account, error) {
	return h.datasource.GetAccountByNumber(ctx, number)
}

func (h *Harbor) GetAccountsByIdentity(ctx context.Context, identityID string) ([]model.Account, error) {
	return h.datasource.GetAccountsByIdentity(ctx, identityID)
}

// GetOwnedAccount fetches an account and enforces that the caller owns it.
// Admins may read any account.
func (h *Harbor) GetOwnedAccount(ctx context.Context, identityID, accountID string) (*model.Account, error) {
	account, err := h.datasource.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.OwnedBy(identityID) {
		return account, nil
	}
	identity, err := h.datasource.GetIdentity(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() {
		return nil, apierror.NewAPIError(apierror.ErrUnauthorized,
			fmt.Sprintf("account '%s' does not belong to the caller", accountID), nil)
	}
	return account, nil
}

// ApproveAccount activates a pending account. Admin action.
func (h *Harbor) ApproveAccount(ctx context.Context, actorID, accountID string) error {
	account, err := h.datasource.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status != model.AccountPending {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("account '%s' is %s, not pending approval", accountID, account.Status), nil)
	}
	if err := h.datasource.UpdateAccountStatus(ctx, accountID, model.AccountActive); err != nil {
		return err
	}
	h.recordAudit(ctx, actorID, "account.approve", accountID, nil)
	return nil
}

// FreezeAccount stops all debits from an account. Credits still land.
func (h *Harbor) FreezeAccount(ctx context.Context, actorID, accountID, reason string) error {
	account, err := h.datasource.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status != model.AccountActive {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("account '%s' is %s and can not be frozen", accountID, account.Status), nil)
	}
	if err := h.datasource.UpdateAccountStatus(ctx, accountID, model.AccountFrozen); err != nil {
		return err
	}
	h.recordAudit(ctx, actorID, "account.freeze", accountID, map[string]interface{}{"reason": reason})
	return nil
}

func (h *Harbor) UnfreezeAccount(ctx context.Context, actorID, accountID string) error {
	account, err := h.datasource.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status != model.AccountFrozen {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("account '%s' is %s, not frozen", accountID, account.Status), nil)
	}
	if err := h.datasource.UpdateAccountStatus(ctx, accountID, model.AccountActive); err != nil {
		return err
	}
	h.recordAudit(ctx, actorID, "account.unfreeze", accountID, nil)
	return nil
}

// CloseAccount closes an account. Only empty accounts can close.
func (h *Harbor) CloseAccount(ctx context.Context, actorID, accountID string) error {
	account, err := h.datasource.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if account.Status == model.AccountClosed {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("account '%s' is already closed", accountID), nil)
	}
	if !account.Balance.IsZero() {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("account '%s' still holds funds and can not be closed", accountID), nil)
	}
	if err := h.datasource.UpdateAccountStatus(ctx, accountID, model.AccountClosed); err != nil {
		return err
	}
	h.recordAudit(ctx, actorID, "account.close", accountID, nil)
	return nil
}

func (h *Harbor) GetAccountsByStatus(ctx context.Context, status string, limit, offset int) ([]model.Account, error) {
	if limit <= 0 {
		limit = 50
	}
	return h.datasource.GetAccountsByStatus(ctx, status, limit, offset)
}
