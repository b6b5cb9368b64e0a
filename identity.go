package harbor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

// CreateIdentity registers a new customer. Registration always lands PENDING;
// an admin decides whether the customer may transact.
func (h *Harbor) CreateIdentity(ctx context.Context, identity model.Identity) (model.Identity, error) {
	if identity.FirstName == "" || identity.LastName == "" {
		return model.Identity{}, apierror.NewAPIError(apierror.ErrInvalidInput, "first and last name are required", nil)
	}
	if identity.EmailAddress == "" {
		return model.Identity{}, apierror.NewAPIError(apierror.ErrInvalidInput, "email address is required", nil)
	}
	identity.Role = model.RoleCustomer
	identity.ApprovalStatus = model.ApprovalPending
	return h.datasource.CreateIdentity(identity)
}

func (h *Harbor) GetIdentity(ctx context.Context, id string) (*model.Identity, error) {
	return h.datasource.GetIdentity(ctx, id)
}

func (h *Harbor) GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error) {
	return h.datasource.GetIdentityByEmail(ctx, email)
}

func (h *Harbor) GetIdentitiesByApproval(ctx context.Context, approvalStatus string, limit, offset int) ([]model.Identity, error) {
	if limit <= 0 {
		limit = 50
	}
	return h.datasource.GetIdentitiesByApproval(ctx, approvalStatus, limit, offset)
}

// ApproveIdentity flips a pending registration to APPROVED and expires any
// cached session so the gate sees the new status immediately.
func (h *Harbor) ApproveIdentity(ctx context.Context, actorID, identityID string) error {
	return h.decideIdentity(ctx, actorID, identityID, model.ApprovalApproved, "identity.approve")
}

// RejectIdentity flips a pending registration to REJECTED.
func (h *Harbor) RejectIdentity(ctx context.Context, actorID, identityID string) error {
	return h.decideIdentity(ctx, actorID, identityID, model.ApprovalRejected, "identity.reject")
}

func (h *Harbor) decideIdentity(ctx context.Context, actorID, identityID, decision, action string) error {
	identity, err := h.datasource.GetIdentity(ctx, identityID)
	if err != nil {
		return err
	}
	if identity.ApprovalStatus != model.ApprovalPending {
		return apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("identity '%s' is %s, not pending review", identityID, identity.ApprovalStatus), nil)
	}
	if err := h.datasource.UpdateIdentityApproval(ctx, identityID, decision); err != nil {
		return err
	}
	if err := h.ExpireSession(ctx, identityID); err != nil {
		// The TTL will catch up with a stale snapshot eventually; still worth
		// the log line.
		logrus.Errorf("failed to expire session for %s: %v", identityID, err)
	}
	h.recordAudit(ctx, actorID, action, identityID, nil)
	return nil
}
