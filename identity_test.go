package harbor

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"

	"github.com/harborbank/harbor/cache"
	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

func TestCreateIdentityRequiresNamesAndEmail(t *testing.T) {
	h, _ := newTestHarbor(t)

	_, err := h.CreateIdentity(context.Background(), model.Identity{FirstName: "Jordan"})
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))

	_, err = h.CreateIdentity(context.Background(), model.Identity{FirstName: "Jordan", LastName: "Rivers"})
	assert.True(t, apierror.Is(err, apierror.ErrInvalidInput))
}

func TestCreateIdentityAlwaysLandsPending(t *testing.T) {
	h, mock := newTestHarbor(t)

	mock.ExpectExec(`INSERT INTO identities`).WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := h.CreateIdentity(context.Background(), model.Identity{
		FirstName:    gofakeit.FirstName(),
		LastName:     gofakeit.LastName(),
		EmailAddress: gofakeit.Email(),
		// Whatever the caller claims, registration starts as a customer in review.
		Role:           model.RoleAdmin,
		ApprovalStatus: model.ApprovalApproved,
	})

	assert.NoError(t, err)
	assert.Contains(t, created.IdentityID, "idt_")
	assert.Equal(t, model.RoleCustomer, created.Role)
	assert.Equal(t, model.ApprovalPending, created.ApprovalStatus)
}

func TestApproveIdentityExpiresCachedSession(t *testing.T) {
	h, mock := newTestHarbor(t)
	ctx := context.Background()

	_, err := h.Sessions().Put(ctx, &model.Identity{
		IdentityID:     "idt_1",
		Role:           model.RoleCustomer,
		ApprovalStatus: model.ApprovalPending,
	})
	assert.NoError(t, err)

	mock.ExpectQuery(`FROM identities`).
		WillReturnRows(identityRows("idt_1", model.RoleCustomer, model.ApprovalPending))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE identities SET approval_status = $2 WHERE identity_id = $1`)).
		WithArgs("idt_1", model.ApprovalApproved).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO audit_logs`).WillReturnResult(sqlmock.NewResult(1, 1))

	err = h.ApproveIdentity(ctx, "idt_admin", "idt_1")
	assert.NoError(t, err)

	_, err = h.Sessions().Get(ctx, "idt_1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRejectIdentityOnlyWorksOnPending(t *testing.T) {
	h, mock := newTestHarbor(t)

	mock.ExpectQuery(`FROM identities`).
		WillReturnRows(identityRows("idt_1", model.RoleCustomer, model.ApprovalApproved))

	err := h.RejectIdentity(context.Background(), "idt_admin", "idt_1")
	assert.True(t, apierror.Is(err, apierror.ErrConflict))
}
