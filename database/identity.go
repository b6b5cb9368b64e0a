package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

func (d Datasource) CreateIdentity(identity model.Identity) (model.Identity, error) {
	metaDataJSON, err := json.Marshal(identity.MetaData)
	if err != nil {
		return model.Identity{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}

	identity.IdentityID = model.GenerateUUIDWithSuffix("idt")
	identity.CreatedAt = time.Now()
	if identity.Role == "" {
		identity.Role = model.RoleCustomer
	}
	if identity.ApprovalStatus == "" {
		identity.ApprovalStatus = model.ApprovalPending
	}

	_, err = d.Conn.Exec(`
		INSERT INTO identities (identity_id, first_name, last_name, email_address, phone_number, role, approval_status, created_at, meta_data)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, identity.IdentityID, identity.FirstName, identity.LastName, identity.EmailAddress, identity.PhoneNumber, identity.Role, identity.ApprovalStatus, identity.CreatedAt, metaDataJSON)
	if err != nil {
		return model.Identity{}, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to create identity", err)
	}

	return identity, nil
}

func (d Datasource) GetIdentity(ctx context.Context, id string) (*model.Identity, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT identity_id, first_name, last_name, email_address, phone_number, role, approval_status, created_at, meta_data
		FROM identities
		WHERE identity_id = $1
	`, id)

	return scanIdentity(row, id)
}

func (d Datasource) GetIdentityByEmail(ctx context.Context, email string) (*model.Identity, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT identity_id, first_name, last_name, email_address, phone_number, role, approval_status, created_at, meta_data
		FROM identities
		WHERE email_address = $1
	`, email)

	return scanIdentity(row, email)
}

func scanIdentity(row *sql.Row, key string) (*model.Identity, error) {
	identity := &model.Identity{}
	var metaDataJSON []byte
	err := row.Scan(&identity.IdentityID, &identity.FirstName, &identity.LastName, &identity.EmailAddress,
		&identity.PhoneNumber, &identity.Role, &identity.ApprovalStatus, &identity.CreatedAt, &metaDataJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Identity '%s' not found", key), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve identity", err)
	}

	if metaDataJSON != nil {
		if err := json.Unmarshal(metaDataJSON, &identity.MetaData); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
		}
	}

	return identity, nil
}

func (d Datasource) GetIdentitiesByApproval(ctx context.Context, approvalStatus string, limit, offset int) ([]model.Identity, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT identity_id, first_name, last_name, email_address, phone_number, role, approval_status, created_at, meta_data
		FROM identities
		WHERE approval_status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, approvalStatus, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve identities", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var identities []model.Identity
	for rows.Next() {
		identity := model.Identity{}
		var metaDataJSON []byte
		err := rows.Scan(&identity.IdentityID, &identity.FirstName, &identity.LastName, &identity.EmailAddress,
			&identity.PhoneNumber, &identity.Role, &identity.ApprovalStatus, &identity.CreatedAt, &metaDataJSON)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan identity", err)
		}
		if metaDataJSON != nil {
			if err := json.Unmarshal(metaDataJSON, &identity.MetaData); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal metadata", err)
			}
		}
		identities = append(identities, identity)
	}

	return identities, rows.Err()
}

func (d Datasource) UpdateIdentityApproval(ctx context.Context, id, approvalStatus string) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE identities SET approval_status = $2 WHERE identity_id = $1
	`, id, approvalStatus)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update identity approval", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Identity '%s' not found", id), nil)
	}

	return nil
}
