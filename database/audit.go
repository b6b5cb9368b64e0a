package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

func (d Datasource) RecordAuditEntry(ctx context.Context, entry *model.AuditEntry) (*model.AuditEntry, error) {
	detailsJSON, err := json.Marshal(entry.Details)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal audit details", err)
	}

	entry.AuditID = model.GenerateUUIDWithSuffix("adt")
	entry.CreatedAt = time.Now()

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO audit_logs (audit_id, actor_id, action, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.AuditID, entry.ActorID, entry.Action, entry.TargetID, detailsJSON, entry.CreatedAt)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record audit entry", err)
	}

	return entry, nil
}

func (d Datasource) GetAuditEntries(ctx context.Context, limit, offset int) ([]model.AuditEntry, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT audit_id, actor_id, action, target_id, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve audit entries", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []model.AuditEntry
	for rows.Next() {
		entry := model.AuditEntry{}
		var detailsJSON []byte
		var targetID sql.NullString
		err := rows.Scan(&entry.AuditID, &entry.ActorID, &entry.Action, &targetID, &detailsJSON, &entry.CreatedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan audit entry", err)
		}
		entry.TargetID = targetID.String
		if detailsJSON != nil {
			if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
				return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal audit details", err)
			}
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
