package harbor

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/harborbank/harbor/model"
)

// recordAudit appends an audit entry for an admin action. Audit failures are
// logged, not propagated; the action itself has already happened.
func (h *Harbor) recordAudit(ctx context.Context, actorID, action, targetID string, details map[string]interface{}) {
	_, err := h.datasource.RecordAuditEntry(ctx, &model.AuditEntry{
		ActorID:  actorID,
		Action:   action,
		TargetID: targetID,
		Details:  details,
	})
	if err != nil {
		logrus.Errorf("failed to record audit entry for %s on %s: %v", action, targetID, err)
	}
}

// GetAuditEntries returns the back-office audit log, newest first.
func (h *Harbor) GetAuditEntries(ctx context.Context, limit, offset int) ([]model.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return h.datasource.GetAuditEntries(ctx, limit, offset)
}
