package model

import "time"

// AuditEntry records one back-office action. Append-only; never updated or
// deleted.
type AuditEntry struct {
	ID        int64                  `json:"-"`
	AuditID   string                 `json:"audit_id"`
	ActorID   string                 `json:"actor_id"`
	Action    string                 `json:"action"`
	TargetID  string                 `json:"target_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
