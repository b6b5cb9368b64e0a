package model

import "time"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"

	ApprovalPending  = "PENDING"
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
)

// Identity is a customer or back-office user. Approval gates everything: a
// PENDING or REJECTED customer cannot move money.
type Identity struct {
	ID             int64                  `json:"-"`
	IdentityID     string                 `json:"identity_id"`
	FirstName      string                 `json:"first_name"`
	LastName       string                 `json:"last_name"`
	EmailAddress   string                 `json:"email_address"`
	PhoneNumber    string                 `json:"phone_number"`
	Role           string                 `json:"role"`
	ApprovalStatus string                 `json:"approval_status"`
	CreatedAt      time.Time              `json:"created_at"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

// CanTransact reports whether this identity may invoke money movement.
func (i *Identity) CanTransact() bool {
	if i.Role == RoleAdmin {
		return true
	}
	return i.Role == RoleCustomer && i.ApprovalStatus == ApprovalApproved
}

// IsAdmin reports whether this identity may use the back office surface.
func (i *Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}
