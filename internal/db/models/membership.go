package models

import "time"

// Membership request statuses
const (
	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
	RequestStatusRefused  = "refused"
)

// Member roles
const (
	RoleAdmin  = "admin"
	RoleEditor = "editor"
)

// MembershipRequest is a user's application to join an organization.
// Requests are never deleted; handling one only changes its status.
type MembershipRequest struct {
	ID             string
	UserID         string
	Status         string
	Comment        string
	RefusalComment string
	HandledBy      *string
	HandledOn      *time.Time
	CreatedAt      time.Time
}

// IsPending reports whether the request still awaits a decision.
func (r *MembershipRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// Accept marks the request accepted by handledBy.
func (r *MembershipRequest) Accept(handledBy string, at time.Time) error {
	if !r.IsPending() {
		return ErrNotPending
	}
	r.Status = RequestStatusAccepted
	r.HandledBy = &handledBy
	r.HandledOn = &at
	return nil
}

// Refuse marks the request refused by handledBy with the given reason.
func (r *MembershipRequest) Refuse(handledBy, comment string, at time.Time) error {
	if !r.IsPending() {
		return ErrNotPending
	}
	r.Status = RequestStatusRefused
	r.RefusalComment = comment
	r.HandledBy = &handledBy
	r.HandledOn = &at
	return nil
}

// Member is a user attached to an organization with a role.
type Member struct {
	UserID string
	Role   string
	Since  time.Time
}
