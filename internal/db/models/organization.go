// Package models defines the domain types persisted by the repositories layer.
// Serialization to HTTP responses is done by explicit view types in the api
// packages, so these structs carry no JSON tags.
package models

import (
	"errors"
	"time"
)

var (
	// ErrNotPending is returned when a handled membership request is accepted or refused again.
	ErrNotPending = errors.New("membership request is not pending")
	// ErrAlreadyMember is returned when a member of an organization asks to join it.
	ErrAlreadyMember = errors.New("user is already a member of this organization")
)

// Metric keys stored in Organization.Metrics
const (
	MetricMembers   = "members"
	MetricFollowers = "followers"
)

// Organization is a group of users publishing data together. Requests and
// Members are loaded with the organization and persisted with it by a single
// repository Save call.
type Organization struct {
	ID           string
	Name         string
	Slug         string // URL-safe, unique; derived from Name on creation
	Description  string
	Metrics      map[string]int
	CreatedAt    time.Time
	LastModified time.Time
	Deleted      *time.Time // soft-delete marker

	Requests []*MembershipRequest
	Members  []*Member
}

// IsDeleted reports whether the organization was soft-deleted.
func (o *Organization) IsDeleted() bool {
	return o.Deleted != nil
}

// PendingRequest returns the pending membership request of userID, or nil.
func (o *Organization) PendingRequest(userID string) *MembershipRequest {
	for _, r := range o.Requests {
		if r.UserID == userID && r.Status == RequestStatusPending {
			return r
		}
	}
	return nil
}

// RequestByID returns the request with the given id among the organization's
// own requests, or nil.
func (o *Organization) RequestByID(id string) *MembershipRequest {
	for _, r := range o.Requests {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Member returns the membership of userID, or nil.
func (o *Organization) Member(userID string) *Member {
	for _, m := range o.Members {
		if m.UserID == userID {
			return m
		}
	}
	return nil
}

// IsMember reports whether userID belongs to the organization with any role.
func (o *Organization) IsMember(userID string) bool {
	return o.Member(userID) != nil
}

// IsAdmin reports whether userID is an admin of the organization.
func (o *Organization) IsAdmin(userID string) bool {
	m := o.Member(userID)
	return m != nil && m.Role == RoleAdmin
}

// AddMember appends a member with the given role. An existing membership is
// returned unchanged.
func (o *Organization) AddMember(userID, role string, since time.Time) *Member {
	if m := o.Member(userID); m != nil {
		return m
	}
	m := &Member{UserID: userID, Role: role, Since: since}
	o.Members = append(o.Members, m)
	return m
}

// Metric returns a metric value, zero when unset.
func (o *Organization) Metric(key string) int {
	if o.Metrics == nil {
		return 0
	}
	return o.Metrics[key]
}

// SetMetric sets a metric value, allocating the map when needed.
func (o *Organization) SetMetric(key string, value int) {
	if o.Metrics == nil {
		o.Metrics = make(map[string]int)
	}
	o.Metrics[key] = value
}
