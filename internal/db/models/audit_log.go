package models

import "time"

// AuditLog records a write performed through the API.
type AuditLog struct {
	ID           string
	UserID       *string // nil for anonymous actions
	Action       string  // e.g. "POST /api/1/organizations/:org/membership/"
	ResourceType *string // "organization", "membership_request", "follow"
	ResourceID   *string
	Metadata     map[string]interface{}
	IPAddress    *string
	CreatedAt    time.Time
}
