package models

import "time"

// Follow records a user subscribing to an organization. A follow is active
// while Until is nil; unfollowing sets Until instead of deleting the row.
type Follow struct {
	ID             string     `db:"id"`
	FollowerID     string     `db:"follower_id"`
	OrganizationID string     `db:"organization_id"`
	Since          time.Time  `db:"since"`
	Until          *time.Time `db:"until"`
}

// IsActive reports whether the follow has not been ended.
func (f *Follow) IsActive() bool {
	return f.Until == nil
}
