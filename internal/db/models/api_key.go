package models

import "time"

// APIKey is a per-user credential accepted in place of a bearer token.
type APIKey struct {
	ID         string
	UserID     string
	Name       string     // friendly name, e.g. "harvester"
	KeyHash    string     // bcrypt hash of the full key
	KeyPrefix  string     // leading characters used for lookup and display
	ExpiresAt  *time.Time // nil means the key never expires
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

// IsExpired reports whether the key has an expiry in the past.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && now.After(*k.ExpiresAt)
}
