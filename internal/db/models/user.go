package models

import (
	"strings"
	"time"
)

// User is an account of the portal.
type User struct {
	ID         string
	Email      string
	FirstName  string
	LastName   string
	IsSysAdmin bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// FullName joins first and last name, falling back to the email address.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// CanAdminister reports whether the user may manage org, either as a sysadmin
// or as one of its admins.
func (u *User) CanAdminister(org *Organization) bool {
	if u == nil || org == nil {
		return false
	}
	return u.IsSysAdmin || org.IsAdmin(u.ID)
}
