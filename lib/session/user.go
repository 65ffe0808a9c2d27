// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import "strings"

// Role is the authorization level of a User.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStandard Role = "standard"
)

// ParseRole maps the server's role string to a Role. Anything other
// than "admin" (case-insensitive) is RoleStandard.
func ParseRole(raw string) Role {
	if strings.EqualFold(strings.TrimSpace(raw), string(RoleAdmin)) {
		return RoleAdmin
	}
	return RoleStandard
}

// User is the profile of the signed-in user, derived from the access
// token by a profile fetch. Never persisted.
type User struct {
	ID      int64
	Name    string
	Surname string
	Email   string
	Role    Role
}

// IsAdmin reports whether the user may review received requests.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// DisplayName joins name and surname, falling back to the email.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.Name + " " + u.Surname)
	if name == "" {
		return u.Email
	}
	return name
}
