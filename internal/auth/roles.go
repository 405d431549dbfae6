package auth

import (
	"strings"
)

// Role is the capability a caller holds for the duration of a request
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Allowlist resolves roles from the configured admin email list
type Allowlist struct {
	admins map[string]struct{}
}

// NewAllowlist builds an allowlist; emails are compared case-insensitively
func NewAllowlist(emails []string) *Allowlist {
	admins := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Allowlist{admins: admins}
}

// RoleFor returns the role granted to email
func (a *Allowlist) RoleFor(email string) Role {
	if a == nil {
		return RoleUser
	}
	if _, ok := a.admins[strings.ToLower(strings.TrimSpace(email))]; ok {
		return RoleAdmin
	}
	return RoleUser
}
