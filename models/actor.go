package models

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Actor is the identity supplied by the identity provider for the current request.
// The zero value is an anonymous actor.
type Actor struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"displayName,omitempty"`
	Email       string   `json:"email,omitempty"`
	AvatarURL   string   `json:"avatarUrl,omitempty"`
	Roles       []string `json:"roles,omitempty"`
}

func (a Actor) Authenticated() bool {
	return a.ID != ""
}

// Name is the reporter name stored on new issues.
func (a Actor) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	if local, _, ok := strings.Cut(a.Email, "@"); ok && local != "" {
		return local
	}
	return "Anonymous"
}

// Policy decides whether an actor may triage issues.
type Policy interface {
	IsPrivileged(actor Actor) bool
}

// RolePolicy grants privileges from role claims.
type RolePolicy struct {
	roles mapset.Set[string]
}

func NewRolePolicy(roles ...string) RolePolicy {
	return RolePolicy{roles: mapset.NewSet(roles...)}
}

func (p RolePolicy) IsPrivileged(actor Actor) bool {
	if !actor.Authenticated() || p.roles == nil {
		return false
	}
	for _, role := range actor.Roles {
		if p.roles.Contains(role) {
			return true
		}
	}
	return false
}
