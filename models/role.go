package models

import "strings"

// RoleName is the persisted name of a role.
type RoleName string

const (
	RoleUser   RoleName = "ROLE_USER"
	RoleAuthor RoleName = "ROLE_AUTHOR"
	RoleAdmin  RoleName = "ROLE_ADMIN"
)

// AllRoleNames lists the reference roles seeded at startup.
func AllRoleNames() []RoleName {
	return []RoleName{RoleUser, RoleAuthor, RoleAdmin}
}

// Role is immutable reference data.
type Role struct {
	ID   uint     `gorm:"primaryKey" json:"id"`
	Name RoleName `gorm:"size:20;uniqueIndex;not null" json:"name"`
}

// MapRoleName maps a requested role ("admin", "Author", ...) onto a role name.
// Anything unrecognised falls back to ROLE_USER.
func MapRoleName(requested string) RoleName {
	switch strings.ToLower(strings.TrimSpace(requested)) {
	case "admin":
		return RoleAdmin
	case "author":
		return RoleAuthor
	default:
		return RoleUser
	}
}

// MapRoleNames maps a requested role list to a de-duplicated set of role
// names. An empty request yields ROLE_USER.
func MapRoleNames(requested []string) []RoleName {
	if len(requested) == 0 {
		return []RoleName{RoleUser}
	}
	seen := make(map[RoleName]struct{}, len(requested))
	names := make([]RoleName, 0, len(requested))
	for _, r := range requested {
		name := MapRoleName(r)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}
