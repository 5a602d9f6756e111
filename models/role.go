package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Role is one of the fixed application roles a user can be granted.
type Role int

const (
	RoleUndefined     Role = 0
	RoleAdministrator Role = 1
	RoleProvider      Role = 2
	RolePatient       Role = 3
)

var roleNames = map[Role]string{
	RoleAdministrator: "administrator",
	RoleProvider:      "provider",
	RolePatient:       "patient",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

func (r Role) IsValid() bool {
	_, ok := roleNames[r]
	return ok
}

// ParseRole matches a role name case-insensitively.
func ParseRole(name string) (Role, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for role, roleName := range roleNames {
		if roleName == name {
			return role, true
		}
	}
	return RoleUndefined, false
}

// RoleFromReferer extracts the application segment of a referring URL.
//
// The dashboards are served as {origin}/{role}/..., so the first path
// segment names the role the user is acting under. The raw segment is
// returned together with the parsed role so callers can decide what to do
// with segments that are not roles.
func RoleFromReferer(referer string) (string, Role, error) {
	if referer == "" {
		return "", RoleUndefined, fmt.Errorf("models: referer is missing")
	}
	u, err := url.Parse(referer)
	if err != nil {
		return "", RoleUndefined, fmt.Errorf("models: referer is invalid: %w", err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", RoleUndefined, nil
	}
	role, _ := ParseRole(segments[0])
	return segments[0], role, nil
}
