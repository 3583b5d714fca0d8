package library

import "strings"

// Role is the two-valued front-end role.
type Role string

const (
	RoleLibrarian Role = "librarian"
	RoleUser      Role = "user"
)

// Identity-service role spellings sent on registration.
const (
	backendRoleAdmin = "ADMIN"
	backendRoleUser  = "USER"
)

// roleTable lists every role spelling the identity service has issued over
// time. Lookups are case-insensitive; anything absent maps to RoleUser.
var roleTable = map[string]Role{
	"ADMIN":          RoleLibrarian,
	"ROLE_ADMIN":     RoleLibrarian,
	"LIBRARIAN":      RoleLibrarian,
	"ROLE_LIBRARIAN": RoleLibrarian,
	"USER":           RoleUser,
	"ROLE_USER":      RoleUser,
}

// MapRole maps a raw role claim onto a Role. Unknown or empty values are
// RoleUser.
func MapRole(raw string) Role {
	if r, ok := roleTable[strings.ToUpper(strings.TrimSpace(raw))]; ok {
		return r
	}
	return RoleUser
}

// knownRole reports whether raw appears in roleTable.
func knownRole(raw string) bool {
	_, ok := roleTable[strings.ToUpper(strings.TrimSpace(raw))]
	return ok
}

// backendRole is the spelling the identity service expects at registration.
func (r Role) backendRole() string {
	if r == RoleLibrarian {
		return backendRoleAdmin
	}
	return backendRoleUser
}

// ParseRole accepts the front-end spellings used on the command line.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "librarian", "admin":
		return RoleLibrarian, true
	case "user", "member", "":
		return RoleUser, true
	}
	return "", false
}
