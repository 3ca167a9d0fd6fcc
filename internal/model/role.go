package model

import "fmt"

// Role is the closed set of account roles.
type Role string

// Roles.
const (
	RoleUser      Role = "user"
	RoleLibrarian Role = "librarian"
	RoleAdmin     Role = "admin"
)

// ParseRole converts a string into a Role. Matching is exact.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleUser, RoleLibrarian, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Capability names an action guarded by role.
type Capability int

// Capabilities.
const (
	CapRequestBorrow Capability = iota
	CapManageCirculation
	CapManageCatalog
	CapViewReports
	CapManageUsers
)

func (c Capability) String() string {
	switch c {
	case CapRequestBorrow:
		return "request_borrow"
	case CapManageCirculation:
		return "manage_circulation"
	case CapManageCatalog:
		return "manage_catalog"
	case CapViewReports:
		return "view_reports"
	case CapManageUsers:
		return "manage_users"
	default:
		return fmt.Sprintf("capability(%d)", int(c))
	}
}

// Can reports whether the role holds the capability. Unknown roles and
// unknown capabilities are denied.
func (r Role) Can(c Capability) bool {
	switch r {
	case RoleUser:
		switch c {
		case CapRequestBorrow:
			return true
		case CapManageCirculation, CapManageCatalog, CapViewReports, CapManageUsers:
			return false
		}
	case RoleLibrarian:
		switch c {
		case CapRequestBorrow, CapManageCirculation, CapManageCatalog, CapViewReports:
			return true
		case CapManageUsers:
			return false
		}
	case RoleAdmin:
		switch c {
		case CapRequestBorrow, CapManageCirculation, CapManageCatalog, CapViewReports, CapManageUsers:
			return true
		}
	}
	return false
}
