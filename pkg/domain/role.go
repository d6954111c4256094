package domain

import "fmt"

// Role identifies the approver capacity a caller acts in. The approval
// sequences are fixed per role; roles are assigned upstream of this service.
type Role string

const (
	RoleDepartment    Role = "department"
	RoleHOD           Role = "hod"
	RolePrincipal     Role = "principal"
	RoleVicePrincipal Role = "vice_principal"
	RoleOffice        Role = "office"
	RoleAdmin         Role = "admin"
)

var validRoles = map[Role]struct{}{
	RoleDepartment:    {},
	RoleHOD:           {},
	RolePrincipal:     {},
	RoleVicePrincipal: {},
	RoleOffice:        {},
	RoleAdmin:         {},
}

// ParseRole validates and returns a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := validRoles[r]; !ok {
		return "", fmt.Errorf("unknown role: %s", s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// Actor is the already-authenticated caller of a workflow transition.
// Department is set for department-scoped roles (department, hod) and used
// for ownership checks.
type Actor struct {
	ID         ActorID
	Role       Role
	Department DepartmentID
}
