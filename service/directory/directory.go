// Package directory defines the read-only organizational directory queried
// during approver resolution, with an in-memory implementation seeded from
// YAML and a caching decorator.
package directory

import "context"

// User is a directory person.
type User struct {
	ID           string   `json:"id" yaml:"id"`
	Name         string   `json:"name,omitempty" yaml:"name,omitempty"`
	DepartmentID string   `json:"departmentId,omitempty" yaml:"departmentId,omitempty"`
	ManagerID    string   `json:"managerId,omitempty" yaml:"managerId,omitempty"`
	Roles        []string `json:"roles,omitempty" yaml:"roles,omitempty"`
	Active       bool     `json:"active" yaml:"active"`
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool {
	for _, candidate := range u.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

// Department is an organizational unit.
type Department struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	ParentID string `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	HeadID   string `json:"headId,omitempty" yaml:"headId,omitempty"`
}

// Directory answers organizational queries. Lookups of unknown ids return
// an errs.NotFoundError; Manager and DepartmentHead return a nil user when
// the position is vacant.
type Directory interface {
	User(ctx context.Context, id string) (*User, error)
	Department(ctx context.Context, id string) (*Department, error)
	Manager(ctx context.Context, userID string) (*User, error)
	DepartmentHead(ctx context.Context, departmentID string) (*User, error)
	RoleMembers(ctx context.Context, role string) ([]*User, error)
}

// Ancestry returns departmentID followed by its ancestors, nearest first.
func Ancestry(ctx context.Context, dir Directory, departmentID string) ([]string, error) {
	var ret []string
	seen := map[string]bool{}
	for id := departmentID; id != "" && !seen[id]; {
		seen[id] = true
		ret = append(ret, id)
		dept, err := dir.Department(ctx, id)
		if err != nil {
			return ret, err
		}
		id = dept.ParentID
	}
	return ret, nil
}
