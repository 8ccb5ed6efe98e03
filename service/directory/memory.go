package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/internal/yml"
)

// Seed is the YAML/JSON document loaded into a Memory directory.
type Seed struct {
	Users       []*User       `json:"users" yaml:"users"`
	Departments []*Department `json:"departments" yaml:"departments"`
}

// Memory is a mutable in-memory directory.
type Memory struct {
	mu          sync.RWMutex
	users       map[string]*User
	departments map[string]*Department
	order       []string
}

// NewMemory creates a directory from a seed.
func NewMemory(seed *Seed) *Memory {
	ret := &Memory{users: map[string]*User{}, departments: map[string]*Department{}}
	if seed != nil {
		for _, user := range seed.Users {
			ret.PutUser(user)
		}
		for _, dept := range seed.Departments {
			ret.PutDepartment(dept)
		}
	}
	return ret
}

// Load reads a seed document through afs.
func Load(ctx context.Context, fs afs.Service, URL string) (*Memory, error) {
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download directory %s: %w", URL, err)
	}
	seed := &Seed{}
	if err = yml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("failed to parse directory %s: %w", URL, err)
	}
	return NewMemory(seed), nil
}

// PutUser inserts or replaces a user.
func (m *Memory) PutUser(user *User) {
	clone := *user
	clone.Roles = append([]string(nil), user.Roles...)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		m.order = append(m.order, user.ID)
	}
	m.users[user.ID] = &clone
}

// PutDepartment inserts or replaces a department.
func (m *Memory) PutDepartment(dept *Department) {
	clone := *dept
	m.mu.Lock()
	defer m.mu.Unlock()
	m.departments[dept.ID] = &clone
}

// SetManager reassigns a user's manager.
func (m *Memory) SetManager(userID, managerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return errs.NotFound("user", userID)
	}
	user.ManagerID = managerID
	return nil
}

// SetActive toggles a user's active flag.
func (m *Memory) SetActive(userID string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return errs.NotFound("user", userID)
	}
	user.Active = active
	return nil
}

func (m *Memory) User(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, errs.NotFound("user", id)
	}
	clone := *user
	return &clone, nil
}

func (m *Memory) Department(_ context.Context, id string) (*Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dept, ok := m.departments[id]
	if !ok {
		return nil, errs.NotFound("department", id)
	}
	clone := *dept
	return &clone, nil
}

func (m *Memory) Manager(ctx context.Context, userID string) (*User, error) {
	user, err := m.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ManagerID == "" {
		return nil, nil
	}
	return m.User(ctx, user.ManagerID)
}

func (m *Memory) DepartmentHead(ctx context.Context, departmentID string) (*User, error) {
	dept, err := m.Department(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if dept.HeadID == "" {
		return nil, nil
	}
	return m.User(ctx, dept.HeadID)
}

func (m *Memory) RoleMembers(_ context.Context, role string) ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ret []*User
	for _, id := range m.order {
		user := m.users[id]
		if user.HasRole(role) {
			clone := *user
			ret = append(ret, &clone)
		}
	}
	return ret, nil
}

var _ Directory = (*Memory)(nil)
