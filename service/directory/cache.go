package directory

import (
	"context"
	"time"

	c "github.com/patrickmn/go-cache"
)

// Cached memoizes user, department and role lookups for a TTL. Derived
// queries (Manager, DepartmentHead) are answered from cached entries.
type Cached struct {
	dir   Directory
	cache *c.Cache
}

// NewCached wraps dir with a TTL cache.
func NewCached(dir Directory, ttl time.Duration) *Cached {
	return &Cached{dir: dir, cache: c.New(ttl, 10*time.Minute)}
}

// Invalidate drops every cached entry.
func (d *Cached) Invalidate() {
	d.cache.Flush()
}

func (d *Cached) User(ctx context.Context, id string) (*User, error) {
	key := "user:" + id
	if value, ok := d.cache.Get(key); ok {
		clone := *value.(*User)
		return &clone, nil
	}
	user, err := d.dir.User(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.SetDefault(key, user)
	clone := *user
	return &clone, nil
}

func (d *Cached) Department(ctx context.Context, id string) (*Department, error) {
	key := "dept:" + id
	if value, ok := d.cache.Get(key); ok {
		clone := *value.(*Department)
		return &clone, nil
	}
	dept, err := d.dir.Department(ctx, id)
	if err != nil {
		return nil, err
	}
	d.cache.SetDefault(key, dept)
	clone := *dept
	return &clone, nil
}

func (d *Cached) Manager(ctx context.Context, userID string) (*User, error) {
	user, err := d.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.ManagerID == "" {
		return nil, nil
	}
	return d.User(ctx, user.ManagerID)
}

func (d *Cached) DepartmentHead(ctx context.Context, departmentID string) (*User, error) {
	dept, err := d.Department(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if dept.HeadID == "" {
		return nil, nil
	}
	return d.User(ctx, dept.HeadID)
}

func (d *Cached) RoleMembers(ctx context.Context, role string) ([]*User, error) {
	key := "role:" + role
	if value, ok := d.cache.Get(key); ok {
		return value.([]*User), nil
	}
	members, err := d.dir.RoleMembers(ctx, role)
	if err != nil {
		return nil, err
	}
	d.cache.SetDefault(key, members)
	return members, nil
}

var _ Directory = (*Cached)(nil)
