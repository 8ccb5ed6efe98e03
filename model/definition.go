package model

import (
	"fmt"
	"time"

	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/model/form"
)

// Status is the lifecycle state of one definition version.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusPublished   Status = "published"
	StatusUnpublished Status = "unpublished"
)

// Scope controls who may submit a definition.
type Scope string

const (
	ScopeEveryone  Scope = "everyone"
	ScopeAllowList Scope = "allowList"
)

// Visibility restricts submitters of a definition.
type Visibility struct {
	Scope       Scope    `json:"scope,omitempty" yaml:"scope,omitempty"`
	Users       []string `json:"users,omitempty" yaml:"users,omitempty"`
	Departments []string `json:"departments,omitempty" yaml:"departments,omitempty"`
}

// Allows reports whether a user belonging to any of departments (the user's
// department and its ancestors) may submit.
func (v *Visibility) Allows(userID string, departments []string) bool {
	if v == nil || v.Scope == "" || v.Scope == ScopeEveryone {
		return true
	}
	for _, candidate := range v.Users {
		if candidate == userID {
			return true
		}
	}
	for _, allowed := range v.Departments {
		for _, dept := range departments {
			if allowed == dept {
				return true
			}
		}
	}
	return false
}

// Definition is one version of an approval process.
type Definition struct {
	ID          string      `json:"id" yaml:"id"`
	Version     int         `json:"version" yaml:"version"`
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Icon        string      `json:"icon,omitempty" yaml:"icon,omitempty"`
	Group       string      `json:"group,omitempty" yaml:"group,omitempty"`
	Visibility  *Visibility `json:"visibility,omitempty" yaml:"visibility,omitempty"`
	Form        form.Schema `json:"form" yaml:"form"`
	Flow        flow.Schema `json:"flow" yaml:"flow"`
	Status      Status      `json:"status" yaml:"status"`
	CreatedBy   string      `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt   time.Time   `json:"createdAt" yaml:"createdAt"`
	PublishedAt *time.Time  `json:"publishedAt,omitempty" yaml:"publishedAt,omitempty"`
}

// Key identifies one stored version.
func (d *Definition) Key() string {
	return VersionKey(d.ID, d.Version)
}

// VersionKey formats a definition version key.
func VersionKey(id string, version int) string {
	return fmt.Sprintf("%s@v%d", id, version)
}

// ApplyDefaults normalizes optional attributes.
func (d *Definition) ApplyDefaults() {
	d.Form.ApplyDefaults()
	d.Flow.ApplyDefaults()
	if d.Visibility != nil && d.Visibility.Scope == "" {
		d.Visibility.Scope = ScopeEveryone
	}
}

// Validate checks the form and flow schemas, merging every issue.
func (d *Definition) Validate() error {
	issues := errs.NewValidationError()
	if d.ID == "" {
		issues.Add("id", "is required")
	}
	if d.Name == "" {
		issues.Add("name", "is required")
	}
	if d.Visibility != nil {
		switch d.Visibility.Scope {
		case "", ScopeEveryone, ScopeAllowList:
		default:
			issues.Add("visibility.scope", "unsupported scope %q", d.Visibility.Scope)
		}
	}
	collect(issues, d.Form.Validate())
	collect(issues, d.Flow.Validate())
	return issues.OrNil()
}

func collect(issues *errs.ValidationError, err error) {
	if err == nil {
		return
	}
	if validation, ok := err.(*errs.ValidationError); ok {
		issues.Merge("", validation)
		return
	}
	issues.Add("definition", "%v", err)
}

// IsPublished reports whether the version accepts submissions.
func (d *Definition) IsPublished() bool {
	return d.Status == StatusPublished
}

// Clone returns a deep copy so a frozen definition can be embedded in instances.
func (d *Definition) Clone() *Definition {
	if d == nil {
		return nil
	}
	ret := *d
	ret.Form = d.Form.Clone()
	if flowClone := d.Flow.Clone(); flowClone != nil {
		ret.Flow = *flowClone
	}
	if d.Visibility != nil {
		visibility := *d.Visibility
		visibility.Users = append([]string(nil), d.Visibility.Users...)
		visibility.Departments = append([]string(nil), d.Visibility.Departments...)
		ret.Visibility = &visibility
	}
	if d.PublishedAt != nil {
		publishedAt := *d.PublishedAt
		ret.PublishedAt = &publishedAt
	}
	return &ret
}
