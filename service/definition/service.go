// Package definition stores versioned approval definitions and enforces
// their draft, published and unpublished lifecycle.
package definition

import (
	"context"
	"fmt"
	"path"
	"sort"

	"github.com/viant/afs"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/internal/clock"
	"github.com/viant/approvo/internal/yml"
	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/model"
	"github.com/viant/approvo/service/dao"
	"github.com/viant/approvo/service/dao/criteria"
	"github.com/viant/approvo/service/locker"
	"go.uber.org/zap"
)

// Key returns the storage key of a definition version.
func Key(d *model.Definition) string { return d.Key() }

// Filter applies Definition and Status list parameters.
func Filter(d *model.Definition, parameters []*dao.Parameter) bool {
	return criteria.Match(func(name string) []string {
		switch name {
		case dao.ParamDefinition:
			return []string{d.ID}
		case dao.ParamStatus:
			return []string{string(d.Status)}
		}
		return nil
	}, parameters)
}

// Clone copies a definition crossing a memory store boundary.
func Clone(d *model.Definition) *model.Definition { return d.Clone() }

// Service manages definition versions.
type Service struct {
	store  dao.Service[string, model.Definition]
	locker locker.Locker
	fs     afs.Service
}

// New creates a definition store over a DAO.
func New(store dao.Service[string, model.Definition], options ...Option) *Service {
	ret := &Service{store: store}
	for _, option := range options {
		option(ret)
	}
	if ret.locker == nil {
		ret.locker = locker.NewMemory()
	}
	if ret.fs == nil {
		ret.fs = afs.New()
	}
	return ret
}

func lockKey(id string) string { return "definition:" + id }

// CreateDraft stores def as the next version of def.ID in draft status.
// Structural validation is deferred to Publish.
func (s *Service) CreateDraft(ctx context.Context, def *model.Definition) (*model.Definition, error) {
	if def == nil || def.ID == "" {
		issues := errs.NewValidationError()
		issues.Add("id", "is required")
		return nil, issues
	}
	release, err := s.locker.Lock(ctx, lockKey(def.ID))
	if err != nil {
		return nil, err
	}
	defer release()
	versions, err := s.Versions(ctx, def.ID)
	if err != nil {
		return nil, err
	}
	draft := def.Clone()
	draft.Version = 1
	if n := len(versions); n > 0 {
		draft.Version = versions[n-1].Version + 1
	}
	draft.Status = model.StatusDraft
	draft.CreatedAt = clock.Now()
	draft.PublishedAt = nil
	draft.ApplyDefaults()
	if err = s.store.Save(ctx, draft); err != nil {
		return nil, fmt.Errorf("failed to save definition %s: %w", draft.Key(), err)
	}
	logger.Info("definition draft created", zap.String("definition", draft.ID), zap.Int("version", draft.Version))
	return draft.Clone(), nil
}

// Publish makes a draft version the published one, unpublishing the previous.
func (s *Service) Publish(ctx context.Context, id string, version int) (*model.Definition, error) {
	release, err := s.locker.Lock(ctx, lockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()
	versions, err := s.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	var target, previous *model.Definition
	for _, candidate := range versions {
		switch {
		case candidate.Version == version:
			target = candidate
		case candidate.Version > version && candidate.Status == model.StatusDraft:
			return nil, &errs.ConflictError{Resource: model.VersionKey(id, version), Reason: fmt.Sprintf("newer draft v%d exists", candidate.Version)}
		}
		if candidate.Status == model.StatusPublished {
			previous = candidate
		}
	}
	if target == nil {
		return nil, errs.NotFound("definition", model.VersionKey(id, version))
	}
	if target.Status != model.StatusDraft {
		return nil, &errs.ConflictError{Resource: target.Key(), Reason: "version is already " + string(target.Status)}
	}
	if previous != nil && previous.Version > version {
		return nil, &errs.ConflictError{Resource: target.Key(), Reason: fmt.Sprintf("newer version v%d is published", previous.Version)}
	}
	if err = target.Validate(); err != nil {
		return nil, err
	}
	now := clock.Now()
	if previous != nil {
		previous.Status = model.StatusUnpublished
		if err = s.store.Save(ctx, previous); err != nil {
			return nil, fmt.Errorf("failed to unpublish definition %s: %w", previous.Key(), err)
		}
	}
	target.Status = model.StatusPublished
	target.PublishedAt = &now
	if err = s.store.Save(ctx, target); err != nil {
		return nil, fmt.Errorf("failed to publish definition %s: %w", target.Key(), err)
	}
	logger.Info("definition published", zap.String("definition", id), zap.Int("version", version))
	return target.Clone(), nil
}

// Unpublish withdraws the published version; in-flight instances keep
// their frozen copy.
func (s *Service) Unpublish(ctx context.Context, id string) (*model.Definition, error) {
	release, err := s.locker.Lock(ctx, lockKey(id))
	if err != nil {
		return nil, err
	}
	defer release()
	published, err := s.published(ctx, id)
	if err != nil {
		return nil, err
	}
	published.Status = model.StatusUnpublished
	if err = s.store.Save(ctx, published); err != nil {
		return nil, fmt.Errorf("failed to unpublish definition %s: %w", published.Key(), err)
	}
	logger.Info("definition unpublished", zap.String("definition", id), zap.Int("version", published.Version))
	return published.Clone(), nil
}

// Get returns a version; version 0 selects the published one.
func (s *Service) Get(ctx context.Context, id string, version int) (*model.Definition, error) {
	if version == 0 {
		return s.published(ctx, id)
	}
	ret, err := s.store.Load(ctx, model.VersionKey(id, version))
	if err != nil {
		if dao.IsNotFound(err) {
			return nil, errs.NotFound("definition", model.VersionKey(id, version))
		}
		return nil, err
	}
	return ret, nil
}

func (s *Service) published(ctx context.Context, id string) (*model.Definition, error) {
	versions, err := s.Versions(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].IsPublished() {
			return versions[i], nil
		}
	}
	return nil, errs.NotFound("published definition", id)
}

// Versions lists every version of id in ascending order.
func (s *Service) Versions(ctx context.Context, id string) ([]*model.Definition, error) {
	list, err := s.store.List(ctx, dao.NewParameter(dao.ParamDefinition, id))
	if err != nil {
		return nil, fmt.Errorf("failed to list definition %s: %w", id, err)
	}
	var ret []*model.Definition
	for _, candidate := range list {
		if candidate.ID == id {
			ret = append(ret, candidate)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Version < ret[j].Version })
	return ret, nil
}

// DecodeYAML decodes a definition document; ${env.KEY} expressions are expanded.
func DecodeYAML(data []byte) (*model.Definition, error) {
	ret := &model.Definition{}
	if err := yml.Unmarshal([]byte(yml.ExpandEnv(string(data))), ret); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	return ret, nil
}

// Load reads a definition YAML document through afs; the id defaults to the
// file name without extension.
func (s *Service) Load(ctx context.Context, URL string) (*model.Definition, error) {
	if path.Ext(URL) == "" {
		URL += ".yaml"
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to download definition %s: %w", URL, err)
	}
	ret, err := DecodeYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", URL, err)
	}
	if ret.ID == "" {
		name := path.Base(URL)
		ret.ID = name[:len(name)-len(path.Ext(name))]
	}
	return ret, nil
}

// Import loads a definition and stores it as a new draft, publishing it
// when publish is set.
func (s *Service) Import(ctx context.Context, URL string, publish bool) (*model.Definition, error) {
	def, err := s.Load(ctx, URL)
	if err != nil {
		return nil, err
	}
	draft, err := s.CreateDraft(ctx, def)
	if err != nil || !publish {
		return draft, err
	}
	return s.Publish(ctx, draft.ID, draft.Version)
}
