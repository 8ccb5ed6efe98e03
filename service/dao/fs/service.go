// Package fs implements dao.Service on top of viant/afs, storing one JSON
// document per entity under a base URL (local files, mem:// or any afs
// supported scheme).
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	neturl "net/url"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/service/dao"
	"go.uber.org/zap"
)

const fileExt = ".json"

// Service implements a filesystem-based entity storage
type Service[T any] struct {
	basePath string
	fs       afs.Service
	key      dao.Key[string, T]
	filter   dao.Filter[T]
	mu       sync.RWMutex
}

// Option configures the service.
type Option[T any] func(s *Service[T])

// WithFilter applies list parameters.
func WithFilter[T any](filter dao.Filter[T]) Option[T] {
	return func(s *Service[T]) { s.filter = filter }
}

// WithFs overrides the afs service.
func WithFs[T any](fs afs.Service) Option[T] {
	return func(s *Service[T]) { s.fs = fs }
}

// Save persists an entity as a single document write.
func (s *Service[T]) Save(ctx context.Context, entity *T) error {
	if entity == nil {
		return dao.ErrNilEntity
	}
	id := s.key(entity)
	if id == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", id, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	filePath := s.entityPath(id)
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save %s to %s: %w", id, filePath, err)
	}
	return nil
}

// Load retrieves an entity.
func (s *Service[T]) Load(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	filePath := s.entityPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if %s exists: %w", id, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", dao.ErrNotFound, id)
	}
	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	var entity T
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filePath, err)
	}
	return &entity, nil
}

// Delete removes an entity.
func (s *Service[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	filePath := s.entityPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to check if %s exists: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", dao.ErrNotFound, id)
	}
	if err := s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete %s: %w", filePath, err)
	}
	return nil
}

// List returns every stored entity matching parameters. Unreadable documents
// are logged and skipped.
func (s *Service[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.basePath, err)
	}
	var ret []*T
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), fileExt) {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			logger.Warn("failed to read document", zap.String("url", object.URL()), zap.Error(err))
			continue
		}
		var entity T
		if err := json.Unmarshal(data, &entity); err != nil {
			logger.Warn("failed to decode document", zap.String("url", object.URL()), zap.Error(err))
			continue
		}
		if s.filter != nil && !s.filter(&entity, parameters) {
			continue
		}
		ret = append(ret, &entity)
	}
	return ret, nil
}

func (s *Service[T]) entityPath(id string) string {
	return url.Join(s.basePath, neturl.PathEscape(id)+fileExt)
}

// New creates a filesystem storage rooted at basePath.
func New[T any](basePath string, key dao.Key[string, T], options ...Option[T]) (*Service[T], error) {
	if basePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if key == nil {
		return nil, fmt.Errorf("key selector cannot be nil")
	}
	ret := &Service[T]{key: key, fs: afs.New()}
	for _, opt := range options {
		opt(ret)
	}
	ctx := context.Background()
	exists, _ := ret.fs.Exists(ctx, basePath)
	if !exists {
		if err := ret.fs.Create(ctx, basePath, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	ret.basePath = url.Normalize(basePath, file.Scheme)
	return ret, nil
}

var _ dao.Service[string, struct{}] = (*Service[struct{}])(nil)
