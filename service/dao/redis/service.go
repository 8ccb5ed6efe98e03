package redis

import (
	"context"
	"errors"
	"fmt"

	rd "github.com/go-redis/redis/v9"
	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/service/dao"
	"go.uber.org/zap"
)

// Service stores entities of one kind in the hash <namespace>:<kind>.
type Service[T any] struct {
	client rd.UniversalClient
	hash   string
	kind   string
	key    dao.Key[string, T]
	codec  EncoderDecoder[T]
	filter dao.Filter[T]
}

// Option configures the service.
type Option[T any] func(s *Service[T])

// WithFilter applies list parameters.
func WithFilter[T any](filter dao.Filter[T]) Option[T] {
	return func(s *Service[T]) { s.filter = filter }
}

// WithCodec overrides the JSON codec.
func WithCodec[T any](codec EncoderDecoder[T]) Option[T] {
	return func(s *Service[T]) { s.codec = codec }
}

// New creates a redis backed DAO for entities of kind.
func New[T any](client rd.UniversalClient, namespace, kind string, key dao.Key[string, T], options ...Option[T]) *Service[T] {
	ret := &Service[T]{
		client: client,
		hash:   NamespaceKey(namespace, kind),
		kind:   kind,
		key:    key,
		codec:  JSONEncDec[T]{},
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Save writes the entity as one hash field.
func (s *Service[T]) Save(ctx context.Context, entity *T) error {
	if entity == nil {
		return dao.ErrNilEntity
	}
	id := s.key(entity)
	if id == "" {
		return dao.ErrInvalidID
	}
	data, err := s.codec.Encode(entity)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", s.kind, id, err)
	}
	if err = s.client.HSet(ctx, s.hash, id, string(data)).Err(); err != nil {
		logger.Error("error in saving entity", zap.String("kind", s.kind), zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to save %s %s: %w", s.kind, id, err)
	}
	return nil
}

// Load reads an entity by id.
func (s *Service[T]) Load(ctx context.Context, id string) (*T, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	data, err := s.client.HGet(ctx, s.hash, id).Result()
	if err != nil {
		if errors.Is(err, rd.Nil) {
			return nil, fmt.Errorf("%w: %s %s", dao.ErrNotFound, s.kind, id)
		}
		logger.Error("error in loading entity", zap.String("kind", s.kind), zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to load %s %s: %w", s.kind, id, err)
	}
	return s.codec.Decode([]byte(data))
}

// Delete removes an entity.
func (s *Service[T]) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	removed, err := s.client.HDel(ctx, s.hash, id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", s.kind, id, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s %s", dao.ErrNotFound, s.kind, id)
	}
	return nil
}

// List returns entities matching parameters; order is unspecified.
func (s *Service[T]) List(ctx context.Context, parameters ...*dao.Parameter) ([]*T, error) {
	values, err := s.client.HVals(ctx, s.hash).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.kind, err)
	}
	ret := make([]*T, 0, len(values))
	for _, value := range values {
		entity, err := s.codec.Decode([]byte(value))
		if err != nil {
			logger.Warn("failed to decode entity", zap.String("kind", s.kind), zap.Error(err))
			continue
		}
		if s.filter != nil && !s.filter(entity, parameters) {
			continue
		}
		ret = append(ret, entity)
	}
	return ret, nil
}

var _ dao.Service[string, struct{}] = (*Service[struct{}])(nil)
