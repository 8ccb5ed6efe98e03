// Package dao defines the generic persistence contract shared by every
// entity store. Backends live in sub-packages: store (memory), fs (afs
// files) and redis.
package dao

import (
	"context"
)

type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error

	Load(ctx context.Context, id K) (*T, error)

	Delete(ctx context.Context, id K) error

	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}

// Filter reports whether an entity satisfies list parameters.
type Filter[T any] func(t *T, parameters []*Parameter) bool

// Key extracts the storage key of an entity.
type Key[K comparable, T any] func(t *T) K
