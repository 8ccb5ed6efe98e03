package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvo/service/dao"
	"github.com/viant/approvo/service/dao/criteria"
)

type record struct {
	ID     string
	Status string
	Tags   []string
}

func cloneRecord(r *record) *record {
	ret := *r
	ret.Tags = append([]string(nil), r.Tags...)
	return &ret
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore[string, record](func(r *record) string { return r.ID },
		WithClone[string, record](cloneRecord),
		WithFilter[string, record](func(r *record, parameters []*dao.Parameter) bool {
			return criteria.FilterByState(r.Status, parameters)
		}))

	original := &record{ID: "r1", Status: "pending", Tags: []string{"a"}}
	require.NoError(t, s.Save(ctx, original))
	require.NoError(t, s.Save(ctx, &record{ID: "r2", Status: "done"}))
	assert.ErrorIs(t, s.Save(ctx, &record{}), dao.ErrInvalidID)
	assert.ErrorIs(t, s.Save(ctx, nil), dao.ErrNilEntity)

	original.Tags[0] = "mutated"
	loaded, err := s.Load(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a", loaded.Tags[0])
	loaded.Status = "changed"
	again, _ := s.Load(ctx, "r1")
	assert.Equal(t, "pending", again.Status)

	_, err = s.Load(ctx, "missing")
	assert.True(t, dao.IsNotFound(err))

	all, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "r1", all[0].ID)

	pending, err := s.List(ctx, dao.NewParameter(dao.ParamStatus, "pending"))
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.Delete(ctx, "r1"))
	assert.True(t, errors.Is(s.Delete(ctx, "r1"), dao.ErrNotFound))
}
