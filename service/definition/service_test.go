package definition

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/model"
	"github.com/viant/approvo/model/flow"
	"github.com/viant/approvo/service/dao/store"
)

const expenseYAML = `
id: expense
name: Expense claim
group: finance
visibility:
  scope: everyone
form:
  - type: money
    key: amount
    label: Amount
    required: true
    currency: USD
  - type: select
    key: category
    options: [travel, meals]
flow:
  - type: submit
    id: start
  - type: approve
    id: manager
    approverType: supervisor
  - type: approve
    id: finance
    approverType: designated
    approvers: ["${env.APPROVO_TEST_CFO}"]
    multiApprove: any
  - type: end
    id: done
`

func newService() *Service {
	return New(store.NewMemoryStore[string, model.Definition](Key,
		store.WithClone[string, model.Definition](Clone),
		store.WithFilter[string, model.Definition](Filter)))
}

func draft(t *testing.T, srv *Service) *model.Definition {
	t.Setenv("APPROVO_TEST_CFO", "cfo")
	def, err := DecodeYAML([]byte(expenseYAML))
	require.NoError(t, err)
	ret, err := srv.CreateDraft(context.Background(), def)
	require.NoError(t, err)
	return ret
}

func TestDecodeYAML(t *testing.T) {
	t.Setenv("APPROVO_TEST_CFO", "cfo")
	def, err := DecodeYAML([]byte(expenseYAML))
	require.NoError(t, err)
	assert.Equal(t, "expense", def.ID)
	require.Len(t, def.Form, 2)
	nodes := def.Flow.ApproveNodes()
	require.Len(t, nodes, 2)
	assert.Equal(t, []string{"cfo"}, nodes[1].Approvers)
	assert.Equal(t, flow.PolicyAny, nodes[1].Policy())
	assert.NoError(t, def.Validate())
}

func TestService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	srv := newService()

	v1 := draft(t, srv)
	assert.Equal(t, 1, v1.Version)
	assert.Equal(t, model.StatusDraft, v1.Status)

	_, err := srv.Get(ctx, "expense", 0)
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	published, err := srv.Publish(ctx, "expense", 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPublished, published.Status)
	assert.NotNil(t, published.PublishedAt)

	_, err = srv.Publish(ctx, "expense", 1)
	assert.True(t, errors.Is(err, errs.ErrConflict))

	v2 := draft(t, srv)
	assert.Equal(t, 2, v2.Version)
	v3 := draft(t, srv)
	_, err = srv.Publish(ctx, "expense", v2.Version)
	assert.True(t, errors.Is(err, errs.ErrConflict), "newer draft v3 exists")

	_, err = srv.Publish(ctx, "expense", v3.Version)
	require.NoError(t, err)
	v1, err = srv.Get(ctx, "expense", 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusUnpublished, v1.Status)
	current, err := srv.Get(ctx, "expense", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, current.Version)

	withdrawn, err := srv.Unpublish(ctx, "expense")
	require.NoError(t, err)
	assert.Equal(t, 3, withdrawn.Version)
	_, err = srv.Get(ctx, "expense", 0)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	_, err = srv.Unpublish(ctx, "expense")
	assert.True(t, errors.Is(err, errs.ErrNotFound))

	versions, err := srv.Versions(ctx, "expense")
	require.NoError(t, err)
	assert.Len(t, versions, 3)
	_, err = srv.Get(ctx, "expense", 9)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestService_PublishInvalid(t *testing.T) {
	ctx := context.Background()
	srv := newService()
	def := &model.Definition{ID: "broken", Name: "Broken", Flow: flow.Schema{Nodes: []flow.Node{&flow.Submit{ID: "s"}, &flow.End{ID: "e"}}}}
	created, err := srv.CreateDraft(ctx, def)
	require.NoError(t, err)
	_, err = srv.Publish(ctx, created.ID, created.Version)
	var validation *errs.ValidationError
	require.True(t, errors.As(err, &validation))
	assert.Contains(t, validation.Fields, "flow.approve")
	stored, err := srv.Get(ctx, "broken", 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, stored.Status)
}

func TestService_PublishStaleDraft(t *testing.T) {
	ctx := context.Background()
	srv := newService()
	draft(t, srv)
	v2 := draft(t, srv)
	v3 := draft(t, srv)
	_, err := srv.Publish(ctx, "expense", v3.Version)
	require.NoError(t, err)

	_, err = srv.Publish(ctx, "expense", v2.Version)
	assert.True(t, errors.Is(err, errs.ErrConflict))
	current, err := srv.Get(ctx, "expense", 0)
	require.NoError(t, err)
	assert.Equal(t, v3.Version, current.Version)
	stale, err := srv.Get(ctx, "expense", v2.Version)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, stale.Status)
}

func TestService_ConcurrentPublish(t *testing.T) {
	ctx := context.Background()
	srv := newService()
	draft(t, srv)

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = srv.Publish(ctx, "expense", 1)
		}(i)
	}
	wg.Wait()
	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, errs.ErrConflict))
	}
	assert.Equal(t, 1, succeeded)
}

func TestService_Import(t *testing.T) {
	t.Setenv("APPROVO_TEST_CFO", "cfo")
	dir := t.TempDir()
	travel := strings.Replace(expenseYAML, "id: expense\nname: Expense claim\n", "name: Travel\n", 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "travel.yaml"), []byte(travel), 0o644))
	srv := newService()
	def, err := srv.Import(context.Background(), filepath.Join(dir, "travel"), true)
	require.NoError(t, err)
	assert.Equal(t, "travel", def.ID)
	assert.Equal(t, "Travel", def.Name)
	assert.True(t, def.IsPublished())
}
