package approvo_test

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvo"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/runtime/instance"
	"github.com/viant/approvo/service/approval"
	"github.com/viant/approvo/service/event"
)

const directoryYAML = `departments:
  - id: eng
    headId: lead
users:
  - id: sub
    departmentId: eng
    managerId: lead
    active: true
  - id: lead
    departmentId: eng
    active: true
`

const expenseYAML = `name: Expense claim
form:
  - type: number
    key: amount
    required: true
flow:
  - type: submit
    id: start
  - type: approve
    id: manager
    approverType: supervisor
  - type: end
    id: done
`

const ecnYAML = `phases:
  - code: design
    tasks:
      - code: T1
        owner: designer
`

type collector struct {
	mu     sync.Mutex
	topics []event.Topic
}

func (c *collector) Notify(_ context.Context, e *event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, e.Topic)
	return nil
}

func (c *collector) has(topic event.Topic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, candidate := range c.topics {
		if candidate == topic {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, dir, name, content string) string {
	location := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(location, []byte(content), 0o644))
	return location
}

func TestConfig_Validate(t *testing.T) {
	var testCases = []struct {
		description string
		mutate      func(c *approvo.Config)
		expectErr   bool
	}{
		{description: "defaults"},
		{description: "fs without base path", mutate: func(c *approvo.Config) { c.Store.Backend = approvo.BackendFs }, expectErr: true},
		{description: "fs with base path", mutate: func(c *approvo.Config) {
			c.Store.Backend = approvo.BackendFs
			c.Store.BasePath = "/tmp/approvo"
		}},
		{description: "redis without addrs", mutate: func(c *approvo.Config) {
			c.Store.Backend = approvo.BackendRedis
			c.Store.Redis.Addrs = nil
		}, expectErr: true},
		{description: "unknown backend", mutate: func(c *approvo.Config) { c.Store.Backend = "postgres" }, expectErr: true},
		{description: "unknown queue", mutate: func(c *approvo.Config) { c.Events.Queue = "kafka" }, expectErr: true},
		{description: "no workers", mutate: func(c *approvo.Config) { c.Events.Workers = 0 }, expectErr: true},
		{description: "negative timeout", mutate: func(c *approvo.Config) { c.Engine.LookupTimeout = -time.Second }, expectErr: true},
	}
	for _, testCase := range testCases {
		config := approvo.DefaultConfig()
		if testCase.mutate != nil {
			testCase.mutate(config)
		}
		err := config.Validate()
		if testCase.expectErr {
			assert.Error(t, err, testCase.description)
			continue
		}
		assert.NoError(t, err, testCase.description)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	config := approvo.DefaultConfig()
	config.Store.Backend = "postgres"
	srv, err := approvo.New(approvo.WithConfig(config))
	assert.Error(t, err)
	assert.Nil(t, srv)
}

func TestService_FsBackend(t *testing.T) {
	dir := t.TempDir()
	config := approvo.DefaultConfig()
	config.Store.Backend = approvo.BackendFs
	config.Store.BasePath = filepath.Join(dir, "store")
	config.Directory.URL = writeFile(t, dir, "directory.yaml", directoryYAML)
	config.Definitions = []string{writeFile(t, dir, "expense.yaml", expenseYAML)}
	config.Templates = []string{writeFile(t, dir, "ecn.yaml", ecnYAML)}
	config.HTTP.Addr = "127.0.0.1:0"
	config.Events.RetryDelay = 10 * time.Millisecond

	notifications := &collector{}
	srv, err := approvo.New(approvo.WithConfig(config), approvo.WithNotifier(notifications))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, srv.Bootstrap(ctx))
	require.NoError(t, srv.Start(ctx))
	defer func() { require.NoError(t, srv.Stop(ctx)) }()

	var stateErr *errs.StateError
	assert.True(t, errors.As(srv.Start(ctx), &stateErr))

	engine := srv.Engine()
	inst, err := engine.Submit(ctx, &approval.SubmitRequest{
		DefinitionID: "expense",
		SubmittedBy:  "sub",
		FormData:     map[string]interface{}{"amount": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lead"}, inst.Steps[0].ApproverIDs())

	_, err = engine.Decide(ctx, &approval.DecideRequest{InstanceID: inst.ID, StepIndex: 0, ApproverID: "lead", Decision: instance.VerdictApprove})
	require.NoError(t, err)
	stored, err := engine.Instance(ctx, inst.ID)
	require.NoError(t, err)
	assert.Equal(t, instance.StatusApproved, stored.Status)
	assert.FileExists(t, filepath.Join(dir, "store", "instances", inst.ID+".json"))

	_, err = engine.Template(ctx, "ecn")
	assert.NoError(t, err)

	assert.Eventually(t, func() bool { return notifications.has(event.TopicInstanceTerminal) }, 2*time.Second, 10*time.Millisecond)
	assert.True(t, notifications.has(event.TopicStepActivated))

	response, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusOK, response.StatusCode)

	families, err := srv.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
