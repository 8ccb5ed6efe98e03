package event

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/approvo/errs"
	"github.com/viant/approvo/service/messaging"
	"github.com/viant/approvo/service/messaging/fs"
	"github.com/viant/approvo/service/messaging/memory"
)

type countingObserver struct {
	mu        sync.Mutex
	published int
	dropped   int
	delivered int
	failed    []int
}

func (o *countingObserver) Published(Topic) {
	o.mu.Lock()
	o.published++
	o.mu.Unlock()
}

func (o *countingObserver) Dropped(Topic) {
	o.mu.Lock()
	o.dropped++
	o.mu.Unlock()
}

func (o *countingObserver) Delivered(Topic) {
	o.mu.Lock()
	o.delivered++
	o.mu.Unlock()
}

func (o *countingObserver) Failed(_ Topic, attempt int) {
	o.mu.Lock()
	o.failed = append(o.failed, attempt)
	o.mu.Unlock()
}

func (o *countingObserver) snapshot() (int, int, int, []int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.published, o.dropped, o.delivered, append([]int(nil), o.failed...)
}

func TestService_Redelivery(t *testing.T) {
	var testCases = []struct {
		description string
		vendor      messaging.Vendor
	}{
		{description: "memory", vendor: messaging.VendorMemory},
		{description: "fs", vendor: messaging.VendorFs},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			observer := &countingObserver{}
			srv, err := New(testCase.vendor,
				WithObserver(observer),
				WithMemoryConfig(memory.Config{MaxRetries: 3, RetryDelay: time.Millisecond, DeadLetter: true, QueueBuffer: 8}),
				WithFsConfig(fs.Config{BasePath: t.TempDir(), MaxRetries: 3, RetryDelay: time.Millisecond, PollInterval: 2 * time.Millisecond}))
			require.NoError(t, err)

			var calls int32
			delivered := make(chan *Event, 1)
			srv.Listen(context.Background(), NotifierFunc(func(_ context.Context, e *Event) error {
				if atomic.AddInt32(&calls, 1) < 3 {
					return errors.New("mail relay unavailable")
				}
				delivered <- e
				return nil
			}))
			defer srv.Stop()

			srv.Publisher().Publish(context.Background(), NewEvent(TopicStepActivated, &Context{InstanceID: "i1"}, []string{"bob"}, nil))
			select {
			case e := <-delivered:
				assert.Equal(t, "i1", e.Context.InstanceID)
				assert.Equal(t, []string{"bob"}, e.Recipients)
			case <-time.After(3 * time.Second):
				t.Fatal("event was not redelivered")
			}
			srv.Stop()
			published, dropped, deliveredCount, failed := observer.snapshot()
			assert.Equal(t, 1, published)
			assert.Equal(t, 0, dropped)
			assert.Equal(t, 1, deliveredCount)
			assert.Equal(t, []int{1, 2}, failed)
		})
	}
}

func TestPublisher_DropsWhenFull(t *testing.T) {
	observer := &countingObserver{}
	queue := memory.NewQueue[Event](memory.Config{QueueBuffer: 1})
	publisher := NewPublisher(queue, observer)
	publisher.Publish(context.Background(),
		NewEvent(TopicDecisionRecorded, nil, nil, nil),
		NewEvent(TopicDecisionRecorded, nil, nil, nil))
	published, dropped, _, _ := observer.snapshot()
	assert.Equal(t, 1, published)
	assert.Equal(t, 1, dropped)
}

func TestListener_RecoversNotifierPanic(t *testing.T) {
	queue := memory.NewQueue[Event](memory.Config{MaxRetries: 0, DeadLetter: true, QueueBuffer: 4})
	observer := &countingObserver{}
	listener := NewListener(queue, NotifierFunc(func(context.Context, *Event) error { panic("boom") }), observer, 1)
	listener.Start(context.Background())
	require.NoError(t, queue.Publish(context.Background(), NewEvent(TopicInstanceTerminal, nil, nil, nil)))
	assert.Eventually(t, func() bool { return queue.DLQSize() == 1 }, time.Second, 5*time.Millisecond)
	listener.Stop()
	assert.Contains(t, queue.DeadLetters()[0].Error(), "boom")
}

func TestNew_UnsupportedVendor(t *testing.T) {
	_, err := New("kafka")
	assert.True(t, errors.Is(err, errs.ErrUnsupportedBackend))
}
