// Package fs implements a durable messaging.Queue storing one JSON file per
// message through afs, so undelivered notifications survive a restart.
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
	"github.com/viant/approvo/logger"
	"github.com/viant/approvo/service/messaging"
	"go.uber.org/zap"
)

// MessageState represents the state of a message in the filesystem queue
type MessageState string

const (
	MessageStatePending    MessageState = "pending"
	MessageStateProcessing MessageState = "processing"
	MessageStateFailed     MessageState = "failed"
	MessageStateDead       MessageState = "dead"
)

// Message implements messaging.Message for the filesystem queue
type Message[T any] struct {
	ID        string       `json:"id"`
	Data      T            `json:"data"`
	State     MessageState `json:"state"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
	Retries   int          `json:"retries"`

	name      string
	queue     *Queue[T]
	processed bool
	mu        sync.Mutex
}

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.Data
}

// Attempt returns the 1-based delivery attempt
func (m *Message[T]) Attempt() int { return m.Retries + 1 }

// Ack removes the message from the processing directory
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrAlreadyProcessed
	}
	m.processed = true
	return m.queue.complete(context.Background(), m)
}

// Nack moves the message to the retry directory, or to the dead letter
// directory once MaxRetries redeliveries were made
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrAlreadyProcessed
	}
	m.processed = true
	if err != nil {
		m.Error = err.Error()
	}
	m.Retries++
	m.UpdatedAt = time.Now()
	return m.queue.fail(context.Background(), m)
}

// Config holds configuration for filesystem queue
type Config struct {
	BasePath     string        `json:"basePath" yaml:"basePath"`
	MaxRetries   int           `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay   time.Duration `json:"retryDelay" yaml:"retryDelay"`
	PollInterval time.Duration `json:"pollInterval" yaml:"pollInterval"`
}

// DefaultConfig returns a default queue configuration
func DefaultConfig() Config {
	return Config{
		BasePath:     "/tmp/approvo/queue",
		MaxRetries:   3,
		RetryDelay:   time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// Queue implements a filesystem-based messaging.Queue
type Queue[T any] struct {
	fs            afs.Service
	config        Config
	pendingDir    string
	processingDir string
	failedDir     string
	dlqDir        string
	mu            sync.Mutex
}

// NewQueue creates a queue under config.BasePath. Messages left in the
// processing directory by a previous run are returned to pending.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	q := &Queue[T]{
		fs:            fs,
		config:        config,
		pendingDir:    url.Join(config.BasePath, "pending"),
		processingDir: url.Join(config.BasePath, "processing"),
		failedDir:     url.Join(config.BasePath, "failed"),
		dlqDir:        url.Join(config.BasePath, "dlq"),
	}
	ctx := context.Background()
	for _, dir := range []string{q.pendingDir, q.processingDir, q.failedDir, q.dlqDir} {
		if exists, _ := fs.Exists(ctx, dir); !exists {
			if err := fs.Create(ctx, dir, file.DefaultDirOsMode, true); err != nil {
				return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}
	if err := q.recover(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue[T]) recover(ctx context.Context) error {
	objects, err := q.list(ctx, q.processingDir)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err = q.fs.Move(ctx, obj.URL(), url.Join(q.pendingDir, obj.Name())); err != nil {
			return fmt.Errorf("failed to recover message %s: %w", obj.Name(), err)
		}
	}
	return nil
}

// Publish writes a new message to the pending directory
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := time.Now()
	message := &Message[T]{
		ID:        uuid.New().String(),
		Data:      *t,
		State:     MessageStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	message.name = fmt.Sprintf("%019d-%s.json", now.UnixNano(), message.ID)
	return q.write(ctx, url.Join(q.pendingDir, message.name), message)
}

// Consume waits for the next message: a failed message whose retry delay
// elapsed first, otherwise the oldest pending one
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		message, err := q.next(ctx)
		if err != nil {
			return nil, err
		}
		if message != nil {
			return message, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.config.PollInterval):
		}
	}
}

func (q *Queue[T]) next(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	failed, err := q.list(ctx, q.failedDir)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for _, obj := range failed {
		message, err := q.read(ctx, obj)
		if err != nil {
			q.quarantine(ctx, obj, err)
			continue
		}
		if now.Sub(message.UpdatedAt) < q.config.RetryDelay {
			continue
		}
		return q.claim(ctx, obj, message)
	}
	pending, err := q.list(ctx, q.pendingDir)
	if err != nil {
		return nil, err
	}
	for _, obj := range pending {
		message, err := q.read(ctx, obj)
		if err != nil {
			q.quarantine(ctx, obj, err)
			continue
		}
		return q.claim(ctx, obj, message)
	}
	return nil, nil
}

func (q *Queue[T]) claim(ctx context.Context, obj storage.Object, message *Message[T]) (*Message[T], error) {
	message.State = MessageStateProcessing
	message.UpdatedAt = time.Now()
	if err := q.write(ctx, url.Join(q.processingDir, message.name), message); err != nil {
		return nil, fmt.Errorf("failed to move message to processing directory: %w", err)
	}
	if err := q.fs.Delete(ctx, obj.URL()); err != nil {
		return nil, fmt.Errorf("failed to delete claimed message %s: %w", obj.Name(), err)
	}
	return message, nil
}

func (q *Queue[T]) quarantine(ctx context.Context, obj storage.Object, cause error) {
	logger.Warn("moving unreadable message to dead letters", zap.String("file", obj.Name()), zap.Error(cause))
	_ = q.fs.Move(ctx, obj.URL(), url.Join(q.dlqDir, "invalid-"+obj.Name()))
}

func (q *Queue[T]) complete(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	processing := url.Join(q.processingDir, m.name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		if err := q.fs.Delete(ctx, processing); err != nil {
			return fmt.Errorf("failed to delete message from processing directory: %w", err)
		}
	}
	return nil
}

func (q *Queue[T]) fail(ctx context.Context, m *Message[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	dest := url.Join(q.failedDir, m.name)
	m.State = MessageStateFailed
	if m.Retries > q.config.MaxRetries {
		dest = url.Join(q.dlqDir, m.name)
		m.State = MessageStateDead
	}
	if err := q.write(ctx, dest, m); err != nil {
		return err
	}
	processing := url.Join(q.processingDir, m.name)
	if exists, _ := q.fs.Exists(ctx, processing); exists {
		if err := q.fs.Delete(ctx, processing); err != nil {
			return fmt.Errorf("failed to delete message from processing directory: %w", err)
		}
	}
	return nil
}

// DeadLetters returns dead-lettered messages
func (q *Queue[T]) DeadLetters(ctx context.Context) ([]*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	objects, err := q.list(ctx, q.dlqDir)
	if err != nil {
		return nil, err
	}
	var ret []*Message[T]
	for _, obj := range objects {
		if strings.HasPrefix(obj.Name(), "invalid-") {
			continue
		}
		message, err := q.read(ctx, obj)
		if err != nil {
			return nil, err
		}
		ret = append(ret, message)
	}
	return ret, nil
}

// list returns message files of dir ordered by name, oldest first
func (q *Queue[T]) list(ctx context.Context, dir string) ([]storage.Object, error) {
	objects, err := q.fs.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var ret []storage.Object
	for _, obj := range objects {
		if !obj.IsDir() && strings.HasSuffix(obj.Name(), ".json") {
			ret = append(ret, obj)
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name() < ret[j].Name() })
	return ret, nil
}

func (q *Queue[T]) write(ctx context.Context, URL string, m *Message[T]) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return q.fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader(data))
}

func (q *Queue[T]) read(ctx context.Context, obj storage.Object) (*Message[T], error) {
	data, err := q.fs.DownloadWithURL(ctx, obj.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to read message %s: %w", obj.URL(), err)
	}
	message := &Message[T]{}
	if err = json.Unmarshal(data, message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %s: %w", obj.URL(), err)
	}
	message.name = obj.Name()
	message.queue = q
	return message, nil
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
