package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/approvo/service/messaging"
)

// Config for memory queue implementation
type Config struct {
	MaxRetries  int
	RetryDelay  time.Duration
	DeadLetter  bool
	QueueBuffer int
}

// DefaultConfig returns a standard configuration for memory queue
func DefaultConfig() Config {
	return Config{
		MaxRetries:  3,
		RetryDelay:  100 * time.Millisecond,
		DeadLetter:  true,
		QueueBuffer: 256,
	}
}

// Message implements messaging.Message for the in-memory queue
type Message[T any] struct {
	id        string
	payload   T
	queue     *Queue[T]
	attempt   int
	lastError string
	mu        sync.Mutex
	processed bool
}

// ID returns the message id; it is stable across redeliveries
func (m *Message[T]) ID() string { return m.id }

// T returns the message payload
func (m *Message[T]) T() *T {
	return &m.payload
}

// Attempt returns the 1-based delivery attempt
func (m *Message[T]) Attempt() int { return m.attempt }

// Error returns the last Nack cause
func (m *Message[T]) Error() string { return m.lastError }

// Ack acknowledges the message as processed successfully
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrAlreadyProcessed
	}
	m.processed = true
	return nil
}

// Nack schedules a redelivery after RetryDelay or dead-letters the message
// once MaxRetries redeliveries were made
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return messaging.ErrAlreadyProcessed
	}
	m.processed = true
	if err != nil {
		m.lastError = err.Error()
	}
	if m.attempt <= m.queue.config.MaxRetries {
		retry := &Message[T]{id: m.id, payload: m.payload, queue: m.queue, attempt: m.attempt + 1, lastError: m.lastError}
		m.queue.pending.Add(1)
		time.AfterFunc(m.queue.config.RetryDelay, func() {
			defer m.queue.pending.Done()
			m.queue.enqueue(retry)
		})
		return nil
	}
	if m.queue.config.DeadLetter {
		m.queue.dlqMu.Lock()
		m.queue.dlq = append(m.queue.dlq, m)
		m.queue.dlqMu.Unlock()
	}
	return nil
}

// Queue implements an in-memory messaging.Queue
type Queue[T any] struct {
	messages chan *Message[T]
	overflow []*Message[T]
	mu       sync.Mutex
	dlq      []*Message[T]
	dlqMu    sync.Mutex
	pending  sync.WaitGroup
	config   Config
}

// NewQueue creates a new in-memory queue
func NewQueue[T any](config Config) *Queue[T] {
	if config.QueueBuffer <= 0 {
		config.QueueBuffer = DefaultConfig().QueueBuffer
	}
	if config.RetryDelay < 0 {
		config.RetryDelay = 0
	}
	return &Queue[T]{
		messages: make(chan *Message[T], config.QueueBuffer),
		config:   config,
	}
}

// Publish adds a new item to the queue without blocking
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &Message[T]{id: uuid.New().String(), payload: *t, queue: q, attempt: 1}
	select {
	case q.messages <- msg:
		return nil
	default:
		return messaging.ErrQueueFull
	}
}

// enqueue places a redelivery; redeliveries are never dropped
func (q *Queue[T]) enqueue(msg *Message[T]) {
	select {
	case q.messages <- msg:
	default:
		q.mu.Lock()
		q.overflow = append(q.overflow, msg)
		q.mu.Unlock()
	}
}

func (q *Queue[T]) takeOverflow() *Message[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.overflow) == 0 {
		return nil
	}
	msg := q.overflow[0]
	q.overflow = q.overflow[1:]
	return msg
}

// Consume retrieves a single item from the queue
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	if msg := q.takeOverflow(); msg != nil {
		return msg, nil
	}
	select {
	case msg := <-q.messages:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Size returns the current number of messages in the queue
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages) + len(q.overflow)
}

// DLQSize returns the number of messages in the dead letter queue
func (q *Queue[T]) DLQSize() int {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return len(q.dlq)
}

// DeadLetters returns the payloads of dead-lettered messages
func (q *Queue[T]) DeadLetters() []*Message[T] {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return append([]*Message[T](nil), q.dlq...)
}

// Wait blocks until every scheduled redelivery was enqueued
func (q *Queue[T]) Wait() {
	q.pending.Wait()
}

// ensure Queue implements messaging.Queue interface
var _ messaging.Queue[any] = (*Queue[any])(nil)
