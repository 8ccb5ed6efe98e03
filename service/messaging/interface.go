// Package messaging defines the queue abstraction carrying outbound
// notifications between the engine and delivery workers.
package messaging

import (
	"context"
	"errors"
)

// Vendor represents the name of a messaging vendor
type Vendor string

const (
	// VendorMemory keeps messages in process.
	VendorMemory Vendor = "memory"
	// VendorFs persists messages as files through afs.
	VendorFs Vendor = "fs"
)

// ErrQueueFull is returned by Publish when the queue can not accept a
// message without blocking.
var ErrQueueFull = errors.New("queue is full")

// Queue represents an abstract message queue for any payload type
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue; it never blocks
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue, waiting until one
	// is available or ctx is done
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue
type Message[T any] interface {
	// T returns the payload of this message
	T() *T

	// Attempt returns the 1-based delivery attempt
	Attempt() int

	// Ack acknowledges successful processing of this message
	Ack() error

	// Nack indicates failure in processing this message; the message is
	// redelivered until retries are exhausted, then dead-lettered
	Nack(err error) error
}

// ErrAlreadyProcessed is returned when a message is acked or nacked twice.
var ErrAlreadyProcessed = errors.New("message already processed")
