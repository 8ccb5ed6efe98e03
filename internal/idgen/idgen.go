// Package idgen wraps the UUID generator so that it can be stubbed in tests.
// Callers treat identifiers as opaque strings.
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// NewFunc returns a new globally unique identifier.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new identifier.
func New() string { return NewFunc() }

// Sequence replaces NewFunc with a deterministic generator producing
// prefix-1, prefix-2, ... and returns a restore function.
func Sequence(prefix string) func() {
	prev := NewFunc
	var counter int64
	NewFunc = func() string {
		return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&counter, 1))
	}
	return func() { NewFunc = prev }
}
