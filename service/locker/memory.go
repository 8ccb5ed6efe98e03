package locker

import (
	"context"
	"sync"
)

type entry struct {
	slot chan struct{}
	refs int
}

// Memory is an in-process keyed mutex. Idle keys are released.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemory creates an in-process locker.
func NewMemory() *Memory {
	return &Memory{entries: map[string]*entry{}}
}

func (m *Memory) acquireEntry(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		e = &entry{slot: make(chan struct{}, 1)}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Memory) releaseEntry(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}

// Lock acquires key.
func (m *Memory) Lock(ctx context.Context, key string) (Release, error) {
	e := m.acquireEntry(key)
	select {
	case e.slot <- struct{}{}:
	case <-ctx.Done():
		m.releaseEntry(key, e)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.slot
			m.releaseEntry(key, e)
		})
	}, nil
}

// Size returns the number of keys currently held or awaited.
func (m *Memory) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

var _ Locker = (*Memory)(nil)
