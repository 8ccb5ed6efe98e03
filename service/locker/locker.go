// Package locker serializes mutations per entity key, in process or across
// processes sharing a redis server.
package locker

import "context"

// Release frees an acquired lock. It is safe to call more than once.
type Release func()

// Locker acquires exclusive per-key locks.
type Locker interface {
	// Lock blocks until the key is acquired or ctx is done.
	Lock(ctx context.Context, key string) (Release, error)
}
