package store

import (
	"context"
	"sync"

	"github.com/pingcap/errors"
)

// lockTable hands out exclusive per-key locks. Waiters queue in arrival order
// and the lock is transferred directly to the head of the queue on release,
// so grants are FIFO. Access to the table is guarded by a single mutex; all
// per-key state lives in lockQueue.
type lockTable struct {
	mu     sync.Mutex
	queues map[string]*lockQueue
}

type lockQueue struct {
	// held is true while some caller owns the key, including the instant the
	// lock is transferred to a waiter.
	held    bool
	waiters []chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{queues: make(map[string]*lockQueue)}
}

// acquire blocks until the caller owns key or ctx is cancelled. On a nil
// return the caller must eventually call release.
func (lt *lockTable) acquire(ctx context.Context, key string) error {
	lt.mu.Lock()
	q, ok := lt.queues[key]
	if !ok {
		q = new(lockQueue)
		lt.queues[key] = q
	}
	if !q.held {
		q.held = true
		lt.mu.Unlock()
		return nil
	}
	// Buffered so a release never blocks on a waiter that is mid-cancel.
	grant := make(chan struct{}, 1)
	q.waiters = append(q.waiters, grant)
	lt.mu.Unlock()

	select {
	case <-grant:
		return nil
	case <-ctx.Done():
		lt.mu.Lock()
		for i, w := range q.waiters {
			if w == grant {
				q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
				lt.mu.Unlock()
				return errors.WithStack(ctx.Err())
			}
		}
		// The grant raced with cancellation: we own the lock after all and
		// must pass it on.
		lt.releaseLocked(key)
		lt.mu.Unlock()
		return errors.WithStack(ctx.Err())
	}
}

// release wakes the longest-waiting caller for key, if any.
func (lt *lockTable) release(key string) {
	lt.mu.Lock()
	lt.releaseLocked(key)
	lt.mu.Unlock()
}

func (lt *lockTable) releaseLocked(key string) {
	q := lt.queues[key]
	if q == nil || !q.held {
		return
	}
	if len(q.waiters) == 0 {
		delete(lt.queues, key)
		return
	}
	next := q.waiters[0]
	q.waiters = q.waiters[1:]
	// held stays true: ownership transfers to the woken waiter.
	next <- struct{}{}
}
