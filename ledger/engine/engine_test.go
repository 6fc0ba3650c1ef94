package engine

// This file contains utility code for testing the contention engines.

import (
	"context"
	"sync"

	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"

	"github.com/NhaLeTruc/oltp-demos-sub002/ledger/account"
	"github.com/NhaLeTruc/oltp-demos-sub002/ledger/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// scriptedStore is a Store double whose conflict behavior is controlled by
// the test: the first forceConflicts conditional writes are rejected
// regardless of version, everything after behaves normally. It lets retry
// paths be exercised deterministically, which real contention cannot.
type scriptedStore struct {
	mu             sync.Mutex
	id             string
	snap           account.Snapshot
	forceConflicts int

	// When set, LockingRead blocks until the channel is closed.
	lockGate chan struct{}
}

func newScriptedStore(id string, balance decimal.Decimal) *scriptedStore {
	return &scriptedStore{id: id, snap: account.Snapshot{Balance: balance}}
}

func (s *scriptedStore) Read(id string) (account.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.id {
		return account.Snapshot{}, errors.WithStack(store.ErrAccountNotFound)
	}
	return s.snap, nil
}

func (s *scriptedStore) ConditionalWrite(id string, newBalance decimal.Decimal, expectedVersion uint64) (store.WriteStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.id {
		return store.WriteConflict, errors.WithStack(store.ErrAccountNotFound)
	}
	if s.forceConflicts > 0 {
		s.forceConflicts--
		return store.WriteConflict, nil
	}
	if s.snap.Version != expectedVersion {
		return store.WriteConflict, nil
	}
	s.snap.Balance = newBalance
	s.snap.Version++
	return store.WriteCommitted, nil
}

func (s *scriptedStore) LockingRead(ctx context.Context, id string) (store.LockedAccount, error) {
	s.mu.Lock()
	gate := s.lockGate
	s.mu.Unlock()
	if id != s.id {
		return nil, errors.WithStack(store.ErrAccountNotFound)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		}
	}
	return &scriptedLock{store: s}, nil
}

type scriptedLock struct {
	store *scriptedStore
}

func (l *scriptedLock) Balance() decimal.Decimal {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	return l.store.snap.Balance
}

func (l *scriptedLock) Write(newBalance decimal.Decimal) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()
	l.store.snap.Balance = newBalance
	l.store.snap.Version++
	return nil
}

func (l *scriptedLock) Commit() {}
