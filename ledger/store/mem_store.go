package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/atomic"

	"github.com/NhaLeTruc/oltp-demos-sub002/ledger/account"
	"github.com/NhaLeTruc/oltp-demos-sub002/ledger/metrics"
)

const btreeDegree = 8

// MemStore is an in-memory Store backed by a btree keyed on account id. It
// provides the locking and version-check semantics the engines need without a
// real database behind them, so it doubles as the test fixture. Data is not
// written to disk.
type MemStore struct {
	mu       sync.RWMutex
	accounts *btree.BTree
	locks    *lockTable

	conflicts atomic.Int64
	commits   atomic.Int64
}

type accountItem struct {
	acct *account.Account
}

func (it accountItem) Less(than btree.Item) bool {
	return it.acct.ID < than.(accountItem).acct.ID
}

func NewMemStore() *MemStore {
	return &MemStore{
		accounts: btree.New(btreeDegree),
		locks:    newLockTable(),
	}
}

// Seed inserts or resets an account at the given balance with version 0.
func (ms *MemStore) Seed(id string, balance decimal.Decimal) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.accounts.ReplaceOrInsert(accountItem{acct: account.New(id, balance)})
}

// Len returns the number of accounts held.
func (ms *MemStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.accounts.Len()
}

// Conflicts returns how many conditional writes were rejected so far.
func (ms *MemStore) Conflicts() int64 {
	return ms.conflicts.Load()
}

// Commits returns how many writes committed so far, on either path.
func (ms *MemStore) Commits() int64 {
	return ms.commits.Load()
}

// get must be called with ms.mu held.
func (ms *MemStore) get(id string) *account.Account {
	item := ms.accounts.Get(accountItem{acct: &account.Account{ID: id}})
	if item == nil {
		return nil
	}
	return item.(accountItem).acct
}

func (ms *MemStore) Read(id string) (account.Snapshot, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	acct := ms.get(id)
	if acct == nil {
		return account.Snapshot{}, errors.WithStack(ErrAccountNotFound)
	}
	return acct.Snapshot(), nil
}

func (ms *MemStore) ConditionalWrite(id string, newBalance decimal.Decimal, expectedVersion uint64) (WriteStatus, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	acct := ms.get(id)
	if acct == nil {
		return WriteConflict, errors.WithStack(ErrAccountNotFound)
	}
	if acct.Version != expectedVersion {
		ms.conflicts.Inc()
		metrics.ConflictCounter.Inc()
		return WriteConflict, nil
	}
	acct.Balance = newBalance
	acct.Version++
	ms.commits.Inc()
	metrics.CommitCounter.WithLabelValues("optimistic").Inc()
	return WriteCommitted, nil
}

func (ms *MemStore) LockingRead(ctx context.Context, id string) (LockedAccount, error) {
	// Existence is checked before queueing so an unknown id fails fast
	// instead of waiting behind real lock holders.
	ms.mu.RLock()
	acct := ms.get(id)
	ms.mu.RUnlock()
	if acct == nil {
		return nil, errors.WithStack(ErrAccountNotFound)
	}

	start := time.Now()
	if err := ms.locks.acquire(ctx, id); err != nil {
		return nil, err
	}
	metrics.LockWaitHistogram.Observe(time.Since(start).Seconds())

	return &lockedAccount{store: ms, id: id}, nil
}

// lockedAccount is the exclusive handle a LockingRead returns. The zero-value
// released flag flips exactly once in Commit.
type lockedAccount struct {
	store    *MemStore
	id       string
	released bool
	relMu    sync.Mutex
}

func (la *lockedAccount) Balance() decimal.Decimal {
	la.store.mu.RLock()
	defer la.store.mu.RUnlock()
	return la.store.get(la.id).Balance
}

func (la *lockedAccount) Write(newBalance decimal.Decimal) error {
	la.relMu.Lock()
	defer la.relMu.Unlock()
	if la.released {
		return errors.Errorf("write to %s after lock release", la.id)
	}
	la.store.mu.Lock()
	defer la.store.mu.Unlock()
	acct := la.store.get(la.id)
	if acct == nil {
		return errors.WithStack(ErrAccountNotFound)
	}
	acct.Balance = newBalance
	acct.Version++
	la.store.commits.Inc()
	metrics.CommitCounter.WithLabelValues("pessimistic").Inc()
	return nil
}

func (la *lockedAccount) Commit() {
	la.relMu.Lock()
	defer la.relMu.Unlock()
	if la.released {
		return
	}
	la.released = true
	la.store.locks.release(la.id)
}
