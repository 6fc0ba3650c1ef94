package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestReadUnknownAccount(t *testing.T) {
	ms := NewMemStore()
	_, err := ms.Read("missing")
	assert.True(t, errors.Cause(err) == ErrAccountNotFound)
}

func TestSeedAndRead(t *testing.T) {
	ms := NewMemStore()
	ms.Seed("acc-1", dec("10000.00"))
	require.Equal(t, 1, ms.Len())

	snap, err := ms.Read("acc-1")
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("10000.00")))
	assert.Equal(t, uint64(0), snap.Version)
}

func TestConditionalWriteCommit(t *testing.T) {
	ms := NewMemStore()
	ms.Seed("acc-1", dec("100.00"))

	status, err := ms.ConditionalWrite("acc-1", dec("101.00"), 0)
	require.NoError(t, err)
	assert.Equal(t, WriteCommitted, status)

	snap, err := ms.Read("acc-1")
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("101.00")))
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, int64(1), ms.Commits())
}

func TestConditionalWriteConflict(t *testing.T) {
	ms := NewMemStore()
	ms.Seed("acc-1", dec("100.00"))

	// A concurrent writer commits first; a stale expected version must be
	// rejected without touching the record.
	_, err := ms.ConditionalWrite("acc-1", dec("101.00"), 0)
	require.NoError(t, err)

	status, err := ms.ConditionalWrite("acc-1", dec("102.00"), 0)
	require.NoError(t, err)
	assert.Equal(t, WriteConflict, status)
	assert.Equal(t, int64(1), ms.Conflicts())

	snap, err := ms.Read("acc-1")
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("101.00")))
	assert.Equal(t, uint64(1), snap.Version)
}

func TestConditionalWriteUnknownAccount(t *testing.T) {
	ms := NewMemStore()
	_, err := ms.ConditionalWrite("missing", dec("1.00"), 0)
	assert.True(t, errors.Cause(err) == ErrAccountNotFound)
}

func TestLockingReadWriteCommit(t *testing.T) {
	ms := NewMemStore()
	ms.Seed("acc-1", dec("100.00"))

	locked, err := ms.LockingRead(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.True(t, locked.Balance().Equal(dec("100.00")))

	require.NoError(t, locked.Write(dec("150.00")))
	locked.Commit()
	// Commit twice must be harmless.
	locked.Commit()

	snap, err := ms.Read("acc-1")
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("150.00")))
	assert.Equal(t, uint64(1), snap.Version)
}

func TestWriteAfterCommitRejected(t *testing.T) {
	ms := NewMemStore()
	ms.Seed("acc-1", dec("100.00"))

	locked, err := ms.LockingRead(context.Background(), "acc-1")
	require.NoError(t, err)
	locked.Commit()
	assert.Error(t, locked.Write(dec("999.00")))

	snap, err := ms.Read("acc-1")
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(dec("100.00")))
}

func TestLockingReadUnknownAccount(t *testing.T) {
	ms := NewMemStore()
	_, err := ms.LockingRead(context.Background(), "missing")
	assert.True(t, errors.Cause(err) == ErrAccountNotFound)
}

func TestLockingReadMutualExclusion(t *testing.T) {
	ms := NewMemStore()
	ms.Seed("acc-1", dec("0.00"))

	locked, err := ms.LockingRead(context.Background(), "acc-1")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		second, err := ms.LockingRead(context.Background(), "acc-1")
		require.NoError(t, err)
		close(acquired)
		second.Commit()
	}()

	select {
	case <-acquired:
		t.Fatal("second LockingRead succeeded while lock was held")
	case <-time.After(50 * time.Millisecond):
	}

	locked.Commit()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second LockingRead not granted after release")
	}
}

func TestLockingReadCancelledWhileQueued(t *testing.T) {
	ms := NewMemStore()
	ms.Seed("acc-1", dec("0.00"))

	locked, err := ms.LockingRead(context.Background(), "acc-1")
	require.NoError(t, err)
	defer locked.Commit()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = ms.LockingRead(ctx, "acc-1")
	assert.True(t, errors.Cause(err) == context.DeadlineExceeded)
}

func TestLockingReadSerializesWriters(t *testing.T) {
	const writers = 50
	ms := NewMemStore()
	ms.Seed("acc-1", dec("0.00"))

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locked, err := ms.LockingRead(context.Background(), "acc-1")
			require.NoError(t, err)
			defer locked.Commit()
			require.NoError(t, locked.Write(locked.Balance().Add(dec("1.00"))))
		}()
	}
	wg.Wait()

	snap, err := ms.Read("acc-1")
	require.NoError(t, err)
	assert.True(t, snap.Balance.Equal(decimal.NewFromInt(writers)))
	assert.Equal(t, uint64(writers), snap.Version)
}
