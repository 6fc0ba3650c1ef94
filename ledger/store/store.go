package store

import (
	"context"

	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"

	"github.com/NhaLeTruc/oltp-demos-sub002/ledger/account"
)

// ErrAccountNotFound is returned by any store operation given an unknown id.
var ErrAccountNotFound = errors.New("account not found")

// WriteStatus is the outcome of a conditional write. A version conflict is an
// expected result of running the optimistic protocol, so it is reported as a
// status rather than an error.
type WriteStatus int

const (
	// WriteCommitted means the version check passed and the new balance is
	// durable; the stored version was incremented by one.
	WriteCommitted WriteStatus = iota
	// WriteConflict means another writer committed since the caller's read;
	// nothing was written.
	WriteConflict
)

func (s WriteStatus) String() string {
	switch s {
	case WriteCommitted:
		return "committed"
	case WriteConflict:
		return "conflict"
	}
	return "unknown"
}

// Store is the data-access contract both contention engines run against. An
// implementation must provide durable reads, a compare-and-swap style
// version-checked write, and an exclusive per-record lock with FIFO queuing.
type Store interface {
	// Read returns a point-in-time snapshot of the account.
	Read(id string) (account.Snapshot, error)

	// ConditionalWrite installs newBalance iff the stored version still
	// equals expectedVersion. On success the version is incremented
	// atomically with the balance.
	ConditionalWrite(id string, newBalance decimal.Decimal, expectedVersion uint64) (WriteStatus, error)

	// LockingRead blocks until the caller holds the record's exclusive lock,
	// then returns a handle for reading and writing under that lock. The
	// caller must call Commit on the handle to release the lock; waiting is
	// abandoned if ctx is cancelled first.
	LockingRead(ctx context.Context, id string) (LockedAccount, error)
}

// LockedAccount is an exclusively locked record. Exactly one handle per
// record exists at a time; other LockingRead callers queue until Commit.
type LockedAccount interface {
	// Balance returns the balance as of lock acquisition, reflecting any
	// Write calls made through this handle since.
	Balance() decimal.Decimal

	// Write replaces the balance and bumps the version. Only valid before
	// Commit.
	Write(newBalance decimal.Decimal) error

	// Commit releases the lock. Idempotent; must be called on every exit
	// path, including after a failed Write.
	Commit()
}
