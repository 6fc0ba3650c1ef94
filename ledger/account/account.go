package account

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Account is a single balance row in the ledger. Version counts committed
// updates: it goes up by exactly one per commit and never goes backwards.
// The optimistic write path checks it; the pessimistic path relies on the
// exclusive lock instead and only bumps it for the audit trail.
type Account struct {
	ID      string
	Balance decimal.Decimal
	Version uint64
}

// Snapshot is a point-in-time read of an account, detached from storage.
type Snapshot struct {
	Balance decimal.Decimal
	Version uint64
}

func (s Snapshot) String() string {
	return fmt.Sprintf("balance=%s version=%d", s.Balance.String(), s.Version)
}

// New returns an account with the given opening balance at version 0.
func New(id string, balance decimal.Decimal) *Account {
	return &Account{ID: id, Balance: balance}
}

// Snapshot copies the mutable fields so callers cannot observe later writes.
func (a *Account) Snapshot() Snapshot {
	return Snapshot{Balance: a.Balance, Version: a.Version}
}
