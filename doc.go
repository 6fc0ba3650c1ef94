package oltpdemos

/*
This module demonstrates how OLTP systems keep a contended row consistent
under concurrent writers. Two engines credit the same account record from many
workers at once and prove the final balance exactly accounts for every
committed update:

* optimistic locking: every attempt reads the record's version, writes back
  conditioned on that version being unchanged, and retries conflicts with
  exponential backoff and jitter;
* pessimistic locking: every attempt queues for an exclusive per-record lock,
  so conflicts never happen and no retries are needed.

The module is organized into the following packages:

* `ledger/account`: the versioned account record and snapshots of it.
* `ledger/store`: the storage contract the engines run against (plain read,
  version-checked conditional write, exclusive locking read) plus an
  in-memory implementation with a FIFO per-key lock table.
* `ledger/engine`: the two contention engines, a serialized-execution helper,
  and the statistics harness that verifies balance correctness.
* `ledger/engine/worker`: the bounded worker pool the engines schedule
  attempts on.
* `ledger/config`: engine tunables, loadable from toml.
* `ledger/metrics`: prometheus counters and histograms for conflicts,
  retries, lock waits, and commits.
*/
