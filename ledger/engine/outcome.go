package engine

import (
	"time"
)

// Status classifies how an update attempt ended.
type Status int

const (
	// StatusSuccess means the attempt committed its delta.
	StatusSuccess Status = iota
	// StatusFailed means the attempt exhausted its retry budget or hit an
	// unrecoverable store error.
	StatusFailed
	// StatusTimedOut means the run deadline fired before the attempt
	// reported back.
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed_out"
	}
	return "unknown"
}

// AttemptOutcome is the record a single worker hands back to the harness.
// Workers own their outcome until they send it; all aggregation happens in
// one place afterwards, so no counters are shared across goroutines.
type AttemptOutcome struct {
	// Index identifies the attempt in logs. Not correctness-relevant.
	Index int
	// Retries is how many times the attempt re-ran its read-modify-write
	// cycle after a version conflict. Always zero on the pessimistic path.
	Retries int
	// Conflicts is how many version conflicts the attempt saw in total,
	// including the one that exhausted the budget on a failed attempt.
	Conflicts int
	// LockWait is time spent queued for the exclusive lock. Always zero on
	// the optimistic path.
	LockWait time.Duration
	Status   Status
	// Err is set for failed attempts; it is reported, never re-raised.
	Err error
}
