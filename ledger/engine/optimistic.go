package engine

import (
	"context"
	"math/rand"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/NhaLeTruc/oltp-demos-sub002/ledger/config"
	"github.com/NhaLeTruc/oltp-demos-sub002/ledger/engine/worker"
	"github.com/NhaLeTruc/oltp-demos-sub002/ledger/metrics"
	"github.com/NhaLeTruc/oltp-demos-sub002/ledger/store"
)

// Optimistic runs concurrent updates with no blocking: every attempt reads
// the record, applies its delta in memory, and writes back conditioned on the
// version being unchanged. Conflicts are retried with exponential backoff and
// jitter up to the configured budget. Each attempt schedules its own sleeps;
// there is no central arbiter deciding retry order, mirroring independent
// clients hitting the same row.
type Optimistic struct {
	store store.Store
	conf  *config.Config
}

func NewOptimistic(s store.Store, conf *config.Config) *Optimistic {
	return &Optimistic{store: s, conf: conf}
}

// Run launches concurrency attempts, each crediting delta to the account,
// and blocks until all report back or the run deadline fires. The only
// caller-visible failure is an unknown account id; attempt failures are
// aggregated into the result instead.
func (e *Optimistic) Run(ctx context.Context, id string, delta decimal.Decimal, concurrency int) (*AggregateResult, error) {
	if concurrency <= 0 {
		return nil, errors.Errorf("concurrency must be positive, got %d", concurrency)
	}
	initial, err := e.store.Read(id)
	if err != nil {
		return nil, err
	}

	log.Info("starting optimistic run",
		zap.String("account", id),
		zap.String("delta", delta.String()),
		zap.Int("concurrency", concurrency))

	start := time.Now()
	pool := worker.NewPool("optimistic", min(e.conf.MaxWorkers, concurrency))
	results := make(chan AttemptOutcome, concurrency)
	for i := 0; i < concurrency; i++ {
		index := i
		pool.Submit(func() {
			results <- e.attempt(ctx, id, delta, index)
		})
	}

	outcomes, timedOut := collect(ctx, results, concurrency, e.conf.RunTimeout)
	if timedOut {
		// Stragglers still hold workers; let the pool drain off to the side.
		go pool.Stop()
	} else {
		pool.Stop()
	}

	final, err := e.store.Read(id)
	if err != nil {
		return nil, err
	}
	res := BuildResult("optimistic", initial, final, delta, outcomes, time.Since(start))
	for _, out := range outcomes {
		metrics.AttemptCounter.WithLabelValues("optimistic", out.Status.String()).Inc()
	}

	log.Info("optimistic run finished",
		zap.String("account", id),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Int("retries", res.TotalRetries),
		zap.Float64("conflict-rate", res.ConflictRate),
		zap.Bool("balance-correct", res.BalanceCorrect),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// attempt drives one read-modify-write cycle through the retry state machine
// until it commits, exhausts the budget, or hits an unrecoverable error.
func (e *Optimistic) attempt(ctx context.Context, id string, delta decimal.Decimal, index int) AttemptOutcome {
	out := AttemptOutcome{Index: index}
	for {
		snap, err := e.store.Read(id)
		if err != nil {
			out.Status = StatusFailed
			out.Err = err
			return out
		}
		status, err := e.store.ConditionalWrite(id, snap.Balance.Add(delta), snap.Version)
		if err != nil {
			out.Status = StatusFailed
			out.Err = err
			return out
		}
		if status == store.WriteCommitted {
			out.Status = StatusSuccess
			return out
		}

		out.Conflicts++
		if out.Retries == e.conf.MaxRetries {
			out.Status = StatusFailed
			out.Err = errors.Errorf("version conflict still present after %d retries", out.Retries)
			return out
		}
		out.Retries++
		metrics.RetryCounter.Inc()
		log.Debug("version conflict, backing off",
			zap.Int("attempt", index),
			zap.Int("retry", out.Retries),
			zap.Uint64("read-version", snap.Version))
		if err := sleepBackoff(ctx, e.conf.BackoffBase, out.Retries); err != nil {
			// Interrupted mid-backoff: do not resume sleeping, fail the
			// attempt.
			out.Status = StatusFailed
			out.Err = err
			return out
		}
	}
}

// sleepBackoff sleeps base * 2^(retry-1) plus uniform jitter up to half of
// that, or returns early if ctx is cancelled.
func sleepBackoff(ctx context.Context, base time.Duration, retry int) error {
	backoff := base << uint(retry-1)
	jitter := time.Duration(rand.Int63n(int64(backoff/2) + 1))
	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return errors.WithStack(ctx.Err())
	}
}

// collect reads attempt outcomes until all arrive, the run deadline fires, or
// ctx is cancelled. Attempts that never reported are recorded as timed out.
func collect(ctx context.Context, results <-chan AttemptOutcome, concurrency int, timeout time.Duration) ([]AttemptOutcome, bool) {
	outcomes := make([]AttemptOutcome, 0, concurrency)
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	timedOut := false
loop:
	for len(outcomes) < concurrency {
		select {
		case out := <-results:
			outcomes = append(outcomes, out)
		case <-deadline.C:
			timedOut = true
			break loop
		case <-ctx.Done():
			timedOut = true
			break loop
		}
	}
	for i := len(outcomes); i < concurrency; i++ {
		outcomes = append(outcomes, AttemptOutcome{
			Index:  -1,
			Status: StatusTimedOut,
			Err:    errors.New("run deadline exceeded before attempt finished"),
		})
	}
	return outcomes, timedOut
}
