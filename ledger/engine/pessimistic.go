package engine

import (
	"context"
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

// Pessimistic runs concurrent updates under exclusive record locks: every
// attempt blocks in the store's FIFO lock queue, then reads, writes, and
// commits while no other writer can touch the record. Conflicts are prevented
// rather than resolved, so there are no retries and every attempt is expected
// to succeed.
type Pessimistic struct {
	store store.Store
	conf  *config.Config
}

func NewPessimistic(s store.Store, conf *config.Config) *Pessimistic {
	return &Pessimistic{store: s, conf: conf}
}

// Run launches concurrency attempts, each crediting delta to the account
// under the exclusive lock, and blocks until all report back or the run
// deadline fires. Lock waits, however long, are never a failure by
// themselves; only store errors fail an attempt.
func (e *Pessimistic) Run(ctx context.Context, id string, delta decimal.Decimal, concurrency int) (*AggregateResult, error) {
	if concurrency <= 0 {
		return nil, errors.Errorf("concurrency must be positive, got %d", concurrency)
	}
	initial, err := e.store.Read(id)
	if err != nil {
		return nil, err
	}

	log.Info("starting pessimistic run",
		zap.String("account", id),
		zap.String("delta", delta.String()),
		zap.Int("concurrency", concurrency))

	start := time.Now()
	pool := worker.NewPool("pessimistic", min(e.conf.MaxWorkers, concurrency))
	results := make(chan AttemptOutcome, concurrency)
	for i := 0; i < concurrency; i++ {
		index := i
		pool.Submit(func() {
			results <- e.attempt(ctx, id, delta, index)
		})
	}

	outcomes, timedOut := collect(ctx, results, concurrency, e.conf.RunTimeout)
	if timedOut {
		go pool.Stop()
	} else {
		pool.Stop()
	}

	final, err := e.store.Read(id)
	if err != nil {
		return nil, err
	}
	res := BuildResult("pessimistic", initial, final, delta, outcomes, time.Since(start))
	for _, out := range outcomes {
		metrics.AttemptCounter.WithLabelValues("pessimistic", out.Status.String()).Inc()
	}

	log.Info("pessimistic run finished",
		zap.String("account", id),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Duration("total-lock-wait", res.TotalLockWait),
		zap.Duration("max-lock-wait", res.MaxLockWait),
		zap.Float64("throughput", res.Throughput),
		zap.Bool("balance-correct", res.BalanceCorrect),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// attempt acquires the lock, applies the delta, and commits. The commit
// releases the lock on every exit path.
func (e *Pessimistic) attempt(ctx context.Context, id string, delta decimal.Decimal, index int) AttemptOutcome {
	out := AttemptOutcome{Index: index}

	waitStart := time.Now()
	locked, err := e.store.LockingRead(ctx, id)
	out.LockWait = time.Since(waitStart)
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	defer locked.Commit()

	if err := locked.Write(locked.Balance().Add(delta)); err != nil {
		out.Status = StatusFailed
		out.Err = err
		return out
	}
	out.Status = StatusSuccess
	return out
}

// SerializedStep records the balance after one update applied under the
// long-lived lock.
type SerializedStep struct {
	Index   int
	Delta   decimal.Decimal
	Balance decimal.Decimal
}

// SerializedTrace is the balance history of a RunSerialized call.
type SerializedTrace struct {
	Initial decimal.Decimal
	Steps   []SerializedStep
	Final   decimal.Decimal
	Elapsed time.Duration
}

// RunSerialized holds the exclusive lock once across the whole delta
// sequence: acquire, apply every update in submission order, release. The
// returned trace shows the balance after each step with no interleaving from
// other writers.
func (e *Pessimistic) RunSerialized(ctx context.Context, id string, deltas []decimal.Decimal) (*SerializedTrace, error) {
	start := time.Now()
	locked, err := e.store.LockingRead(ctx, id)
	if err != nil {
		return nil, err
	}
	defer locked.Commit()

	trace := &SerializedTrace{
		Initial: locked.Balance(),
		Steps:   make([]SerializedStep, 0, len(deltas)),
	}
	balance := trace.Initial
	for i, delta := range deltas {
		balance = balance.Add(delta)
		if err := locked.Write(balance); err != nil {
			return nil, err
		}
		trace.Steps = append(trace.Steps, SerializedStep{Index: i, Delta: delta, Balance: balance})
	}
	trace.Final = balance
	trace.Elapsed = time.Since(start)

	log.Info("serialized run finished",
		zap.String("account", id),
		zap.Int("updates", len(deltas)),
		zap.String("final-balance", trace.Final.String()),
		zap.Duration("elapsed", trace.Elapsed))
	return trace, nil
}
