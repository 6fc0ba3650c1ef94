package engine

import (
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"github.com/NhaLeTruc/oltp-demos-sub002/ledger/account"
)

// AggregateResult summarizes one engine run. The balance fields are the
// load-bearing part: ExpectedBalance is recomputed from the recorded outcomes,
// independently of anything the store reports, and BalanceCorrect asserts the
// store agrees.
type AggregateResult struct {
	Engine    string
	Attempts  int
	Succeeded int
	Failed    int

	// Optimistic-path statistics.
	TotalRetries int
	AvgRetries   float64
	// ConflictedAttempts is the number of attempts that hit at least one
	// version conflict; ConflictRate is its share of all attempts (percent).
	ConflictedAttempts int
	ConflictRate       float64
	// VersionDelta is finalVersion - initialVersion. Under optimistic
	// locking it must equal Succeeded.
	VersionDelta uint64

	// Pessimistic-path statistics.
	TotalLockWait time.Duration
	AvgLockWait   time.Duration
	MaxLockWait   time.Duration
	// Throughput is successful attempts per second of wall-clock time.
	Throughput float64

	InitialBalance  decimal.Decimal
	FinalBalance    decimal.Decimal
	ExpectedBalance decimal.Decimal
	BalanceCorrect  bool
	Elapsed         time.Duration

	// Outcomes keeps the per-attempt records the aggregate was computed
	// from, for callers that want to inspect individual attempts.
	Outcomes []AttemptOutcome
}

// BuildResult computes the aggregate for a finished run. It is a pure
// function of its arguments: calling it twice with the same inputs yields
// identical results.
func BuildResult(engine string, initial, final account.Snapshot, delta decimal.Decimal,
	outcomes []AttemptOutcome, elapsed time.Duration) *AggregateResult {

	res := &AggregateResult{
		Engine:         engine,
		Attempts:       len(outcomes),
		VersionDelta:   final.Version - initial.Version,
		InitialBalance: initial.Balance,
		FinalBalance:   final.Balance,
		Elapsed:        elapsed,
		Outcomes:       outcomes,
	}

	lockWaits := make([]float64, 0, len(outcomes))
	for _, out := range outcomes {
		if out.Status == StatusSuccess {
			res.Succeeded++
		} else {
			res.Failed++
		}
		res.TotalRetries += out.Retries
		if out.Conflicts > 0 {
			res.ConflictedAttempts++
		}
		res.TotalLockWait += out.LockWait
		lockWaits = append(lockWaits, out.LockWait.Seconds())
	}

	if res.Attempts > 0 {
		res.AvgRetries = float64(res.TotalRetries) / float64(res.Attempts)
		res.ConflictRate = 100 * float64(res.ConflictedAttempts) / float64(res.Attempts)
	}
	if avg, err := stats.Mean(lockWaits); err == nil {
		res.AvgLockWait = time.Duration(avg * float64(time.Second))
	}
	if max, err := stats.Max(lockWaits); err == nil {
		res.MaxLockWait = time.Duration(max * float64(time.Second))
	}
	if elapsed > 0 {
		res.Throughput = float64(res.Succeeded) / elapsed.Seconds()
	}

	res.ExpectedBalance = initial.Balance.Add(delta.Mul(decimal.NewFromInt(int64(res.Succeeded))))
	res.BalanceCorrect = res.FinalBalance.Equal(res.ExpectedBalance)
	return res
}
