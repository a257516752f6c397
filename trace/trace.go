// Package trace holds the append-only record of a replay: every state
// transition, every rule application, every error encountered, and the
// chained hash that binds them together, plus the separate, never-hashed
// performance metrics collected alongside it.
package trace

import (
	"time"

	"github.com/brutalist-labs/dtre/hashing"
	"github.com/brutalist-labs/dtre/state"
)

// RuleApplication records one call into a rule set: which transaction
// and the resulting transition. replay.Engine holds a bare rules.RuleSet
// with no version, so it leaves RuleVersion empty.
type RuleApplication struct {
	TransactionID string
	RuleVersion   string
	Transition    state.Transition
	Index         int64
}

// ErrorContext records a transaction that failed to apply. replay.Engine
// stops at the first failure, so a trace it produces holds at most one.
type ErrorContext struct {
	TransactionID string
	Index         int64
	Message       string
}

// Trace is the append-only record produced by one replay.Engine.Replay
// or ReplayParallel call. ChainedHash is the fold of every
// RuleApplication's ToHash, in index order (hashing.HashChain of those
// digests) — recomputing it from Transitions must always reproduce the
// same value. replay's determinism and parallel-equivalence tests compare
// it across runs.
type Trace struct {
	Transitions      []state.Transition
	RuleApplications []RuleApplication
	Errors           []ErrorContext
	ChainedHash      hashing.Digest
}

// Append records a successful application and extends the running
// chained hash by one step, rather than re-folding every prior digest on
// each call — a replay of n transactions does O(n) work across all of its
// Append calls, not O(n^2). Callers append in strict index order; Trace
// never reorders entries itself.
func (t *Trace) Append(app RuleApplication) {
	prevChain := t.ChainedHash
	if len(t.RuleApplications) == 0 {
		prevChain = hashing.EmptyChain()
	}
	t.Transitions = append(t.Transitions, app.Transition)
	t.RuleApplications = append(t.RuleApplications, app)
	t.ChainedHash = hashing.ChainStep(prevChain, app.Transition.ToHash)
}

// AppendError records a failed transaction application without touching
// ChainedHash — a failure contributes no new state and so contributes no
// new hash to the chain.
func (t *Trace) AppendError(ec ErrorContext) {
	t.Errors = append(t.Errors, ec)
}

// Len returns the number of successful rule applications recorded.
func (t *Trace) Len() int {
	return len(t.RuleApplications)
}

// PerformanceMetrics is observability data collected alongside a replay.
// RunID and TotalWallDuration are stamped for operator correlation only: neither
// ever participates in ChainedHash or any other hashed value, which is
// the concrete form of the trace-vs-metric separation this module
// enforces — two replays of the same input always produce the same
// Trace even though their PerformanceMetrics will differ.
type PerformanceMetrics struct {
	RunID             string
	TransactionCount  int
	Durations         []time.Duration
	WorkerCounts      map[int]int
	TotalWallDuration time.Duration
}
