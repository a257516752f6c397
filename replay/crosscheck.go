package replay

import (
	"fmt"

	"github.com/brutalist-labs/dtre/dtre"
	"github.com/brutalist-labs/dtre/state"
)

// ReplayCrossChecked runs txs through both the sequential driver (Replay)
// and the commutativity-partitioned parallel driver (ReplayParallel),
// starting each from an independent clone of the engine's current state,
// and compares every transition's resulting hash. It returns the
// sequential Result (the reference driver) alongside a
// *dtre.NonDeterministicError at the first index where the two drivers'
// state hashes disagree — a rule set that is not actually commutative
// over the keys a KeyedTransaction claims will surface here rather than
// as a silent, unreproducible divergence in production.
func (e *Engine) ReplayCrossChecked(txs []Transaction) (Result, error) {
	seqEngine, err := e.cloneWithFreshState()
	if err != nil {
		return Result{}, fmt.Errorf("replay: cross-check: clone for sequential run: %w", err)
	}
	parEngine, err := e.cloneWithFreshState()
	if err != nil {
		return Result{}, fmt.Errorf("replay: cross-check: clone for parallel run: %w", err)
	}

	seqResult, err := seqEngine.Replay(txs)
	if err != nil {
		return seqResult, err
	}
	parResult, err := parEngine.ReplayParallel(txs)
	if err != nil {
		return seqResult, err
	}

	if idx, ok := firstDivergence(seqResult, parResult); ok {
		nd := &dtre.NonDeterministicError{Index: idx}
		if idx < int64(len(seqResult.Trace.RuleApplications)) {
			nd.SequentialHash = seqResult.Trace.RuleApplications[idx].Transition.ToHash.String()
		}
		if idx < int64(len(parResult.Trace.RuleApplications)) {
			nd.ParallelHash = parResult.Trace.RuleApplications[idx].Transition.ToHash.String()
		}
		return seqResult, nd
	}

	return seqResult, nil
}

// cloneWithFreshState builds a new Engine sharing this one's rule set,
// execution context, and configuration, but starting from an independent
// copy of the current state — so two drivers can be run side by side
// without one's writes being visible to the other.
func (e *Engine) cloneWithFreshState() (*Engine, error) {
	mgr, err := state.NewManager(e.mgr.Current().Clone())
	if err != nil {
		return nil, err
	}
	return &Engine{
		mgr:     mgr,
		ruleSet: e.ruleSet,
		ctx:     e.ctx,
		cfg:     e.cfg,
	}, nil
}

// firstDivergence compares two Results' rule applications index by
// index and reports the first index whose ToHash differs, or ok=false if
// every matching index agrees (shorter result is compared only up to its
// own length; a length mismatch with no hash divergence still reports
// the first index past the shorter trace as a divergence, since "one
// driver stopped early" is itself non-determinism).
func firstDivergence(seq, par Result) (int64, bool) {
	n := len(seq.Trace.RuleApplications)
	if len(par.Trace.RuleApplications) < n {
		n = len(par.Trace.RuleApplications)
	}
	for i := 0; i < n; i++ {
		if seq.Trace.RuleApplications[i].Transition.ToHash != par.Trace.RuleApplications[i].Transition.ToHash {
			return int64(i), true
		}
	}
	if len(seq.Trace.RuleApplications) != len(par.Trace.RuleApplications) {
		return int64(n), true
	}
	return 0, false
}
