package replay

import (
	"log/slog"
	"time"

	"github.com/brutalist-labs/dtre/dtre"
	"github.com/brutalist-labs/dtre/state"
	"github.com/brutalist-labs/dtre/trace"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ReplayParallel applies txs to the engine's current state using the
// commutativity-partitioned strategy: consecutive transactions that all
// implement KeyedTransaction and whose AccountKeys are pairwise disjoint
// are computed concurrently against the same starting state, then
// committed to the manager in their original index order. A transaction
// that does not implement KeyedTransaction, or whose keys overlap an
// already-batched sibling, starts a new batch instead of being folded
// into the current one.
//
// Committing in index order — even though candidates were computed out
// of order — is necessary but not sufficient to match Replay's FinalHash:
// every rules.RuleSet.Apply call returns a whole next state rather than a
// delta, so committing several candidates that were all computed against
// the same pre-batch snapshot would overwrite, not accumulate, their
// effects. To actually get both the concurrency and the right answer,
// the state.Type must implement state.Mergeable, so each candidate past
// the first in a batch can be spliced — just its own AccountKeys — onto
// the state its batch-mates have already committed. A Type that does not
// implement Mergeable is still replayed correctly: its batches are
// applied one transaction at a time against the evolving state, which
// sacrifices the wall-clock benefit for that batch but never the result.
func (e *Engine) ReplayParallel(txs []Transaction) (Result, error) {
	runID := uuid.Must(uuid.NewV7()).String()
	start := time.Now()

	maxWorkers := e.cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	slog.Info("parallel replay starting", "run_id", runID, "transaction_count", len(txs), "max_workers", maxWorkers)

	var tr trace.Trace
	durations := make([]time.Duration, 0, len(txs))
	workerCounts := make(map[int]int)

	i := 0
	for i < len(txs) {
		batch := collectDisjointBatch(txs, i)

		for _, idx := range batch {
			if err := txs[idx].Validate(); err != nil {
				index := int64(idx)
				slog.Error("transaction failed validation", "run_id", runID, "index", index, "tx_id", txs[idx].ID(), "error", err)
				tr.AppendError(trace.ErrorContext{TransactionID: txs[idx].ID(), Index: index, Message: err.Error()})
				return e.result(runID, tr, nil, durations, start), &dtre.ValidationError{
					TransactionID: txs[idx].ID(),
					Index:         index,
					Message:       err.Error(),
				}
			}
		}

		base := e.mgr.Current()
		_, mergeable := base.(state.Mergeable)

		var candidates []state.Type
		var applyErrs []error

		if mergeable && len(batch) > 1 {
			candidates = make([]state.Type, len(batch))
			applyErrs = make([]error, len(batch))

			g := new(errgroup.Group)
			g.SetLimit(maxWorkers)
			for bi, idx := range batch {
				bi, idx := bi, idx
				g.Go(func() error {
					candidate, err := e.ruleSet.Apply(base.Clone(), txs[idx], e.ctx, int64(idx))
					candidates[bi] = candidate
					applyErrs[bi] = err
					return nil
				})
			}
			_ = g.Wait()

			workerCounts[len(batch)]++
		} else {
			workerCounts[1] += len(batch)
		}

		for bi, idx := range batch {
			index := int64(idx)
			txStart := time.Now()

			var candidate state.Type
			if mergeable && len(batch) > 1 {
				if err := applyErrs[bi]; err != nil {
					slog.Error("rule set application failed", "run_id", runID, "index", index, "tx_id", txs[idx].ID(), "error", err)
					tr.AppendError(trace.ErrorContext{TransactionID: txs[idx].ID(), Index: index, Message: err.Error()})
					return e.result(runID, tr, nil, durations, start), &dtre.ProcessingError{
						TransactionID: txs[idx].ID(),
						Index:         index,
						Message:       err.Error(),
					}
				}
				if bi == 0 {
					candidate = candidates[bi]
				} else {
					kt := txs[idx].(KeyedTransaction)
					candidate = e.mgr.Current().(state.Mergeable).MergeFrom(candidates[bi], kt.AccountKeys())
				}
			} else {
				c, err := e.ruleSet.Apply(e.mgr.Current().Clone(), txs[idx], e.ctx, index)
				if err != nil {
					slog.Error("rule set application failed", "run_id", runID, "index", index, "tx_id", txs[idx].ID(), "error", err)
					tr.AppendError(trace.ErrorContext{TransactionID: txs[idx].ID(), Index: index, Message: err.Error()})
					return e.result(runID, tr, nil, durations, start), &dtre.ProcessingError{
						TransactionID: txs[idx].ID(),
						Index:         index,
						Message:       err.Error(),
					}
				}
				candidate = c
			}

			transition, err := e.mgr.ApplyTransaction(txs[idx].ID(), candidate)
			if err != nil {
				slog.Error("state transition rejected", "run_id", runID, "index", index, "tx_id", txs[idx].ID(), "error", err)
				tr.AppendError(trace.ErrorContext{TransactionID: txs[idx].ID(), Index: index, Message: err.Error()})
				return e.result(runID, tr, nil, durations, start), &dtre.StateError{
					TransactionID: txs[idx].ID(),
					Index:         index,
					Message:       err.Error(),
				}
			}

			tr.Append(trace.RuleApplication{
				TransactionID: txs[idx].ID(),
				Transition:    transition,
				Index:         index,
			})
			durations = append(durations, time.Since(txStart))
		}

		i += len(batch)
	}

	slog.Info("parallel replay finished", "run_id", runID, "final_hash", e.mgr.CurrentHash().String())

	result := e.result(runID, tr, nil, durations, start)
	result.Metrics.WorkerCounts = workerCounts
	return result, nil
}

// collectDisjointBatch returns the indices, starting at i, of the longest
// run of KeyedTransactions whose AccountKeys are pairwise disjoint. If
// txs[i] does not implement KeyedTransaction, the batch is just {i} — a
// non-keyed transaction is always applied alone, since there is no way to
// know it is safe to run concurrently with anything else.
func collectDisjointBatch(txs []Transaction, i int) []int {
	first, ok := txs[i].(KeyedTransaction)
	if !ok {
		return []int{i}
	}

	seen := make(map[string]bool)
	for _, k := range first.AccountKeys() {
		seen[k] = true
	}
	batch := []int{i}

	for j := i + 1; j < len(txs); j++ {
		kt, ok := txs[j].(KeyedTransaction)
		if !ok {
			break
		}
		keys := kt.AccountKeys()
		conflict := false
		for _, k := range keys {
			if seen[k] {
				conflict = true
				break
			}
		}
		if conflict {
			break
		}
		for _, k := range keys {
			seen[k] = true
		}
		batch = append(batch, j)
	}

	return batch
}
