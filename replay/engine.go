package replay

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/brutalist-labs/dtre/dtre"
	"github.com/brutalist-labs/dtre/dtre/config"
	"github.com/brutalist-labs/dtre/execctx"
	"github.com/brutalist-labs/dtre/hashing"
	"github.com/brutalist-labs/dtre/rules"
	"github.com/brutalist-labs/dtre/state"
	"github.com/brutalist-labs/dtre/trace"
	"github.com/google/uuid"
)

// Engine is the sequential (and, via ReplayParallel, commutativity-
// partitioned) replay driver. Unlike the teacher's Engine — a long-lived
// event loop consuming an indefinitely-fed queue — this Engine processes
// one bounded transaction slice per call and returns; there is no
// Run(ctx) goroutine to keep alive, because a replay has a start and an
// end by definition.
type Engine struct {
	mgr     *state.Manager
	ruleSet rules.RuleSet
	ctx     *execctx.Context
	cfg     config.EngineConfig
}

// Replay applies every transaction in txs, in order, to the engine's
// current state, and returns the resulting Result. It stops at the first
// transaction that fails validation or whose resulting state fails
// validation — a replay either fully succeeds or reports exactly where
// it broke down; it never silently skips a transaction, since "log and
// continue" would make the result a function of which attempt happened
// to fail, breaking determinism guarantees for any caller that retries.
func (e *Engine) Replay(txs []Transaction) (Result, error) {
	return e.replay(txs, nil)
}

// ReplayWithCheckpoints behaves like Replay but additionally captures a
// state.Checkpoint every cfg.CheckpointInterval transactions (as
// configured via Builder's WithConfig), so a long replay can be resumed
// via RestoreFromCheckpoint without starting over.
func (e *Engine) ReplayWithCheckpoints(txs []Transaction) (Result, error) {
	interval := e.cfg.CheckpointInterval
	if interval <= 0 {
		interval = config.DefaultCheckpointInterval
	}
	return e.replay(txs, &interval)
}

func (e *Engine) replay(txs []Transaction, checkpointInterval *int64) (Result, error) {
	runID := uuid.Must(uuid.NewV7()).String()
	start := time.Now()

	slog.Info("replay starting", "run_id", runID, "transaction_count", len(txs))

	var tr trace.Trace
	var checkpoints []state.Checkpoint
	durations := make([]time.Duration, 0, len(txs))

	for i, tx := range txs {
		index := int64(i)
		txStart := time.Now()

		if err := tx.Validate(); err != nil {
			slog.Error("transaction failed validation", "run_id", runID, "index", index, "tx_id", tx.ID(), "error", err)
			tr.AppendError(trace.ErrorContext{TransactionID: tx.ID(), Index: index, Message: err.Error()})
			return e.result(runID, tr, checkpoints, durations, start), &dtre.ValidationError{
				TransactionID: tx.ID(),
				Index:         index,
				Message:       err.Error(),
			}
		}

		candidate, err := e.ruleSet.Apply(e.mgr.Current().Clone(), tx, e.ctx, index)
		if err != nil {
			slog.Error("rule set application failed", "run_id", runID, "index", index, "tx_id", tx.ID(), "error", err)
			tr.AppendError(trace.ErrorContext{TransactionID: tx.ID(), Index: index, Message: err.Error()})
			return e.result(runID, tr, checkpoints, durations, start), &dtre.ProcessingError{
				TransactionID: tx.ID(),
				Index:         index,
				Message:       fmt.Sprintf("rule set apply: %v", err),
			}
		}

		transition, err := e.mgr.ApplyTransaction(tx.ID(), candidate)
		if err != nil {
			slog.Error("state transition rejected", "run_id", runID, "index", index, "tx_id", tx.ID(), "error", err)
			tr.AppendError(trace.ErrorContext{TransactionID: tx.ID(), Index: index, Message: err.Error()})
			return e.result(runID, tr, checkpoints, durations, start), &dtre.StateError{
				TransactionID: tx.ID(),
				Index:         index,
				Message:       err.Error(),
			}
		}

		tr.Append(trace.RuleApplication{
			TransactionID: tx.ID(),
			Transition:    transition,
			Index:         index,
		})
		durations = append(durations, time.Since(txStart))

		slog.Debug("transaction applied", "run_id", runID, "index", index, "tx_id", tx.ID(), "to_hash", transition.ToHash.String())

		if checkpointInterval != nil && *checkpointInterval > 0 && (index+1)%*checkpointInterval == 0 {
			cp := e.mgr.CreateCheckpoint(index, e.ctx, tr.ChainedHash)
			checkpoints = append(checkpoints, cp)
			slog.Info("checkpoint captured", "run_id", runID, "index", index)
		}
	}

	slog.Info("replay finished", "run_id", runID, "final_hash", e.mgr.CurrentHash().String())

	return e.result(runID, tr, checkpoints, durations, start), nil
}

func (e *Engine) result(runID string, tr trace.Trace, checkpoints []state.Checkpoint, durations []time.Duration, start time.Time) Result {
	if tr.Len() == 0 {
		tr.ChainedHash = hashing.EmptyChain()
	}
	return Result{
		FinalState:  e.mgr.Current(),
		FinalHash:   e.mgr.CurrentHash(),
		Trace:       tr,
		Checkpoints: checkpoints,
		Metrics: trace.PerformanceMetrics{
			RunID:             runID,
			TransactionCount:  tr.Len(),
			Durations:         durations,
			WorkerCounts:      map[int]int{1: tr.Len()},
			TotalWallDuration: time.Since(start),
		},
	}
}

// CurrentHash returns the engine's current state hash without running a
// replay — useful for tests that want to assert on the freshly built
// engine before applying anything.
func (e *Engine) CurrentHash() hashing.Digest {
	return e.mgr.CurrentHash()
}

// RestoreFromCheckpoint rebuilds the engine's state manager from cp,
// allowing a subsequent Replay call to resume from exactly that point
// rather than from the Builder's original initial state. ctx is replaced
// with the checkpoint's restored context so RandomFor reproduces the
// original PRNG sub-streams.
func (e *Engine) RestoreFromCheckpoint(cp state.Checkpoint) error {
	if err := e.mgr.RestoreCheckpoint(cp); err != nil {
		return &dtre.StateError{Index: cp.Index, Message: fmt.Sprintf("restore checkpoint: %v", err)}
	}
	e.ctx = execctx.Restore(cp.ContextSnapshot)
	return nil
}
