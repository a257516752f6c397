package replay_test

import (
	"fmt"
	"testing"

	"github.com/brutalist-labs/dtre/dtre"
	"github.com/brutalist-labs/dtre/dtre/config"
	"github.com/brutalist-labs/dtre/execctx"
	"github.com/brutalist-labs/dtre/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSealedContext() *execctx.Context {
	return execctx.NewOpen(1_700_000_000_000_000_000, [32]byte{0xAB}).Seal()
}

func TestReplayEmptySequenceLeavesStateUnchanged(t *testing.T) {
	initial := newLedgerState()
	b := replay.NewBuilder(initial, ledgerRules{}, newSealedContext())
	engine, err := b.Build()
	require.NoError(t, err)

	result, err := engine.Replay(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Trace.Len())
	assert.Equal(t, engine.CurrentHash(), result.FinalHash)
}

func TestReplaySingleCreditUpdatesBalance(t *testing.T) {
	initial := newLedgerState()
	b := replay.NewBuilder(initial, ledgerRules{}, newSealedContext())
	engine, err := b.Build()
	require.NoError(t, err)

	txs := []replay.Transaction{
		creditTx{id: "t1", account: "alice", amount: 100},
	}
	result, err := engine.Replay(txs)
	require.NoError(t, err)
	require.Equal(t, 1, result.Trace.Len())

	ledger := result.FinalState.(*ledgerState)
	assert.Equal(t, int64(100), ledger.balances["alice"])
	assert.False(t, result.FinalHash.IsZero())
}

func TestReplayRejectsInvalidTransaction(t *testing.T) {
	initial := newLedgerState()
	b := replay.NewBuilder(initial, ledgerRules{}, newSealedContext())
	engine, err := b.Build()
	require.NoError(t, err)

	txs := []replay.Transaction{
		creditTx{id: "t1", account: "alice", amount: 100},
		invalidTx{id: "t2"},
		creditTx{id: "t3", account: "alice", amount: 50},
	}
	result, err := engine.Replay(txs)
	require.Error(t, err)

	var validationErr *dtre.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "t2", validationErr.TransactionID)
	assert.Equal(t, int64(1), validationErr.Index)

	// Only the first transaction committed; the replay stopped at t2.
	assert.Equal(t, 1, result.Trace.Len())
}

func TestReplayRejectsStateThatFailsValidation(t *testing.T) {
	initial := newLedgerState()
	b := replay.NewBuilder(initial, ledgerRules{}, newSealedContext())
	engine, err := b.Build()
	require.NoError(t, err)

	txs := []replay.Transaction{
		negativeBalanceTx{id: "t1", account: "bob"},
	}
	_, err = engine.Replay(txs)
	require.Error(t, err)

	var stateErr *dtre.StateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, "t1", stateErr.TransactionID)
}

func TestReplayDeterministicAcrossRuns(t *testing.T) {
	txs := []replay.Transaction{
		creditTx{id: "t1", account: "alice", amount: 100},
		creditTx{id: "t2", account: "bob", amount: 200},
		creditTx{id: "t3", account: "alice", amount: 30},
	}

	run := func() replay.Result {
		b := replay.NewBuilder(newLedgerState(), ledgerRules{}, newSealedContext())
		engine, err := b.Build()
		require.NoError(t, err)
		result, err := engine.Replay(txs)
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()

	assert.Equal(t, first.FinalHash, second.FinalHash)
	assert.Equal(t, first.Trace.ChainedHash, second.Trace.ChainedHash)
}

func TestReplayWithCheckpointsCapturesAtInterval(t *testing.T) {
	const interval = 5

	cfg := config.Default()
	cfg.CheckpointInterval = interval

	b := replay.NewBuilder(newLedgerState(), ledgerRules{}, newSealedContext(), replay.WithConfig(cfg))
	engine, err := b.Build()
	require.NoError(t, err)

	txs := make([]replay.Transaction, 0, 12)
	for i := 0; i < 12; i++ {
		txs = append(txs, creditTx{id: fmt.Sprintf("tx-%d", i), account: "alice", amount: 1})
	}

	result, err := engine.ReplayWithCheckpoints(txs)
	require.NoError(t, err)
	require.Len(t, result.Checkpoints, 2)
	assert.Equal(t, int64(interval-1), result.Checkpoints[0].Index)
	assert.Equal(t, int64(2*interval-1), result.Checkpoints[1].Index)
}

func TestRestoreFromCheckpointResumesReplay(t *testing.T) {
	cfg := config.Default()
	cfg.CheckpointInterval = 2

	b := replay.NewBuilder(newLedgerState(), ledgerRules{}, newSealedContext(), replay.WithConfig(cfg))
	engine, err := b.Build()
	require.NoError(t, err)

	firstBatch := []replay.Transaction{
		creditTx{id: "t1", account: "alice", amount: 10},
		creditTx{id: "t2", account: "alice", amount: 20},
	}
	result, err := engine.ReplayWithCheckpoints(firstBatch)
	require.NoError(t, err)
	require.Len(t, result.Checkpoints, 1)

	b2 := replay.NewBuilder(newLedgerState(), ledgerRules{}, newSealedContext(), replay.WithConfig(cfg))
	resumed, err := b2.Build()
	require.NoError(t, err)
	require.NoError(t, resumed.RestoreFromCheckpoint(result.Checkpoints[0]))

	assert.Equal(t, result.Checkpoints[0].StateHash, resumed.CurrentHash())
}

// TestCheckpointRestoreThenReplaySuffixMatchesFullReplay drives the
// mandatory checkpoint round-trip property: restoring a mid-replay
// checkpoint and replaying the remaining suffix must reach the exact
// same final hash as replaying the whole sequence without stopping.
// Checkpoints are minted at the 0-based index of the transaction that
// completed them (interval-1, 2*interval-1, ...), so the suffix a
// resumed replay must apply starts at Index+1, not Index.
func TestCheckpointRestoreThenReplaySuffixMatchesFullReplay(t *testing.T) {
	const interval = 4

	txs := make([]replay.Transaction, 0, 10)
	accounts := []string{"alice", "bob", "carol"}
	for i := 0; i < 10; i++ {
		txs = append(txs, creditTx{
			id:      fmt.Sprintf("tx-%d", i),
			account: accounts[i%len(accounts)],
			amount:  int64(i + 1),
		})
	}

	cfg := config.Default()
	cfg.CheckpointInterval = interval

	fullEngine, err := replay.NewBuilder(newLedgerState(), ledgerRules{}, newSealedContext(), replay.WithConfig(cfg)).Build()
	require.NoError(t, err)
	fullResult, err := fullEngine.Replay(txs)
	require.NoError(t, err)

	checkpointEngine, err := replay.NewBuilder(newLedgerState(), ledgerRules{}, newSealedContext(), replay.WithConfig(cfg)).Build()
	require.NoError(t, err)
	checkpointResult, err := checkpointEngine.ReplayWithCheckpoints(txs)
	require.NoError(t, err)
	require.NotEmpty(t, checkpointResult.Checkpoints)

	cp := checkpointResult.Checkpoints[len(checkpointResult.Checkpoints)-1]

	resumed, err := replay.NewBuilder(newLedgerState(), ledgerRules{}, newSealedContext(), replay.WithConfig(cfg)).Build()
	require.NoError(t, err)
	require.NoError(t, resumed.RestoreFromCheckpoint(cp))

	suffix := txs[cp.Index+1:]
	require.NotEmpty(t, suffix)

	resumedResult, err := resumed.Replay(suffix)
	require.NoError(t, err)

	assert.Equal(t, fullResult.FinalHash, resumedResult.FinalHash)
	assert.Equal(t, fullResult.FinalHash, resumed.CurrentHash())
}
