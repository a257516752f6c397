package replay_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/brutalist-labs/dtre/execctx"
	"github.com/brutalist-labs/dtre/replay"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"
)

// traceSnapshot is the structural subset of a Result worth golden-testing:
// transaction order and the balances it produces. Hashes are deliberately
// excluded — they are already covered by the determinism and cross-check
// tests, and a golden fixture for a BLAKE3 digest would just be an opaque
// hex string no reviewer could sanity-check by reading the diff.
type traceSnapshot struct {
	Scenario       string           `json:"scenario"`
	TransactionIDs []string         `json:"transaction_ids"`
	FinalBalances  map[string]int64 `json:"final_balances"`
	ErrorCount     int              `json:"error_count"`
}

// TestReplayGoldenTraceForSeedScenario pins the structural shape of a
// short multi-account credit sequence (listed in SPEC_FULL.md §12)
// against a checked-in fixture, the way the teacher's harness snapshots a
// scenario's trace for regression detection.
func TestReplayGoldenTraceForSeedScenario(t *testing.T) {
	ctx := execctx.NewOpen(0, [32]byte{9}).Seal()
	engine, err := replay.NewBuilder(newLedgerState(), ledgerRules{}, ctx).Build()
	require.NoError(t, err)

	txs := []replay.Transaction{
		creditTx{id: "t0", account: "alice", amount: 100, ts: time.Unix(0, 0)},
		creditTx{id: "t1", account: "bob", amount: 50, ts: time.Unix(1, 0)},
		creditTx{id: "t2", account: "alice", amount: 25, ts: time.Unix(2, 0)},
	}

	result, err := engine.Replay(txs)
	require.NoError(t, err)

	ids := make([]string, 0, result.Trace.Len())
	for _, app := range result.Trace.RuleApplications {
		ids = append(ids, app.TransactionID)
	}

	snapshot := traceSnapshot{
		Scenario:       "seed_credit_sequence",
		TransactionIDs: ids,
		FinalBalances:  result.FinalState.(*ledgerState).balances,
		ErrorCount:     len(result.Trace.Errors),
	}

	snapshotJSON, err := json.MarshalIndent(snapshot, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "seed_credit_sequence", snapshotJSON)
}
