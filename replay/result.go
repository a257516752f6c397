package replay

import (
	"github.com/brutalist-labs/dtre/hashing"
	"github.com/brutalist-labs/dtre/state"
	"github.com/brutalist-labs/dtre/trace"
)

// Result is what a replay.Engine run produces: the final state, its
// digest, the full trace, collected metrics, and any checkpoints taken
// along the way.
type Result struct {
	FinalState  state.Type
	FinalHash   hashing.Digest
	Trace       trace.Trace
	Metrics     trace.PerformanceMetrics
	Checkpoints []state.Checkpoint
}
