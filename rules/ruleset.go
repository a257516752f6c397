// Package rules defines the pure-transform contract a caller implements
// to describe how one transaction moves state from one value to the
// next, plus a Registry for holding many versions of that contract side
// by side.
package rules

import (
	"time"

	"github.com/brutalist-labs/dtre/execctx"
	"github.com/brutalist-labs/dtre/state"
)

// Transaction is the minimal capability a replayable unit of work must
// provide. replay.Transaction is a type alias for this interface — it
// lives here, rather than in package replay, so that RuleSet can refer
// to it without replay needing to import rules (which would cycle, since
// replay.Engine holds rules.RuleSet values).
type Transaction interface {
	ID() string
	Timestamp() time.Time
	Validate() error
}

// RuleSet is the pure transform a rule-version author implements: given
// the current state, a transaction, a frozen execution context, and that
// transaction's sequence index, produce the next state. Apply must be a
// pure function of its arguments — the same four inputs must always
// produce a state that encodes to the same hashing.Digest, which is the
// entire determinism contract this module exists to enforce and verify
// (see VerifyPurity).
//
// index is the transaction's position in the replay it belongs to. Its
// only sanctioned use is as the argument to ctx.RandomFor(index), which
// hands back the transaction's own private, replay-stable PRNG
// sub-stream — a rule set that needs randomness must derive it this way
// rather than reading ctx.RootSeed() directly, so that the sequential and
// parallel drivers (which apply the same transaction at the same index
// either way) always arrange for identical PRNG draws.
//
// Apply must not mutate the state it is given; it should operate on a
// Clone (state.Manager guarantees candidates are never aliased into the
// caller's hands, but well-behaved rule sets clone defensively too).
type RuleSet interface {
	Apply(current state.Type, tx Transaction, ctx *execctx.Context, index int64) (state.Type, error)
}

// VersionedRuleSet pairs a RuleSet implementation with the Version it
// implements. Registry does not store it (it keys bare RuleSets by
// Version), and replay.Result records no rule-set version.
type VersionedRuleSet struct {
	Version Version
	RuleSet RuleSet
}
