// Package replay drives a sequence of transactions through a rule set,
// one state transition at a time, producing a Result that pairs the
// final state with its content-addressed hash and the full execution
// trace. Engine is the sequential and parallel driver; Builder assembles
// one from caller-supplied state, rules, and configuration.
package replay

import (
	"github.com/brutalist-labs/dtre/rules"
)

// Transaction is the unit of replayable work. It is a type alias for
// rules.Transaction — defined there, not here, because rules.RuleSet
// must refer to it without importing this package (replay already
// imports rules, so the reverse direction would cycle).
type Transaction = rules.Transaction

// KeyedTransaction is an optional capability a Transaction may implement
// to participate in the commutativity-partitioned parallel driver
// (Engine.ReplayParallel). AccountKeys should return every account/entity
// identifier the transaction reads or writes; two transactions whose key
// sets are disjoint are safe to apply out of order relative to each
// other, and the parallel driver uses exactly that property to dispatch
// them to different workers.
type KeyedTransaction interface {
	Transaction
	AccountKeys() []string
}
