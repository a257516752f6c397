// Package state defines the caller-implemented state contract and the
// Manager that applies transitions, computes content-addressed hashes,
// and produces/restores checkpoints.
package state

import (
	"fmt"

	"github.com/brutalist-labs/dtre/hashing"
)

// Type is the capability bundle a caller's domain state must provide.
// It is a plain Go interface — not a generic parameter — because a
// rules.Registry must hold heterogeneous VersionedRuleSets that all
// operate on implementations of this one interface, mirroring how the
// teacher's compiler treats every ConceptSpec polymorphically through a
// shared interface rather than a parametrized type per concept.
type Type interface {
	// Clone returns a deep copy. A RuleSet.Apply must never mutate the
	// state it was given; replay.Engine clones the current state before
	// handing it to a rule set so implementations that get this wrong are
	// still safe, but Clone must itself be correct for checkpoints to be
	// meaningful snapshots rather than aliases of live state.
	Clone() Type

	// CanonicalEncode renders the state as a hashing.Value tree. Two
	// states that are logically equal must encode to equal trees, and
	// vice versa: this is the sole definition of state equality DTRE
	// uses for hashing and comparison.
	CanonicalEncode() (hashing.Value, error)

	// Validate reports whether the state is internally consistent. It is
	// called after every transaction application; a non-nil error aborts
	// the replay with dtre.StateError.
	Validate() error
}

// Mergeable is an opt-in capability a Type may provide so that
// replay.Engine.ReplayParallel can recombine candidates a batch of
// commutativity-partitioned transactions computed concurrently against
// the same starting snapshot. Apply returns a whole next state, not a
// delta, so naively committing several such candidates one after another
// would simply overwrite all but the last; MergeFrom lets the Type itself
// say which parts of candidate to keep.
//
// MergeFrom is called on the evolving (already-partially-updated) state,
// with candidate being a sibling transaction's result computed against
// the batch's pre-batch snapshot, and keys being that transaction's own
// KeyedTransaction.AccountKeys(). It must return a state equal to the
// receiver except for the fields named by keys, which are taken from
// candidate — exactly the touched-key delta a commutative transaction is
// trusted to own, per AccountKeys' contract.
//
// A Type that does not implement Mergeable is still replayed correctly:
// ReplayParallel falls back to applying its batches one transaction at a
// time against the evolving state, trading the concurrency benefit for
// safety rather than risking a silent wrong merge.
type Mergeable interface {
	Type
	MergeFrom(candidate Type, keys []string) Type
}

// Hash canonically encodes s and returns its content-addressed digest.
func Hash(s Type) (hashing.Digest, error) {
	v, err := s.CanonicalEncode()
	if err != nil {
		return hashing.Digest{}, fmt.Errorf("state: canonical encode: %w", err)
	}
	return hashing.Hash(v)
}

// Transition records one applied transaction: the state before and
// after, their hashes, and the transaction's identity. A replay.Result's
// trace is built from a sequence of these.
type Transition struct {
	FromState     Type
	ToState       Type
	FromHash      hashing.Digest
	ToHash        hashing.Digest
	TransactionID string
}

// Diff is the structural difference between two states, computed by
// CalculateDiff. It is deliberately shallow — a set of changed
// top-level object keys plus the before/after canonical values — because
// DTRE has no schema to drive a deeper semantic diff. compare.Compare
// does not use it; it compares hashes only.
type Diff struct {
	Equal        bool
	FromHash     hashing.Digest
	ToHash       hashing.Digest
	ChangedPaths []PathChange
}

// PathChange names one top-level field that differs between two states
// and carries both sides' canonical encodings for inspection.
type PathChange struct {
	Key    string
	Before hashing.Value
	After  hashing.Value
}
