package state

import (
	"fmt"

	"github.com/brutalist-labs/dtre/execctx"
	"github.com/brutalist-labs/dtre/hashing"
)

// Manager owns the single current state value and its cached digest,
// advancing one transaction at a time. It never calls a rule set itself
// — replay.Engine computes the candidate next state via rules.RuleSet and
// hands it to ApplyTransaction, which validates, hashes, and commits the
// swap. This mirrors the teacher's store-write shape (validate, then
// atomically commit, never partially) translated from SQL rows to an
// in-process state value.
type Manager struct {
	current Type
	hash    hashing.Digest
}

// NewManager seeds the manager with an initial, already-valid state.
// Returns an error if the initial state fails Validate or cannot be
// canonically encoded.
func NewManager(initial Type) (*Manager, error) {
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("state: initial state invalid: %w", err)
	}
	h, err := Hash(initial)
	if err != nil {
		return nil, fmt.Errorf("state: hash initial state: %w", err)
	}
	return &Manager{current: initial, hash: h}, nil
}

// Current returns the manager's current state. Callers must not mutate
// the returned value; Clone it first.
func (m *Manager) Current() Type {
	return m.current
}

// CurrentHash returns the content-addressed digest of the current state.
func (m *Manager) CurrentHash() hashing.Digest {
	return m.hash
}

// ApplyTransaction validates candidate, hashes it, and — only if
// validation succeeds — commits it as the new current state, returning
// the Transition describing the swap. On validation failure the manager
// is left unchanged and the error is returned for the caller to wrap as
// dtre.StateError.
func (m *Manager) ApplyTransaction(transactionID string, candidate Type) (Transition, error) {
	if err := candidate.Validate(); err != nil {
		return Transition{}, fmt.Errorf("state: candidate state invalid after transaction %s: %w", transactionID, err)
	}

	newHash, err := Hash(candidate)
	if err != nil {
		return Transition{}, fmt.Errorf("state: hash candidate state: %w", err)
	}

	transition := Transition{
		FromState:     m.current,
		ToState:       candidate,
		FromHash:      m.hash,
		ToHash:        newHash,
		TransactionID: transactionID,
	}

	m.current = candidate
	m.hash = newHash

	return transition, nil
}

// CalculateDiff structurally compares two states at their top-level
// encoded fields. Both states must encode successfully; any encoding
// error is returned rather than silently treating the field as unchanged.
func CalculateDiff(a, b Type) (Diff, error) {
	av, err := a.CanonicalEncode()
	if err != nil {
		return Diff{}, fmt.Errorf("state: encode first state: %w", err)
	}
	bv, err := b.CanonicalEncode()
	if err != nil {
		return Diff{}, fmt.Errorf("state: encode second state: %w", err)
	}

	ah, err := hashing.Hash(av)
	if err != nil {
		return Diff{}, fmt.Errorf("state: hash first state: %w", err)
	}
	bh, err := hashing.Hash(bv)
	if err != nil {
		return Diff{}, fmt.Errorf("state: hash second state: %w", err)
	}

	diff := Diff{Equal: ah == bh, FromHash: ah, ToHash: bh}
	if diff.Equal {
		return diff, nil
	}

	aObj, aOK := av.(hashing.Object)
	bObj, bOK := bv.(hashing.Object)
	if !aOK || !bOK {
		// Non-object top-level encodings: report the whole tree as one change.
		diff.ChangedPaths = []PathChange{{Key: "", Before: av, After: bv}}
		return diff, nil
	}

	seen := make(map[string]bool, len(aObj)+len(bObj))
	keys := make([]string, 0, len(aObj)+len(bObj))
	for k := range aObj {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	for k := range bObj {
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	for _, k := range keys {
		av, aHas := aObj[k]
		bv, bHas := bObj[k]
		if aHas && bHas {
			ah, errA := hashing.Hash(av)
			bh, errB := hashing.Hash(bv)
			if errA == nil && errB == nil && ah == bh {
				continue
			}
		}
		change := PathChange{Key: k}
		if aHas {
			change.Before = av
		}
		if bHas {
			change.After = bv
		}
		diff.ChangedPaths = append(diff.ChangedPaths, change)
	}

	return diff, nil
}

// Checkpoint is a point-in-time, restorable snapshot of replay progress:
// the state, its hash, the execution context at that moment, and the hash
// of every transition chained up to and including this index.
type Checkpoint struct {
	Index           int64
	State           Type
	StateHash       hashing.Digest
	ContextSnapshot execctx.Snapshot
	TracePrefixHash hashing.Digest
}

// CreateCheckpoint captures the manager's current state alongside the
// given context and trace-prefix hash.
func (m *Manager) CreateCheckpoint(index int64, ctx *execctx.Context, tracePrefixHash hashing.Digest) Checkpoint {
	return Checkpoint{
		Index:           index,
		State:           m.current,
		StateHash:       m.hash,
		ContextSnapshot: ctx.Snapshot(),
		TracePrefixHash: tracePrefixHash,
	}
}

// RestoreCheckpoint resets the manager to a previously captured
// checkpoint. The checkpoint's state is re-validated before it is
// adopted, so a corrupted or hand-edited checkpoint is rejected rather
// than silently resumed from.
func (m *Manager) RestoreCheckpoint(cp Checkpoint) error {
	if err := cp.State.Validate(); err != nil {
		return fmt.Errorf("state: checkpoint at index %d failed validation: %w", cp.Index, err)
	}
	h, err := Hash(cp.State)
	if err != nil {
		return fmt.Errorf("state: hash checkpoint state: %w", err)
	}
	if h != cp.StateHash {
		return fmt.Errorf("state: checkpoint at index %d hash mismatch: stored %s, recomputed %s", cp.Index, cp.StateHash, h)
	}
	m.current = cp.State
	m.hash = h
	return nil
}
