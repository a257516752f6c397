package dtre

import "fmt"

// NonDeterministicError is returned by replay.Engine.ReplayCrossChecked
// when the sequential and parallel drivers disagree on the resulting
// state hash for the same transaction sequence. It is deliberately not
// part of the five-kind Error taxonomy in errors.go: it is a cross-check
// diagnostic about the rule set and transaction partitioning, not a
// failure of a single transaction, state value, or registration.
type NonDeterministicError struct {
	Index          int64
	SequentialHash string
	ParallelHash   string
}

func (e *NonDeterministicError) Error() string {
	return fmt.Sprintf("dtre: sequential and parallel replay diverged at index %d: sequential=%s parallel=%s", e.Index, e.SequentialHash, e.ParallelHash)
}
