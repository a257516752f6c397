// Package dtre holds the error taxonomy every other package in this
// module raises against, plus ambient engine configuration (see
// dtre/config). It is a leaf package — it imports nothing from replay,
// rules, state, or trace — so that those packages can depend on it for
// error construction without creating an import cycle.
package dtre

import "fmt"

// Error is the sealed taxonomy of the errors replay.Engine raises for a
// failing transaction or checkpoint restore and that rules.Registry
// raises on registration. Exactly five concrete types implement it:
// ProcessingError, ValidationError, StateError, RegistrationError, and
// SerializationError. A caller can type switch on Error, or use errors.As
// against one of the five concrete types to handle a specific kind.
// NonDeterministicError (crosscheck.go) and the errors replay.Builder.Build
// returns do not implement it.
type Error interface {
	error
	dtreError()
}

// ProcessingError reports that a rule set's Apply returned an error for
// the transaction at Index, halting the replay there. Modeled on the
// teacher's RuntimeError.
type ProcessingError struct {
	TransactionID string
	Index         int64
	Message       string
}

func (e *ProcessingError) Error() string {
	if e.TransactionID != "" {
		return fmt.Sprintf("dtre: processing error at index %d (tx %s): %s", e.Index, e.TransactionID, e.Message)
	}
	return fmt.Sprintf("dtre: processing error at index %d: %s", e.Index, e.Message)
}
func (*ProcessingError) dtreError() {}

// ValidationError reports that a transaction failed Transaction.Validate
// before ever reaching a rule set.
type ValidationError struct {
	TransactionID string
	Index         int64
	Message       string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dtre: transaction %s (index %d) failed validation: %s", e.TransactionID, e.Index, e.Message)
}
func (*ValidationError) dtreError() {}

// StateError reports that a state value failed state.Type.Validate, or
// that a checkpoint's recomputed hash did not match its stored hash.
type StateError struct {
	TransactionID string
	Index         int64
	Message       string
}

func (e *StateError) Error() string {
	if e.TransactionID != "" {
		return fmt.Sprintf("dtre: state error at index %d (tx %s): %s", e.Index, e.TransactionID, e.Message)
	}
	return fmt.Sprintf("dtre: state error at index %d: %s", e.Index, e.Message)
}
func (*StateError) dtreError() {}

// RegistrationError reports a rules.Registry or rule-set problem: a
// duplicate version, a nil rule set, or (via rules.VerifyPurity) a rule
// set that is not actually a pure function of its inputs.
type RegistrationError struct {
	RuleVersion string
	Message     string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("dtre: rule registration error (version %s): %s", e.RuleVersion, e.Message)
}
func (*RegistrationError) dtreError() {}

// SerializationError reports a failure encoding or decoding a canonical
// value, a checkpoint blob, or a state snapshot.
type SerializationError struct {
	Message string
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("dtre: serialization error: %s", e.Message)
}
func (*SerializationError) dtreError() {}
