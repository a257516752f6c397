package rules

import (
	"fmt"

	"github.com/brutalist-labs/dtre/dtre"
	"github.com/brutalist-labs/dtre/execctx"
	"github.com/brutalist-labs/dtre/hashing"
	"github.com/brutalist-labs/dtre/state"
)

// PurityViolation reports that applying the same rule set twice to
// identical inputs produced different results — the rule set is not a
// pure function of its arguments and cannot be trusted for replay. It
// embeds *dtre.RegistrationError so a caller that only cares "is this
// rule set usable" can errors.As against the shared taxonomy, while a
// caller that wants the two diverging hashes can errors.As against
// *PurityViolation itself.
type PurityViolation struct {
	*dtre.RegistrationError
	FirstHash  hashing.Digest
	SecondHash hashing.Digest
}

// VerifyPurity applies rs to the same (current, tx, ctx, index) twice and
// confirms both results encode to the same digest. current is cloned
// before each call so a rule set that mutates its input in place cannot
// pass this check by accident — it would be applying its second attempt
// to already-mutated state and silently "pass" despite being unsafe for
// concurrent/parallel replay.
//
// index must be whatever sequence position rs would actually see in a
// replay — VerifyPurity does not itself choose a replay index, since that
// is the caller's bookkeeping, not a property of the rule set.
func VerifyPurity(rs RuleSet, current state.Type, tx Transaction, ctx *execctx.Context, index int64) error {
	first, err := rs.Apply(current.Clone(), tx, ctx, index)
	if err != nil {
		return fmt.Errorf("rules: first purity application: %w", err)
	}
	second, err := rs.Apply(current.Clone(), tx, ctx, index)
	if err != nil {
		return fmt.Errorf("rules: second purity application: %w", err)
	}

	firstHash, err := state.Hash(first)
	if err != nil {
		return fmt.Errorf("rules: hash first purity result: %w", err)
	}
	secondHash, err := state.Hash(second)
	if err != nil {
		return fmt.Errorf("rules: hash second purity result: %w", err)
	}

	if firstHash != secondHash {
		return &PurityViolation{
			RegistrationError: &dtre.RegistrationError{
				Message: fmt.Sprintf("non-deterministic rule set: first application hashed to %s, second to %s", firstHash, secondHash),
			},
			FirstHash:  firstHash,
			SecondHash: secondHash,
		}
	}
	return nil
}
