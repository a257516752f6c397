package replay_test

import (
	"fmt"
	"time"

	"github.com/brutalist-labs/dtre/execctx"
	"github.com/brutalist-labs/dtre/hashing"
	"github.com/brutalist-labs/dtre/rules"
	"github.com/brutalist-labs/dtre/state"
)

// ledgerState is a minimal account-balance map used across replay tests:
// a small, realistic domain state without pulling in a real accounting
// schema.
type ledgerState struct {
	balances map[string]int64
}

func newLedgerState() *ledgerState {
	return &ledgerState{balances: make(map[string]int64)}
}

func (l *ledgerState) Clone() state.Type {
	cp := make(map[string]int64, len(l.balances))
	for k, v := range l.balances {
		cp[k] = v
	}
	return &ledgerState{balances: cp}
}

func (l *ledgerState) CanonicalEncode() (hashing.Value, error) {
	obj := make(hashing.Object, len(l.balances))
	for k, v := range l.balances {
		obj[k] = hashing.Int64(v)
	}
	return hashing.Object{"balances": obj}, nil
}

func (l *ledgerState) Validate() error {
	for acct, bal := range l.balances {
		if bal < 0 {
			return fmt.Errorf("account %s has negative balance %d", acct, bal)
		}
	}
	return nil
}

// creditTx moves an amount into a single account. It implements
// rules.Transaction and, via AccountKeys, replay.KeyedTransaction.
type creditTx struct {
	id      string
	account string
	amount  int64
	ts      time.Time
}

func (t creditTx) ID() string           { return t.id }
func (t creditTx) Timestamp() time.Time { return t.ts }
func (t creditTx) Validate() error {
	if t.account == "" {
		return fmt.Errorf("credit %s: account is required", t.id)
	}
	return nil
}
func (t creditTx) AccountKeys() []string { return []string{t.account} }

// invalidTx always fails Validate, for exercising the reject-on-invalid
// path.
type invalidTx struct {
	id string
}

func (t invalidTx) ID() string           { return t.id }
func (t invalidTx) Timestamp() time.Time { return time.Unix(0, 0) }
func (t invalidTx) Validate() error      { return fmt.Errorf("invalid transaction %s", t.id) }

// negativeBalanceTx credits an account by a negative amount large enough
// to drive its balance below zero, for exercising state-validation
// rejection (as opposed to transaction-validation rejection).
type negativeBalanceTx struct {
	id      string
	account string
}

func (t negativeBalanceTx) ID() string           { return t.id }
func (t negativeBalanceTx) Timestamp() time.Time { return time.Unix(0, 0) }
func (t negativeBalanceTx) Validate() error      { return nil }
func (t negativeBalanceTx) AccountKeys() []string { return []string{t.account} }

// ledgerRules is the rules.RuleSet under test: credits add to an
// account's balance, a negativeBalanceTx subtracts a fixed penalty to
// exercise the invalid-state path, and any other transaction leaves the
// state unchanged.
type ledgerRules struct{}

func (ledgerRules) Apply(current state.Type, tx rules.Transaction, ctx *execctx.Context, index int64) (state.Type, error) {
	l := current.(*ledgerState)
	next := l.Clone().(*ledgerState)

	switch v := tx.(type) {
	case creditTx:
		next.balances[v.account] += v.amount
	case negativeBalanceTx:
		next.balances[v.account] -= 1_000_000
	}

	return next, nil
}

// MergeFrom implements state.Mergeable: it takes candidate's balance for
// each of keys and leaves everything else untouched, which is exactly
// what a creditTx's single-account delta requires to be spliced onto a
// batch-mate's already-committed result.
func (l *ledgerState) MergeFrom(candidate state.Type, keys []string) state.Type {
	next := l.Clone().(*ledgerState)
	c := candidate.(*ledgerState)
	for _, k := range keys {
		next.balances[k] = c.balances[k]
	}
	return next
}

// ledgerCodec implements state.Codec for *ledgerState, for checkpoint
// round-trip tests.
type ledgerCodec struct{}

func (ledgerCodec) EncodeState(s state.Type) ([]byte, error) {
	v, err := s.CanonicalEncode()
	if err != nil {
		return nil, err
	}
	return hashing.MarshalValue(v)
}

func (ledgerCodec) DecodeState(data []byte) (state.Type, error) {
	v, err := hashing.UnmarshalValue(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(hashing.Object)
	if !ok {
		return nil, fmt.Errorf("expected object at top level")
	}
	balancesObj, ok := obj["balances"].(hashing.Object)
	if !ok {
		return nil, fmt.Errorf("expected balances object")
	}
	l := newLedgerState()
	for k, bv := range balancesObj {
		n, ok := bv.(hashing.Int64)
		if !ok {
			return nil, fmt.Errorf("balance for %s is not an int", k)
		}
		l.balances[k] = int64(n)
	}
	return l, nil
}
