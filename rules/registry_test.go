package rules

import (
	"testing"
	"time"

	"github.com/brutalist-labs/dtre/dtre"
	"github.com/brutalist-labs/dtre/execctx"
	"github.com/brutalist-labs/dtre/hashing"
	"github.com/brutalist-labs/dtre/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counterState struct{ n int64 }

func (c *counterState) Clone() state.Type           { return &counterState{n: c.n} }
func (c *counterState) CanonicalEncode() (hashing.Value, error) {
	return hashing.Object{"n": hashing.Int64(c.n)}, nil
}
func (c *counterState) Validate() error { return nil }

type incrementTx struct {
	id string
	by int64
}

func (t incrementTx) ID() string           { return t.id }
func (t incrementTx) Timestamp() time.Time { return time.Unix(0, 0) }
func (t incrementTx) Validate() error      { return nil }

type incrementRules struct{}

func (incrementRules) Apply(current state.Type, tx Transaction, ctx *execctx.Context, index int64) (state.Type, error) {
	itx := tx.(incrementTx)
	cur := current.(*counterState)
	return &counterState{n: cur.n + itx.by}, nil
}

type nondeterministicRules struct{ calls int }

func (r *nondeterministicRules) Apply(current state.Type, tx Transaction, ctx *execctx.Context, index int64) (state.Type, error) {
	r.calls++
	cur := current.(*counterState)
	return &counterState{n: cur.n + int64(r.calls)}, nil
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	v1 := Version{1, 0, 0}

	require.NoError(t, reg.Register(v1, incrementRules{}))

	rs, ok := reg.Lookup(v1)
	require.True(t, ok)
	assert.NotNil(t, rs)
}

func TestRegistryRejectsDuplicateVersion(t *testing.T) {
	reg := NewRegistry()
	v1 := Version{1, 0, 0}
	require.NoError(t, reg.Register(v1, incrementRules{}))

	err := reg.Register(v1, incrementRules{})
	require.Error(t, err)
	var regErr *dtre.RegistrationError
	assert.ErrorAs(t, err, &regErr)
}

func TestRegistryVersionsSorted(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Version{2, 0, 0}, incrementRules{}))
	require.NoError(t, reg.Register(Version{1, 0, 0}, incrementRules{}))
	require.NoError(t, reg.Register(Version{1, 5, 0}, incrementRules{}))

	versions := reg.Versions()
	require.Len(t, versions, 3)
	assert.Equal(t, Version{1, 0, 0}, versions[0])
	assert.Equal(t, Version{1, 5, 0}, versions[1])
	assert.Equal(t, Version{2, 0, 0}, versions[2])
}

func TestVerifyPurityPassesForPureRuleSet(t *testing.T) {
	ctx := execctx.NewOpen(0, [32]byte{1}).Seal()
	err := VerifyPurity(incrementRules{}, &counterState{n: 10}, incrementTx{id: "t1", by: 5}, ctx, 0)
	assert.NoError(t, err)
}

func TestVerifyPurityDetectsNonDeterminism(t *testing.T) {
	ctx := execctx.NewOpen(0, [32]byte{1}).Seal()
	rs := &nondeterministicRules{}
	err := VerifyPurity(rs, &counterState{n: 0}, incrementTx{id: "t1", by: 0}, ctx, 0)
	require.Error(t, err)
	var violation *PurityViolation
	assert.ErrorAs(t, err, &violation)
}
