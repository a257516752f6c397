package execctx

import (
	"testing"

	"github.com/brutalist-labs/dtre/hashing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(b byte) [32]byte {
	var s [32]byte
	for i := range s {
		s[i] = b
	}
	return s
}

func TestSealFreezesFacts(t *testing.T) {
	open := NewOpen(1000, seed(1)).WithFact("tenant", hashing.String("acme"))
	ctx := open.Seal()

	v, ok := ctx.Facts().Get("tenant")
	require.True(t, ok)
	assert.Equal(t, hashing.String("acme"), v)

	// A sealed Open rejects further facts, so ctx cannot be affected.
	assert.Panics(t, func() { open.WithFact("tenant", hashing.String("other")) })
	v2, _ := ctx.Facts().Get("tenant")
	assert.Equal(t, hashing.String("acme"), v2)
}

func TestWithFactAfterSealPanics(t *testing.T) {
	o := NewOpen(1, seed(2))
	o.Seal()
	assert.Panics(t, func() {
		o.WithFact("x", hashing.String("y"))
	})
}

func TestRandomForDeterministic(t *testing.T) {
	ctx := NewOpen(42, seed(9)).Seal()

	a := ctx.RandomFor(5).Uint64()
	b := ctx.RandomFor(5).Uint64()
	c := ctx.RandomFor(6).Uint64()

	assert.Equal(t, a, b, "same context + index must reproduce the same stream")
	assert.NotEqual(t, a, c)
}

func TestSnapshotRestoreReproducesRandom(t *testing.T) {
	ctx := NewOpen(7, seed(3)).WithFact("k", hashing.String("v")).Seal()
	snap := ctx.Snapshot()

	restored := Restore(snap)
	assert.Equal(t, ctx.NowUnixNano(), restored.NowUnixNano())

	want := ctx.RandomFor(10).Uint64()
	got := restored.RandomFor(10).Uint64()
	assert.Equal(t, want, got)
}
