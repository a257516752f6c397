package execctx

import "math/rand/v2"

// Random is a deterministic, counter-based PRNG sub-stream. It wraps
// math/rand/v2's ChaCha8 source, which is itself a documented, splittable
// generator — exactly what a rule set is allowed to depend on for any
// randomized decision without that decision becoming irreproducible.
//
// Random is not safe for concurrent use. A rule set obtains a fresh
// instance per transaction by calling Context.RandomFor with the index
// replay.Engine passes to RuleSet.Apply, so no instance is shared.
type Random struct {
	r *rand.Rand
}

func newRandom(seed [32]byte) *Random {
	src := rand.NewChaCha8(seed)
	return &Random{r: rand.New(src)}
}

// Int64N returns a uniform pseudo-random int64 in [0, n). Panics if n <= 0.
func (rnd *Random) Int64N(n int64) int64 {
	return rnd.r.Int64N(n)
}

// Uint64 returns a uniform pseudo-random uint64.
func (rnd *Random) Uint64() uint64 {
	return rnd.r.Uint64()
}

// Shuffle randomizes the order of n elements via swap(i, j), using the
// Fisher-Yates algorithm from math/rand/v2.
func (rnd *Random) Shuffle(n int, swap func(i, j int)) {
	rnd.r.Shuffle(n, swap)
}

// Perm returns a pseudo-random permutation of [0, n).
func (rnd *Random) Perm(n int) []int {
	return rnd.r.Perm(n)
}
