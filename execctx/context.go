// Package execctx provides the frozen, read-only inputs a rule set sees
// while processing a single transaction: wall-clock time, a deterministic
// PRNG, and a bag of caller-supplied facts. A Context moves through two
// states — Open while the caller is assembling it, Sealed once handed to
// a replay.Engine — so that a rule set can never observe (or mutate) an
// execution context that is still under construction.
package execctx

import (
	"fmt"

	"github.com/brutalist-labs/dtre/hashing"
)

// Fact is any canonically-encodable value a caller wants a rule set to
// see without threading it through the transaction or state types.
type Fact = hashing.Value

// Facts is an immutable snapshot of caller-supplied facts. Once a Context
// is sealed, Facts can no longer be mutated; Get is the only access path.
type Facts map[string]Fact

// Get returns the fact named key and whether it was present.
func (f Facts) Get(key string) (Fact, bool) {
	v, ok := f[key]
	return v, ok
}

// CanonicalEncode renders the facts as a sorted hashing.Object so they
// can be folded into a context snapshot's digest.
func (f Facts) CanonicalEncode() hashing.Value {
	obj := make(hashing.Object, len(f))
	for k, v := range f {
		obj[k] = v
	}
	return obj
}

// Open is a builder for a Context. It is never passed to rule sets or to
// replay.Engine directly — call Seal to obtain the immutable Context that
// those APIs accept.
type Open struct {
	now      int64 // unix nanos; frozen wall-clock for this context
	rootSeed [32]byte
	facts    map[string]Fact
	sealed   bool
}

// NewOpen starts a Context builder with a frozen timestamp (unix
// nanoseconds) and a root PRNG seed. The timestamp is supplied by the
// caller rather than read from time.Now() here, because the entire point
// of a replay is that "now" must be reproducible across runs.
func NewOpen(nowUnixNano int64, rootSeed [32]byte) *Open {
	return &Open{
		now:      nowUnixNano,
		rootSeed: rootSeed,
		facts:    make(map[string]Fact),
	}
}

// WithFact adds or replaces a fact. Panics if called after Seal — an
// Open that has already produced a Context must not be reused, mirroring
// the engine's single-writer discipline elsewhere in this module.
func (o *Open) WithFact(key string, v Fact) *Open {
	if o.sealed {
		panic(fmt.Sprintf("execctx: WithFact(%q) called on an already-sealed Open", key))
	}
	o.facts[key] = v
	return o
}

// Seal freezes the builder and returns the Context that replay.Builder
// and rules.RuleSet are allowed to see. Calling Seal more than once
// returns a new Context each time, each holding its own copy of the same
// facts.
func (o *Open) Seal() *Context {
	if !o.sealed {
		o.sealed = true
	}
	frozen := make(Facts, len(o.facts))
	for k, v := range o.facts {
		frozen[k] = v
	}
	return &Context{
		now:      o.now,
		rootSeed: o.rootSeed,
		facts:    frozen,
	}
}

// Context is the sealed, read-only view a rule set receives. It carries
// no mutation methods: a RuleSet.Apply implementation can read NowUnixNano,
// Facts, and derive a Random for its transaction index, and nothing else.
type Context struct {
	now      int64
	rootSeed [32]byte
	facts    Facts
}

// NowUnixNano returns the frozen wall-clock time for this replay, in
// nanoseconds since the Unix epoch.
func (c *Context) NowUnixNano() int64 {
	return c.now
}

// Facts returns the immutable fact bag supplied by the caller.
func (c *Context) Facts() Facts {
	return c.facts
}

// RootSeed returns the root PRNG seed this context was sealed with. Rule
// sets should prefer RandomFor(index) over deriving their own sub-streams
// from this directly, so that every caller splits seeds the same way.
func (c *Context) RootSeed() [32]byte {
	return c.rootSeed
}

// RandomFor derives the private, replay-stable PRNG sub-stream for
// transaction index i (see hashing.SplitSeed). Two calls with the same
// index on contexts sealed from the same root seed always produce
// identical sub-streams.
func (c *Context) RandomFor(index int64) *Random {
	return newRandom(hashing.SplitSeed(c.rootSeed, index))
}

// Snapshot captures everything needed to resume replay from this exact
// point: the frozen clock, the root seed, and the facts in force. It is
// embedded in state.Checkpoint so replay.Engine.RestoreFromCheckpoint can
// reseed Random identically to where it left off.
type Snapshot struct {
	NowUnixNano int64
	RootSeed    [32]byte
	Facts       Facts
}

// Snapshot captures the context's current state for checkpointing.
func (c *Context) Snapshot() Snapshot {
	facts := make(Facts, len(c.facts))
	for k, v := range c.facts {
		facts[k] = v
	}
	return Snapshot{
		NowUnixNano: c.now,
		RootSeed:    c.rootSeed,
		Facts:       facts,
	}
}

// Restore rebuilds a sealed Context from a Snapshot, as taken from a
// state.Checkpoint. The resulting Context's RandomFor(i) reproduces the
// exact sub-streams the original context would have produced.
func Restore(snap Snapshot) *Context {
	facts := make(Facts, len(snap.Facts))
	for k, v := range snap.Facts {
		facts[k] = v
	}
	return &Context{
		now:      snap.NowUnixNano,
		rootSeed: snap.RootSeed,
		facts:    facts,
	}
}

// CanonicalEncode renders the snapshot as a hashing.Value so it can be
// stored in an encoded checkpoint (see state.EncodeCheckpoint).
func (s Snapshot) CanonicalEncode() hashing.Value {
	seedInts := make(hashing.Array, len(s.RootSeed))
	for i, b := range s.RootSeed {
		seedInts[i] = hashing.Int64(b)
	}
	return hashing.Object{
		"now_unix_nano": hashing.Int64(s.NowUnixNano),
		"root_seed":     seedInts,
		"facts":         s.Facts.CanonicalEncode(),
	}
}
