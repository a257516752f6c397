package hashing

import (
	"encoding/binary"

	"lukechampine.com/blake3"
)

// Digest is a 256-bit content-addressed identifier.
type Digest [32]byte

// IsZero reports whether d is the zero digest (no state / unset).
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// String renders the digest as lowercase hex.
func (d Digest) String() string {
	const hextable = "0123456789abcdef"
	out := make([]byte, len(d)*2)
	for i, b := range d {
		out[i*2] = hextable[b>>4]
		out[i*2+1] = hextable[b&0x0f]
	}
	return string(out)
}

// Domain-separation prefixes. Each one names the purpose a digest is
// being used for so that the same canonical bytes hashed for two
// different reasons never collide.
const (
	domainState      = "dtre/state/v1"
	domainChain      = "dtre/chain/v1"
	domainPRNGSplit  = "dtre/prng-split/v1"
	domainCheckpoint = "dtre/checkpoint/v1"
)

// hashWithDomain computes BLAKE3-256(domain || 0x00 || data). The null
// separator prevents a crafted domain+data boundary from colliding with a
// different domain/data split that happens to concatenate to the same
// bytes.
func hashWithDomain(domain string, data []byte) Digest {
	h := blake3.New(32, nil)
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// Hash canonically encodes v and returns its content-addressed digest in
// the state domain.
func Hash(v Value) (Digest, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return Digest{}, err
	}
	return hashWithDomain(domainState, canonical), nil
}

// MustHash is Hash but panics on error. Reserved for call sites where v
// is known by construction to be encodable (tests, literals).
func MustHash(v Value) Digest {
	d, err := Hash(v)
	if err != nil {
		panic(err)
	}
	return d
}

// HashChain folds a sequence of digests into one, in order, so that a
// trace's chained hash depends on both the content and the order of every
// transition that produced it. Changing, reordering, or truncating the
// input sequence always changes the result. It is defined as a left fold
// of ChainStep starting from EmptyChain, so a caller extending a trace one
// transition at a time can call ChainStep directly instead of re-folding
// the whole history on every append.
func HashChain(digests []Digest) Digest {
	chain := EmptyChain()
	for _, d := range digests {
		chain = ChainStep(chain, d)
	}
	return chain
}

// EmptyChain is the chain value of zero digests — the starting point
// ChainStep folds from, and what HashChain(nil) returns.
func EmptyChain() Digest {
	return hashWithDomain(domainChain, nil)
}

// ChainStep extends a running chain value with the next digest in
// sequence. HashChain(digests) is exactly the result of calling ChainStep
// for each element of digests in order, starting from EmptyChain.
func ChainStep(chain Digest, next Digest) Digest {
	buf := make([]byte, 0, len(chain)+len(next))
	buf = append(buf, chain[:]...)
	buf = append(buf, next[:]...)
	return hashWithDomain(domainChain, buf)
}

// SplitSeed derives a sub-seed for a transaction index from a root
// seed: BLAKE3(seed || be64(index)), domain-separated from state and
// chain hashing. execctx.Context.RandomFor uses this to give every
// transaction index an independent, replay-stable PRNG sub-stream,
// whichever driver applies it.
func SplitSeed(seed [32]byte, index int64) [32]byte {
	var idxBytes [8]byte
	binary.BigEndian.PutUint64(idxBytes[:], uint64(index))

	h := blake3.New(32, nil)
	h.Write([]byte(domainPRNGSplit))
	h.Write([]byte{0x00})
	h.Write(seed[:])
	h.Write(idxBytes[:])

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HashCheckpointBytes hashes an encoded checkpoint blob in its own domain,
// kept distinct from state/chain hashing so a checkpoint's own integrity
// digest can never be confused with a state digest that happens to share
// bytes.
func HashCheckpointBytes(data []byte) Digest {
	return hashWithDomain(domainCheckpoint, data)
}
