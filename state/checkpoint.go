package state

import (
	"encoding/binary"
	"fmt"

	"github.com/brutalist-labs/dtre/execctx"
	"github.com/brutalist-labs/dtre/hashing"
)

// checkpointMagic tags the start of every encoded checkpoint so a
// misdirected blob is rejected immediately instead of failing deep inside
// decoding.
var checkpointMagic = [4]byte{'D', 'T', 'R', 'E'}

// checkpointFormatVersion lets the byte layout evolve without breaking
// decoders for checkpoints written by older versions of this package.
const checkpointFormatVersion uint8 = 1

// Codec lets a caller's state.Type round-trip through bytes. Unlike
// CanonicalEncode (which only needs to support hashing), a Codec must be
// able to reconstruct a concrete Type from the bytes it produced —
// DecodeCheckpoint has no other way to know which concrete type to build.
type Codec interface {
	EncodeState(Type) ([]byte, error)
	DecodeState([]byte) (Type, error)
}

// EncodeCheckpoint renders cp as a self-describing byte blob: magic,
// format version, index, both hashes, the context snapshot, and the
// caller-encoded state. The last two are length-prefixed; every other
// field has a fixed width, so a decoder never has to guess a boundary.
func EncodeCheckpoint(cp Checkpoint, codec Codec) ([]byte, error) {
	stateBytes, err := codec.EncodeState(cp.State)
	if err != nil {
		return nil, fmt.Errorf("state: encode checkpoint state: %w", err)
	}

	snapValue := cp.ContextSnapshot.CanonicalEncode()
	snapBytes, err := hashing.MarshalValue(snapValue)
	if err != nil {
		return nil, fmt.Errorf("state: encode checkpoint context snapshot: %w", err)
	}

	buf := make([]byte, 0, 4+1+8+32+32+4+len(snapBytes)+4+len(stateBytes))
	buf = append(buf, checkpointMagic[:]...)
	buf = append(buf, checkpointFormatVersion)
	buf = appendInt64(buf, cp.Index)
	buf = append(buf, cp.StateHash[:]...)
	buf = append(buf, cp.TracePrefixHash[:]...)
	buf = appendLenPrefixed(buf, snapBytes)
	buf = appendLenPrefixed(buf, stateBytes)

	return buf, nil
}

// DecodeCheckpoint is the inverse of EncodeCheckpoint. It verifies the
// magic and format version, then reconstructs state via codec and
// recomputes the state hash to confirm the blob was not corrupted or
// truncated.
func DecodeCheckpoint(data []byte, codec Codec) (Checkpoint, error) {
	if len(data) < 4+1+8+32+32+4 {
		return Checkpoint{}, fmt.Errorf("state: checkpoint blob too short (%d bytes)", len(data))
	}
	if [4]byte(data[:4]) != checkpointMagic {
		return Checkpoint{}, fmt.Errorf("state: checkpoint blob has wrong magic")
	}
	off := 4

	version := data[off]
	off++
	if version != checkpointFormatVersion {
		return Checkpoint{}, fmt.Errorf("state: unsupported checkpoint format version %d", version)
	}

	index := int64(binary.BigEndian.Uint64(data[off : off+8]))
	off += 8

	var stateHash hashing.Digest
	copy(stateHash[:], data[off:off+32])
	off += 32

	var tracePrefixHash hashing.Digest
	copy(tracePrefixHash[:], data[off:off+32])
	off += 32

	snapBytes, off2, err := readLenPrefixed(data, off)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("state: read context snapshot: %w", err)
	}
	off = off2

	stateBytes, off3, err := readLenPrefixed(data, off)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("state: read encoded state: %w", err)
	}
	off = off3

	snapValue, err := hashing.UnmarshalValue(snapBytes)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("state: decode context snapshot: %w", err)
	}
	snapshot, err := decodeSnapshotValue(snapValue)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("state: decode context snapshot shape: %w", err)
	}

	decodedState, err := codec.DecodeState(stateBytes)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("state: decode checkpoint state: %w", err)
	}

	recomputed, err := Hash(decodedState)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("state: hash decoded checkpoint state: %w", err)
	}
	if recomputed != stateHash {
		return Checkpoint{}, fmt.Errorf("state: checkpoint state hash mismatch: stored %s, recomputed %s", stateHash, recomputed)
	}

	return Checkpoint{
		Index:           index,
		State:           decodedState,
		StateHash:       stateHash,
		ContextSnapshot: snapshot,
		TracePrefixHash: tracePrefixHash,
	}, nil
}

func appendInt64(buf []byte, v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return append(buf, b[:]...)
}

func appendLenPrefixed(buf, data []byte) []byte {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(data)))
	buf = append(buf, lenBytes[:]...)
	return append(buf, data...)
}

func readLenPrefixed(data []byte, off int) ([]byte, int, error) {
	if off+4 > len(data) {
		return nil, 0, fmt.Errorf("truncated length prefix at offset %d", off)
	}
	n := int(binary.BigEndian.Uint32(data[off : off+4]))
	off += 4
	if off+n > len(data) {
		return nil, 0, fmt.Errorf("truncated payload at offset %d (need %d bytes)", off, n)
	}
	return data[off : off+n], off + n, nil
}

func decodeSnapshotValue(v hashing.Value) (execctx.Snapshot, error) {
	obj, ok := v.(hashing.Object)
	if !ok {
		return execctx.Snapshot{}, fmt.Errorf("expected object, got %T", v)
	}

	now, ok := obj["now_unix_nano"].(hashing.Int64)
	if !ok {
		return execctx.Snapshot{}, fmt.Errorf("missing now_unix_nano")
	}

	seedArr, ok := obj["root_seed"].(hashing.Array)
	if !ok || len(seedArr) != 32 {
		return execctx.Snapshot{}, fmt.Errorf("missing or malformed root_seed")
	}
	var seed [32]byte
	for i, elem := range seedArr {
		b, ok := elem.(hashing.Int64)
		if !ok {
			return execctx.Snapshot{}, fmt.Errorf("root_seed[%d] not an int", i)
		}
		seed[i] = byte(b)
	}

	factsObj, _ := obj["facts"].(hashing.Object)
	facts := make(execctx.Facts, len(factsObj))
	for k, v := range factsObj {
		facts[k] = v
	}

	return execctx.Snapshot{
		NowUnixNano: int64(now),
		RootSeed:    seed,
		Facts:       facts,
	}, nil
}
