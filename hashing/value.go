// Package hashing implements the canonical value algebra, RFC 8785-style
// canonical encoding, and content-addressed hashing that every other DTRE
// package builds on. A caller's state/transaction types never touch a hash
// function directly; they produce a Value tree via CanonicalEncode, and
// this package turns that tree into bytes and then into a Digest.
package hashing

import (
	"fmt"
	"slices"
	"unicode/utf16"

	"github.com/cockroachdb/apd/v3"
)

// Value is a sealed algebra of the only shapes that may appear in a
// canonically-hashed state tree. There is deliberately no float case:
// non-finite IEEE-754 values are not representable deterministically
// across platforms, so amounts and other fractional quantities must be
// expressed as Decimal instead.
type Value interface {
	value()
}

// Null represents an explicitly-absent field. Unlike a missing map key,
// a Null is part of the tree and participates in hashing.
type Null struct{}

func (Null) value() {}

// String is a UTF-8 text value, NFC-normalized at encoding time.
type String string

func (String) value() {}

// Int64 is a fixed-width signed integer.
type Int64 int64

func (Int64) value() {}

// Decimal wraps an exact, arbitrary-precision decimal for monetary and
// other fractional quantities. Constructed via NewDecimal.
type Decimal struct {
	d apd.Decimal
}

func (Decimal) value() {}

// NewDecimal builds a Decimal from a string (e.g. "12.50", "-0.0001").
// Returns an error if s is not a finite decimal number.
func NewDecimal(s string) (Decimal, error) {
	var d apd.Decimal
	_, _, err := d.SetString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("hashing: invalid decimal %q: %w", s, err)
	}
	if d.Form != apd.Finite {
		return Decimal{}, fmt.Errorf("hashing: invalid decimal %q: not finite", s)
	}
	return Decimal{d: d}, nil
}

// DecimalFromAPD wraps an existing apd.Decimal.
func DecimalFromAPD(d apd.Decimal) Decimal {
	return Decimal{d: d}
}

// APD returns the underlying apd.Decimal.
func (d Decimal) APD() apd.Decimal {
	return d.d
}

// String renders the decimal in its canonical form.
func (d Decimal) String() string {
	return d.d.Text('E')
}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Array is an ordered sequence of values. Order is significant and is
// preserved as-is during encoding.
type Array []Value

func (Array) value() {}

// Object is a map of string keys to values. Keys have no inherent order;
// MarshalCanonical always emits them sorted per RFC 8785 (§canonical.go).
type Object map[string]Value

func (Object) value() {}

// NewString is a convenience constructor.
func NewString(s string) String { return String(s) }

// NewInt64 is a convenience constructor.
func NewInt64(n int64) Int64 { return Int64(n) }

// NewBool is a convenience constructor.
func NewBool(b bool) Bool { return Bool(b) }

// NewArray is a convenience constructor.
func NewArray(vals ...Value) Array { return Array(vals) }

// Pair is a single key/value entry for typed Object construction, giving
// compile-time protection against accidentally passing a float.
type Pair struct {
	Key   string
	Value Value
}

// P is shorthand for Pair.
func P(key string, v Value) Pair { return Pair{Key: key, Value: v} }

// NewObject builds an Object from Pairs.
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// SortedKeys returns the object's keys ordered per RFC 8785: by UTF-16
// code unit, not Go's default UTF-8 byte order. The two orderings differ
// when a rune outside the Basic Multilingual Plane is compared with one
// in U+E000..U+FFFF, so this must never be replaced with sort.Strings.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}
