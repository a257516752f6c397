package hashing

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/apd/v3"
	"golang.org/x/text/unicode/norm"
)

// MarshalCanonical renders a Value tree as RFC 8785-flavored canonical
// JSON. This is the only encoding that may feed Hash or HashChain: any
// other serialization of the same logical state is not guaranteed to
// produce the same bytes, which is the entire point of content-addressed
// identity.
//
// Departures from encoding/json's default output:
//   - object keys are sorted by UTF-16 code unit, not UTF-8 byte order
//   - strings are NFC-normalized before encoding
//   - HTML-unsafe characters (<, >, &) are never escaped
//   - U+2028 / U+2029 are left unescaped, matching RFC 8785 rather than
//     encoding/json's JavaScript-compatibility default
//   - integers (64-bit) are rendered as plain base-10 text, never float
//     notation
//   - Decimal values are rendered via apd.Decimal.Text('E'), which is
//     lossless and has no locale dependence
func MarshalCanonical(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("hashing: nil value is not a valid Value")
	case Null:
		return []byte("null"), nil
	case String:
		return marshalCanonicalString(string(val))
	case Int64:
		return []byte(fmt.Sprintf("%d", int64(val))), nil
	case Decimal:
		d := val.APD()
		if d.Form == apd.NaN || d.Form == apd.NaNSignaling || d.Form == apd.Infinite {
			return nil, fmt.Errorf("hashing: non-finite decimal is forbidden in canonical JSON")
		}
		text, err := marshalCanonicalString(val.String())
		if err != nil {
			return nil, err
		}
		// Decimals are quoted strings in the wire encoding: JSON numbers
		// cannot express arbitrary precision without ambiguity, and a
		// quoted exact-text representation round-trips losslessly.
		return text, nil
	case Bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case Array:
		return marshalCanonicalArray(val)
	case Object:
		return marshalCanonicalObject(val)
	default:
		return nil, fmt.Errorf("hashing: unsupported Value type: %T", v)
	}
}

func marshalCanonicalString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	return unescapeU2028U2029(result), nil
}

// unescapeU2028U2029 converts   /   escape sequences produced by
// encoding/json back into literal characters, per RFC 8785, while leaving
// a literal backslash followed by the text "u2028"/"u2029" (i.e. an
// escaped backslash, \\u202x) untouched.
func unescapeU2028U2029(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	var result []byte
	i := 0
	for i < len(data) {
		if i+6 <= len(data) && data[i] == '\\' && data[i+1] == 'u' &&
			data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {

			backslashes := 0
			if result == nil {
				for j := i - 1; j >= 0 && data[j] == '\\'; j-- {
					backslashes++
				}
			} else {
				for j := len(result) - 1; j >= 0 && result[j] == '\\'; j-- {
					backslashes++
				}
			}

			if backslashes%2 == 0 {
				if result == nil {
					result = make([]byte, 0, len(data))
					result = append(result, data[:i]...)
				}
				if data[i+5] == '8' {
					result = append(result, " "...)
				} else {
					result = append(result, " "...)
				}
				i += 6
				continue
			}
		}

		if result != nil {
			result = append(result, data[i])
		}
		i++
	}

	if result == nil {
		return data
	}
	return result
}

func marshalCanonicalArray(arr Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalCanonical(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalObject(obj Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := obj.SortedKeys()
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := marshalCanonicalString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalCanonical(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
