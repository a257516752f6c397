package hashing

import (
	"encoding/json"
	"fmt"
)

// MarshalValue and UnmarshalValue are a storage-oriented wire format for
// Value trees, distinct from MarshalCanonical. MarshalCanonical exists
// only to feed Hash/HashChain and intentionally has no matching decoder —
// canonical bytes are a one-way function of a Value. Checkpoints and
// other ambient persistence need to get a Value back, so they use this
// tagged, plain encoding/json-based format instead. The two must never
// be confused: only MarshalCanonical's output may be hashed.
type wireValue struct {
	Type string               `json:"type"`
	S    string               `json:"s,omitempty"`
	I    int64                `json:"i,omitempty"`
	D    string               `json:"d,omitempty"`
	B    bool                 `json:"b,omitempty"`
	A    []wireValue          `json:"a,omitempty"`
	O    map[string]wireValue `json:"o,omitempty"`
}

func toWire(v Value) (wireValue, error) {
	switch val := v.(type) {
	case nil, Null:
		return wireValue{Type: "null"}, nil
	case String:
		return wireValue{Type: "string", S: string(val)}, nil
	case Int64:
		return wireValue{Type: "int", I: int64(val)}, nil
	case Decimal:
		return wireValue{Type: "decimal", D: val.String()}, nil
	case Bool:
		return wireValue{Type: "bool", B: bool(val)}, nil
	case Array:
		arr := make([]wireValue, len(val))
		for i, elem := range val {
			w, err := toWire(elem)
			if err != nil {
				return wireValue{}, err
			}
			arr[i] = w
		}
		return wireValue{Type: "array", A: arr}, nil
	case Object:
		obj := make(map[string]wireValue, len(val))
		for k, elem := range val {
			w, err := toWire(elem)
			if err != nil {
				return wireValue{}, err
			}
			obj[k] = w
		}
		return wireValue{Type: "object", O: obj}, nil
	default:
		return wireValue{}, fmt.Errorf("hashing: unsupported Value type for storage encoding: %T", v)
	}
}

func fromWire(w wireValue) (Value, error) {
	switch w.Type {
	case "null":
		return Null{}, nil
	case "string":
		return String(w.S), nil
	case "int":
		return Int64(w.I), nil
	case "decimal":
		return NewDecimal(w.D)
	case "bool":
		return Bool(w.B), nil
	case "array":
		arr := make(Array, len(w.A))
		for i, elem := range w.A {
			v, err := fromWire(elem)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	case "object":
		obj := make(Object, len(w.O))
		for k, elem := range w.O {
			v, err := fromWire(elem)
			if err != nil {
				return nil, err
			}
			obj[k] = v
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("hashing: unknown wire value type %q", w.Type)
	}
}

// MarshalValue serializes v into the ambient storage format used by
// checkpoints. The result is never hashed; pass the same v through
// MarshalCanonical for that.
func MarshalValue(v Value) ([]byte, error) {
	w, err := toWire(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(w)
}

// UnmarshalValue is the inverse of MarshalValue.
func UnmarshalValue(data []byte) (Value, error) {
	var w wireValue
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(w)
}
