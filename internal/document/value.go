package document

import (
	"encoding/json"
	"strings"
)

// Kind discriminates the three shapes a configuration value can take.
type Kind int

const (
	KindAbsent Kind = iota
	KindScalar
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	default:
		return "absent"
	}
}

// Value is a scalar, an ordered sequence of scalars, or absent.
// The zero Value is absent.
type Value struct {
	kind   Kind
	scalar string
	items  []string
}

// Scalar returns a single-valued Value.
func Scalar(s string) Value {
	return Value{kind: KindScalar, scalar: s}
}

// Sequence returns a multi-valued Value holding a copy of items.
func Sequence(items ...string) Value {
	return Value{kind: KindSequence, items: append([]string{}, items...)}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

func (v Value) IsSequence() bool { return v.kind == KindSequence }

// String returns the scalar text. Sequences are joined with ", ".
func (v Value) String() string {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindSequence:
		return strings.Join(v.items, ", ")
	default:
		return ""
	}
}

// Strings returns the sequence items, or the scalar as a one-element slice.
func (v Value) Strings() []string {
	switch v.kind {
	case KindScalar:
		return []string{v.scalar}
	case KindSequence:
		return append([]string(nil), v.items...)
	default:
		return nil
	}
}

// Bool interprets the scalar the way INI readers do: 1, true, yes and on
// are true, everything else is false.
func (v Value) Bool() bool {
	if v.kind != KindScalar {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(v.scalar)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Concat appends other's items after v's. Both must be sequences.
func (v Value) Concat(other Value) Value {
	items := make([]string, 0, len(v.items)+len(other.items))
	items = append(items, v.items...)
	items = append(items, other.items...)
	return Value{kind: KindSequence, items: items}
}

// Equal reports whether v and other have the same kind and contents.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindScalar:
		return v.scalar == other.scalar
	case KindSequence:
		if len(v.items) != len(other.items) {
			return false
		}
		for i := range v.items {
			if v.items[i] != other.items[i] {
				return false
			}
		}
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(v.scalar)
	case KindSequence:
		if v.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.items)
	default:
		return []byte("null"), nil
	}
}
