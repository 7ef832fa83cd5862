package literal

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// Value is a sealed interface over the literal kinds a document can hold.
// Only Text, Bool, Int, List and Table implement it. The absent literal is a
// nil Value.
type Value interface {
	literal() // Sealed - only these types implement it
}

// Text is a string literal.
type Text string

func (Text) literal() {}

// Bool is a boolean literal.
type Bool bool

func (Bool) literal() {}

// Int is an integer literal. Documents never carry floats.
type Int int64

func (Int) literal() {}

// List is an ordered sequence of literals.
type List []Value

func (List) literal() {}

// Entry is a single key/value pair of a Table.
type Entry struct {
	Key   string
	Value Value
}

// Table is an ordered mapping. Decoders preserve the document order, which
// later determines declaration, choice and field order.
type Table []Entry

func (Table) literal() {}

// Get returns the value stored under key.
func (t Table) Get(key string) (Value, bool) {
	for _, e := range t {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (t Table) Has(key string) bool {
	_, ok := t.Get(key)
	return ok
}

// Keys returns the keys in document order.
func (t Table) Keys() []string {
	keys := make([]string, len(t))
	for i, e := range t {
		keys[i] = e.Key
	}
	return keys
}

// Set replaces the value under key, appending a new entry if key is missing.
func (t Table) Set(key string, v Value) Table {
	for i, e := range t {
		if e.Key == key {
			t[i].Value = v
			return t
		}
	}
	return append(t, Entry{Key: key, Value: v})
}

// Without returns a copy of t with key removed.
func (t Table) Without(key string) Table {
	out := make(Table, 0, len(t))
	for _, e := range t {
		if e.Key != key {
			out = append(out, e)
		}
	}
	return out
}

// Metadata returns the entries whose key is metadata.
func (t Table) Metadata() Table {
	var out Table
	for _, e := range t {
		if IsMetaKey(e.Key) {
			out = append(out, e)
		}
	}
	return out
}

// Data returns the entries whose key is a data entry.
func (t Table) Data() Table {
	var out Table
	for _, e := range t {
		if !IsMetaKey(e.Key) {
			out = append(out, e)
		}
	}
	return out
}

// IsMetaKey reports whether key names metadata (leading uppercase letter).
func IsMetaKey(key string) bool {
	for _, r := range key {
		return unicode.IsUpper(r)
	}
	return false
}

// KindOf names the kind of v for diagnostics.
func KindOf(v Value) string {
	switch v.(type) {
	case nil:
		return "absent"
	case Text:
		return "text"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case List:
		return "list"
	case Table:
		return "table"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// Format renders v in a compact document-like notation for error messages.
func Format(v Value) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case Text:
		return strconv.Quote(string(val))
	case Bool:
		return strconv.FormatBool(bool(val))
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case List:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = Format(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Table:
		parts := make([]string, len(val))
		for i, e := range val {
			parts[i] = e.Key + ": " + Format(e.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Equal reports whether two literals are structurally identical. Table
// comparison is order sensitive.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Text, Bool, Int:
		return a == b
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Table:
		y, ok := b.(Table)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i].Key != y[i].Key || !Equal(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FromGo converts decoded Go values (as produced by encoding/json or yaml.v3
// into interface{}) into literals. Maps have no order, so their keys are
// sorted; decoders that care about order build Tables directly.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case Value:
		return val, nil
	case string:
		return Text(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		return Int(int64(val)), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are not valid literals: %v", val)
	case []any:
		list := make(List, len(val))
		for i, elem := range val {
			lit, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			list[i] = lit
		}
		return list, nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		table := make(Table, 0, len(val))
		for _, k := range keys {
			lit, err := FromGo(val[k])
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			table = append(table, Entry{Key: k, Value: lit})
		}
		return table, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
