package types

import (
	"strings"

	"github.com/can1357/retro/internal/diag"
	"github.com/can1357/retro/internal/literal"
)

// Resolver resolves enum reference literals of the form "@Enum.choice".
type Resolver interface {
	// ResolveEnum returns the enum named enum, failing with a reference
	// error when the enum or its choice does not exist.
	ResolveEnum(enum, choice string) (EnumRef, error)
}

// EnumEscape prefixes enum reference literals.
const EnumEscape = "@"

// SplitEnumRef splits "@Enum.choice" into its parts. ok is false when s is
// not an enum reference. A reference without a choice is an error.
func SplitEnumRef(s string) (enum, choice string, ok bool, err error) {
	if !strings.HasPrefix(s, EnumEscape) {
		return "", "", false, nil
	}
	body := s[len(EnumEscape):]
	i := strings.IndexByte(body, '.')
	if i < 0 {
		return "", "", true, diag.Reference(s, "enum reference must name a choice as @Enum.choice")
	}
	return body[:i], body[i+1:], true, nil
}

// TypeOf returns the representation type of v. When packed is false integer
// widths snap to the nearest standard width. With a nil resolver, enum
// reference literals are plain text.
func TypeOf(v literal.Value, packed bool, r Resolver) (Type, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case literal.Text:
		if r == nil {
			return Text{}, nil
		}
		enum, choice, ok, err := SplitEnumRef(string(x))
		if err != nil {
			return nil, err
		}
		if !ok {
			return Text{}, nil
		}
		ref, err := r.ResolveEnum(enum, choice)
		if err != nil {
			return nil, err
		}
		return ref, nil
	case literal.Bool:
		return Integer{Bits: 1}, nil
	case literal.Int:
		n, signed := PackedBits(int64(x))
		if !packed {
			n = StdWidth(n)
		}
		return Integer{Bits: n, Signed: signed}, nil
	case literal.List:
		if len(x) == 0 {
			return nil, nil
		}
		elems := make([]Type, len(x))
		for i, item := range x {
			t, err := TypeOf(item, packed, r)
			if err != nil {
				return nil, err
			}
			elems[i] = t
		}
		elem, err := UnifyAll(elems...)
		if err != nil {
			return nil, err
		}
		if elem == nil {
			return nil, diag.TypeUnification("", "cannot infer element type of %s", literal.Format(x))
		}
		return Array{Elem: elem, Length: len(x)}, nil
	case literal.Table:
		return nil, diag.TypeUnification("", "a table is not a field value: %s", literal.Format(x))
	}
	return nil, diag.TypeUnification("", "unsupported literal %s", literal.KindOf(v))
}

// Unify returns the common supertype of a and b. Unification is commutative
// and associative over a column of same-kind types.
func Unify(a, b Type) (Type, error) {
	if Equal(a, b) {
		return a, nil
	}
	if a == nil {
		return degrade(b), nil
	}
	if b == nil {
		return degrade(a), nil
	}

	switch x := a.(type) {
	case Integer:
		if y, ok := b.(Integer); ok {
			return unifyIntegers(x, y), nil
		}
	case EnumRef:
		if y, ok := b.(EnumRef); ok {
			if x.ID == y.ID {
				return x, nil
			}
			return nil, diag.TypeUnification("", "cannot unify enum %s with enum %s", x.Name, y.Name)
		}
	case Array:
		if y, ok := b.(Array); ok {
			elem, err := Unify(x.Elem, y.Elem)
			if err != nil {
				return nil, err
			}
			length := x.Length
			if x.Length != y.Length {
				length = 0
			}
			return Array{Elem: elem, Length: length}, nil
		}
	}
	return nil, diag.TypeUnification("", "cannot unify %s with %s", Name(a), Name(b))
}

// UnifyAll folds Unify over ts left to right, seeded with the first type.
func UnifyAll(ts ...Type) (Type, error) {
	if len(ts) == 0 {
		return nil, nil
	}
	acc := ts[0]
	for _, t := range ts[1:] {
		var err error
		if acc, err = Unify(acc, t); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// degrade drops a fixed length when the other side of a unification is
// absent: some rows may then have no elements at all.
func degrade(t Type) Type {
	if arr, ok := t.(Array); ok {
		return Array{Elem: arr.Elem}
	}
	return t
}

func unifyIntegers(x, y Integer) Integer {
	if x.Signed == y.Signed {
		if x.Bits > y.Bits {
			return x
		}
		return y
	}
	xb, yb := x.Bits, y.Bits
	if !x.Signed {
		xb++
	}
	if !y.Signed {
		yb++
	}
	return Integer{Bits: min(max(xb, yb), 64), Signed: true}
}
