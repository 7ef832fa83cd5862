// Package types implements representation types for schema field data and
// the unification rules that generalize them across a column of literals.
//
// A nil Type is the absent type: the type of a missing value or an empty
// list. Absent unifies with anything.
package types

import (
	"fmt"
	"math/bits"
)

// Type is a representation type. Implementations are Integer, Array,
// EnumRef and Text.
type Type interface {
	fmt.Stringer
	representation()
}

// Integer is an integer of Bits width. Bits is the packed width; storage
// rounds up to the next standard width.
type Integer struct {
	Bits   int
	Signed bool
}

// Array is a list of Elem. Length 0 means the length is dynamic.
type Array struct {
	Elem   Type
	Length int
}

// EnumRef references an enum declaration by identity. Bits is the enum's
// width, used when the field is stored as a bitfield.
type EnumRef struct {
	ID   int
	Name string
	Bits int
}

// Text is an opaque string.
type Text struct{}

func (Integer) representation() {}
func (Array) representation()   {}
func (EnumRef) representation() {}
func (Text) representation()    {}

func (t Integer) String() string {
	if t.Signed {
		return fmt.Sprintf("i%d", t.Bits)
	}
	return fmt.Sprintf("u%d", t.Bits)
}

func (t Array) String() string {
	elem := "absent"
	if t.Elem != nil {
		elem = t.Elem.String()
	}
	if t.Dynamic() {
		return "[]" + elem
	}
	return fmt.Sprintf("[%d]%s", t.Length, elem)
}

func (t EnumRef) String() string { return "enum " + t.Name }

func (Text) String() string { return "text" }

// Dynamic reports whether the array has no fixed length.
func (t Array) Dynamic() bool { return t.Length == 0 }

// Name returns a printable name for t, including the absent type.
func Name(t Type) string {
	if t == nil {
		return "absent"
	}
	return t.String()
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Type) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case Integer:
		y, ok := b.(Integer)
		return ok && x == y
	case EnumRef:
		y, ok := b.(EnumRef)
		return ok && x.ID == y.ID && x.Bits == y.Bits
	case Text:
		_, ok := b.(Text)
		return ok
	case Array:
		y, ok := b.(Array)
		return ok && x.Length == y.Length && Equal(x.Elem, y.Elem)
	}
	return false
}

// StdWidths are the byte-aligned integer widths.
var StdWidths = [...]int{8, 16, 32, 64}

// StdWidth returns the smallest standard width holding n bits.
func StdWidth(n int) int {
	for _, w := range StdWidths {
		if w >= n {
			return w
		}
	}
	return 64
}

// Bitcount returns the number of bits needed to represent x.
func Bitcount(x uint64) int {
	return bits.Len64(x)
}

// PackedBits returns the minimal width of v and whether it needs a sign.
// 0 takes one unsigned bit; -1 takes one signed bit.
func PackedBits(v int64) (n int, signed bool) {
	switch {
	case v > 0:
		return Bitcount(uint64(v)), false
	case v == 0:
		return 1, false
	default:
		return Bitcount(uint64(-(v + 1))) + 1, true
	}
}

// Storage returns the storage width in bits of an integer or enum field
// and whether the field needs a bitfield declaration.
func Storage(t Type) (width int, bitfield bool, ok bool) {
	switch x := t.(type) {
	case Integer:
		w := StdWidth(x.Bits)
		return w, w != x.Bits, true
	case EnumRef:
		w := StdWidth(x.Bits)
		return w, w != x.Bits, true
	}
	return 0, false, false
}
