package rules

import (
	"strings"
	"unicode"
)

// Expr is a directive expression: Immediate, Wildcard, Slot or Operation.
type Expr interface {
	String() string
	directive()
}

// Immediate is a literal constant, spelled as a numeral or as [raw text].
type Immediate struct {
	Text string
}

// Wildcard binds a concrete immediate at match time, spelled @a.
type Wildcard struct {
	Letter rune
}

// Slot binds a symbolic operand at match time, spelled A.
type Slot struct {
	Letter rune
}

// Operation applies an operator to one or two operands.
type Operation struct {
	Op   Operator
	Args []Expr
}

func (Immediate) directive() {}
func (Wildcard) directive()  {}
func (Slot) directive()      {}
func (Operation) directive() {}

func (e Immediate) String() string { return "[" + e.Text + "]" }
func (e Wildcard) String() string  { return "@" + string(e.Letter) }
func (e Slot) String() string      { return string(e.Letter) }

func (e Operation) String() string {
	args := make([]string, len(e.Args))
	for i, a := range e.Args {
		args[i] = a.String()
	}
	return e.Op.ID + "(" + strings.Join(args, ", ") + ")"
}

// SymbolIndex maps a binding letter to its symbol slot. Slots and wildcards
// share one index space: A and a are both 0.
func SymbolIndex(letter rune) int {
	return int(unicode.ToUpper(letter) - 'A')
}

// IsFoldable reports whether every leaf beneath e is an Immediate or a
// Wildcard, so the whole expression reduces to a constant.
func IsFoldable(e Expr) bool {
	switch x := e.(type) {
	case Immediate, Wildcard:
		return true
	case Operation:
		for _, a := range x.Args {
			if !IsFoldable(a) {
				return false
			}
		}
		return true
	}
	return false
}

// Equal reports whether two expressions are structurally identical.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case Immediate, Wildcard, Slot:
		return a == b
	case Operation:
		y, ok := b.(Operation)
		if !ok || x.Op != y.Op || len(x.Args) != len(y.Args) {
			return false
		}
		for i := range x.Args {
			if !Equal(x.Args[i], y.Args[i]) {
				return false
			}
		}
		return true
	}
	return false
}
