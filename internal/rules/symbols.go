// Package rules compiles rewrite rules into guarded matcher functions.
//
// A rule pairs a source pattern with a destination pattern written in a
// small expression language. Source patterns are expanded across the
// operand orders commutative operators allow, and every permutation is
// rendered as one matcher/constructor function.
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/can1357/retro/internal/decl"
	"github.com/can1357/retro/internal/literal"
	"github.com/can1357/retro/internal/types"
)

// Kind classifies operators by arity.
type Kind uint8

const (
	Unary Kind = iota
	Binary
	Comparison
)

func (k Kind) String() string {
	switch k {
	case Unary:
		return "unary"
	case Binary:
		return "binary"
	case Comparison:
		return "comparison"
	}
	return "unknown"
}

// Arity returns the number of operands an operator of kind k takes.
func (k Kind) Arity() int {
	if k == Unary {
		return 1
	}
	return 2
}

// Operator is one entry of the operator symbol table.
type Operator struct {
	// ID is the canonical operator identifier.
	ID string

	// Symbol is the operator's infix or prefix spelling.
	Symbol string

	Kind        Kind
	Commutative bool
}

// Swappable reports whether operand order may be permuted. Comparisons are
// never permuted.
func (o Operator) Swappable() bool {
	return o.Kind == Binary && o.Commutative
}

// SymbolTable resolves operator names and symbols. It is built once from
// the operator declaration document and passed to every rule document.
type SymbolTable struct {
	// Namespace and Enum name the native operator enum, e.g. retro::ir and op.
	Namespace string
	Enum      string

	ops    []Operator
	byName map[string]int
	unary  map[string]int
	binary map[string]int

	// Symbols sorted longest first for longest-match scanning.
	unarySyms  []string
	binarySyms []string
}

// NewSymbolTable builds a table from ops. Later duplicates of a name or of a
// symbol within the same arity replace earlier ones.
func NewSymbolTable(namespace, enum string, ops ...Operator) *SymbolTable {
	t := &SymbolTable{
		Namespace: namespace,
		Enum:      enum,
		byName:    map[string]int{},
		unary:     map[string]int{},
		binary:    map[string]int{},
	}
	for _, op := range ops {
		i := len(t.ops)
		t.ops = append(t.ops, op)
		t.byName[op.ID] = i
		if op.Symbol == "" {
			continue
		}
		if op.Kind == Unary {
			t.unary[op.Symbol] = i
		} else {
			t.binary[op.Symbol] = i
		}
	}
	t.unarySyms = sortedSymbols(t.unary)
	t.binarySyms = sortedSymbols(t.binary)
	return t
}

func sortedSymbols(m map[string]int) []string {
	syms := make([]string, 0, len(m))
	for s := range m {
		syms = append(syms, s)
	}
	sort.Slice(syms, func(i, j int) bool {
		if len(syms[i]) != len(syms[j]) {
			return len(syms[i]) > len(syms[j])
		}
		return syms[i] < syms[j]
	})
	return syms
}

// Len returns the number of operators.
func (t *SymbolTable) Len() int { return len(t.ops) }

// Operators returns the operators in declaration order.
func (t *SymbolTable) Operators() []Operator {
	return append([]Operator(nil), t.ops...)
}

// Lookup resolves an identifier by canonical name first, then by symbol.
// When a symbol names both a unary and a binary operator, the one with the
// given arity wins; arity 0 accepts either, preferring binary.
func (t *SymbolTable) Lookup(ident string, arity int) (Operator, bool) {
	if i, ok := t.byName[ident]; ok {
		return t.ops[i], true
	}
	if arity != 1 {
		if i, ok := t.binary[ident]; ok {
			return t.ops[i], true
		}
	}
	if arity != 2 {
		if i, ok := t.unary[ident]; ok {
			return t.ops[i], true
		}
	}
	return Operator{}, false
}

// matchPrefix returns the longest unary (prefix) or binary (infix) symbol
// that s starts with.
func (t *SymbolTable) matchPrefix(s string, infix bool) (Operator, bool) {
	syms, index := t.unarySyms, t.unary
	if infix {
		syms, index = t.binarySyms, t.binary
	}
	for _, sym := range syms {
		if strings.HasPrefix(s, sym) {
			return t.ops[index[sym]], true
		}
	}
	return Operator{}, false
}

// Operator document field names.
const (
	fieldSymbol      = "symbol"
	fieldCommutative = "commutative"
	fieldKind        = "kind"
)

// FromEnum builds a symbol table from an expanded operator enum. Every
// choice with a non-empty symbol registers; its kind is classified by the
// name of the referenced kind choice: unary* is unary, cmp* is a comparison
// and anything else is binary.
func FromEnum(a *decl.Arena, enum decl.ID) (*SymbolTable, error) {
	d := a.Get(enum)
	if d.Kind != decl.KindEnum {
		return nil, fmt.Errorf("%s is a %s, not an enum", d.Name, d.Kind)
	}
	var ops []Operator
	for i, c := range d.Choices {
		sym, err := a.Row(enum, i, fieldSymbol)
		if err != nil {
			return nil, err
		}
		text, _ := sym.(literal.Text)
		if text == "" {
			continue
		}
		op := Operator{ID: c.Name, Symbol: string(text), Kind: Binary}

		if v, err := a.Row(enum, i, fieldCommutative); err == nil {
			switch b := v.(type) {
			case literal.Bool:
				op.Commutative = bool(b)
			case literal.Int:
				op.Commutative = b != 0
			}
		}
		if v, err := a.Row(enum, i, fieldKind); err == nil {
			if ref, ok := v.(literal.Text); ok {
				_, choice, isRef, err := types.SplitEnumRef(string(ref))
				if err != nil {
					return nil, err
				}
				if isRef {
					op.Kind = classify(choice)
				}
			}
		}
		ops = append(ops, op)
	}
	return NewSymbolTable(a.QualifiedName(d.Parent), d.Name, ops...), nil
}

func classify(kind string) Kind {
	switch {
	case strings.HasPrefix(kind, "unary"):
		return Unary
	case strings.HasPrefix(kind, "cmp"):
		return Comparison
	}
	return Binary
}
