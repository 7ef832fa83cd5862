package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/can1357/retro/internal/decl"
)

// Rule is one rewrite: a source pattern and its replacement.
type Rule struct {
	From string
	To   string
}

// Category is a named list of rules. Each category registers its matchers
// into the list of the same name.
type Category struct {
	Name  string
	Rules []Rule
}

// Output is a rendered rule document.
type Output struct {
	Source    []byte
	Functions int
}

const prelude = `#include <retro/directives/pattern.hpp>
#ifndef __INTELLISENSE__
#if RC_CLANG
    #pragma clang diagnostic ignored "-Wunused-variable"
#elif RC_GNU
    #pragma GCC diagnostic ignored "-Wunused-variable"
#endif

using op =  %s;
using opr = retro::ir::operand;
using imm = retro::ir::constant;
using ins = retro::ir::insn;
using namespace retro::directives;
using namespace retro::pattern;


`

// Generate renders every rule of every category as guarded matcher
// functions, one per permutation of the rule's source pattern. Any rule
// that fails to parse fails the whole document.
func Generate(table *SymbolTable, categories []Category) (Output, error) {
	g := &generator{table: table}

	var b strings.Builder
	fmt.Fprintf(&b, prelude, g.enumName())

	registered := make([][]string, len(categories))
	for ci, cat := range categories {
		for _, r := range cat.Rules {
			from, err := ParsePattern(table, r.From)
			if err != nil {
				return Output{}, err
			}
			to, err := Parse(table, r.To)
			if err != nil {
				return Output{}, err
			}
			for _, src := range Permutate(from) {
				name := g.function(&b, cat.Name, src.(Operation), to)
				registered[ci] = append(registered[ci], "&"+name)
			}
		}
	}

	b.WriteString("RC_INITIALIZER {\n")
	for ci, cat := range categories {
		if len(registered[ci]) == 0 {
			continue
		}
		list := decl.CName(cat.Name) + "_list"
		fmt.Fprintf(&b, "\t%s.insert(%s.end(), { %s });\n", list, list, strings.Join(registered[ci], ","))
	}
	b.WriteString("};\n#endif\n")

	return Output{Source: []byte(b.String()), Functions: g.functions}, nil
}

// generator numbers functions, operands and temporaries from one counter
// shared by the whole document so every name is unique.
type generator struct {
	table     *SymbolTable
	counter   int
	functions int
}

func (g *generator) next() int {
	g.counter++
	return g.counter
}

func (g *generator) enumName() string {
	if g.table.Namespace == "" {
		return g.table.Enum
	}
	return g.table.Namespace + "::" + g.table.Enum
}

func opName(o Operator) string {
	return "op::" + decl.CName(o.ID)
}

// function writes one matcher/constructor pair and returns its name.
func (g *generator) function(b *strings.Builder, category string, from Operation, to Expr) string {
	name := fmt.Sprintf("__%s_pattern__%d", decl.CName(category), g.next())
	g.functions++

	// Temporaries are numbered before the matcher operands.
	dst := g.number(to)

	fmt.Fprintf(b, "static bool %s(ins* i, match_context& ctx){\n", name)
	g.match(b, from, "i")
	b.WriteString("\nins* it = i;\n")
	result := g.construct(b, dst)
	fmt.Fprintf(b, "\ni->replace_all_uses_with(%s);\nreturn true;\n}\n\n", result)
	return name
}

// match writes the assertions binding e against target, depth first with
// the left operand before the right.
func (g *generator) match(b *strings.Builder, e Expr, target string) {
	switch x := e.(type) {
	case Operation:
		if len(x.Args) == 1 {
			v := "o" + strconv.Itoa(g.next())
			fmt.Fprintf(b, "opr*%s;\n", v)
			fmt.Fprintf(b, "if(!match_unop(%s, &%s, %s, ctx)) return false;\n", opName(x.Op), v, target)
			g.match(b, x.Args[0], v)
			return
		}
		rhs := "o" + strconv.Itoa(g.next())
		lhs := "o" + strconv.Itoa(g.next())
		fmt.Fprintf(b, "opr* %s, *%s;\n", lhs, rhs)
		fmt.Fprintf(b, "if(!match_binop(%s, &%s, &%s, %s, ctx)) return false;\n", opName(x.Op), lhs, rhs, target)
		g.match(b, x.Args[0], lhs)
		g.match(b, x.Args[1], rhs)
	case Slot:
		fmt.Fprintf(b, "if(!match_symbol(%d, %s, ctx)) return false;\n", SymbolIndex(x.Letter), target)
	case Wildcard:
		fmt.Fprintf(b, "if(!match_imm_symbol(%d, %s, ctx)) return false;\n", SymbolIndex(x.Letter), target)
	case Immediate:
		fmt.Fprintf(b, "if(!match_imm(%s, %s, ctx)) return false;\n", x.Text, target)
	}
}

// node is a destination expression with its temporary number.
type node struct {
	expr Expr
	id   int
	args []*node
}

// number assigns temporaries to every operation of e in pre-order.
func (g *generator) number(e Expr) *node {
	n := &node{expr: e}
	if op, ok := e.(Operation); ok {
		n.id = g.next()
		for _, a := range op.Args {
			n.args = append(n.args, g.number(a))
		}
	}
	return n
}

// construct writes the IR-building statements for n in post-order and
// returns the expression naming its value.
func (g *generator) construct(b *strings.Builder, n *node) string {
	op, ok := n.expr.(Operation)
	if !ok || IsFoldable(n.expr) {
		return fold(n.expr)
	}

	args := make([]string, len(n.args))
	for i, a := range n.args {
		args[i] = g.construct(b, a)
	}

	write := "write_binop"
	switch op.Op.Kind {
	case Unary:
		write = "write_unop"
	case Comparison:
		write = "write_cmp"
	}
	v := "v" + strconv.Itoa(n.id)
	fmt.Fprintf(b, "ins* %s = %s(it, %s, %s);\n", v, write, opName(op.Op), strings.Join(args, ", "))
	return v
}

// fold renders a leaf or a constant-foldable expression as a value.
func fold(e Expr) string {
	switch x := e.(type) {
	case Slot:
		return fmt.Sprintf("ctx.symbols[%d]", SymbolIndex(x.Letter))
	case Wildcard:
		return fmt.Sprintf("ctx.symbols[%d].const_val", SymbolIndex(x.Letter))
	case Immediate:
		return fmt.Sprintf("imm(i->get_type(), %s)", x.Text)
	case Operation:
		if len(x.Args) == 1 {
			return fmt.Sprintf("%s.apply(%s)", fold(x.Args[0]), opName(x.Op))
		}
		return fmt.Sprintf("%s.apply(%s, %s)", fold(x.Args[0]), opName(x.Op), fold(x.Args[1]))
	}
	return ""
}
