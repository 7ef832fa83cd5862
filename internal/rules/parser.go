package rules

import (
	"strings"
	"unicode"

	"github.com/can1357/retro/internal/diag"
)

// Parse parses one rule expression. Whitespace is insignificant. Operators
// are right associative and have no precedence: A+B*C is A+(B*C).
func Parse(table *SymbolTable, text string) (Expr, error) {
	p := &parser{
		table: table,
		raw:   text,
		src: strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return r
		}, text),
	}
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	if !p.done() {
		return nil, diag.RuleParse(p.raw, "unexpected %q at offset %d", p.src[p.pos:], p.pos)
	}
	return e, nil
}

// ParsePattern parses a source pattern, whose root must be an operation.
func ParsePattern(table *SymbolTable, text string) (Operation, error) {
	e, err := Parse(table, text)
	if err != nil {
		return Operation{}, err
	}
	op, ok := e.(Operation)
	if !ok {
		return Operation{}, diag.RuleParse(text, "source pattern must be an operation, got %s", e)
	}
	return op, nil
}

type parser struct {
	table *SymbolTable
	raw   string
	src   string
	pos   int
}

func (p *parser) done() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.done() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) rest() string { return p.src[p.pos:] }

func (p *parser) errorf(format string, args ...any) error {
	return diag.RuleParse(p.raw, format, args...)
}

// expr parses Primary followed by an optional infix operator and operand.
func (p *parser) expr() (Expr, error) {
	lhs, err := p.primary()
	if err != nil {
		return nil, err
	}
	if p.done() || p.peek() == ',' || p.peek() == ')' {
		return lhs, nil
	}
	op, ok := p.table.matchPrefix(p.rest(), true)
	if !ok {
		return nil, diag.RuleLookup(p.raw, "unknown infix operator at %q", p.rest())
	}
	p.pos += len(op.Symbol)
	rhs, err := p.expr()
	if err != nil {
		return nil, err
	}
	return Operation{Op: op, Args: []Expr{lhs, rhs}}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isLower(c byte) bool { return c >= 'a' && c <= 'z' }
func isUpper(c byte) bool { return c >= 'A' && c <= 'Z' }
func isIdent(c byte) bool { return isLower(c) || isUpper(c) || isDigit(c) || c == '_' }

func (p *parser) primary() (Expr, error) {
	if p.done() {
		return nil, p.errorf("unexpected end of expression")
	}
	c := p.peek()
	switch {
	case c == '[':
		end := strings.IndexByte(p.rest(), ']')
		if end < 0 {
			return nil, p.errorf("unterminated immediate %q", p.rest())
		}
		text := p.src[p.pos+1 : p.pos+end]
		p.pos += end + 1
		return Immediate{Text: text}, nil

	case c == '(':
		p.pos++
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.peek() != ')' {
			return nil, p.errorf("expected ')' at offset %d", p.pos)
		}
		p.pos++
		return e, nil

	case c == '@':
		p.pos++
		if p.done() || !(isLower(p.peek()) || isUpper(p.peek())) {
			return nil, p.errorf("expected a letter after '@' at offset %d", p.pos)
		}
		letter := rune(p.peek())
		p.pos++
		return Wildcard{Letter: letter}, nil

	case isDigit(c) || c == '.':
		start := p.pos
		for !p.done() && (isDigit(p.peek()) || p.peek() == '.') {
			p.pos++
		}
		return Immediate{Text: p.src[start:p.pos]}, nil

	case isUpper(c):
		if p.pos+1 < len(p.src) && isIdent(p.src[p.pos+1]) {
			return nil, p.errorf("operand slots are single letters, got %q", p.rest())
		}
		p.pos++
		return Slot{Letter: rune(c)}, nil

	case isLower(c):
		end := p.pos
		for end < len(p.src) && isIdent(p.src[end]) {
			end++
		}
		if end < len(p.src) && p.src[end] == '(' {
			return p.call(p.src[p.pos:end], end+1)
		}
	}
	return p.prefix()
}

// call parses the operand list of ident(...); args starts after '('.
func (p *parser) call(ident string, args int) (Expr, error) {
	p.pos = args
	var operands []Expr
	for {
		e, err := p.expr()
		if err != nil {
			return nil, err
		}
		operands = append(operands, e)
		if p.peek() != ',' {
			break
		}
		p.pos++
	}
	if p.peek() != ')' {
		return nil, p.errorf("expected ')' after arguments of %s", ident)
	}
	p.pos++
	if len(operands) > 2 {
		return nil, p.errorf("%s takes at most two operands, got %d", ident, len(operands))
	}

	op, ok := p.table.Lookup(ident, len(operands))
	if !ok {
		return nil, diag.RuleLookup(p.raw, "unknown operator %q", ident)
	}
	if op.Kind.Arity() != len(operands) {
		return nil, diag.RuleLookup(p.raw, "%s is %s and takes %d operand(s), got %d", op.ID, op.Kind, op.Kind.Arity(), len(operands))
	}
	return Operation{Op: op, Args: operands}, nil
}

// prefix parses a unary operator symbol followed by its operand.
func (p *parser) prefix() (Expr, error) {
	op, ok := p.table.matchPrefix(p.rest(), false)
	if !ok {
		return nil, diag.RuleLookup(p.raw, "unknown operator at %q", p.rest())
	}
	p.pos += len(op.Symbol)
	e, err := p.expr()
	if err != nil {
		return nil, err
	}
	return Operation{Op: op, Args: []Expr{e}}, nil
}
