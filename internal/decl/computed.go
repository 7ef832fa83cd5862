package decl

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/can1357/retro/internal/diag"
	"github.com/can1357/retro/internal/literal"
)

// generator computes a field from one choice's own data. arg is the source
// field name, empty for generators that take none.
type generator struct {
	needsArg bool
	fn       func(c Choice, ordinal int, arg literal.Value) (literal.Value, error)
}

var generators = map[string]generator{
	"len": {needsArg: true, fn: func(_ Choice, _ int, arg literal.Value) (literal.Value, error) {
		list, err := listArg(arg)
		if err != nil {
			return nil, err
		}
		return literal.Int(len(list)), nil
	}},
	"max": {needsArg: true, fn: func(_ Choice, _ int, arg literal.Value) (literal.Value, error) {
		list, err := listArg(arg)
		if err != nil {
			return nil, err
		}
		var best literal.Int
		for i, item := range list {
			n, ok := item.(literal.Int)
			if !ok {
				return nil, fmt.Errorf("max needs integers, got %s", literal.KindOf(item))
			}
			if i == 0 || n > best {
				best = n
			}
		}
		return best, nil
	}},
	"upper": {needsArg: true, fn: func(_ Choice, _ int, arg literal.Value) (literal.Value, error) {
		list, err := listArg(arg)
		if err != nil {
			return nil, err
		}
		out := literal.List{}
		for i, item := range list {
			if t, ok := item.(literal.Text); ok && t != "" && unicode.IsUpper([]rune(string(t))[0]) {
				out = append(out, literal.Int(i))
			}
		}
		return out, nil
	}},
	"ordinal": {fn: func(_ Choice, ordinal int, _ literal.Value) (literal.Value, error) {
		return literal.Int(ordinal), nil
	}},
	"cname": {fn: func(c Choice, _ int, _ literal.Value) (literal.Value, error) {
		return literal.Text(CName(c.Name)), nil
	}},
}

// Generators returns the names of the computed-field generators.
func Generators() []string {
	return []string{"cname", "len", "max", "ordinal", "upper"}
}

func listArg(v literal.Value) (literal.List, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case literal.List:
		return x, nil
	}
	return nil, fmt.Errorf("expected a list field, got %s", literal.KindOf(v))
}

// computedField is one parsed "field: generator(source)" entry.
type computedField struct {
	field  string
	name   string
	source string
	gen    generator
}

// ParseComputed parses a generator call such as "len(types)" or "ordinal()".
func ParseComputed(call string) (name, source string, err error) {
	call = strings.TrimSpace(call)
	open := strings.IndexByte(call, '(')
	if open <= 0 || !strings.HasSuffix(call, ")") {
		return "", "", fmt.Errorf("malformed generator call %q", call)
	}
	name = call[:open]
	source = strings.TrimSpace(call[open+1 : len(call)-1])
	gen, ok := generators[name]
	if !ok {
		return "", "", fmt.Errorf("unknown generator %q", name)
	}
	if gen.needsArg && source == "" {
		return "", "", fmt.Errorf("generator %s needs a source field", name)
	}
	if !gen.needsArg && source != "" {
		return "", "", fmt.Errorf("generator %s takes no argument", name)
	}
	return name, source, nil
}

func (a *Arena) parseComputed(d *Decl) ([]computedField, error) {
	v, ok := d.Meta.Get(MetaComputed)
	if !ok {
		return nil, nil
	}
	table, ok := v.(literal.Table)
	if !ok {
		return nil, diag.Reference(d.Name, "%s must be a table, got %s", MetaComputed, literal.KindOf(v))
	}
	out := make([]computedField, 0, len(table))
	for _, entry := range table {
		if literal.IsMetaKey(entry.Key) {
			return nil, diag.Reference(d.Name, "computed field %q must start with a lowercase letter", entry.Key)
		}
		call, ok := entry.Value.(literal.Text)
		if !ok {
			return nil, diag.Reference(d.Name, "computed field %q must be a generator call", entry.Key)
		}
		name, source, err := ParseComputed(string(call))
		if err != nil {
			return nil, diag.Reference(d.Name, "computed field %q: %v", entry.Key, err)
		}
		out = append(out, computedField{field: entry.Key, name: name, source: source, gen: generators[name]})
	}
	return out, nil
}

// computeFields returns each choice's data with computed fields applied.
func (a *Arena) computeFields(d *Decl) ([]literal.Table, error) {
	computed, err := a.parseComputed(d)
	if err != nil {
		return nil, err
	}
	out := make([]literal.Table, len(d.Choices))
	for i, c := range d.Choices {
		data := slices.Clone(c.Data)
		for _, cf := range computed {
			var arg literal.Value
			if cf.source != "" {
				arg, _ = c.Data.Get(cf.source)
			}
			v, err := cf.gen.fn(c, i+1, arg)
			if err != nil {
				return nil, diag.TypeUnification(d.Name+"."+cf.field, "%s(%s) on choice %q: %v", cf.name, cf.source, c.Name, err)
			}
			data = data.Set(cf.field, v)
		}
		out[i] = data
	}
	return out, nil
}
