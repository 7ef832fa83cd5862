package compiler

import (
	"errors"
	"fmt"
	"strconv"

	"cuelang.org/go/cue/token"
	"github.com/pelletier/go-toml/v2/unstable"

	"github.com/can1357/retro/internal/literal"
)

// DecodeTOML parses a TOML document. It walks the parser's expressions
// in document order so tables keep their key order.
//
//	[insn.load]
//	pure = true
//	size = 8
func DecodeTOML(filename string, data []byte) (literal.Table, error) {
	d := &tomlDecoder{file: token.NewFile(filename, -1, len(data))}
	d.file.SetLinesForContent(data)

	root := newTOMLTable()
	current, field := root, ""

	var p unstable.Parser
	p.Reset(data)
	for p.NextExpression() {
		expr := p.Expression()
		switch expr.Kind {
		case unstable.KeyValue:
			if err := d.assign(current, expr, field); err != nil {
				return nil, err
			}
		case unstable.Table:
			t, f, err := d.header(root, expr)
			if err != nil {
				return nil, err
			}
			current, field = t, f
		case unstable.ArrayTable:
			t, f, err := d.arrayHeader(root, expr)
			if err != nil {
				return nil, err
			}
			current, field = t, f
		}
	}
	if err := p.Error(); err != nil {
		return nil, d.parseError(&p, err)
	}
	return root.literal(), nil
}

// tomlTable is a table under construction. Values are literal values,
// nested tables or arrays of tables.
type tomlTable struct {
	keys     []string
	values   map[string]any
	explicit bool // defined by a [header]
}

// tomlTables is an array of tables built from [[header]] blocks.
type tomlTables struct {
	items []*tomlTable
}

func newTOMLTable() *tomlTable {
	return &tomlTable{values: map[string]any{}}
}

func (t *tomlTable) set(key string, v any) {
	t.keys = append(t.keys, key)
	t.values[key] = v
}

func (t *tomlTable) literal() literal.Table {
	table := literal.Table{}
	for _, k := range t.keys {
		var v literal.Value
		switch x := t.values[k].(type) {
		case *tomlTable:
			v = x.literal()
		case *tomlTables:
			list := literal.List{}
			for _, item := range x.items {
				list = append(list, item.literal())
			}
			v = list
		case literal.Value:
			v = x
		}
		table = append(table, literal.Entry{Key: k, Value: v})
	}
	return table
}

type tomlDecoder struct {
	file *token.File
}

func (d *tomlDecoder) pos(r unstable.Range) token.Pos {
	if r.Length == 0 || int(r.Offset) > d.file.Size() {
		return token.NoPos
	}
	return d.file.Pos(int(r.Offset), token.NoRelPos)
}

func (d *tomlDecoder) parseError(p *unstable.Parser, err error) error {
	var perr *unstable.ParserError
	if !errors.As(err, &perr) {
		return &CompileError{Field: "toml", Message: err.Error()}
	}
	pos := token.NoPos
	if len(perr.Highlight) > 0 {
		pos = d.pos(p.Range(perr.Highlight))
	}
	return &CompileError{Field: "toml", Message: perr.Message, Pos: pos}
}

// dottedKey collects a dotted key along with the position of its first part.
func dottedKey(n *unstable.Node) ([]string, unstable.Range) {
	var parts []string
	var at unstable.Range
	it := n.Key()
	for it.Next() {
		k := it.Node()
		if parts == nil {
			at = k.Raw
		}
		parts = append(parts, string(k.Data))
	}
	return parts, at
}

// descend walks the leading parts of a dotted key from t, creating
// implicit tables on the way. Arrays of tables resolve to their last item.
func (d *tomlDecoder) descend(t *tomlTable, parts []string, field string, at unstable.Range) (*tomlTable, string, error) {
	for _, part := range parts {
		field = joinField(field, part)
		switch x := t.values[part].(type) {
		case nil:
			next := newTOMLTable()
			t.set(part, next)
			t = next
		case *tomlTable:
			t = x
		case *tomlTables:
			t = x.items[len(x.items)-1]
		default:
			return nil, "", &CompileError{Field: field, Message: "key is already defined as a value", Pos: d.pos(at)}
		}
	}
	return t, field, nil
}

// assign sets a key-value pair in t. field names t in errors.
func (d *tomlDecoder) assign(t *tomlTable, kv *unstable.Node, field string) error {
	parts, at := dottedKey(kv)
	last := len(parts) - 1
	parent, field, err := d.descend(t, parts[:last], field, at)
	if err != nil {
		return err
	}
	field = joinField(field, parts[last])
	if _, dup := parent.values[parts[last]]; dup {
		return &CompileError{Field: field, Message: "duplicate key", Pos: d.pos(at)}
	}
	v, err := d.value(kv.Value(), field, at)
	if err != nil {
		return err
	}
	parent.set(parts[last], v)
	return nil
}

// header opens a [table] and returns it with its field path.
func (d *tomlDecoder) header(root *tomlTable, n *unstable.Node) (*tomlTable, string, error) {
	parts, at := dottedKey(n)
	last := len(parts) - 1
	parent, field, err := d.descend(root, parts[:last], "", at)
	if err != nil {
		return nil, "", err
	}
	field = joinField(field, parts[last])
	switch x := parent.values[parts[last]].(type) {
	case nil:
		t := newTOMLTable()
		t.explicit = true
		parent.set(parts[last], t)
		return t, field, nil
	case *tomlTable:
		if x.explicit {
			return nil, "", &CompileError{Field: field, Message: "table is defined twice", Pos: d.pos(at)}
		}
		x.explicit = true
		return x, field, nil
	}
	return nil, "", &CompileError{Field: field, Message: "key is already defined as a value", Pos: d.pos(at)}
}

// arrayHeader appends a table for [[table]] and returns it with its field
// path.
func (d *tomlDecoder) arrayHeader(root *tomlTable, n *unstable.Node) (*tomlTable, string, error) {
	parts, at := dottedKey(n)
	last := len(parts) - 1
	parent, field, err := d.descend(root, parts[:last], "", at)
	if err != nil {
		return nil, "", err
	}
	field = joinField(field, parts[last])
	t := newTOMLTable()
	switch x := parent.values[parts[last]].(type) {
	case nil:
		parent.set(parts[last], &tomlTables{items: []*tomlTable{t}})
		return t, field + "[0]", nil
	case *tomlTables:
		x.items = append(x.items, t)
		return t, fmt.Sprintf("%s[%d]", field, len(x.items)-1), nil
	}
	return nil, "", &CompileError{Field: field, Message: "key is already defined and is not an array of tables", Pos: d.pos(at)}
}

// value converts a value node. at locates the owning key for nodes that
// carry no range of their own.
func (d *tomlDecoder) value(n *unstable.Node, field string, at unstable.Range) (literal.Value, error) {
	if n.Raw.Length > 0 {
		at = n.Raw
	}
	switch n.Kind {
	case unstable.String:
		return literal.Text(string(n.Data)), nil
	case unstable.Bool:
		return literal.Bool(string(n.Data) == "true"), nil
	case unstable.Integer:
		i, err := strconv.ParseInt(string(n.Data), 0, 64)
		if err != nil {
			return nil, &CompileError{Field: field, Message: fmt.Sprintf("invalid integer %q", n.Data), Pos: d.pos(at)}
		}
		return literal.Int(i), nil
	case unstable.Float:
		return nil, &CompileError{Field: field, Message: "floats are not valid literals - use int instead", Pos: d.pos(at)}
	case unstable.Array:
		list := literal.List{}
		it := n.Children()
		for i := 0; it.Next(); i++ {
			elem, err := d.value(it.Node(), fmt.Sprintf("%s[%d]", field, i), at)
			if err != nil {
				return nil, err
			}
			list = append(list, elem)
		}
		return list, nil
	case unstable.InlineTable:
		t := newTOMLTable()
		it := n.Children()
		for it.Next() {
			if err := d.assign(t, it.Node(), field); err != nil {
				return nil, err
			}
		}
		return t.literal(), nil
	}
	return nil, &CompileError{Field: field, Message: fmt.Sprintf("%s values are not supported", n.Kind), Pos: d.pos(at)}
}
