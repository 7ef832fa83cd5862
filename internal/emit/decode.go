package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/can1357/retro/internal/decl"
	"github.com/can1357/retro/internal/literal"
	"github.com/can1357/retro/internal/types"
)

// ParseNativeRow decodes a row initializer rendered by NativeRow against the
// same field order and types. Type defaults decode as absent values except
// for integers, whose default is indistinguishable from 0.
func ParseNativeRow(fields []decl.Field, row string) ([]literal.Value, error) {
	cells, err := splitBraced(row)
	if err != nil {
		return nil, err
	}
	if len(cells) != len(fields) {
		return nil, fmt.Errorf("row has %d cells, want %d", len(cells), len(fields))
	}
	out := make([]literal.Value, len(fields))
	for i, f := range fields {
		if out[i], err = parseNativeValue(f.Type, cells[i]); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return out, nil
}

func parseNativeValue(t types.Type, s string) (literal.Value, error) {
	switch x := t.(type) {
	case types.Integer:
		switch s {
		case "true":
			return literal.Bool(true), nil
		case "false":
			return literal.Bool(false), nil
		}
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, err
		}
		return literal.Int(n), nil
	case types.EnumRef:
		prefix := decl.CName(x.Name) + "::"
		choice, ok := strings.CutPrefix(s, prefix)
		if !ok {
			return nil, fmt.Errorf("%q is not a %s choice", s, x.Name)
		}
		if choice == decl.Sentinel {
			return nil, nil
		}
		return literal.Text(types.EnumEscape + x.Name + "." + choice), nil
	case types.Text:
		if s == "{}" {
			return nil, nil
		}
		text, err := strconv.Unquote(s)
		if err != nil {
			return nil, fmt.Errorf("bad string %s: %w", s, err)
		}
		return literal.Text(text), nil
	case types.Array:
		if s == "{}" {
			return nil, nil
		}
		cells, err := splitBraced(s)
		if err != nil {
			return nil, err
		}
		list := make(literal.List, len(cells))
		for i, c := range cells {
			if list[i], err = parseNativeValue(x.Elem, c); err != nil {
				return nil, err
			}
		}
		return list, nil
	}
	return nil, fmt.Errorf("cannot decode %s", types.Name(t))
}

// splitBraced splits "{a,{b,c},\"d,e\"}" into its top-level cells.
func splitBraced(s string) ([]string, error) {
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return nil, fmt.Errorf("%q is not a braced initializer", s)
	}
	body := s[1 : len(s)-1]
	if body == "" {
		return nil, nil
	}

	var cells []string
	depth, start := 0, 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '"':
			// Skip the string, honouring escapes.
			for i++; i < len(body) && body[i] != '"'; i++ {
				if body[i] == '\\' {
					i++
				}
			}
			if i >= len(body) {
				return nil, fmt.Errorf("unterminated string in %q", s)
			}
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced braces in %q", s)
			}
		case ',':
			if depth == 0 {
				cells = append(cells, body[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced braces in %q", s)
	}
	return append(cells, body[start:]), nil
}
