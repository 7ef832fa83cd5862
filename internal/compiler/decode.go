package compiler

import (
	"fmt"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"gopkg.in/yaml.v3"

	"github.com/can1357/retro/internal/literal"
)

// Format is a document source format.
type Format string

const (
	FormatCUE  Format = "cue"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ruleInfix marks rule documents: ops.d.yaml, identity.d.cue.
const ruleInfix = ".d"

// FormatOf returns the format of a document path by extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return FormatCUE, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	}
	return "", false
}

// IsRuleDocument reports whether path names a rewrite-rule document.
func IsRuleDocument(path string) bool {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.HasSuffix(stem, ruleInfix)
}

// Stem returns the document base name without its format and rule
// extensions: include/retro/ir/ops.yaml -> ops, rules/identity.d.cue -> identity.
func Stem(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimSuffix(stem, ruleInfix)
}

// Decode parses a document in the format its path implies.
func Decode(path string, data []byte) (literal.Table, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, &CompileError{Field: "document", Message: fmt.Sprintf("unrecognised document extension %q", filepath.Ext(path))}
	}
	switch format {
	case FormatCUE:
		return DecodeCUE(path, data)
	case FormatTOML:
		return DecodeTOML(path, data)
	}
	return DecodeYAML(path, data)
}

// DecodeCUE compiles a CUE document and converts its concrete value into a
// table. Fields keep their declaration order.
//
//	arch: ["x86", "arm-64"]
//	insn: load: {pure: true, size: 8}
func DecodeCUE(filename string, data []byte) (literal.Table, error) {
	v := cuecontext.New().CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if v.Kind() != cue.StructKind {
		return nil, &CompileError{Field: "document", Message: "document root must be a struct", Pos: v.Pos()}
	}
	lit, err := fromCUE(v, "")
	if err != nil {
		return nil, err
	}
	return lit.(literal.Table), nil
}

func fromCUE(v cue.Value, field string) (literal.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return literal.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return literal.Int(n), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return literal.Text(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		list := literal.List{}
		for i := 0; iter.Next(); i++ {
			elem, err := fromCUE(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			list = append(list, elem)
		}
		return list, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		table := literal.Table{}
		for iter.Next() {
			key := iter.Selector().Unquoted()
			elem, err := fromCUE(iter.Value(), joinField(field, key))
			if err != nil {
				return nil, err
			}
			table = append(table, literal.Entry{Key: key, Value: elem})
		}
		return table, nil
	case cue.FloatKind:
		return nil, &CompileError{
			Field:   field,
			Message: "floats are not valid literals - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func joinField(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// DecodeYAML parses a YAML document. It walks the node tree rather than
// decoding into maps so mapping keys keep their order.
func DecodeYAML(filename string, data []byte) (literal.Table, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &CompileError{Field: "yaml", Message: fmt.Sprintf("%s: %v", filename, err)}
	}
	if len(doc.Content) == 0 {
		return literal.Table{}, nil
	}

	d := &yamlDecoder{file: token.NewFile(filename, -1, len(data))}
	d.file.SetLinesForContent(data)

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &CompileError{Field: "document", Message: "document root must be a mapping", Pos: d.pos(root)}
	}
	lit, err := d.convert(root, "")
	if err != nil {
		return nil, err
	}
	return lit.(literal.Table), nil
}

type yamlDecoder struct {
	file *token.File
}

// pos maps a node's line and column onto a CUE position so YAML and CUE
// errors print the same way.
func (d *yamlDecoder) pos(n *yaml.Node) token.Pos {
	lines := d.file.Lines()
	if n.Line < 1 || n.Line > len(lines) {
		return token.NoPos
	}
	offset := lines[n.Line-1] + n.Column - 1
	if offset > d.file.Size() {
		offset = d.file.Size()
	}
	return d.file.Pos(offset, token.NoRelPos)
}

func (d *yamlDecoder) convert(n *yaml.Node, field string) (literal.Value, error) {
	switch n.Kind {
	case yaml.AliasNode:
		return d.convert(n.Alias, field)

	case yaml.MappingNode:
		table := literal.Table{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if k.Kind != yaml.ScalarNode {
				return nil, &CompileError{Field: field, Message: "mapping keys must be scalars", Pos: d.pos(k)}
			}
			if k.ShortTag() == "!!merge" {
				return nil, &CompileError{Field: field, Message: "merge keys are not supported", Pos: d.pos(k)}
			}
			elem, err := d.convert(v, joinField(field, k.Value))
			if err != nil {
				return nil, err
			}
			table = append(table, literal.Entry{Key: k.Value, Value: elem})
		}
		return table, nil

	case yaml.SequenceNode:
		list := literal.List{}
		for i, item := range n.Content {
			elem, err := d.convert(item, fmt.Sprintf("%s[%d]", field, i))
			if err != nil {
				return nil, err
			}
			list = append(list, elem)
		}
		return list, nil

	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!null":
			return nil, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, &CompileError{Field: field, Message: err.Error(), Pos: d.pos(n)}
			}
			return literal.Bool(b), nil
		case "!!int":
			var i int64
			if err := n.Decode(&i); err != nil {
				return nil, &CompileError{Field: field, Message: err.Error(), Pos: d.pos(n)}
			}
			return literal.Int(i), nil
		case "!!float":
			return nil, &CompileError{Field: field, Message: "floats are not valid literals - use int instead", Pos: d.pos(n)}
		case "!!str":
			return literal.Text(n.Value), nil
		}
		return nil, &CompileError{Field: field, Message: fmt.Sprintf("unsupported scalar tag %s", n.ShortTag()), Pos: d.pos(n)}
	}
	return nil, &CompileError{Field: field, Message: "unsupported YAML node", Pos: d.pos(n)}
}

// CompileError represents a document error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
