package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/can1357/retro/internal/decl"
	"github.com/can1357/retro/internal/literal"
	"github.com/can1357/retro/internal/types"
)

// safeIntegerBits is the widest integer a managed number holds exactly.
const safeIntegerBits = 53

// Managed renders the managed module: enums, descriptor classes, tables
// and reflect/toString helpers.
type Managed struct {
	opts Options
}

// NewManaged creates a managed generator.
func NewManaged(opts Options) *Managed {
	return &Managed{opts: opts}
}

func (m *Managed) Language() string      { return "managed" }
func (m *Managed) FileExtension() string { return ".ts" }

// Generate renders namespace ns and its nested namespaces.
func (m *Managed) Generate(a *decl.Arena, ns decl.ID) ([]byte, error) {
	var b strings.Builder
	if err := m.namespace(&b, a, ns); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

const ignore = "// prettier-ignore\n"

func (m *Managed) namespace(b *strings.Builder, a *decl.Arena, ns decl.ID) error {
	children := a.Get(ns).Children
	for _, id := range children {
		if d := a.Get(id); d.Kind == decl.KindEnum {
			m.enum(b, a, d)
		}
	}

	b.WriteString("\n" + banner("Descriptors") + "\n")
	for _, id := range children {
		if d := a.Get(id); d.Kind == decl.KindStruct {
			if err := m.class(b, a, d); err != nil {
				return err
			}
		}
	}

	b.WriteString("\n" + banner("Tables") + "\n")
	for _, id := range children {
		if d := a.Get(id); d.Kind == decl.KindEnum {
			if err := m.table(b, a, d); err != nil {
				return err
			}
		}
	}

	for _, id := range children {
		d := a.Get(id)
		if d.Kind != decl.KindNamespace {
			continue
		}
		var inner strings.Builder
		if err := m.namespace(&inner, a, id); err != nil {
			return err
		}
		body := strings.TrimSuffix(indent("\n"+inner.String()), "\t")
		fmt.Fprintf(b, "%sexport namespace %s {%s}\n", ignore, Pascal(d.Name), body)
	}
	return nil
}

func (m *Managed) enum(b *strings.Builder, a *decl.Arena, d *decl.Decl) {
	names := []string{"None"}
	for _, c := range d.Choices {
		names = append(names, Pascal(c.Name))
	}
	pad := maxLen(append([]string{"MAX", "BIT_WIDTH"}, names...)...)

	fmt.Fprintf(b, "%sexport enum %s {\n", ignore, Pascal(d.Name))
	for i, n := range names {
		fmt.Fprintf(b, "\t%s = %d,\n", ljust(n, pad), i)
	}
	b.WriteString("\t// PSEUDO\n")
	fmt.Fprintf(b, "\t%s = %d,\n", ljust("MAX", pad), len(names)-1)
	fmt.Fprintf(b, "\t%s = %d,\n", ljust("BIT_WIDTH", pad), a.Width(d.ID))
	b.WriteString("}\n")
}

// className names the class of a struct. Descriptors are named after their
// enum: opcode_desc → OpcodeDesc.
func className(a *decl.Arena, d *decl.Decl) string {
	if d.IsDescriptor() {
		return Pascal(a.Get(d.DescriptorOf).Name) + "Desc"
	}
	return Pascal(d.Name)
}

func (m *Managed) class(b *strings.Builder, a *decl.Arena, d *decl.Decl) error {
	heads := make([]string, len(d.Fields))
	typs := make([]string, len(d.Fields))
	inits := make([]string, len(d.Fields))
	for i, f := range d.Fields {
		heads[i] = Camel(f.Name) + ":"
		typs[i] = ManagedType(f.Type)
		v, err := ManagedValue(f.Type, f.Init)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", d.Name, f.Name, err)
		}
		inits[i] = v
	}
	headPad := maxLen(heads...) + 1
	typePad := maxLen(typs...) + 1

	fmt.Fprintf(b, "%sexport class %s {\n", ignore, className(a, d))
	for i := range d.Fields {
		fmt.Fprintf(b, "\t%s%s= %s;\n", ljust(heads[i], headPad), ljust(typs[i], typePad), inits[i])
	}
	b.WriteString("}\n")
	return nil
}

func (m *Managed) table(b *strings.Builder, a *decl.Arena, d *decl.Decl) error {
	enum := Pascal(d.Name)
	desc := a.Get(d.Descriptor)
	class := className(a, desc)

	fmt.Fprintf(b, "%sconst %s_DescTable: %s[] = [\n", ignore, enum, class)
	fmt.Fprintf(b, "\tnew %s(),\n", class)
	for i, row := range d.Rows {
		cells := make([]string, len(desc.Fields))
		for j, f := range desc.Fields {
			v, err := ManagedValue(f.Type, row[j])
			if err != nil {
				return fmt.Errorf("%s.%s: field %s: %w", d.Name, d.Choices[i].Name, f.Name, err)
			}
			cells[j] = Camel(f.Name) + ":" + v
		}
		fmt.Fprintf(b, "\t{%s},\n", strings.Join(cells, ","))
	}
	b.WriteString("]\n")

	fmt.Fprintf(b, "%sexport namespace %s {\n", ignore, enum)
	fmt.Fprintf(b, "    export function reflect(i:%[1]s) : %[2]s { return %[1]s_DescTable[i]; }\n", enum, class)
	fmt.Fprintf(b, "    export function toString(i:%[1]s) : string { return %[1]s_DescTable[i].%[2]s; }\n", enum, decl.NameField)
	b.WriteString("}\n")
	return nil
}

// ManagedType returns the managed type name of t. One-bit unsigned integers
// are booleans and integers wider than the safe-integer range are bigints.
func ManagedType(t types.Type) string {
	switch x := t.(type) {
	case types.Integer:
		switch {
		case x.Bits == 1 && !x.Signed:
			return "boolean"
		case x.Bits > safeIntegerBits:
			return "bigint"
		}
		return "number"
	case types.EnumRef:
		return Pascal(x.Name)
	case types.Text:
		return "string"
	case types.Array:
		return ManagedType(x.Elem) + "[]"
	}
	return "unknown"
}

// ManagedValue renders v as a managed literal of type t. An absent value
// renders as the type's default.
func ManagedValue(t types.Type, v literal.Value) (string, error) {
	switch x := t.(type) {
	case types.Integer:
		kind := ManagedType(x)
		var n int64
		switch lit := v.(type) {
		case nil:
		case literal.Bool:
			if lit {
				n = 1
			}
		case literal.Int:
			n = int64(lit)
		default:
			return "", fmt.Errorf("cannot render %s as %s", literal.KindOf(v), x)
		}
		switch kind {
		case "boolean":
			return strconv.FormatBool(n != 0), nil
		case "bigint":
			return strconv.FormatInt(n, 10) + "n", nil
		}
		return strconv.FormatInt(n, 10), nil
	case types.EnumRef:
		switch lit := v.(type) {
		case nil:
			return Pascal(x.Name) + ".None", nil
		case literal.Text:
			_, choice, ok, err := types.SplitEnumRef(string(lit))
			if err != nil {
				return "", err
			}
			if ok {
				return Pascal(x.Name) + "." + Pascal(choice), nil
			}
		}
	case types.Text:
		switch lit := v.(type) {
		case nil:
			return `""`, nil
		case literal.Text:
			return strconv.Quote(string(lit)), nil
		}
	case types.Array:
		switch lit := v.(type) {
		case nil:
			return "[]", nil
		case literal.List:
			cells := make([]string, len(lit))
			for i, item := range lit {
				s, err := ManagedValue(x.Elem, item)
				if err != nil {
					return "", err
				}
				cells[i] = s
			}
			return "[" + strings.Join(cells, ",") + "]", nil
		}
	}
	return "", fmt.Errorf("cannot render %s as %s", literal.KindOf(v), types.Name(t))
}
