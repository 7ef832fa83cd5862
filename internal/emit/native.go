package emit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/can1357/retro/internal/decl"
	"github.com/can1357/retro/internal/literal"
	"github.com/can1357/retro/internal/types"
)

// Native renders packed native headers.
type Native struct {
	opts Options
}

// NewNative creates a native generator.
func NewNative(opts Options) *Native {
	if opts.Includes == nil {
		opts.Includes = DefaultIncludes
	}
	return &Native{opts: opts}
}

func (n *Native) Language() string      { return "native" }
func (n *Native) FileExtension() string { return ".hxx" }

// Generate renders the header for namespace ns and its nested namespaces.
func (n *Native) Generate(a *decl.Arena, ns decl.ID) ([]byte, error) {
	var b strings.Builder
	b.WriteString("#pragma once\n")

	includes := append([]string(nil), n.opts.Includes...)
	if v, ok := a.Get(ns).Meta.Get(decl.MetaIncludes); ok {
		list, _ := v.(literal.List)
		for _, item := range list {
			if t, ok := item.(literal.Text); ok {
				includes = append(includes, string(t))
			}
		}
	}
	for _, inc := range includes {
		fmt.Fprintf(&b, "#include %s\n", inc)
	}
	b.WriteString("\n")

	if err := n.namespace(&b, a, ns); err != nil {
		return nil, err
	}
	b.WriteString("\n")
	return []byte(b.String()), nil
}

func (n *Native) namespace(b *strings.Builder, a *decl.Arena, ns decl.ID) error {
	qualified := a.QualifiedName(ns)

	var body, suffix strings.Builder
	var nested []decl.ID
	for _, id := range a.Get(ns).Children {
		d := a.Get(id)
		switch d.Kind {
		case decl.KindEnum:
			n.enum(&body, a, d, qualified)
			fmt.Fprintf(&suffix, "namespace retro { template<> struct descriptor<%[1]s::%[2]s> { using type = %[1]s::%[2]s%[3]s; }; };\n",
				qualified, decl.CName(d.Name), decl.DescriptorSuffix)
			fmt.Fprintf(&suffix, "RC_DEFINE_STD_VISITOR_FOR(%s::%s, %s)\n", qualified, decl.CName(d.Name), visitorName(qualified, d.Name))
		case decl.KindNamespace:
			nested = append(nested, id)
		}
	}

	body.WriteString("\n\n" + banner("Descriptors"))
	for _, id := range a.Get(ns).Children {
		if d := a.Get(id); d.Kind == decl.KindStruct {
			if err := n.structure(&body, a, d); err != nil {
				return err
			}
		}
	}

	body.WriteString("\n\n" + banner("Tables"))
	for _, id := range a.Get(ns).Children {
		if d := a.Get(id); d.Kind == decl.KindEnum {
			if err := n.table(&body, a, d); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(b, "// clang-format off\nnamespace %s {%s\n};\n%s// clang-format on", qualified, indent(body.String()), suffix.String())

	for _, id := range nested {
		b.WriteString("\n\n")
		if err := n.namespace(b, a, id); err != nil {
			return err
		}
	}
	return nil
}

// visitorName derives the visitor macro name, e.g. RC_VISIT_IR_OPCODE for
// enum opcode in retro::ir.
func visitorName(qualified, enum string) string {
	ns := strings.ReplaceAll(strings.ReplaceAll(qualified, "retro::", ""), "::", "_")
	return strings.ToUpper("RC_VISIT_" + ns + "_" + decl.CName(enum))
}

func (n *Native) enum(b *strings.Builder, a *decl.Arena, d *decl.Decl, qualified string) {
	choices := []string{decl.Sentinel}
	for _, c := range d.Choices {
		choices = append(choices, decl.CName(c.Name))
	}
	width := a.Width(d.ID)
	pad := maxLen(choices...)

	fmt.Fprintf(b, "\nenum class %s : u%d /*:%d*/ {\n", decl.CName(d.Name), types.StdWidth(width), width)
	for i, c := range choices {
		fmt.Fprintf(b, "\t%s = %d,\n", ljust(c, pad), i)
	}
	b.WriteString("\t// PSEUDO\n")
	fmt.Fprintf(b, "\t%s = %d,\n", ljust("last", pad), len(choices)-1)
	fmt.Fprintf(b, "\t%s = %d,\n", ljust("bit_width", pad), width)
	b.WriteString("};")

	// Every visitor entry carries the same number of arguments.
	arity := 0
	args := make([][]string, len(d.Choices))
	for i, c := range d.Choices {
		if v, ok := c.Meta.Get(decl.MetaVisitorArgs); ok {
			list, _ := v.(literal.List)
			for _, item := range list {
				args[i] = append(args[i], visitorArg(item))
			}
		}
		arity = max(arity, len(args[i]))
	}
	fmt.Fprintf(b, "\n#define %s(_)", visitorName(qualified, d.Name))
	for i, c := range d.Choices {
		entry := append([]string{decl.CName(c.Name)}, args[i]...)
		for len(entry) < arity+1 {
			entry = append(entry, "")
		}
		fmt.Fprintf(b, " _(%s)", strings.Join(entry, ","))
	}
}

func visitorArg(v literal.Value) string {
	switch x := v.(type) {
	case literal.Text:
		return string(x)
	case literal.Int:
		return strconv.FormatInt(int64(x), 10)
	case literal.Bool:
		return strconv.FormatBool(bool(x))
	}
	return literal.Format(v)
}

func (n *Native) structure(b *strings.Builder, a *decl.Arena, d *decl.Decl) error {
	type line struct{ typ, name, init string }
	lines := make([]line, len(d.Fields))
	for i, f := range d.Fields {
		l := line{typ: NativeType(f.Type), name: decl.CName(f.Name), init: " = " + nativeDefault(f.Type) + ";"}
		if _, bitfield, ok := types.Storage(f.Type); ok && bitfield {
			l.name += " : " + strconv.Itoa(bitsOf(f.Type))
		}
		if arr, ok := f.Type.(types.Array); ok && arr.Dynamic() {
			l.name += ";"
			l.init = ""
		} else if f.Init != nil {
			v, err := NativeValue(f.Type, f.Init)
			if err != nil {
				return fmt.Errorf("%s.%s: %w", d.Name, f.Name, err)
			}
			l.init = " = " + v + ";"
		}
		lines[i] = l
	}

	typePad := 0
	for _, l := range lines {
		typePad = max(typePad, len(l.typ))
	}
	heads := make([]string, len(lines))
	for i, l := range lines {
		heads[i] = ljust(l.typ, typePad) + " " + l.name
	}
	headPad := maxLen(heads...)

	fmt.Fprintf(b, "\nstruct %s {\n", decl.CName(d.Name))
	for i, l := range lines {
		fmt.Fprintf(b, "\t%s%s\n", ljust(heads[i], headPad), l.init)
	}
	if d.IsDescriptor() {
		enum := decl.CName(a.Get(d.DescriptorOf).Name)
		fmt.Fprintf(b, "\n\tusing value_type = %s;\n", enum)
		fmt.Fprintf(b, "\tstatic constexpr std::span<const %s%s> all();\n", enum, decl.DescriptorSuffix)
		fmt.Fprintf(b, "\tstatic constexpr std::span<const %s%s> list();\n", enum, decl.DescriptorSuffix)
		fmt.Fprintf(b, "\tRC_INLINE constexpr const %[1]s id() const { return %[1]s(this - all().data()); }\n", enum)
	}
	b.WriteString("};")
	return nil
}

func (n *Native) table(b *strings.Builder, a *decl.Arena, d *decl.Decl) error {
	name := decl.CName(d.Name)
	desc := a.Get(d.Descriptor)

	fmt.Fprintf(b, "\ninline constexpr %s %ss[] = {\n", desc.Name, name)
	fmt.Fprintf(b, "\t{%q},\n", decl.Sentinel)
	for i, row := range d.Rows {
		text, err := NativeRow(desc.Fields, row)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", d.Name, d.Choices[i].Name, err)
		}
		fmt.Fprintf(b, "\t%s,\n", text)
	}
	b.WriteString("};\n")
	fmt.Fprintf(b, "RC_INLINE constexpr std::span<const %[1]s%[2]s> %[1]s%[2]s::all() { return %[1]ss; }\n", name, decl.DescriptorSuffix)
	fmt.Fprintf(b, "RC_INLINE constexpr std::span<const %[1]s%[2]s> %[1]s%[2]s::list() { return all().subspan(1); }", name, decl.DescriptorSuffix)
	return nil
}

// NativeRow renders one table row initializer in field order.
func NativeRow(fields []decl.Field, row []literal.Value) (string, error) {
	cells := make([]string, len(fields))
	for i, f := range fields {
		v, err := NativeValue(f.Type, row[i])
		if err != nil {
			return "", fmt.Errorf("field %s: %w", f.Name, err)
		}
		cells[i] = v
	}
	return "{" + strings.Join(cells, ",") + "}", nil
}

// NativeType returns the native type name of t.
func NativeType(t types.Type) string {
	switch x := t.(type) {
	case types.Integer:
		if x.Signed {
			return "i" + strconv.Itoa(types.StdWidth(x.Bits))
		}
		return "u" + strconv.Itoa(types.StdWidth(x.Bits))
	case types.EnumRef:
		return decl.CName(x.Name)
	case types.Text:
		return "std::string_view"
	case types.Array:
		if x.Dynamic() {
			return fmt.Sprintf("small_array<%s>", NativeType(x.Elem))
		}
		return fmt.Sprintf("std::array<%s, %d>", NativeType(x.Elem), x.Length)
	}
	return "void"
}

func nativeDefault(t types.Type) string {
	if _, ok := t.(types.Integer); ok {
		return "0"
	}
	return "{}"
}

func bitsOf(t types.Type) int {
	switch x := t.(type) {
	case types.Integer:
		return x.Bits
	case types.EnumRef:
		return x.Bits
	}
	return 0
}

// NativeValue renders v as an initializer of type t. An absent value
// renders as the type's default.
func NativeValue(t types.Type, v literal.Value) (string, error) {
	switch x := t.(type) {
	case types.Integer:
		switch lit := v.(type) {
		case nil:
			return "0", nil
		case literal.Bool:
			return strconv.FormatBool(bool(lit)), nil
		case literal.Int:
			if x.Bits >= 32 {
				return formatHex(int64(lit)), nil
			}
			return strconv.FormatInt(int64(lit), 10), nil
		}
	case types.EnumRef:
		switch lit := v.(type) {
		case nil:
			return decl.CName(x.Name) + "::" + decl.Sentinel, nil
		case literal.Text:
			_, choice, ok, err := types.SplitEnumRef(string(lit))
			if err != nil {
				return "", err
			}
			if ok {
				return decl.CName(x.Name) + "::" + decl.CName(choice), nil
			}
		}
	case types.Text:
		switch lit := v.(type) {
		case nil:
			return "{}", nil
		case literal.Text:
			return strconv.Quote(string(lit)), nil
		}
	case types.Array:
		switch lit := v.(type) {
		case nil:
			return "{}", nil
		case literal.List:
			cells := make([]string, len(lit))
			for i, item := range lit {
				s, err := NativeValue(x.Elem, item)
				if err != nil {
					return "", err
				}
				cells[i] = s
			}
			return "{" + strings.Join(cells, ",") + "}", nil
		}
	}
	return "", fmt.Errorf("cannot render %s as %s", literal.KindOf(v), types.Name(t))
}

func formatHex(v int64) string {
	if v < 0 {
		// -(v+1)+1 avoids overflowing on the minimum value.
		return "-0x" + strconv.FormatUint(uint64(-(v+1))+1, 16)
	}
	return "0x" + strconv.FormatUint(uint64(v), 16)
}
