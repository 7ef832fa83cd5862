package emit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/can1357/retro/internal/decl"
	"github.com/can1357/retro/internal/literal"
	"github.com/can1357/retro/internal/testutil"
	"github.com/can1357/retro/internal/types"
)

func sampleDoc() literal.Table {
	return literal.Table{
		{Key: "Includes", Value: literal.List{literal.Text("<retro/ir/types.hxx>")}},
		{Key: "arch", Value: literal.List{literal.Text("x86"), literal.Text("arm-64")}},
		{Key: "insn", Value: literal.Table{
			{Key: "load", Value: literal.Table{
				{Key: "pure", Value: literal.Bool(true)},
				{Key: "size", Value: literal.Int(-3)},
				{Key: "ops", Value: literal.List{literal.Int(1), literal.Int(2)}},
				{Key: "arch", Value: literal.Text("@arch.x86")},
				{Key: "VisitorArgs", Value: literal.List{literal.Text("Load")}},
			}},
			{Key: "store-mem", Value: literal.Table{
				{Key: "pure", Value: literal.Bool(false)},
				{Key: "size", Value: literal.Int(40000000000)},
				{Key: "ops", Value: literal.List{literal.Int(3), literal.Int(0)}},
			}},
		}},
	}
}

func buildSample(t *testing.T, doc literal.Table) (*decl.Arena, decl.ID) {
	t.Helper()
	a := decl.NewArena()
	ns, err := a.Build("retro::ir", decl.NoID, doc)
	require.NoError(t, err)
	return a, ns
}

func TestNativeGolden(t *testing.T) {
	a, ns := buildSample(t, sampleDoc())
	out, err := NewNative(Options{}).Generate(a, ns)
	require.NoError(t, err)
	testutil.AssertGolden(t, "native_sample", out)
}

func TestManagedGolden(t *testing.T) {
	a, ns := buildSample(t, sampleDoc())
	out, err := NewManaged(Options{}).Generate(a, ns)
	require.NoError(t, err)
	testutil.AssertGolden(t, "managed_sample", out)
}

func TestGenerators(t *testing.T) {
	gens := Generators(Options{})
	require.Len(t, gens, 2)
	assert.Equal(t, "native", gens[0].Language())
	assert.Equal(t, ".hxx", gens[0].FileExtension())
	assert.Equal(t, "managed", gens[1].Language())
	assert.Equal(t, ".ts", gens[1].FileExtension())
}

func TestThreeChoiceTable(t *testing.T) {
	a, ns := buildSample(t, literal.Table{
		{Key: "kind", Value: literal.List{literal.Text("a"), literal.Text("b"), literal.Text("c")}},
	})
	out, err := NewNative(Options{}).Generate(a, ns)
	require.NoError(t, err)

	text := string(out)
	start := strings.Index(text, "kind_desc kinds[] = {")
	require.NotEqual(t, -1, start)
	table := text[start : strings.Index(text[start:], "};")+start]
	// Sentinel plus three rows.
	assert.Equal(t, 4, strings.Count(table, "\t{"))
	assert.Contains(t, text, "bit_width = 2,")
	assert.Contains(t, text, "enum class kind : u8 /*:2*/")
}

func TestNestedNamespaces(t *testing.T) {
	a, ns := buildSample(t, literal.Table{
		{Key: "arch", Value: literal.List{literal.Text("x86")}},
		{Key: "x86", Value: literal.Table{
			{Key: "Type", Value: literal.Text("Namespace")},
			{Key: "reg", Value: literal.List{literal.Text("eax"), literal.Text("ecx")}},
		}},
	})

	native, err := NewNative(Options{}).Generate(a, ns)
	require.NoError(t, err)
	assert.Contains(t, string(native), "namespace retro::ir::x86 {")
	assert.Contains(t, string(native), "RC_DEFINE_STD_VISITOR_FOR(retro::ir::x86::reg, RC_VISIT_IR_X86_REG)")

	managed, err := NewManaged(Options{}).Generate(a, ns)
	require.NoError(t, err)
	assert.Contains(t, string(managed), "export namespace X86 {\n\t// prettier-ignore\n\texport enum Reg {")
}

func TestUserStructDefaults(t *testing.T) {
	a, ns := buildSample(t, literal.Table{
		{Key: "limits", Value: literal.Table{
			{Key: "Type", Value: literal.Text("Struct")},
			{Key: "depth", Value: literal.Int(-5)},
			{Key: "label", Value: literal.Text("x")},
		}},
	})
	native, err := NewNative(Options{}).Generate(a, ns)
	require.NoError(t, err)
	assert.Contains(t, string(native), "struct limits {\n\t\tstd::string_view label     = \"x\";\n\t\ti8               depth : 4 = -5;\n\t};")

	managed, err := NewManaged(Options{}).Generate(a, ns)
	require.NoError(t, err)
	assert.Contains(t, string(managed), "export class Limits {\n\tlabel: string = \"x\";\n\tdepth: number = -5;\n}")
}

func TestNativeRowRoundTrip(t *testing.T) {
	a, ns := buildSample(t, literal.Table{
		{Key: "e", Value: literal.Table{
			{Key: "a", Value: literal.Table{
				{Key: "neg", Value: literal.Int(-5)},
				{Key: "flag", Value: literal.Bool(true)},
				{Key: "arr", Value: literal.List{literal.Int(1), literal.Int(-2), literal.Int(3)}},
				{Key: "big", Value: literal.Int(-40000000000)},
			}},
			{Key: "b", Value: literal.Table{
				{Key: "neg", Value: literal.Int(7)},
				{Key: "flag", Value: literal.Bool(false)},
				{Key: "arr", Value: literal.List{literal.Int(0), literal.Int(0), literal.Int(0)}},
				{Key: "big", Value: literal.Int(12)},
			}},
		}},
	})
	id, err := a.Lookup(ns, "e")
	require.NoError(t, err)
	e := a.Get(id)
	fields := a.Get(e.Descriptor).Fields
	assert.Equal(t, types.Array{Elem: types.Integer{Bits: 3, Signed: true}, Length: 3}, fields[1].Type)

	for _, row := range e.Rows {
		text, err := NativeRow(fields, row)
		require.NoError(t, err)
		decoded, err := ParseNativeRow(fields, text)
		require.NoError(t, err)
		assert.Equal(t, row, decoded, text)
	}
}

func TestParseNativeRowAbsent(t *testing.T) {
	fields := []decl.Field{
		{Name: "name", Type: types.Text{}},
		{Name: "kind", Type: types.EnumRef{ID: 3, Name: "op-kind", Bits: 2}},
		{Name: "tags", Type: types.Array{Elem: types.Text{}}},
	}
	got, err := ParseNativeRow(fields, `{"a,b",op_kind::none,{"x","y}"}}`)
	require.NoError(t, err)
	assert.Equal(t, []literal.Value{literal.Text("a,b"), nil, literal.List{literal.Text("x"), literal.Text("y}")}}, got)

	got, err = ParseNativeRow(fields, `{{},op_kind::unary,{}}`)
	require.NoError(t, err)
	assert.Equal(t, []literal.Value{nil, literal.Text("@op-kind.unary"), nil}, got)

	_, err = ParseNativeRow(fields, `{"a"}`)
	assert.Error(t, err)
	_, err = ParseNativeRow(fields, `{"a",{,{}}`)
	assert.Error(t, err)
}

func TestValueErrors(t *testing.T) {
	_, err := NativeValue(types.Integer{Bits: 8}, literal.Text("x"))
	assert.Error(t, err)
	_, err = ManagedValue(types.Text{}, literal.Int(1))
	assert.Error(t, err)
}

func TestManagedTypes(t *testing.T) {
	assert.Equal(t, "boolean", ManagedType(types.Integer{Bits: 1}))
	assert.Equal(t, "number", ManagedType(types.Integer{Bits: 1, Signed: true}))
	assert.Equal(t, "number", ManagedType(types.Integer{Bits: 53}))
	assert.Equal(t, "bigint", ManagedType(types.Integer{Bits: 54}))
	assert.Equal(t, "OpKind[]", ManagedType(types.Array{Elem: types.EnumRef{Name: "op_kind"}}))

	v, err := ManagedValue(types.Integer{Bits: 64}, literal.Int(5))
	require.NoError(t, err)
	assert.Equal(t, "5n", v)
	v, err = ManagedValue(types.Integer{Bits: 4}, literal.Bool(true))
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestNaming(t *testing.T) {
	assert.Equal(t, "ReadReg", Pascal("read_reg"))
	assert.Equal(t, "MemoryRmw", Pascal("memory-rmw"))
	assert.Equal(t, "MReg", Pascal("MReg"))
	assert.Equal(t, "bbTerminator", Camel("bb_terminator"))
	assert.Equal(t, "name", Camel("name"))
}

func TestFormatHex(t *testing.T) {
	assert.Equal(t, "0x20", formatHex(32))
	assert.Equal(t, "-0x8000000000000000", formatHex(-1<<63))
}
