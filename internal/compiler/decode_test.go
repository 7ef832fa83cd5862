package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/can1357/retro/internal/literal"
)

func sampleTable() literal.Table {
	return literal.Table{
		{Key: "Includes", Value: literal.List{literal.Text("<retro/ir/types.hxx>")}},
		{Key: "arch", Value: literal.List{literal.Text("x86"), literal.Text("arm-64")}},
		{Key: "insn", Value: literal.Table{
			{Key: "load", Value: literal.Table{
				{Key: "pure", Value: literal.Bool(true)},
				{Key: "size", Value: literal.Int(-3)},
				{Key: "ops", Value: literal.List{literal.Int(1), literal.Int(2)}},
				{Key: "arch", Value: literal.Text("@arch.x86")},
			}},
			{Key: "store-mem", Value: literal.Table{
				{Key: "pure", Value: literal.Bool(false)},
				{Key: "size", Value: literal.Int(40000000000)},
			}},
		}},
		{Key: "nop", Value: nil},
	}
}

// =============================================================================
// CUE
// =============================================================================

func TestDecodeCUE(t *testing.T) {
	src := `
Includes: ["<retro/ir/types.hxx>"]
arch: ["x86", "arm-64"]
insn: {
	load: {pure: true, size: -3, ops: [1, 2], arch: "@arch.x86"}
	"store-mem": {
		pure: false
		size: 40000000000
	}
}
nop: null
`
	got, err := DecodeCUE("ops.cue", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), got)
}

func TestDecodeCUEFloatForbidden(t *testing.T) {
	_, err := DecodeCUE("bad.cue", []byte("insn: load: size: 1.5\n"))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "insn.load.size", ce.Field)
	assert.Contains(t, ce.Message, "floats")
	assert.Equal(t, 1, ce.Pos.Line())
}

func TestDecodeCUEIncomplete(t *testing.T) {
	_, err := DecodeCUE("bad.cue", []byte("arch: [string]\n"))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "arch[0]", ce.Field)
	assert.Contains(t, ce.Message, "concrete")
}

func TestDecodeCUESyntaxError(t *testing.T) {
	_, err := DecodeCUE("bad.cue", []byte("arch: [\n"))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "cue", ce.Field)
	assert.True(t, ce.Pos.IsValid())
	assert.Equal(t, "bad.cue", ce.Pos.Filename())
}

func TestDecodeCUEConflict(t *testing.T) {
	_, err := DecodeCUE("bad.cue", []byte("x: 1\nx: 2\n"))
	require.Error(t, err)
}

// =============================================================================
// YAML
// =============================================================================

func TestDecodeYAML(t *testing.T) {
	src := `
Includes:
  - "<retro/ir/types.hxx>"
arch: [x86, arm-64]
insn:
  load: {pure: true, size: -3, ops: [1, 2], arch: "@arch.x86"}
  store-mem:
    pure: false
    size: 40000000000
nop: ~
`
	got, err := DecodeYAML("ops.yaml", []byte(src))
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), got)
}

func TestDecodeYAMLAliases(t *testing.T) {
	src := "base: &b {x: 1}\nother: *b\n"
	got, err := DecodeYAML("a.yaml", []byte(src))
	require.NoError(t, err)

	want := literal.Table{{Key: "x", Value: literal.Int(1)}}
	v, ok := got.Get("other")
	require.True(t, ok)
	assert.Equal(t, want, v)
}

func TestDecodeYAMLFloatPosition(t *testing.T) {
	_, err := DecodeYAML("bad.yaml", []byte("arch: x86\nsize: 1.5\n"))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "size", ce.Field)
	assert.Equal(t, "bad.yaml", ce.Pos.Filename())
	assert.Equal(t, 2, ce.Pos.Line())
	assert.Equal(t, 7, ce.Pos.Column())
	assert.Contains(t, ce.Error(), "bad.yaml:2:7: size:")
}

func TestDecodeYAMLEmpty(t *testing.T) {
	got, err := DecodeYAML("empty.yaml", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDecodeYAMLRootMustBeMapping(t *testing.T) {
	_, err := DecodeYAML("list.yaml", []byte("- a\n- b\n"))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "document", ce.Field)
}

func TestDecodeYAMLSyntaxError(t *testing.T) {
	_, err := DecodeYAML("bad.yaml", []byte("a: [1, 2\n"))
	require.Error(t, err)
}

// =============================================================================
// TOML
// =============================================================================

func TestDecodeTOML(t *testing.T) {
	src := `
Includes = ["<retro/ir/types.hxx>"]
arch = ["x86", "arm-64"]

[insn]
load = {pure = true, size = -3, ops = [1, 2], arch = "@arch.x86"}

[insn.store-mem]
pure = false
size = 40_000_000_000
`
	got, err := DecodeTOML("ops.toml", []byte(src))
	require.NoError(t, err)
	// TOML has no null, so the trailing nop entry is absent.
	assert.Equal(t, sampleTable()[:3], got)
}

func TestDecodeTOMLKeyOrder(t *testing.T) {
	got, err := DecodeTOML("ops.toml", []byte("[insn]\nzeta = 1\nalpha = 2\nmid = 3\n"))
	require.NoError(t, err)

	insn, ok := got.Get("insn")
	require.True(t, ok)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, insn.(literal.Table).Keys())
}

func TestDecodeTOMLDottedKeys(t *testing.T) {
	src := "insn.load.size = 4\ninsn.load.pure = true\ninsn.nop = {}\n"
	got, err := DecodeTOML("ops.toml", []byte(src))
	require.NoError(t, err)

	want := literal.Table{
		{Key: "insn", Value: literal.Table{
			{Key: "load", Value: literal.Table{
				{Key: "size", Value: literal.Int(4)},
				{Key: "pure", Value: literal.Bool(true)},
			}},
			{Key: "nop", Value: literal.Table{}},
		}},
	}
	assert.Equal(t, want, got)
}

func TestDecodeTOMLArrayOfTables(t *testing.T) {
	src := `
[[replace]]
from = "add(A, B)"
to = 'add(B, A)'

[[replace]]
from = "neg(neg(A))"
to = "A"
`
	got, err := DecodeTOML("identity.d.toml", []byte(src))
	require.NoError(t, err)

	want := literal.Table{
		{Key: "replace", Value: literal.List{
			literal.Table{
				{Key: "from", Value: literal.Text("add(A, B)")},
				{Key: "to", Value: literal.Text("add(B, A)")},
			},
			literal.Table{
				{Key: "from", Value: literal.Text("neg(neg(A))")},
				{Key: "to", Value: literal.Text("A")},
			},
		}},
	}
	assert.Equal(t, want, got)
}

func TestDecodeTOMLIntegers(t *testing.T) {
	got, err := DecodeTOML("ops.toml", []byte("mask = 0xff\nmode = 0o17\nbits = 0b101\nneg = -42\n"))
	require.NoError(t, err)

	want := literal.Table{
		{Key: "mask", Value: literal.Int(255)},
		{Key: "mode", Value: literal.Int(15)},
		{Key: "bits", Value: literal.Int(5)},
		{Key: "neg", Value: literal.Int(-42)},
	}
	assert.Equal(t, want, got)
}

func TestDecodeTOMLFloatPosition(t *testing.T) {
	_, err := DecodeTOML("bad.toml", []byte("arch = \"x86\"\nsize = 1.5\n"))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "size", ce.Field)
	assert.Contains(t, ce.Message, "floats")
	assert.Equal(t, "bad.toml", ce.Pos.Filename())
	assert.Equal(t, 2, ce.Pos.Line())
	assert.Equal(t, 8, ce.Pos.Column())
}

func TestDecodeTOMLNestedFloat(t *testing.T) {
	_, err := DecodeTOML("bad.toml", []byte("[insn]\nload = {ops = [1, 2.5]}\n"))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "insn.load.ops[1]", ce.Field)
	assert.Equal(t, 2, ce.Pos.Line())
}

func TestDecodeTOMLErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		msg   string
	}{
		{"duplicate key", "a = 1\na = 2\n", "a", "duplicate key"},
		{"table twice", "[insn]\n[insn]\n", "insn", "defined twice"},
		{"value as table", "insn = 1\n[insn.load]\n", "insn", "already defined"},
		{"dotted into inline", "insn = {load = 1}\ninsn.store = 2\n", "insn", "already defined"},
		{"datetime", "at = 1979-05-27\n", "at", "not supported"},
		{"array table field", "[[replace]]\nfrom = 'a'\n[[replace]]\nweight = 0.5\n", "replace[1].weight", "floats"},
		{"syntax", "a = [1, 2\n", "toml", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeTOML("bad.toml", []byte(tt.src))
			require.Error(t, err)

			var ce *CompileError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.msg)
		})
	}
}

func TestDecodeTOMLEmpty(t *testing.T) {
	got, err := DecodeTOML("empty.toml", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

// =============================================================================
// Dispatch
// =============================================================================

func TestDecodeDispatch(t *testing.T) {
	got, err := Decode("include/retro/ir/ops.yml", []byte("arch: [x86]\n"))
	require.NoError(t, err)
	assert.Equal(t, literal.Table{{Key: "arch", Value: literal.List{literal.Text("x86")}}}, got)

	got, err = Decode("include/retro/ir/ops.cue", []byte(`arch: ["x86"]`))
	require.NoError(t, err)
	assert.Equal(t, literal.Table{{Key: "arch", Value: literal.List{literal.Text("x86")}}}, got)

	got, err = Decode("include/retro/ir/ops.toml", []byte(`arch = ["x86"]`))
	require.NoError(t, err)
	assert.Equal(t, literal.Table{{Key: "arch", Value: literal.List{literal.Text("x86")}}}, got)

	_, err = Decode("ops.json", []byte(`{"arch": []}`))
	assert.Error(t, err)
}

func TestDocumentNames(t *testing.T) {
	tests := []struct {
		path   string
		format Format
		known  bool
		rules  bool
		stem   string
	}{
		{"include/retro/ir/ops.yaml", FormatYAML, true, false, "ops"},
		{"include/retro/ir/ops.YML", FormatYAML, true, false, "ops"},
		{"include/retro/directives/identity.d.yaml", FormatYAML, true, true, "identity"},
		{"rules/preferred.d.cue", FormatCUE, true, true, "preferred"},
		{"types.cue", FormatCUE, true, false, "types"},
		{"include/retro/ir/opcodes.toml", FormatTOML, true, false, "opcodes"},
		{"include/retro/ir/ops.d.toml", FormatTOML, true, true, "ops"},
		{"notes.md", "", false, false, "notes"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			format, ok := FormatOf(tt.path)
			assert.Equal(t, tt.known, ok)
			assert.Equal(t, tt.format, format)
			assert.Equal(t, tt.rules, IsRuleDocument(tt.path))
			assert.Equal(t, tt.stem, Stem(tt.path))
		})
	}
}
