package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/can1357/retro/internal/compiler"
	"github.com/can1357/retro/internal/diag"
)

func newTestFormatter(format string, verbose bool) (*OutputFormatter, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &OutputFormatter{Format: format, Writer: out, ErrWriter: errOut, Verbose: verbose}, out, errOut
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"rule parse", diag.RuleParse("add(A, B", "expected ')'"), "RULE_PARSE"},
		{"wrapped reference", fmt.Errorf("operator document ops.yaml: %w", diag.Reference("op_kind", "unknown choice %q", "ternary")), "REFERENCE"},
		{"validation", compiler.ValidationErrors{{Code: "E203", Field: "insn"}, {Code: "E201", Field: "arch"}}, "E203"},
		{"load", &LoadError{Code: ErrCodeCache, Message: "opening cache"}, ErrCodeCache},
		{"other", errors.New("boom"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errorCode(tt.err))
		})
	}
}

func TestNewCLIErrorDiag(t *testing.T) {
	e := newCLIError(diag.Reference("insn.load", "unknown choice %q", "@arch.mips"))
	assert.Equal(t, "REFERENCE", e.Code)
	assert.Equal(t, `insn.load: unknown choice "@arch.mips"`, e.Message)
	assert.Equal(t, ErrorDetails{Subject: "insn.load"}, e.Details)
}

func TestNewCLIErrorPosition(t *testing.T) {
	_, err := compiler.DecodeYAML("bad.yaml", []byte("arch: x86\nsize: 1.5\n"))
	require.Error(t, err)

	e := newCLIError(err)
	assert.Equal(t, ErrCodeGeneric, e.Code)
	assert.Equal(t, ErrorDetails{Position: "bad.yaml:2:7"}, e.Details)
}

func TestNewCLIErrorValidation(t *testing.T) {
	verrs := compiler.ValidationErrors{
		{Code: "E203", Field: "insn.load", Message: "unknown metadata key"},
		{Code: "E201", Field: "arch", Message: "invalid name"},
	}
	e := newCLIError(fmt.Errorf("ops.yaml: %w", verrs))
	assert.Equal(t, "E203", e.Code)

	d, ok := e.Details.(ErrorDetails)
	require.True(t, ok)
	assert.Len(t, d.Problems, 2)
}

func TestNewCLIErrorLoad(t *testing.T) {
	e := newCLIError(&LoadError{Code: ErrCodeCache, Message: "opening cache c.db", Err: errors.New("locked")})
	assert.Equal(t, ErrCodeCache, e.Code)
	assert.Equal(t, "opening cache c.db: locked", e.Message)
	assert.Nil(t, e.Details)
}

func TestCommandErrorJSON(t *testing.T) {
	f, out, _ := newTestFormatter("json", false)

	err := f.CommandError(diag.RuleLookup("frob(A)", "unknown operator %q", "frob"))
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "RULE_LOOKUP: frob(A)")

	var resp struct {
		Status string `json:"status"`
		Error  struct {
			Code    string       `json:"code"`
			Message string       `json:"message"`
			Details ErrorDetails `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "RULE_LOOKUP", resp.Error.Code)
	assert.Equal(t, "frob(A)", resp.Error.Details.Subject)
}

func TestCommandErrorText(t *testing.T) {
	err := diag.RuleParse("add(A, B", "expected ')' after arguments of add")

	f, out, _ := newTestFormatter("text", false)
	_ = f.CommandError(err)
	assert.Equal(t, "Error [RULE_PARSE]: add(A, B: expected ')' after arguments of add\n", out.String())

	f, out, _ = newTestFormatter("text", true)
	_ = f.CommandError(err)
	assert.Contains(t, out.String(), "  in: add(A, B\n")
}

func sampleResult() GenerationResult {
	return GenerationResult{
		RunID:     "run-7",
		Generated: 2,
		Skipped:   1,
		Documents: []DocumentReport{
			{Path: "include/retro/ir/insn.yaml", Kind: "schema", Status: "generated", Namespace: "retro::ir"},
			{Path: "include/retro/ir/ops.yaml", Kind: "schema", Status: "skipped", Namespace: "retro::ir"},
			{Path: "include/retro/ir/identity.d.yaml", Kind: "rules", Status: "generated", Functions: 4},
		},
	}
}

func TestSummaryJSONCarriesRunID(t *testing.T) {
	f, out, _ := newTestFormatter("json", false)
	require.NoError(t, f.Summary(sampleResult()))

	var resp struct {
		Status string           `json:"status"`
		RunID  string           `json:"run_id"`
		Error  *CLIError        `json:"error"`
		Data   GenerationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-7", resp.RunID)
	assert.Nil(t, resp.Error)
	assert.Equal(t, 2, resp.Data.Generated)
}

func TestSummaryText(t *testing.T) {
	f, out, errOut := newTestFormatter("text", false)
	require.NoError(t, f.Summary(sampleResult()))

	assert.Equal(t, "✓ include/retro/ir/insn.yaml (retro::ir)\n"+
		"✓ include/retro/ir/identity.d.yaml (4 functions)\n"+
		"\n2 generated, 1 skipped, 0 failed\n", out.String())
	assert.Empty(t, errOut.String())

	f, _, errOut = newTestFormatter("text", true)
	require.NoError(t, f.Summary(sampleResult()))
	assert.Equal(t, "- include/retro/ir/ops.yaml (unchanged)\n", errOut.String())
}

func TestSummaryFailure(t *testing.T) {
	res := sampleResult()
	res.Failed = 1
	res.Documents = append(res.Documents, DocumentReport{
		Path:   "include/retro/ir/broken.d.yaml",
		Kind:   "rules",
		Status: "failed",
		Error:  newCLIError(diag.RuleParse("add(A, B", "expected ')'")),
	})

	f, out, _ := newTestFormatter("text", true)
	err := f.Summary(res)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out.String(), "✗ include/retro/ir/broken.d.yaml\n  RULE_PARSE: add(A, B: expected ')'\n  in: add(A, B\n")

	f, out, _ = newTestFormatter("json", false)
	err = f.Summary(res)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "run-7", resp.RunID)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RULE_PARSE", resp.Error.Code)
}

func TestExpansionOutput(t *testing.T) {
	res := ExpansionResult{Pattern: "add(A, B)", Permutations: []string{"add(A, B)", "add(B, A)"}}

	f, out, errOut := newTestFormatter("text", true)
	require.NoError(t, f.Expansion(res))
	assert.Equal(t, "add(A, B)\nadd(B, A)\n", out.String())
	assert.Equal(t, "2 permutation(s)\n", errOut.String())
}

func TestVerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, out, errOut := newTestFormatter("json", tt.verbose)

			f.VerboseLog("Loaded %d operators from %s", 12, "ops.yaml")

			assert.Empty(t, out.String(), "verbose lines never reach the JSON stream")
			if tt.wantLog {
				assert.Equal(t, "Loaded 12 operators from ops.yaml\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestVerboseLogWithoutErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: out, Verbose: true}

	f.VerboseLog("Checked %s", "insn.yaml")
	assert.Equal(t, "Checked insn.yaml\n", out.String())
}
