package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/can1357/retro/internal/testutil"
)

func TestValidateValidDocuments(t *testing.T) {
	root := setupTree(t)

	out, _, err := execute(t, "validate", "--ops", filepath.Join(root, opsDoc), root)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All documents valid (3 checked)")

	// Nothing is written.
	assert.False(t, testutil.Exists(root, "include/retro/ir/insn.hxx"))
	assert.False(t, testutil.Exists(root, "include/retro/ir/identity.d.cxx"))
}

func TestValidateValidDocumentsJSON(t *testing.T) {
	root := setupTree(t)

	out, _, err := execute(t, "--format", "json", "validate", "--ops", filepath.Join(root, opsDoc), root)
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, 3, resp.Data.Documents)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateIgnoresCache(t *testing.T) {
	root := setupTree(t)
	testutil.WriteTree(t, root, map[string]string{
		"tablegen.yaml": "operators:\n  document: include/retro/ir/ops.yaml\ncache:\n  path: cache.db\n",
	})

	_, _, err := execute(t, "--config", filepath.Join(root, "tablegen.yaml"), "validate")
	require.NoError(t, err)
	assert.False(t, testutil.Exists(root, "cache.db"))
}

func TestValidateInvalidDocument(t *testing.T) {
	root := setupTree(t)
	testutil.WriteTree(t, root, map[string]string{
		brokenDoc:                   brokenYAML,
		"include/retro/ir/bad.yaml": "insn:\n  load: {size: 4}\n  store: {size: text}\n",
	})

	out, _, err := execute(t, "validate", "--ops", filepath.Join(root, opsDoc), root)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 2 error(s)")

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "include/retro/ir/broken.d.yaml\n  RULE_LOOKUP")
	assert.Contains(t, out, "include/retro/ir/bad.yaml\n  TYPE_UNIFICATION")
}

func TestValidateInvalidDocumentJSON(t *testing.T) {
	root := setupTree(t)
	testutil.WriteTree(t, root, map[string]string{brokenDoc: brokenYAML})

	out, _, err := execute(t, "--format", "json", "validate", "--ops", filepath.Join(root, opsDoc), root)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "include/retro/ir/broken.d.yaml", resp.Data.Errors[0].Path)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "RULE_LOOKUP", resp.Error.Code)
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, _, err := execute(t, "validate", "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "E005") // ErrCodeNotFound
	assert.Contains(t, out, "not found")
}

func TestValidateEmptyDirectory(t *testing.T) {
	_, _, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E003") // ErrCodeNoFiles
}
