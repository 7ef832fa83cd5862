package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteTree creates files under root, creating parent directories. Keys are
// slash-separated paths relative to root.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

// ReadFile returns the content of root/name, failing the test if it is
// missing.
func ReadFile(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

// Exists reports whether root/name exists.
func Exists(root, name string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(name)))
	return err == nil
}

// OperatorDocument is a minimal operator declaration document.
const OperatorDocument = `op_kind: [unary, binary, cmp]
op:
  add: {symbol: "+", kind: "@op_kind.binary", commutative: true}
  sub: {symbol: "-", kind: "@op_kind.binary", commutative: false}
  mul: {symbol: "*", kind: "@op_kind.binary", commutative: true}
  neg: {symbol: "-", kind: "@op_kind.unary", commutative: false}
  eq: {symbol: "==", kind: "@op_kind.cmp", commutative: true}
`
