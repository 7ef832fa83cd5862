package testutil

import (
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenDir is where golden files live, relative to the package under test.
const GoldenDir = "testdata/golden"

// AssertGolden compares generated output against testdata/golden/{name}.golden.
//
// To regenerate golden files, run the package tests with -update:
//
//	go test ./internal/emit -update
func AssertGolden(t *testing.T, name string, got []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, got)
}
