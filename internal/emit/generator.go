// Package emit renders expanded declaration trees as source text.
//
// Two generators share the Generator interface: Native renders packed
// headers with bitfields and constexpr tables, Managed renders a parallel
// enum/class/table module. Emission is pure text construction from an
// already expanded arena; no type inference happens here.
package emit

import (
	"github.com/can1357/retro/internal/decl"
)

// Generator is implemented by every target syntax.
type Generator interface {
	// Generate renders namespace ns of the arena.
	Generate(a *decl.Arena, ns decl.ID) ([]byte, error)

	// Language returns the name of the target syntax.
	Language() string

	// FileExtension returns the extension of generated files, with the dot.
	FileExtension() string
}

// Options configure generation.
type Options struct {
	// Includes are prepended to every native header before the namespace's
	// own Includes metadata.
	Includes []string
}

// DefaultIncludes is the include every native header starts with.
var DefaultIncludes = []string{"<retro/common.hpp>"}

// Generators returns the native and managed generators.
func Generators(opts Options) []Generator {
	return []Generator{NewNative(opts), NewManaged(opts)}
}
