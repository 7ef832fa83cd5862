// Package decl holds the declaration tree of one generation run.
//
// Declarations live in an Arena and refer to each other by ID. A
// declaration is created once while its document is built and is never
// reparented. Name lookup walks up through the owning namespaces.
package decl

import (
	"strings"

	"github.com/can1357/retro/internal/diag"
	"github.com/can1357/retro/internal/literal"
	"github.com/can1357/retro/internal/types"
)

// ID addresses a declaration inside its Arena.
type ID int

// NoID is the parent of a root namespace and the descriptor of an enum that
// has not been expanded yet.
const NoID ID = -1

// Kind is the declaration kind.
type Kind uint8

const (
	KindNamespace Kind = iota
	KindEnum
	KindStruct
	KindForward
)

func (k Kind) String() string {
	switch k {
	case KindNamespace:
		return "Namespace"
	case KindEnum:
		return "Enum"
	case KindStruct:
		return "Struct"
	case KindForward:
		return "Forward"
	}
	return "Unknown"
}

// Sentinel is the reserved name of the null choice that precedes every
// enum's real choices.
const Sentinel = "none"

// ForwardWidth is the width assumed for forward-declared enums.
const ForwardWidth = 32

// Choice is one enum choice. Meta holds its uppercase keys and Data its
// field initializers.
type Choice struct {
	Name string
	Meta literal.Table
	Data literal.Table
}

// Field is one struct field. Init is the initializer of user structs and
// nil for descriptor fields.
type Field struct {
	Name string
	Type types.Type
	Init literal.Value
}

// Decl is a declaration. Which fields are meaningful depends on Kind.
type Decl struct {
	ID     ID
	Parent ID
	Kind   Kind
	Name   string
	Meta   literal.Table

	// Children lists a namespace's declarations in declaration order.
	Children []ID

	// Choices are an enum's real choices in declaration order.
	Choices []Choice

	// Descriptor is the struct synthesized by Expand for an enum.
	Descriptor ID

	// Rows holds one row per choice, aligned with the descriptor's fields.
	Rows [][]literal.Value

	// Fields are a struct's fields in sorted order.
	Fields []Field

	// DescriptorOf is the enum a synthesized struct describes.
	DescriptorOf ID

	expanded bool
}

// IsDescriptor reports whether d is a struct synthesized for an enum.
func (d *Decl) IsDescriptor() bool {
	return d.Kind == KindStruct && d.DescriptorOf != NoID
}

// Choice returns the index of the named choice.
func (d *Decl) Choice(name string) (int, bool) {
	for i, c := range d.Choices {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Arena owns every declaration of one generation run.
type Arena struct {
	decls []*Decl
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Get returns the declaration with the given ID.
func (a *Arena) Get(id ID) *Decl {
	return a.decls[id]
}

// Len returns the number of declarations.
func (a *Arena) Len() int {
	return len(a.decls)
}

// add appends a new declaration owned by parent.
func (a *Arena) add(kind Kind, name string, parent ID, meta literal.Table) *Decl {
	d := &Decl{
		ID:           ID(len(a.decls)),
		Parent:       parent,
		Kind:         kind,
		Name:         name,
		Meta:         meta,
		Descriptor:   NoID,
		DescriptorOf: NoID,
	}
	a.decls = append(a.decls, d)
	if d.Parent != NoID {
		parent := a.decls[d.Parent]
		parent.Children = append(parent.Children, d.ID)
	}
	return d
}

// child returns the declaration named name directly owned by ns. Forward
// declarations only match when nothing else does.
func (a *Arena) child(ns ID, name string) (ID, bool) {
	forward := NoID
	for _, id := range a.decls[ns].Children {
		d := a.decls[id]
		if d.Name != name {
			continue
		}
		if d.Kind != KindForward {
			return id, true
		}
		forward = id
	}
	return forward, forward != NoID
}

// Lookup resolves name from scope, walking up the owning namespaces.
func (a *Arena) Lookup(scope ID, name string) (ID, error) {
	for ns := a.namespaceOf(scope); ns != NoID; ns = a.decls[ns].Parent {
		if id, ok := a.child(ns, name); ok {
			return id, nil
		}
	}
	return NoID, diag.Reference(name, "unknown declaration")
}

func (a *Arena) namespaceOf(id ID) ID {
	for id != NoID && a.decls[id].Kind != KindNamespace {
		id = a.decls[id].Parent
	}
	return id
}

// QualifiedName returns the native path of a namespace, e.g. retro::ir.
func (a *Arena) QualifiedName(id ID) string {
	var parts []string
	for ; id != NoID; id = a.decls[id].Parent {
		parts = append(parts, a.decls[id].Name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "::")
}

// Width returns the bit width of an enum or forward declaration: the bits
// needed for every real choice plus the sentinel value 0.
func (a *Arena) Width(id ID) int {
	d := a.decls[id]
	if d.Kind == KindForward {
		return ForwardWidth
	}
	return types.Bitcount(uint64(len(d.Choices)))
}

// EnumRef returns the representation type referencing enum id.
func (a *Arena) EnumRef(id ID) types.EnumRef {
	return types.EnumRef{ID: int(id), Name: a.decls[id].Name, Bits: a.Width(id)}
}

// Resolver returns a resolver for enum reference literals that looks names
// up from scope.
func (a *Arena) Resolver(scope ID) types.Resolver {
	return resolver{arena: a, scope: scope}
}

type resolver struct {
	arena *Arena
	scope ID
}

func (r resolver) ResolveEnum(enum, choice string) (types.EnumRef, error) {
	id, err := r.arena.Lookup(r.scope, enum)
	if err != nil {
		return types.EnumRef{}, err
	}
	d := r.arena.Get(id)
	switch d.Kind {
	case KindForward:
		return r.arena.EnumRef(id), nil
	case KindEnum:
		if _, ok := d.Choice(choice); !ok {
			return types.EnumRef{}, diag.Reference(enum, "enum has no choice %q", choice)
		}
		return r.arena.EnumRef(id), nil
	}
	return types.EnumRef{}, diag.Reference(enum, "%s is not an enum", d.Kind)
}

// CName converts an identifier into a native identifier.
func CName(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
