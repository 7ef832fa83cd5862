package compiler

import (
	"path/filepath"
	"strings"

	"github.com/can1357/retro/internal/decl"
	"github.com/can1357/retro/internal/diag"
	"github.com/can1357/retro/internal/literal"
	"github.com/can1357/retro/internal/rules"
)

// Schema is a compiled schema document: a fresh arena holding the
// document's root namespace with every declaration expanded.
type Schema struct {
	Arena     *decl.Arena
	Namespace decl.ID
}

// CompileNamespace validates doc and builds it as the namespace name.
// Structural problems are returned together as ValidationErrors; semantic
// ones (unknown references, incompatible types) as diag errors.
func CompileNamespace(name string, doc literal.Table) (*Schema, error) {
	if errs := ValidateSchema(doc); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	a := decl.NewArena()
	ns, err := a.Build(name, decl.NoID, doc)
	if err != nil {
		return nil, err
	}
	return &Schema{Arena: a, Namespace: ns}, nil
}

// CompileOperators builds the operator symbol table from the enum named
// enum in a compiled operator document.
func CompileOperators(s *Schema, enum string) (*rules.SymbolTable, error) {
	id, err := s.Arena.Lookup(s.Namespace, enum)
	if err != nil {
		return nil, err
	}
	return rules.FromEnum(s.Arena, id)
}

// CompileRules validates a rule document and converts it into categories
// in document order. Patterns are parsed later, against a symbol table.
func CompileRules(doc literal.Table) ([]rules.Category, error) {
	if errs := ValidateRules(doc); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	categories := make([]rules.Category, 0, len(doc))
	for _, entry := range doc {
		cat := rules.Category{Name: entry.Key}
		for _, item := range entry.Value.(literal.List) {
			r := item.(literal.Table)
			from, _ := r.Get(ruleFrom)
			to, _ := r.Get(ruleTo)
			cat.Rules = append(cat.Rules, rules.Rule{
				From: string(from.(literal.Text)),
				To:   string(to.(literal.Text)),
			})
		}
		categories = append(categories, cat)
	}
	return categories, nil
}

// NamespaceOf returns the native namespace of a schema document. A
// Namespace metadata entry wins; otherwise the directories between the
// last includeDir segment of path and the document form the namespace:
// include/retro/ir/ops.yaml -> retro::ir.
func NamespaceOf(path, includeDir string, doc literal.Table) (string, error) {
	if v, ok := doc.Get(decl.MetaNamespace); ok {
		if t, ok := v.(literal.Text); ok && t != "" {
			return string(t), nil
		}
	}

	dirs := strings.Split(filepath.ToSlash(filepath.Dir(path)), "/")
	for i := len(dirs) - 1; i >= 0; i-- {
		if dirs[i] != includeDir {
			continue
		}
		if rest := dirs[i+1:]; len(rest) > 0 {
			return strings.Join(rest, "::"), nil
		}
		break
	}
	return "", diag.Reference(path, "document is outside any %q directory and has no %s metadata", includeDir, decl.MetaNamespace)
}
