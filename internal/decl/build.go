package decl

import (
	"fmt"

	"github.com/can1357/retro/internal/diag"
	"github.com/can1357/retro/internal/literal"
)

// Metadata keys recognised on declarations and choices.
const (
	MetaType        = "Type"
	MetaIncludes    = "Includes"
	MetaForwards    = "Forwards"
	MetaNamespace   = "Namespace"
	MetaComputed    = "Computed"
	MetaScript      = "Script"
	MetaList        = "List"
	MetaVisitorArgs = "VisitorArgs"
)

// Build adds a namespace named name under parent and populates it from doc.
// Pass NoID as parent for a document's root namespace. Every declaration of
// the namespace is expanded before Build returns.
func (a *Arena) Build(name string, parent ID, doc literal.Table) (ID, error) {
	ns, err := a.buildNamespace(name, parent, doc)
	if err != nil {
		return NoID, err
	}
	if err := a.ExpandAll(ns); err != nil {
		return NoID, err
	}
	return ns, nil
}

func (a *Arena) buildNamespace(name string, parent ID, doc literal.Table) (ID, error) {
	meta := doc.Metadata()
	if meta.Has(MetaScript) {
		return NoID, diag.Reference(name, "%s metadata is not supported; use %s generators", MetaScript, MetaComputed)
	}
	ns := a.add(KindNamespace, name, parent, meta)

	if fwd, ok := meta.Get(MetaForwards); ok {
		names, err := textList(fwd)
		if err != nil {
			return NoID, diag.In(name, fmt.Errorf("%s: %w", MetaForwards, err))
		}
		for _, n := range names {
			a.add(KindForward, n, ns.ID, nil)
		}
	}

	for _, entry := range doc.Data() {
		body, err := expandShorthand(entry.Value)
		if err != nil {
			return NoID, diag.In(entry.Key, err)
		}
		kind := "Enum"
		if v, ok := body.Get(MetaType); ok {
			t, isText := v.(literal.Text)
			if !isText {
				return NoID, diag.Reference(entry.Key, "%s must be text, got %s", MetaType, literal.KindOf(v))
			}
			kind = string(t)
		}
		if id, exists := a.child(ns.ID, entry.Key); exists && a.decls[id].Kind != KindForward {
			return NoID, diag.Reference(entry.Key, "declaration already exists")
		}

		switch kind {
		case "Enum":
			err = a.buildEnum(entry.Key, ns.ID, body)
		case "Struct":
			err = a.buildStruct(entry.Key, ns.ID, body)
		case "Namespace":
			_, err = a.buildNamespace(entry.Key, ns.ID, body)
		default:
			err = diag.Reference(entry.Key, "unknown declaration type %q", kind)
		}
		if err != nil {
			return NoID, err
		}
	}
	return ns.ID, nil
}

func (a *Arena) buildEnum(name string, parent ID, body literal.Table) error {
	meta := body.Metadata()
	if meta.Has(MetaScript) {
		return diag.Reference(name, "%s metadata is not supported; use %s generators", MetaScript, MetaComputed)
	}
	enum := a.add(KindEnum, name, parent, meta)
	for _, entry := range body.Data() {
		if entry.Key == Sentinel {
			return diag.Reference(name, "choice name %q is reserved", Sentinel)
		}
		if _, dup := enum.Choice(entry.Key); dup {
			return diag.Reference(name, "duplicate choice %q", entry.Key)
		}
		var fields literal.Table
		switch v := entry.Value.(type) {
		case nil:
		case literal.Table:
			fields = v
		default:
			return diag.Reference(name, "choice %q must be a table, got %s", entry.Key, literal.KindOf(v))
		}
		enum.Choices = append(enum.Choices, Choice{
			Name: entry.Key,
			Meta: fields.Metadata(),
			Data: fields.Data(),
		})
	}
	return nil
}

func (a *Arena) buildStruct(name string, parent ID, body literal.Table) error {
	meta := body.Metadata()
	if meta.Has(MetaScript) {
		return diag.Reference(name, "%s metadata is not supported; use %s generators", MetaScript, MetaComputed)
	}
	st := a.add(KindStruct, name, parent, meta)
	for _, entry := range body.Data() {
		st.Fields = append(st.Fields, Field{Name: entry.Key, Init: entry.Value})
	}
	return nil
}

// expandShorthand rewrites list-valued data entries into tables. A list of
// text names declares choices with no fields. A list of tables with a List
// key declares one choice per listed name sharing the remaining entries.
func expandShorthand(v literal.Value) (literal.Table, error) {
	switch x := v.(type) {
	case literal.Table:
		return x, nil
	case nil:
		return literal.Table{}, nil
	case literal.List:
		var out literal.Table
		for _, item := range x {
			switch it := item.(type) {
			case literal.Text:
				out = append(out, literal.Entry{Key: string(it), Value: literal.Table{}})
			case literal.Table:
				names, ok := it.Get(MetaList)
				if !ok {
					return nil, diag.Reference("", "shorthand table entry needs a %s key", MetaList)
				}
				list, err := textList(names)
				if err != nil {
					return nil, diag.In(MetaList, err)
				}
				shared := it.Without(MetaList)
				for _, n := range list {
					out = append(out, literal.Entry{Key: n, Value: shared})
				}
			default:
				return nil, diag.Reference("", "invalid shorthand element %s", literal.KindOf(item))
			}
		}
		if len(out) == 0 {
			return nil, diag.Reference("", "invalid shorthand declaration: no choices")
		}
		return out, nil
	}
	return nil, diag.Reference("", "declaration must be a table or a list, got %s", literal.KindOf(v))
}

func textList(v literal.Value) ([]string, error) {
	list, ok := v.(literal.List)
	if !ok {
		return nil, fmt.Errorf("expected a list of names, got %s", literal.KindOf(v))
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		t, ok := item.(literal.Text)
		if !ok {
			return nil, fmt.Errorf("expected a name, got %s", literal.KindOf(item))
		}
		out = append(out, string(t))
	}
	return out, nil
}
