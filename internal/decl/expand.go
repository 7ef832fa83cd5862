package decl

import (
	"fmt"
	"math"
	"slices"

	"github.com/can1357/retro/internal/diag"
	"github.com/can1357/retro/internal/literal"
	"github.com/can1357/retro/internal/types"
)

// DescriptorSuffix names the struct synthesized for an enum.
const DescriptorSuffix = "_desc"

// NameField is the field that always sorts first and identifies a row.
const NameField = "name"

// ExpandAll expands every enum and struct of namespace ns, recursing into
// nested namespaces, in declaration order.
func (a *Arena) ExpandAll(ns ID) error {
	// Expansion appends descriptors to Children; only visit the original set.
	children := slices.Clone(a.decls[ns].Children)
	for _, id := range children {
		switch a.decls[id].Kind {
		case KindNamespace:
			if err := a.ExpandAll(id); err != nil {
				return err
			}
		case KindEnum, KindStruct:
			if err := a.Expand(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// Expand resolves a declaration's field types. For an enum it synthesizes
// the descriptor struct and the per-choice rows. Expanding twice is a no-op.
func (a *Arena) Expand(id ID) error {
	d := a.decls[id]
	if d.expanded {
		return nil
	}
	var err error
	switch d.Kind {
	case KindEnum:
		err = a.expandEnum(d)
	case KindStruct:
		err = a.expandStruct(d)
	}
	if err != nil {
		return err
	}
	d.expanded = true
	return nil
}

type column struct {
	name   string
	values []literal.Value
}

func (a *Arena) expandEnum(d *Decl) error {
	data, err := a.computeFields(d)
	if err != nil {
		return err
	}

	// Flatten the choices into one column per field in first-seen order.
	var columns []*column
	index := map[string]*column{}
	for row, fields := range data {
		for _, entry := range fields {
			col, ok := index[entry.Key]
			if !ok {
				col = &column{name: entry.Key, values: make([]literal.Value, len(data))}
				index[entry.Key] = col
				columns = append(columns, col)
			}
			col.values[row] = entry.Value
		}
	}
	if _, ok := index[NameField]; !ok {
		col := &column{name: NameField, values: make([]literal.Value, len(data))}
		for i, c := range d.Choices {
			col.values[i] = literal.Text(c.Name)
		}
		columns = append(columns, col)
	}

	resolve := a.Resolver(d.Parent)
	fields := make([]Field, len(columns))
	for i, col := range columns {
		ts := make([]types.Type, len(col.values))
		for j, v := range col.values {
			if ts[j], err = types.TypeOf(v, true, resolve); err != nil {
				return diag.In(d.Name+"."+col.name, err)
			}
		}
		t, err := types.UnifyAll(ts...)
		if err != nil {
			return diag.In(d.Name+"."+col.name, err)
		}
		if t == nil {
			return diag.TypeUnification(d.Name+"."+col.name, "no value to infer the field type from")
		}
		if _, isText := t.(types.Text); col.name == NameField && !isText {
			return diag.TypeUnification(d.Name+"."+col.name, "the name field must be text, got %s", t)
		}
		fields[i] = Field{Name: col.name, Type: t}
	}

	order := make([]int, len(fields))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(x, y int) int {
		return CompareFields(fields[x], fields[y])
	})

	sorted := make([]Field, len(fields))
	for i, o := range order {
		sorted[i] = fields[o]
	}
	d.Rows = make([][]literal.Value, len(d.Choices))
	for row := range d.Rows {
		cells := make([]literal.Value, len(order))
		for i, o := range order {
			cells[i] = columns[o].values[row]
		}
		d.Rows[row] = cells
	}

	name := CName(d.Name) + DescriptorSuffix
	if _, exists := a.child(d.Parent, name); exists {
		return diag.Reference(name, "descriptor name collides with an existing declaration")
	}
	desc := a.add(KindStruct, name, d.Parent, nil)
	desc.Fields = sorted
	desc.DescriptorOf = d.ID
	desc.expanded = true
	d.Descriptor = desc.ID
	return nil
}

func (a *Arena) expandStruct(d *Decl) error {
	resolve := a.Resolver(d.Parent)
	for i := range d.Fields {
		f := &d.Fields[i]
		t, err := types.TypeOf(f.Init, true, resolve)
		if err != nil {
			return diag.In(d.Name+"."+f.Name, err)
		}
		if t == nil {
			return diag.TypeUnification(d.Name+"."+f.Name, "no initializer to infer the field type from")
		}
		f.Type = t
	}
	sortFields(d.Fields)
	return nil
}

func sortFields(fs []Field) {
	slices.SortStableFunc(fs, CompareFields)
}

// CompareFields orders struct fields for packing. The name field always
// comes first. Fields that are neither integers nor enums come next in
// declaration order, followed by integers and enums by descending storage
// size and then ascending bit width. Ties keep declaration order when used
// with a stable sort.
func CompareFields(x, y Field) int {
	xn, yn := x.Name == NameField, y.Name == NameField
	switch {
	case xn && !yn:
		return -1
	case yn && !xn:
		return 1
	}
	xs, xb := packKey(x.Type)
	ys, yb := packKey(y.Type)
	if xs != ys {
		if xs < ys {
			return -1
		}
		return 1
	}
	return xb - yb
}

// packKey returns the negated storage size and bit width of t. Types without
// a storage size sort before every sized type.
func packKey(t types.Type) (float64, int) {
	var bits int
	switch x := t.(type) {
	case types.Integer:
		bits = x.Bits
	case types.EnumRef:
		bits = x.Bits
	default:
		return math.Inf(-1), 0
	}
	w, _, _ := types.Storage(t)
	return -float64(w / 8), bits
}

// Row returns the named field of an expanded enum's row.
func (a *Arena) Row(enum ID, choice int, field string) (literal.Value, error) {
	d := a.decls[enum]
	if d.Descriptor == NoID {
		return nil, fmt.Errorf("enum %s is not expanded", d.Name)
	}
	for i, f := range a.decls[d.Descriptor].Fields {
		if f.Name == field {
			return d.Rows[choice][i], nil
		}
	}
	return nil, diag.Reference(d.Name, "no field %q", field)
}
