package internal

import "reflect"

type ColType string

const (
	TypeText  ColType = "text"
	TypeInt   ColType = "int"
	TypeFloat ColType = "float"
	TypeTime  ColType = "time"
	TypeJSON  ColType = "json"
)

// Column holds one named column of a response table. Cells are dynamically
// typed: string, int64, float64, time.Time or decoded JSON depending on the
// column Type, with nil standing for a missing value.
type Column struct {
	Name  string
	Type  ColType
	Cells []any
}

// Table is an ordered set of equal-length columns. Lookup carries the derived
// option lookup table alongside the rows without widening them; it is nil
// until option resolution runs.
type Table struct {
	Columns []Column
	Lookup  *Table
}

func (t Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Cells)
}

func (t Table) HasColumn(name string) bool {
	return t.Column(name) != nil
}

func (t Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Clone deep-copies the column set and the attached lookup so transforms can
// rewrite cells without touching their input.
func (t Table) Clone() Table {
	out := Table{}
	if t.Columns != nil {
		out.Columns = make([]Column, len(t.Columns))
	}
	for i, c := range t.Columns {
		cells := make([]any, len(c.Cells))
		copy(cells, c.Cells)
		out.Columns[i] = Column{Name: c.Name, Type: c.Type, Cells: cells}
	}
	if t.Lookup != nil {
		lookup := t.Lookup.Clone()
		out.Lookup = &lookup
	}
	return out
}

// Equal compares column order, names, types, cells and the attached lookup.
func (t Table) Equal(other Table) bool {
	return reflect.DeepEqual(t, other)
}
