package table

import (
	"fmt"
	"time"
)

// Kind is the declared type of a column. Null cells are represented by
// nil regardless of kind.
type Kind string

const (
	KindString Kind = "string"
	KindFloat  Kind = "float"
	KindInt    Kind = "int"
	KindTime   Kind = "time"
	KindBool   Kind = "bool"
)

// IsNumeric reports whether the kind supports arithmetic aggregation.
func (k Kind) IsNumeric() bool {
	return k == KindFloat || k == KindInt
}

// Column is an ordered sequence of scalar values sharing one kind.
type Column struct {
	Name  string
	Kind  Kind
	cells []any
}

// NewColumn creates an empty column with the given name and kind.
func NewColumn(name string, kind Kind) *Column {
	return &Column{Name: name, Kind: kind}
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	return len(c.cells)
}

// Cell returns the value at row i. Null cells return nil.
func (c *Column) Cell(i int) any {
	return c.cells[i]
}

// append validates the value against the column kind before storing it.
func (c *Column) append(v any) error {
	if v == nil {
		c.cells = append(c.cells, nil)
		return nil
	}
	switch c.Kind {
	case KindString:
		if _, ok := v.(string); !ok {
			return fmt.Errorf("column %q expects string, got %T", c.Name, v)
		}
	case KindFloat:
		switch v.(type) {
		case float64:
		case int64:
			v = float64(v.(int64))
		default:
			return fmt.Errorf("column %q expects float, got %T", c.Name, v)
		}
	case KindInt:
		if _, ok := v.(int64); !ok {
			return fmt.Errorf("column %q expects int, got %T", c.Name, v)
		}
	case KindTime:
		if _, ok := v.(time.Time); !ok {
			return fmt.Errorf("column %q expects time, got %T", c.Name, v)
		}
	case KindBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("column %q expects bool, got %T", c.Name, v)
		}
	default:
		return fmt.Errorf("column %q has unknown kind %q", c.Name, c.Kind)
	}
	c.cells = append(c.cells, v)
	return nil
}

// Table is an ordered sequence of named, equal-length columns. A Table
// is owned by the pipeline run that created it; transformations return
// new Tables instead of mutating in place.
type Table struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New creates an empty table with the given column declarations.
func New(cols ...*Column) *Table {
	t := &Table{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, c)
	}
	return t
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	return t.rows
}

// NumColumns returns the number of columns in the table.
func (t *Table) NumColumns() int {
	return len(t.columns)
}

// Columns returns the table's columns in declaration order.
func (t *Table) Columns() []*Column {
	return t.columns
}

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// Column looks a column up by name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.columns[i], true
}

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// AppendRow appends one row of values, in column declaration order.
// Every column receives exactly one value, preserving the equal-length
// invariant.
func (t *Table) AppendRow(values []any) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.columns))
	}
	for i, c := range t.columns {
		if err := c.append(values[i]); err != nil {
			// Roll back columns already appended so lengths stay equal.
			for j := 0; j < i; j++ {
				t.columns[j].cells = t.columns[j].cells[:t.rows]
			}
			return err
		}
	}
	t.rows++
	return nil
}

// Row returns an ephemeral view over row i.
func (t *Table) Row(i int) Record {
	return Record{table: t, row: i}
}

// EmptyLike returns a new empty table with the same column declarations.
func (t *Table) EmptyLike() *Table {
	cols := make([]*Column, len(t.columns))
	for i, c := range t.columns {
		cols[i] = NewColumn(c.Name, c.Kind)
	}
	return New(cols...)
}

// Filter returns a new table holding the rows for which keep returns
// true. The receiver is not modified.
func (t *Table) Filter(keep func(Record) bool) *Table {
	out := t.EmptyLike()
	for i := 0; i < t.rows; i++ {
		if keep(t.Row(i)) {
			out.appendFrom(t, i)
		}
	}
	return out
}

// appendFrom copies row i of src into t. Both tables must share the
// same column layout.
func (t *Table) appendFrom(src *Table, i int) {
	for j, c := range t.columns {
		c.cells = append(c.cells, src.columns[j].cells[i])
	}
	t.rows++
}

// FloatAt returns the numeric value of the named column at row i,
// coercing int cells to float64. The second result is false for null
// cells or non-numeric kinds.
func (t *Table) FloatAt(name string, i int) (float64, bool) {
	c, ok := t.Column(name)
	if !ok || c.cells[i] == nil {
		return 0, false
	}
	switch v := c.cells[i].(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
