package table

import (
	"fmt"
	"time"
)

// Record is an ephemeral row view over a Table. It holds no data of its
// own and must not outlive the table it was derived from.
type Record struct {
	table *Table
	row   int
}

// Index returns the row index this record views.
func (r Record) Index() int {
	return r.row
}

// Get returns the raw cell value for the named column. The second
// result is false when the column does not exist.
func (r Record) Get(name string) (any, bool) {
	c, ok := r.table.Column(name)
	if !ok {
		return nil, false
	}
	return c.cells[r.row], true
}

// IsNull reports whether the named cell is null or the column is absent.
func (r Record) IsNull(name string) bool {
	v, ok := r.Get(name)
	return !ok || v == nil
}

// String returns the cell as a string, or "" for null/absent cells.
func (r Record) String(name string) string {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Float returns the cell as a float64, coercing int cells. The second
// result is false for null, absent or non-numeric cells.
func (r Record) Float(name string) (float64, bool) {
	return r.table.FloatAt(name, r.row)
}

// Int returns the cell as an int64. The second result is false for
// null, absent or non-integer cells.
func (r Record) Int(name string) (int64, bool) {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return 0, false
	}
	n, ok := v.(int64)
	return n, ok
}

// Time returns the cell as a time.Time. The second result is false for
// null, absent or non-time cells.
func (r Record) Time(name string) (time.Time, bool) {
	v, ok := r.Get(name)
	if !ok || v == nil {
		return time.Time{}, false
	}
	ts, ok := v.(time.Time)
	return ts, ok
}

// Values returns the row's cells in column declaration order.
func (r Record) Values() []any {
	out := make([]any, len(r.table.columns))
	for i, c := range r.table.columns {
		out[i] = c.cells[r.row]
	}
	return out
}
