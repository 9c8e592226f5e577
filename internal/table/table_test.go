package table

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTicketTable(t *testing.T) *Table {
	t.Helper()

	tbl := New(
		NewColumn("ticket_id", KindInt),
		NewColumn("priority", KindString),
		NewColumn("age_days", KindFloat),
		NewColumn("created_at", KindTime),
	)
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, tbl.AppendRow([]any{int64(1), "high", 10.0, created}))
	require.NoError(t, tbl.AppendRow([]any{int64(2), "low", 2.0, created.Add(24 * time.Hour)}))
	require.NoError(t, tbl.AppendRow([]any{int64(3), "high", nil, nil}))
	return tbl
}

func TestTable_AppendRow(t *testing.T) {
	tbl := newTicketTable(t)

	assert.Equal(t, 3, tbl.NumRows())
	assert.Equal(t, 4, tbl.NumColumns())
	for _, c := range tbl.Columns() {
		assert.Equal(t, tbl.NumRows(), c.Len(), "column %s length", c.Name)
	}
}

func TestTable_AppendRow_TypeMismatch(t *testing.T) {
	tbl := New(NewColumn("id", KindInt), NewColumn("name", KindString))

	err := tbl.AppendRow([]any{int64(1), 3.14})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")

	// A rejected row must not leave columns with unequal lengths.
	assert.Equal(t, 0, tbl.NumRows())
	for _, c := range tbl.Columns() {
		assert.Equal(t, 0, c.Len())
	}
}

func TestTable_AppendRow_WrongArity(t *testing.T) {
	tbl := New(NewColumn("id", KindInt))
	assert.Error(t, tbl.AppendRow([]any{int64(1), "extra"}))
}

func TestRecord_Accessors(t *testing.T) {
	tbl := newTicketTable(t)
	rec := tbl.Row(0)

	id, ok := rec.Int("ticket_id")
	require.True(t, ok)
	assert.Equal(t, int64(1), id)

	assert.Equal(t, "high", rec.String("priority"))

	age, ok := rec.Float("age_days")
	require.True(t, ok)
	assert.Equal(t, 10.0, age)

	ts, ok := rec.Time("created_at")
	require.True(t, ok)
	assert.Equal(t, 2025, ts.Year())

	// Null cells.
	null := tbl.Row(2)
	assert.True(t, null.IsNull("age_days"))
	_, ok = null.Float("age_days")
	assert.False(t, ok)

	// Absent column.
	assert.True(t, rec.IsNull("no_such_column"))
}

func TestRecord_FloatCoercesInt(t *testing.T) {
	tbl := newTicketTable(t)

	v, ok := tbl.Row(1).Float("ticket_id")
	require.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestTable_Filter(t *testing.T) {
	tbl := newTicketTable(t)

	high := tbl.Filter(func(r Record) bool {
		return r.String("priority") == "high"
	})

	assert.Equal(t, 2, high.NumRows())
	assert.Equal(t, 3, tbl.NumRows(), "input table must not change")
	assert.Equal(t, tbl.ColumnNames(), high.ColumnNames())
}

func TestSchema_MissingRequired(t *testing.T) {
	schema := Schema{Columns: []ColumnSpec{
		{Name: "ticket_id", Kind: KindInt, Required: true},
		{Name: "priority", Kind: KindString, Required: true},
		{Name: "team", Kind: KindString},
	}}

	missing := schema.MissingRequired([]string{"ticket_id", "agent"})
	assert.Equal(t, []string{"priority"}, missing)

	assert.Empty(t, schema.MissingRequired([]string{"ticket_id", "priority"}))
}

func TestSchema_Validate(t *testing.T) {
	tbl := newTicketTable(t)

	good := Schema{Columns: []ColumnSpec{
		{Name: "ticket_id", Kind: KindInt, Required: true},
		{Name: "age_days", Kind: KindFloat},
	}}
	assert.NoError(t, good.Validate(tbl))

	badKind := Schema{Columns: []ColumnSpec{
		{Name: "priority", Kind: KindFloat},
	}}
	assert.Error(t, badKind.Validate(tbl))

	missing := Schema{Columns: []ColumnSpec{
		{Name: "sla_hours", Required: true},
	}}
	assert.Error(t, missing.Validate(tbl))
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ticket ID", "ticket_id"},
		{"  Order   Value ", "order_value"},
		{"priority", "priority"},
		{"Created At", "created_at"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in))
	}
}

func TestPredicate_Matches(t *testing.T) {
	tbl := newTicketTable(t)

	tests := []struct {
		name string
		pred Predicate
		row  int
		want bool
	}{
		{
			name: "eq string case-insensitive",
			pred: Predicate{{Column: "priority", Op: OpEq, Value: "HIGH"}},
			row:  0,
			want: true,
		},
		{
			name: "conjunction",
			pred: Predicate{
				{Column: "priority", Op: OpEq, Value: "high"},
				{Column: "age_days", Op: OpGt, Value: 5},
			},
			row:  0,
			want: true,
		},
		{
			name: "gt fails",
			pred: Predicate{{Column: "age_days", Op: OpGt, Value: 5}},
			row:  1,
			want: false,
		},
		{
			name: "null never matches",
			pred: Predicate{{Column: "age_days", Op: OpGt, Value: 0}},
			row:  2,
			want: false,
		},
		{
			name: "in",
			pred: Predicate{{Column: "priority", Op: OpIn, Values: []any{"low", "medium"}}},
			row:  1,
			want: true,
		},
		{
			name: "contains",
			pred: Predicate{{Column: "priority", Op: OpContains, Value: "IG"}},
			row:  0,
			want: true,
		},
		{
			name: "empty predicate matches all",
			pred: Predicate{},
			row:  2,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.pred.Matches(tbl.Row(tt.row))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPredicate_UnknownColumn(t *testing.T) {
	tbl := newTicketTable(t)
	pred := Predicate{{Column: "nope", Op: OpEq, Value: "x"}}

	_, err := pred.Matches(tbl.Row(0))
	assert.Error(t, err)
}
