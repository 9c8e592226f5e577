package cleaner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reportcli/internal/table"
)

func ordersTable(t *testing.T) *table.Table {
	t.Helper()

	tbl := table.New(
		table.NewColumn("order_id", table.KindInt),
		table.NewColumn("product", table.KindString),
		table.NewColumn("order_value", table.KindString),
	)
	require.NoError(t, tbl.AppendRow([]any{int64(1), "  Widget ", "10"}))
	require.NoError(t, tbl.AppendRow([]any{int64(1), "  Widget ", "10"})) // duplicate
	require.NoError(t, tbl.AppendRow([]any{int64(2), "GADGET", "12.5"}))
	require.NoError(t, tbl.AppendRow([]any{int64(3), nil, "not-a-number"}))
	require.NoError(t, tbl.AppendRow([]any{int64(4), "widget", "11"}))
	return tbl
}

func TestCleaner_Clean(t *testing.T) {
	tbl := ordersTable(t)
	rules := Rules{
		NormalizeText: []string{"product"},
		CoerceTypes:   map[string]table.Kind{"order_value": table.KindFloat},
		DropNulls:     true,
		Dedupe:        true,
	}

	clean, report, err := New(nil).Clean(context.Background(), tbl, rules)
	require.NoError(t, err)

	// Row 1 is a duplicate of row 0; row 3 has a null product and an
	// unparsable order_value coerced to null.
	assert.Equal(t, 3, clean.NumRows())
	assert.Equal(t, 5, report.RowsIn)
	assert.Equal(t, 3, report.RowsOut)
	assert.Equal(t, 1, report.DuplicatesDropped)
	assert.Equal(t, 1, report.NullRowsDropped)
	assert.Positive(t, report.CellsNormalized)

	assert.Equal(t, "widget", clean.Row(0).String("product"))
	v, ok := clean.Row(1).Float("order_value")
	require.True(t, ok)
	assert.Equal(t, 12.5, v)

	col, ok := clean.Column("order_value")
	require.True(t, ok)
	assert.Equal(t, table.KindFloat, col.Kind)
}

func TestCleaner_NeverMutatesInput(t *testing.T) {
	tbl := ordersTable(t)
	rows := tbl.NumRows()

	_, _, err := New(nil).Clean(context.Background(), tbl, Rules{
		NormalizeText: []string{"product"},
		DropNulls:     true,
		Dedupe:        true,
	})
	require.NoError(t, err)

	assert.Equal(t, rows, tbl.NumRows())
	assert.Equal(t, "  Widget ", tbl.Row(0).String("product"))
}

func TestCleaner_Idempotent(t *testing.T) {
	rules := Rules{
		NormalizeText: []string{"product"},
		CoerceTypes:   map[string]table.Kind{"order_value": table.KindFloat},
		DropNulls:     true,
		Dedupe:        true,
		FilterOutliers: []OutlierRule{
			{Column: "order_value", Method: OutlierZScore, Threshold: 2},
		},
	}

	tbl := table.New(
		table.NewColumn("order_id", table.KindInt),
		table.NewColumn("product", table.KindString),
		table.NewColumn("order_value", table.KindString),
	)
	values := []string{"10", "10", "10", "11", "9", "100"}
	for i, v := range values {
		require.NoError(t, tbl.AppendRow([]any{int64(i), "Widget", v}))
	}

	c := New(nil)
	once, report1, err := c.Clean(context.Background(), tbl, rules)
	require.NoError(t, err)
	assert.Equal(t, 1, report1.OutliersDropped, "the 100 order is an outlier")

	twice, report2, err := c.Clean(context.Background(), once, rules)
	require.NoError(t, err)

	assert.Equal(t, once.NumRows(), twice.NumRows())
	assert.Zero(t, report2.NullRowsDropped)
	assert.Zero(t, report2.DuplicatesDropped)
	assert.Zero(t, report2.OutliersDropped)
	for i := 0; i < once.NumRows(); i++ {
		assert.Equal(t, once.Row(i).Values(), twice.Row(i).Values())
	}
}

func TestCleaner_Idempotent_SkewedIQR(t *testing.T) {
	// Heavily skewed column: dropping the extreme value narrows the
	// quartiles until the IQR collapses to zero, so a single filter
	// pass would leave rows a second run removes.
	tbl := table.New(table.NewColumn("latency", table.KindFloat))
	for _, v := range []float64{0, 0, 0, 0, 0, 0, 0, 20, 21, 1000} {
		require.NoError(t, tbl.AppendRow([]any{v}))
	}
	rules := Rules{
		FilterOutliers: []OutlierRule{{Column: "latency", Method: OutlierIQR}},
	}

	c := New(nil)
	once, _, err := c.Clean(context.Background(), tbl, rules)
	require.NoError(t, err)

	twice, report, err := c.Clean(context.Background(), once, rules)
	require.NoError(t, err)

	assert.Equal(t, once.NumRows(), twice.NumRows())
	assert.Zero(t, report.OutliersDropped)
}

func TestCleaner_DedupeOnSubset(t *testing.T) {
	tbl := table.New(
		table.NewColumn("ticket_id", table.KindInt),
		table.NewColumn("note", table.KindString),
	)
	require.NoError(t, tbl.AppendRow([]any{int64(1), "first"}))
	require.NoError(t, tbl.AppendRow([]any{int64(1), "second"}))
	require.NoError(t, tbl.AppendRow([]any{int64(2), "third"}))

	clean, report, err := New(nil).Clean(context.Background(), tbl, Rules{DedupeOn: []string{"ticket_id"}})
	require.NoError(t, err)

	assert.Equal(t, 2, clean.NumRows())
	assert.Equal(t, 1, report.DuplicatesDropped)
	// First occurrence wins.
	assert.Equal(t, "first", clean.Row(0).String("note"))
}

func TestCleaner_DropNullsIn(t *testing.T) {
	tbl := table.New(
		table.NewColumn("id", table.KindInt),
		table.NewColumn("closed_at", table.KindString),
	)
	require.NoError(t, tbl.AppendRow([]any{int64(1), "2025-01-01"}))
	require.NoError(t, tbl.AppendRow([]any{int64(2), nil}))
	require.NoError(t, tbl.AppendRow([]any{nil, "2025-01-02"}))

	clean, _, err := New(nil).Clean(context.Background(), tbl, Rules{DropNullsIn: []string{"closed_at"}})
	require.NoError(t, err)

	// Only the null closed_at row goes; the null id row stays.
	assert.Equal(t, 2, clean.NumRows())
}

func TestCleaner_CoerceUnknownColumn(t *testing.T) {
	tbl := ordersTable(t)

	_, _, err := New(nil).Clean(context.Background(), tbl, Rules{
		CoerceTypes: map[string]table.Kind{"no_such": table.KindFloat},
	})
	assert.Error(t, err)
}

func TestFilterOutliers_IQR(t *testing.T) {
	tbl := table.New(table.NewColumn("v", table.KindFloat))
	for _, v := range []float64{10, 11, 12, 13, 14, 15, 200} {
		require.NoError(t, tbl.AppendRow([]any{v}))
	}

	out, err := filterOutliers(tbl, OutlierRule{Column: "v", Method: OutlierIQR})
	require.NoError(t, err)
	assert.Equal(t, 6, out.NumRows())
}

func TestFilterOutliers_UniformColumnDropsNothing(t *testing.T) {
	tbl := table.New(table.NewColumn("v", table.KindFloat))
	for i := 0; i < 5; i++ {
		require.NoError(t, tbl.AppendRow([]any{42.0}))
	}

	out, err := filterOutliers(tbl, OutlierRule{Column: "v", Method: OutlierZScore})
	require.NoError(t, err)
	assert.Equal(t, 5, out.NumRows())
}

func TestFilterOutliers_NonNumericColumn(t *testing.T) {
	tbl := table.New(table.NewColumn("s", table.KindString))
	require.NoError(t, tbl.AppendRow([]any{"x"}))
	require.NoError(t, tbl.AppendRow([]any{"y"}))

	_, err := filterOutliers(tbl, OutlierRule{Column: "s", Method: OutlierZScore})
	assert.Error(t, err)
}

func TestQuantile(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	assert.Equal(t, 1.0, quantile(values, 0))
	assert.Equal(t, 2.5, quantile(values, 0.5))
	assert.Equal(t, 4.0, quantile(values, 1))
}
