package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

func salesTable(t *testing.T) *table.Table {
	t.Helper()

	tbl := table.New(
		table.NewColumn("product", table.KindString),
		table.NewColumn("category", table.KindString),
		table.NewColumn("order_value", table.KindFloat),
		table.NewColumn("status", table.KindString),
	)
	rows := [][]any{
		{"widget", "hardware", 10.0, "closed"},
		{"widget", "hardware", 20.0, "open"},
		{"gadget", "hardware", 30.0, "closed"},
		{"ebook", "digital", 5.0, "closed"},
		{"ebook", "digital", nil, "open"},
	}
	for _, row := range rows {
		require.NoError(t, tbl.AppendRow(row))
	}
	return tbl
}

func TestEngine_Compute_Scalars(t *testing.T) {
	tbl := salesTable(t)
	engine := NewEngine(nil)

	specs := []Spec{
		{Name: "total_revenue", Aggregation: AggSum, Column: "order_value"},
		{Name: "avg_order_value", Aggregation: AggMean, Column: "order_value"},
		{Name: "order_count", Aggregation: AggCount},
		{Name: "max_order", Aggregation: AggMax, Column: "order_value"},
		{Name: "min_order", Aggregation: AggMin, Column: "order_value"},
		{Name: "median_order", Aggregation: AggMedian, Column: "order_value"},
		{Name: "p90_order", Aggregation: AggPercentile, Column: "order_value", Percentile: 90},
	}

	got, err := engine.Compute(context.Background(), tbl, specs)
	require.NoError(t, err)

	assert.Equal(t, 65.0, got["total_revenue"].Value)
	assert.InDelta(t, 16.25, got["avg_order_value"].Value, 1e-9, "null cells are skipped")
	assert.Equal(t, 5.0, got["order_count"].Value)
	assert.Equal(t, 30.0, got["max_order"].Value)
	assert.Equal(t, 5.0, got["min_order"].Value)
	assert.Equal(t, 15.0, got["median_order"].Value)
	assert.InDelta(t, 27.0, got["p90_order"].Value, 1e-9)
}

func TestEngine_Compute_GroupBy(t *testing.T) {
	tbl := salesTable(t)

	got, err := NewEngine(nil).Compute(context.Background(), tbl, []Spec{
		{Name: "revenue_by_category", Aggregation: AggSum, Column: "order_value", GroupBy: []string{"category"}},
	})
	require.NoError(t, err)

	m := got["revenue_by_category"]
	require.True(t, m.IsGrouped())
	assert.Equal(t, []string{"digital", "hardware"}, m.GroupKeys())
	assert.Equal(t, 60.0, m.Groups["hardware"])
	assert.Equal(t, 5.0, m.Groups["digital"])
}

func TestEngine_Compute_MultiGroupKey(t *testing.T) {
	tbl := salesTable(t)

	got, err := NewEngine(nil).Compute(context.Background(), tbl, []Spec{
		{Name: "count_by_cat_status", Aggregation: AggCount, GroupBy: []string{"category", "status"}},
	})
	require.NoError(t, err)

	m := got["count_by_cat_status"]
	assert.Equal(t, 2.0, m.Groups["hardware\x1fclosed"])
	assert.Equal(t, 1.0, m.Groups["digital\x1fopen"])
}

func TestEngine_Compute_GroupKeysNeverCollide(t *testing.T) {
	tbl := table.New(
		table.NewColumn("region", table.KindString),
		table.NewColumn("channel", table.KindString),
	)
	// Cell values containing the display separator must still produce
	// distinct keys per (region, channel) pair.
	require.NoError(t, tbl.AppendRow([]any{"eu|west", "retail"}))
	require.NoError(t, tbl.AppendRow([]any{"eu", "west|retail"}))

	got, err := NewEngine(nil).Compute(context.Background(), tbl, []Spec{
		{Name: "count_by_region_channel", Aggregation: AggCount, GroupBy: []string{"region", "channel"}},
	})
	require.NoError(t, err)

	m := got["count_by_region_channel"]
	require.Len(t, m.Groups, 2)
	assert.Equal(t, 1.0, m.Groups["eu|west\x1fretail"])
	assert.Equal(t, 1.0, m.Groups["eu\x1fwest|retail"])
}

func TestEngine_Compute_Rate(t *testing.T) {
	tbl := salesTable(t)

	got, err := NewEngine(nil).Compute(context.Background(), tbl, []Spec{
		{
			Name:        "backlog_rate",
			Aggregation: AggRate,
			Match:       table.Predicate{{Column: "status", Op: table.OpEq, Value: "open"}},
		},
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, got["backlog_rate"].Value, 1e-9)
}

func TestEngine_Compute_Filter(t *testing.T) {
	tbl := salesTable(t)

	got, err := NewEngine(nil).Compute(context.Background(), tbl, []Spec{
		{
			Name:        "closed_revenue",
			Aggregation: AggSum,
			Column:      "order_value",
			Filter:      table.Predicate{{Column: "status", Op: table.OpEq, Value: "closed"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 45.0, got["closed_revenue"].Value)
}

func TestEngine_Compute_Deterministic(t *testing.T) {
	tbl := salesTable(t)
	specs := []Spec{
		{Name: "total", Aggregation: AggSum, Column: "order_value"},
		{Name: "by_product", Aggregation: AggMean, Column: "order_value", GroupBy: []string{"product"}},
	}

	engine := NewEngine(nil)
	first, err := engine.Compute(context.Background(), tbl, specs)
	require.NoError(t, err)
	second, err := engine.Compute(context.Background(), tbl, specs)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_Compute_Errors(t *testing.T) {
	tbl := salesTable(t)

	tests := []struct {
		name string
		spec Spec
	}{
		{
			name: "unknown column",
			spec: Spec{Name: "m", Aggregation: AggSum, Column: "nope"},
		},
		{
			name: "sum over string column",
			spec: Spec{Name: "m", Aggregation: AggSum, Column: "product"},
		},
		{
			name: "rate without match",
			spec: Spec{Name: "m", Aggregation: AggRate},
		},
		{
			name: "percentile out of range",
			spec: Spec{Name: "m", Aggregation: AggPercentile, Column: "order_value", Percentile: 100},
		},
		{
			name: "unknown group column",
			spec: Spec{Name: "m", Aggregation: AggCount, GroupBy: []string{"nope"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEngine(nil).Compute(context.Background(), tbl, []Spec{tt.spec})
			require.Error(t, err)
			assert.Equal(t, pipeerrors.KindMetric, pipeerrors.KindOf(err))
		})
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{10, 20, 30, 40}

	assert.Equal(t, 25.0, percentile(values, 50))
	assert.Equal(t, 10.0, percentile(values, 0))
	assert.Equal(t, 40.0, percentile(values, 100))
	assert.InDelta(t, 37.0, percentile(values, 90), 1e-9)
}
