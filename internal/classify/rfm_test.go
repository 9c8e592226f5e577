package classify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

func findCustomer(t *testing.T, out *table.Table, id string) table.Record {
	t.Helper()
	for i := 0; i < out.NumRows(); i++ {
		if out.Row(i).String("customer_id") == id {
			return out.Row(i)
		}
	}
	t.Fatalf("customer %s not found", id)
	return table.Record{}
}

func TestRFMSegmenter_DistinctQuintiles(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tbl := table.New(
		table.NewColumn("customer_id", table.KindString),
		table.NewColumn("purchase_date", table.KindTime),
		table.NewColumn("order_value", table.KindFloat),
	)
	// customer cN: N orders of value 100, last purchase 20*N days
	// after base. c5 is the best customer on all three axes.
	for c := 1; c <= 5; c++ {
		day := base.AddDate(0, 0, 20*c)
		for i := 0; i < c; i++ {
			require.NoError(t, tbl.AppendRow([]any{fmt.Sprintf("c%d", c), day, 100.0}))
		}
	}

	s, err := NewRFMSegmenter(RFMConfig{
		CustomerColumn: "customer_id",
		DateColumn:     "purchase_date",
		ValueColumn:    "order_value",
	}, nil)
	require.NoError(t, err)

	out, err := s.Classify(context.Background(), tbl)
	require.NoError(t, err)
	require.Equal(t, 5, out.NumRows())

	best := findCustomer(t, out, "c5")
	r, _ := best.Int("r_score")
	f, _ := best.Int("f_score")
	m, _ := best.Int("m_score")
	assert.Equal(t, int64(5), r)
	assert.Equal(t, int64(5), f)
	assert.Equal(t, int64(5), m)
	assert.Equal(t, "555", best.String("segment_code"))
	assert.Equal(t, "Champions", best.String("segment"))

	worst := findCustomer(t, out, "c1")
	r, _ = worst.Int("r_score")
	f, _ = worst.Int("f_score")
	m, _ = worst.Int("m_score")
	assert.Equal(t, int64(1), r)
	assert.Equal(t, int64(1), f)
	assert.Equal(t, int64(1), m)
	assert.Equal(t, "111", worst.String("segment_code"))
	assert.Equal(t, "At Risk", worst.String("segment"))
}

func TestRFMSegmenter_UniformMonetaryCollapsesToOneBucket(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tbl := table.New(
		table.NewColumn("customer_id", table.KindString),
		table.NewColumn("purchase_date", table.KindTime),
		table.NewColumn("order_value", table.KindFloat),
	)
	// Every customer spends exactly 100 in one order.
	for c := 1; c <= 5; c++ {
		day := base.AddDate(0, 0, c)
		require.NoError(t, tbl.AppendRow([]any{fmt.Sprintf("c%d", c), day, 100.0}))
	}

	s, err := NewRFMSegmenter(RFMConfig{
		CustomerColumn: "customer_id",
		DateColumn:     "purchase_date",
		ValueColumn:    "order_value",
	}, nil)
	require.NoError(t, err)

	out, err := s.Classify(context.Background(), tbl)
	require.NoError(t, err)

	for i := 0; i < out.NumRows(); i++ {
		m, ok := out.Row(i).Int("m_score")
		require.True(t, ok)
		assert.Equal(t, int64(1), m, "uniform monetary must not be segmented")

		f, ok := out.Row(i).Int("f_score")
		require.True(t, ok)
		assert.Equal(t, int64(1), f, "uniform frequency must not be segmented")
	}
}

func TestRFMSegmenter_RecencyReversed(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tbl := table.New(
		table.NewColumn("customer_id", table.KindString),
		table.NewColumn("purchase_date", table.KindTime),
		table.NewColumn("order_value", table.KindFloat),
	)
	require.NoError(t, tbl.AppendRow([]any{"recent", base, 50.0}))
	require.NoError(t, tbl.AppendRow([]any{"mid", base.AddDate(0, 0, -40), 50.0}))
	require.NoError(t, tbl.AppendRow([]any{"stale", base.AddDate(0, 0, -80), 50.0}))

	s, err := NewRFMSegmenter(RFMConfig{
		CustomerColumn: "customer_id",
		DateColumn:     "purchase_date",
		ValueColumn:    "order_value",
	}, nil)
	require.NoError(t, err)

	out, err := s.Classify(context.Background(), tbl)
	require.NoError(t, err)

	recent := findCustomer(t, out, "recent")
	stale := findCustomer(t, out, "stale")
	rRecent, _ := recent.Int("r_score")
	rStale, _ := stale.Int("r_score")
	assert.Greater(t, rRecent, rStale, "recent purchase must score higher")

	days, ok := recent.Float("recency_days")
	require.True(t, ok)
	assert.Equal(t, 0.0, days, "reference date defaults to the max date")
}

func TestRFMSegmenter_SegmentBins(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{3, "At Risk"},
		{6, "At Risk"},
		{7, "Needs Attention"},
		{9, "Needs Attention"},
		{10, "Loyal"},
		{12, "Loyal"},
		{13, "Champions"},
		{15, "Champions"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, segmentName(tt.score), "score %d", tt.score)
	}
}

func TestRFMSegmenter_MissingColumn(t *testing.T) {
	tbl := table.New(table.NewColumn("customer_id", table.KindString))
	require.NoError(t, tbl.AppendRow([]any{"c1"}))

	s, err := NewRFMSegmenter(RFMConfig{
		CustomerColumn: "customer_id",
		DateColumn:     "purchase_date",
		ValueColumn:    "order_value",
	}, nil)
	require.NoError(t, err)

	_, err = s.Classify(context.Background(), tbl)
	require.Error(t, err)
	assert.Equal(t, pipeerrors.KindClassification, pipeerrors.KindOf(err))
}

func TestRFMSegmenter_EmptyTable(t *testing.T) {
	tbl := table.New(
		table.NewColumn("customer_id", table.KindString),
		table.NewColumn("purchase_date", table.KindTime),
		table.NewColumn("order_value", table.KindFloat),
	)

	s, err := NewRFMSegmenter(RFMConfig{
		CustomerColumn: "customer_id",
		DateColumn:     "purchase_date",
		ValueColumn:    "order_value",
	}, nil)
	require.NoError(t, err)

	_, err = s.Classify(context.Background(), tbl)
	require.Error(t, err)
	assert.Equal(t, pipeerrors.KindClassification, pipeerrors.KindOf(err))
}
