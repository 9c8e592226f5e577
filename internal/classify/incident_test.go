package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

func ticketTable(t *testing.T, rows [][]any) *table.Table {
	t.Helper()
	tbl := table.New(
		table.NewColumn("ticket_id", table.KindInt),
		table.NewColumn("priority", table.KindString),
		table.NewColumn("age_days", table.KindFloat),
	)
	for _, row := range rows {
		require.NoError(t, tbl.AppendRow(row))
	}
	return tbl
}

func TestIncidentClassifier_HighPriorityAgedTicketIsCritical(t *testing.T) {
	tbl := ticketTable(t, [][]any{{int64(1), "high", 10.0}})

	c, err := NewIncidentClassifier(IncidentConfig{
		Rules: []Rule{
			{
				When: table.Predicate{
					{Column: "priority", Op: table.OpEq, Value: "high"},
					{Column: "age_days", Op: table.OpGt, Value: 5},
				},
				Label: "critical",
			},
		},
	}, nil)
	require.NoError(t, err)

	out, err := c.Classify(context.Background(), tbl)
	require.NoError(t, err)

	require.Equal(t, 1, out.NumRows())
	assert.Equal(t, "critical", out.Row(0).String("severity"))

	id, ok := out.Row(0).Int("ticket_id")
	require.True(t, ok)
	assert.Equal(t, int64(1), id)
}

func TestIncidentClassifier_FirstMatchWins(t *testing.T) {
	tbl := ticketTable(t, [][]any{{int64(1), "high", 10.0}})

	// Both rules match; the first one in the list decides.
	c, err := NewIncidentClassifier(IncidentConfig{
		Rules: []Rule{
			{When: table.Predicate{{Column: "priority", Op: table.OpEq, Value: "high"}}, Label: "major"},
			{When: table.Predicate{{Column: "age_days", Op: table.OpGt, Value: 5}}, Label: "critical"},
		},
	}, nil)
	require.NoError(t, err)

	out, err := c.Classify(context.Background(), tbl)
	require.NoError(t, err)
	assert.Equal(t, "major", out.Row(0).String("severity"))
}

func TestIncidentClassifier_DefaultLabel(t *testing.T) {
	tbl := ticketTable(t, [][]any{
		{int64(1), "low", 1.0},
		{int64(2), "high", 10.0},
	})

	c, err := NewIncidentClassifier(IncidentConfig{
		Rules: []Rule{
			{When: table.Predicate{{Column: "priority", Op: table.OpEq, Value: "high"}}, Label: "critical"},
		},
		DefaultLabel: "minor",
	}, nil)
	require.NoError(t, err)

	out, err := c.Classify(context.Background(), tbl)
	require.NoError(t, err)

	assert.Equal(t, "minor", out.Row(0).String("severity"))
	assert.Equal(t, "critical", out.Row(1).String("severity"))
}

func TestIncidentClassifier_InputUnchanged(t *testing.T) {
	tbl := ticketTable(t, [][]any{{int64(1), "high", 10.0}})

	c, err := NewIncidentClassifier(IncidentConfig{
		Rules: []Rule{{When: table.Predicate{{Column: "priority", Op: table.OpEq, Value: "high"}}, Label: "critical"}},
	}, nil)
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), tbl)
	require.NoError(t, err)
	assert.False(t, tbl.HasColumn("severity"))
	assert.Equal(t, 3, tbl.NumColumns())
}

func TestIncidentClassifier_RuleReferencesMissingColumn(t *testing.T) {
	tbl := ticketTable(t, [][]any{{int64(1), "high", 10.0}})

	c, err := NewIncidentClassifier(IncidentConfig{
		Rules: []Rule{{When: table.Predicate{{Column: "sla_hours", Op: table.OpGt, Value: 1}}, Label: "breach"}},
	}, nil)
	require.NoError(t, err)

	_, err = c.Classify(context.Background(), tbl)
	require.Error(t, err)
	assert.Equal(t, pipeerrors.KindClassification, pipeerrors.KindOf(err))
}

func TestNewIncidentClassifier_NoRules(t *testing.T) {
	_, err := NewIncidentClassifier(IncidentConfig{}, nil)
	require.Error(t, err)
	assert.Equal(t, pipeerrors.KindClassification, pipeerrors.KindOf(err))
}
