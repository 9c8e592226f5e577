// Package cleaner validates and normalizes loaded tables before any
// KPI computation. Cleaning never mutates its input: it always returns
// a new table plus a summary of what was dropped or modified.
package cleaner

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

// OutlierMethod selects how outlier bounds are derived.
type OutlierMethod string

const (
	// OutlierZScore drops rows whose value deviates from the column
	// mean by more than Threshold standard deviations.
	OutlierZScore OutlierMethod = "zscore"
	// OutlierIQR drops rows outside [Q1 - k*IQR, Q3 + k*IQR].
	OutlierIQR OutlierMethod = "iqr"
)

// OutlierRule configures outlier filtering for one numeric column.
type OutlierRule struct {
	Column    string        `yaml:"column" validate:"required"`
	Method    OutlierMethod `yaml:"method" validate:"required,oneof=zscore iqr"`
	Threshold float64       `yaml:"threshold"` // default 3.0 for zscore, 1.5 for iqr
}

// Rules enumerates the cleaning passes applied to a table, in order:
// text normalization, type coercion, null handling, de-duplication,
// outlier filtering.
type Rules struct {
	NormalizeText  []string              `yaml:"normalize_text"`
	CoerceTypes    map[string]table.Kind `yaml:"coerce_types"`
	DropNulls      bool                  `yaml:"drop_nulls"`
	DropNullsIn    []string              `yaml:"drop_nulls_in"` // restricts DropNulls to these columns
	Dedupe         bool                  `yaml:"dedupe"`        // dedupe on all columns
	DedupeOn       []string              `yaml:"dedupe_on"`     // dedupe on these columns only
	FilterOutliers []OutlierRule         `yaml:"filter_outliers"`
}

// Report summarizes what one cleaning run changed. It is observability
// metadata, not an error signal.
type Report struct {
	RowsIn            int `json:"rows_in"`
	RowsOut           int `json:"rows_out"`
	NullRowsDropped   int `json:"null_rows_dropped"`
	DuplicatesDropped int `json:"duplicates_dropped"`
	OutliersDropped   int `json:"outliers_dropped"`
	CellsCoerced      int `json:"cells_coerced"`
	CellsNormalized   int `json:"cells_normalized"`
}

// Cleaner applies a fixed rule set to tables.
type Cleaner struct {
	logger *slog.Logger
}

// New creates a cleaner. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{logger: logger}
}

// Clean runs all configured passes and returns a new validated table.
// Cleaning under a fixed rule set is idempotent: re-cleaning an
// already-clean table changes nothing.
func (c *Cleaner) Clean(ctx context.Context, t *table.Table, rules Rules) (*table.Table, Report, error) {
	report := Report{RowsIn: t.NumRows()}

	out, normalized := normalizeText(t, rules.NormalizeText)
	report.CellsNormalized = normalized

	out, coerced, err := coerceTypes(out, rules.CoerceTypes)
	if err != nil {
		return nil, report, err
	}
	report.CellsCoerced = coerced

	if rules.DropNulls || len(rules.DropNullsIn) > 0 {
		before := out.NumRows()
		out = dropNulls(out, rules.DropNullsIn)
		report.NullRowsDropped = before - out.NumRows()
	}

	if rules.Dedupe || len(rules.DedupeOn) > 0 {
		before := out.NumRows()
		out = dedupe(out, rules.DedupeOn)
		report.DuplicatesDropped = before - out.NumRows()
	}

	for _, rule := range rules.FilterOutliers {
		before := out.NumRows()
		out, err = filterOutliers(out, rule)
		if err != nil {
			return nil, report, err
		}
		report.OutliersDropped += before - out.NumRows()
	}

	report.RowsOut = out.NumRows()
	c.logger.InfoContext(ctx, "cleaning completed",
		slog.Int("rows_in", report.RowsIn),
		slog.Int("rows_out", report.RowsOut),
		slog.Int("null_rows_dropped", report.NullRowsDropped),
		slog.Int("duplicates_dropped", report.DuplicatesDropped),
		slog.Int("outliers_dropped", report.OutliersDropped))

	return out, report, nil
}

// normalizeText strips and lowercases string cells of the named
// columns, returning a rebuilt table and the count of changed cells.
func normalizeText(t *table.Table, columns []string) (*table.Table, int) {
	targets := make(map[string]bool, len(columns))
	for _, name := range columns {
		if c, ok := t.Column(name); ok && c.Kind == table.KindString {
			targets[name] = true
		}
	}

	out := t.EmptyLike()
	changed := 0
	names := t.ColumnNames()
	for i := 0; i < t.NumRows(); i++ {
		values := t.Row(i).Values()
		for j, name := range names {
			if !targets[name] || values[j] == nil {
				continue
			}
			s := values[j].(string)
			norm := strings.ToLower(strings.TrimSpace(s))
			if norm != s {
				changed++
			}
			values[j] = norm
		}
		// Values are pre-validated against the same column kinds.
		_ = out.AppendRow(values)
	}
	return out, changed
}

// coerceTypes rebuilds the table with the requested column kinds,
// re-parsing string cells. Cells that cannot be represented in the
// target kind become nulls, mirroring coerce-style loading.
func coerceTypes(t *table.Table, kinds map[string]table.Kind) (*table.Table, int, error) {
	if len(kinds) == 0 {
		return t, 0, nil
	}
	for name := range kinds {
		if !t.HasColumn(name) {
			return nil, 0, pipeerrors.ConfigError("cleaner",
				fmt.Sprintf("coerce_types references unknown column %q", name), nil)
		}
	}

	cols := make([]*table.Column, 0, t.NumColumns())
	names := t.ColumnNames()
	for _, c := range t.Columns() {
		kind := c.Kind
		if want, ok := kinds[c.Name]; ok {
			kind = want
		}
		cols = append(cols, table.NewColumn(c.Name, kind))
	}

	out := table.New(cols...)
	coerced := 0
	for i := 0; i < t.NumRows(); i++ {
		values := t.Row(i).Values()
		for j, name := range names {
			want, requested := kinds[name]
			if !requested || values[j] == nil {
				continue
			}
			col, _ := t.Column(name)
			if col.Kind == want {
				continue
			}
			values[j] = coerceValue(values[j], want)
			coerced++
		}
		if err := out.AppendRow(values); err != nil {
			return nil, coerced, err
		}
	}
	return out, coerced, nil
}

func coerceValue(v any, want table.Kind) any {
	switch want {
	case table.KindFloat:
		switch n := v.(type) {
		case float64:
			return n
		case int64:
			return float64(n)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f
			}
		}
	case table.KindInt:
		switch n := v.(type) {
		case int64:
			return n
		case float64:
			if n == float64(int64(n)) {
				return int64(n)
			}
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return i
			}
		}
	case table.KindString:
		return fmt.Sprintf("%v", v)
	case table.KindTime:
		if ts, ok := v.(time.Time); ok {
			return ts
		}
		if s, ok := v.(string); ok {
			for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
				if ts, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.UTC); err == nil {
					return ts
				}
			}
		}
	case table.KindBool:
		switch n := v.(type) {
		case bool:
			return n
		case string:
			if b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(n))); err == nil {
				return b
			}
		}
	}
	return nil
}

// dropNulls removes rows with a null in any of the named columns, or
// in any column at all when none are named.
func dropNulls(t *table.Table, columns []string) *table.Table {
	if len(columns) == 0 {
		columns = t.ColumnNames()
	}
	return t.Filter(func(r table.Record) bool {
		for _, name := range columns {
			if r.IsNull(name) {
				return false
			}
		}
		return true
	})
}

// dedupe keeps the first occurrence of each key. An empty key column
// list dedupes on the whole row.
func dedupe(t *table.Table, on []string) *table.Table {
	if len(on) == 0 {
		on = t.ColumnNames()
	}
	seen := make(map[string]bool, t.NumRows())
	return t.Filter(func(r table.Record) bool {
		var b strings.Builder
		for _, name := range on {
			v, _ := r.Get(name)
			fmt.Fprintf(&b, "%v\x1f", v)
		}
		key := b.String()
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})
}
