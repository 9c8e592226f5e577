// Package metrics computes configured aggregate KPIs over cleaned
// tables. The engine is stateless: the same table and specs always
// produce the same metrics.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

// Aggregation names a supported aggregate function.
type Aggregation string

const (
	AggSum        Aggregation = "sum"
	AggMean       Aggregation = "mean"
	AggCount      Aggregation = "count"
	AggRate       Aggregation = "rate"
	AggPercentile Aggregation = "percentile"
	AggMedian     Aggregation = "median"
	AggMin        Aggregation = "min"
	AggMax        Aggregation = "max"
)

// Spec configures one KPI.
type Spec struct {
	Name        string          `yaml:"name" validate:"required"`
	Aggregation Aggregation     `yaml:"aggregation" validate:"required,oneof=sum mean count rate percentile median min max"`
	Column      string          `yaml:"column"`     // value column; unused for count and rate
	Percentile  float64         `yaml:"percentile"` // 0 < p < 100, percentile only
	GroupBy     []string        `yaml:"group_by"`
	Filter      table.Predicate `yaml:"filter"` // rows considered at all
	Match       table.Predicate `yaml:"match"`  // rate only: numerator predicate
}

// Metric is a named numeric result, either a single value or one value
// per group key. Metrics are immutable once computed.
type Metric struct {
	Name   string             `json:"name"`
	Value  float64            `json:"value"`
	Groups map[string]float64 `json:"groups,omitempty"`
}

// IsGrouped reports whether the metric carries per-group values.
func (m Metric) IsGrouped() bool {
	return m.Groups != nil
}

// GroupKeys returns the group keys in deterministic (sorted) order.
func (m Metric) GroupKeys() []string {
	keys := make([]string, 0, len(m.Groups))
	for k := range m.Groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Engine evaluates metric specs against tables.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates a metric engine. A nil logger falls back to
// slog.Default.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Compute evaluates all specs against the table. It fails with a
// metric error when a spec references an absent column or an
// aggregation undefined for the column's type.
func (e *Engine) Compute(ctx context.Context, t *table.Table, specs []Spec) (map[string]Metric, error) {
	results := make(map[string]Metric, len(specs))
	for _, spec := range specs {
		m, err := e.computeOne(t, spec)
		if err != nil {
			return nil, err
		}
		results[spec.Name] = m
	}
	e.logger.InfoContext(ctx, "metrics computed",
		slog.Int("spec_count", len(specs)),
		slog.Int("rows", t.NumRows()))
	return results, nil
}

func (e *Engine) computeOne(t *table.Table, spec Spec) (Metric, error) {
	if err := validateSpec(t, spec); err != nil {
		return Metric{}, err
	}

	rows, err := filterRows(t, spec.Filter)
	if err != nil {
		return Metric{}, pipeerrors.MetricError("metrics", fmt.Sprintf("metric %q filter: %v", spec.Name, err))
	}

	if len(spec.GroupBy) == 0 {
		v, err := aggregate(t, rows, spec)
		if err != nil {
			return Metric{}, err
		}
		return Metric{Name: spec.Name, Value: v}, nil
	}

	groups := make(map[string][]int)
	for _, i := range rows {
		key, err := groupKey(t.Row(i), spec.GroupBy)
		if err != nil {
			return Metric{}, pipeerrors.MetricError("metrics", fmt.Sprintf("metric %q: %v", spec.Name, err))
		}
		groups[key] = append(groups[key], i)
	}

	out := Metric{Name: spec.Name, Groups: make(map[string]float64, len(groups))}
	for key, members := range groups {
		v, err := aggregate(t, members, spec)
		if err != nil {
			return Metric{}, err
		}
		out.Groups[key] = v
	}
	return out, nil
}

func validateSpec(t *table.Table, spec Spec) error {
	needsColumn := spec.Aggregation != AggCount && spec.Aggregation != AggRate
	if needsColumn {
		col, ok := t.Column(spec.Column)
		if !ok {
			return pipeerrors.MetricError("metrics",
				fmt.Sprintf("metric %q references unknown column %q", spec.Name, spec.Column))
		}
		if !col.Kind.IsNumeric() {
			return pipeerrors.MetricError("metrics",
				fmt.Sprintf("metric %q: aggregation %q undefined for %s column %q",
					spec.Name, spec.Aggregation, col.Kind, spec.Column))
		}
	}
	if spec.Aggregation == AggRate && len(spec.Match) == 0 {
		return pipeerrors.MetricError("metrics", fmt.Sprintf("metric %q: rate requires a match predicate", spec.Name))
	}
	if spec.Aggregation == AggPercentile && (spec.Percentile <= 0 || spec.Percentile >= 100) {
		return pipeerrors.MetricError("metrics",
			fmt.Sprintf("metric %q: percentile must be in (0, 100), got %v", spec.Name, spec.Percentile))
	}
	for _, name := range spec.GroupBy {
		if !t.HasColumn(name) {
			return pipeerrors.MetricError("metrics",
				fmt.Sprintf("metric %q groups by unknown column %q", spec.Name, name))
		}
	}
	return nil
}

func filterRows(t *table.Table, filter table.Predicate) ([]int, error) {
	rows := make([]int, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		ok, err := filter.Matches(t.Row(i))
		if err != nil {
			return nil, err
		}
		if ok {
			rows = append(rows, i)
		}
	}
	return rows, nil
}

// groupKey joins the group-by cell values with a unit separator so
// multi-dimension keys stay unambiguous.
func groupKey(r table.Record, by []string) (string, error) {
	parts := make([]string, len(by))
	for i, name := range by {
		if _, ok := r.Get(name); !ok {
			return "", fmt.Errorf("group_by references unknown column %q", name)
		}
		parts[i] = r.String(name)
	}
	return strings.Join(parts, "\x1f"), nil
}

func aggregate(t *table.Table, rows []int, spec Spec) (float64, error) {
	switch spec.Aggregation {
	case AggCount:
		return float64(len(rows)), nil
	case AggRate:
		if len(rows) == 0 {
			return 0, nil
		}
		matched := 0
		for _, i := range rows {
			ok, err := spec.Match.Matches(t.Row(i))
			if err != nil {
				return 0, pipeerrors.MetricError("metrics", fmt.Sprintf("metric %q match: %v", spec.Name, err))
			}
			if ok {
				matched++
			}
		}
		return float64(matched) / float64(len(rows)), nil
	}

	// Null cells are skipped, matching aggregate semantics of the
	// usual dataframe tooling.
	values := make([]float64, 0, len(rows))
	for _, i := range rows {
		if v, ok := t.FloatAt(spec.Column, i); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, nil
	}

	switch spec.Aggregation {
	case AggSum:
		return sum(values), nil
	case AggMean:
		return sum(values) / float64(len(values)), nil
	case AggMin:
		v := values[0]
		for _, x := range values[1:] {
			if x < v {
				v = x
			}
		}
		return v, nil
	case AggMax:
		v := values[0]
		for _, x := range values[1:] {
			if x > v {
				v = x
			}
		}
		return v, nil
	case AggMedian:
		return percentile(values, 50), nil
	case AggPercentile:
		return percentile(values, spec.Percentile), nil
	default:
		return 0, pipeerrors.MetricError("metrics",
			fmt.Sprintf("metric %q: unknown aggregation %q", spec.Name, spec.Aggregation))
	}
}

func sum(values []float64) float64 {
	var s float64
	for _, v := range values {
		s += v
	}
	return s
}

// percentile computes the p-th percentile with linear interpolation
// over a copy of the input.
func percentile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
