package cleaner

import (
	"fmt"
	"math"
	"sort"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

// filterOutliers drops rows whose value in the rule's column falls
// outside the bounds derived from the column's own distribution. The
// bounds are re-derived from the surviving rows and the pass repeats
// until no row drops, so the output is a fixed point of the rule and a
// second application changes nothing. Null cells are never treated as
// outliers.
func filterOutliers(t *table.Table, rule OutlierRule) (*table.Table, error) {
	col, ok := t.Column(rule.Column)
	if !ok {
		return nil, pipeerrors.ConfigError("cleaner",
			fmt.Sprintf("filter_outliers references unknown column %q", rule.Column), nil)
	}
	if !col.Kind.IsNumeric() {
		return nil, pipeerrors.ConfigError("cleaner",
			fmt.Sprintf("filter_outliers column %q is not numeric", rule.Column), nil)
	}

	for {
		out, err := outlierPass(t, rule)
		if err != nil {
			return nil, err
		}
		if out.NumRows() == t.NumRows() {
			return out, nil
		}
		t = out
	}
}

// outlierPass applies one round of the rule with bounds computed from
// the rows currently in t. Every pass either drops at least one row or
// returns t unchanged, so the caller's loop terminates.
func outlierPass(t *table.Table, rule OutlierRule) (*table.Table, error) {
	values := make([]float64, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		if v, ok := t.FloatAt(rule.Column, i); ok {
			values = append(values, v)
		}
	}
	if len(values) < 2 {
		return t, nil
	}

	var lo, hi float64
	switch rule.Method {
	case OutlierZScore:
		k := rule.Threshold
		if k <= 0 {
			k = 3.0
		}
		mean, std := meanStd(values)
		if std == 0 {
			return t, nil
		}
		lo, hi = mean-k*std, mean+k*std
	case OutlierIQR:
		k := rule.Threshold
		if k <= 0 {
			k = 1.5
		}
		q1 := quantile(values, 0.25)
		q3 := quantile(values, 0.75)
		iqr := q3 - q1
		lo, hi = q1-k*iqr, q3+k*iqr
	default:
		return nil, pipeerrors.ConfigError("cleaner",
			fmt.Sprintf("unknown outlier method %q", rule.Method), nil)
	}

	return t.Filter(func(r table.Record) bool {
		v, ok := r.Float(rule.Column)
		if !ok {
			return true
		}
		return v >= lo && v <= hi
	}), nil
}

func meanStd(values []float64) (mean, std float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

// quantile computes the q-th quantile with linear interpolation over a
// copy of the input.
func quantile(values []float64, q float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
