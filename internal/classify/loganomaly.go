package classify

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

const (
	LabelNormal    = "normal"
	LabelAnomalous = "anomalous"
)

// LogAnomalyDetector flags intervals whose log volume deviates from
// recent history. Volume per interval is compared against
// mean + k*std computed over a rolling window of preceding intervals
// (or over the whole series when Window is zero). The threshold is
// closed-open: a count exactly at the threshold is normal.
type LogAnomalyDetector struct {
	timestampColumn string
	interval        time.Duration
	window          int
	stdMultiplier   float64
	logger          *slog.Logger
}

// AnomalyConfig configures a LogAnomalyDetector.
type AnomalyConfig struct {
	TimestampColumn string        `yaml:"timestamp_column" validate:"required"`
	Interval        time.Duration `yaml:"interval"`       // default 1h
	Window          int           `yaml:"window"`         // preceding intervals; 0 = whole series
	StdMultiplier   float64       `yaml:"std_multiplier"` // default 2.0
}

// NewLogAnomalyDetector creates a volume anomaly detector.
func NewLogAnomalyDetector(cfg AnomalyConfig, logger *slog.Logger) (*LogAnomalyDetector, error) {
	if cfg.TimestampColumn == "" {
		return nil, pipeerrors.ClassificationError("classify", "anomaly detector requires a timestamp column")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.StdMultiplier <= 0 {
		cfg.StdMultiplier = 2.0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAnomalyDetector{
		timestampColumn: cfg.TimestampColumn,
		interval:        cfg.Interval,
		window:          cfg.Window,
		stdMultiplier:   cfg.StdMultiplier,
		logger:          logger,
	}, nil
}

// Name implements Classifier.
func (d *LogAnomalyDetector) Name() string {
	return "log_anomaly"
}

// Classify buckets rows into intervals and returns one row per
// interval: interval start, volume, threshold and label.
func (d *LogAnomalyDetector) Classify(ctx context.Context, t *table.Table) (*table.Table, error) {
	col, ok := t.Column(d.timestampColumn)
	if !ok {
		return nil, pipeerrors.ClassificationError("classify",
			fmt.Sprintf("timestamp column %q not found", d.timestampColumn))
	}
	if col.Kind != table.KindTime {
		return nil, pipeerrors.ClassificationError("classify",
			fmt.Sprintf("timestamp column %q has kind %s, want time", d.timestampColumn, col.Kind))
	}

	counts := make(map[time.Time]int)
	for i := 0; i < t.NumRows(); i++ {
		ts, ok := t.Row(i).Time(d.timestampColumn)
		if !ok {
			continue // null timestamps carry no volume
		}
		counts[ts.Truncate(d.interval)]++
	}

	buckets := make([]time.Time, 0, len(counts))
	for b := range counts {
		buckets = append(buckets, b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Before(buckets[j]) })

	series := make([]float64, len(buckets))
	for i, b := range buckets {
		series[i] = float64(counts[b])
	}

	out := table.New(
		table.NewColumn("interval", table.KindTime),
		table.NewColumn("volume", table.KindInt),
		table.NewColumn("threshold", table.KindFloat),
		table.NewColumn("label", table.KindString),
	)

	anomalies := 0
	for i, b := range buckets {
		threshold := d.thresholdAt(series, i)
		label := LabelNormal
		// Strictly above the threshold; the boundary itself is normal.
		if series[i] > threshold {
			label = LabelAnomalous
			anomalies++
		}
		if err := out.AppendRow([]any{b, int64(counts[b]), threshold, label}); err != nil {
			return nil, pipeerrors.ClassificationError("classify", err.Error())
		}
	}

	d.logger.InfoContext(ctx, "log anomaly detection completed",
		slog.Int("intervals", len(buckets)),
		slog.Int("anomalies", anomalies),
		slog.Duration("interval", d.interval))
	return out, nil
}

// thresholdAt computes mean + k*std over the detector's window for
// position i. With Window == 0 the whole series is the baseline; a
// windowed detector uses the preceding Window intervals and reports
// +Inf while the window has not filled yet, so startup intervals never
// alert.
func (d *LogAnomalyDetector) thresholdAt(series []float64, i int) float64 {
	baseline := series
	if d.window > 0 {
		if i < d.window {
			return math.Inf(1)
		}
		baseline = series[i-d.window : i]
	}
	mean, std := meanStd(baseline)
	return mean + d.stdMultiplier*std
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		dev := v - mean
		variance += dev * dev
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}
