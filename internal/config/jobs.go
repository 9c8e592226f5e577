package config

import (
	"fmt"
	"log/slog"
	"time"

	"reportcli/internal/classify"
	"reportcli/internal/cleaner"
	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/loader"
	"reportcli/internal/metrics"
	"reportcli/internal/report"
)

// JobConfig declares one pipeline job: where the data comes from, how
// it is cleaned and classified, which metrics to compute and what to
// export.
type JobConfig struct {
	Name     string            `yaml:"name" validate:"required"`
	Source   loader.Source     `yaml:"source" validate:"required"`
	Clean    cleaner.Rules     `yaml:"clean"`
	Classify *ClassifierConfig `yaml:"classify"`
	Metrics  []metrics.Spec    `yaml:"metrics" validate:"dive"`
	Report   report.Layout     `yaml:"report"`
	Output   OutputConfig      `yaml:"output"`
	Schedule *ScheduleConfig   `yaml:"schedule"`
}

// OutputConfig declares where a job writes its results. The report
// format follows the file extension (.xlsx, .pdf or .csv).
type OutputConfig struct {
	Report    string `yaml:"report"`
	CleanData string `yaml:"clean_data"` // optional CSV dump of the cleaned table
}

// ScheduleConfig declares when a job runs unattended. Exactly one of
// Every and DailyAt must be set.
type ScheduleConfig struct {
	Every   Duration `yaml:"every"`    // fixed interval
	DailyAt string   `yaml:"daily_at"` // wall-clock time, "15:04", UTC
}

// ClassifierConfig selects and configures the classifier a job applies
// to its cleaned table. Exactly one variant must be set.
type ClassifierConfig struct {
	Incident   *classify.IncidentConfig `yaml:"incident"`
	LogAnomaly *AnomalyOptions          `yaml:"log_anomaly"`
	RFM        *RFMOptions              `yaml:"rfm"`
}

// AnomalyOptions mirrors classify.AnomalyConfig with YAML-friendly
// field types.
type AnomalyOptions struct {
	TimestampColumn string   `yaml:"timestamp_column" validate:"required"`
	Interval        Duration `yaml:"interval"`
	Window          int      `yaml:"window"`
	StdMultiplier   float64  `yaml:"std_multiplier"`
}

// RFMOptions mirrors classify.RFMConfig with YAML-friendly field types.
type RFMOptions struct {
	CustomerColumn string `yaml:"customer_column" validate:"required"`
	DateColumn     string `yaml:"date_column" validate:"required"`
	ValueColumn    string `yaml:"value_column" validate:"required"`
	ReferenceDate  Date   `yaml:"reference_date"`
}

// Build constructs the configured classifier.
func (c *ClassifierConfig) Build(logger *slog.Logger) (classify.Classifier, error) {
	switch {
	case c.Incident != nil:
		return classify.NewIncidentClassifier(*c.Incident, logger)
	case c.LogAnomaly != nil:
		return classify.NewLogAnomalyDetector(classify.AnomalyConfig{
			TimestampColumn: c.LogAnomaly.TimestampColumn,
			Interval:        time.Duration(c.LogAnomaly.Interval),
			Window:          c.LogAnomaly.Window,
			StdMultiplier:   c.LogAnomaly.StdMultiplier,
		}, logger)
	case c.RFM != nil:
		return classify.NewRFMSegmenter(classify.RFMConfig{
			CustomerColumn: c.RFM.CustomerColumn,
			DateColumn:     c.RFM.DateColumn,
			ValueColumn:    c.RFM.ValueColumn,
			ReferenceDate:  time.Time(c.RFM.ReferenceDate),
		}, logger)
	default:
		return nil, pipeerrors.ConfigError("config", "classify block sets no classifier", nil)
	}
}

// check enforces the cross-field rules validator tags cannot express.
func (j *JobConfig) check() error {
	if j.Classify != nil {
		set := 0
		if j.Classify.Incident != nil {
			set++
		}
		if j.Classify.LogAnomaly != nil {
			set++
		}
		if j.Classify.RFM != nil {
			set++
		}
		if set != 1 {
			return pipeerrors.ConfigError("config",
				fmt.Sprintf("job %q must set exactly one classifier, has %d", j.Name, set), nil)
		}
	}

	if j.Output.Report != "" {
		if _, err := report.FormatForPath(j.Output.Report); err != nil {
			return pipeerrors.ConfigError("config",
				fmt.Sprintf("job %q report output %q", j.Name, j.Output.Report), err)
		}
	}

	if s := j.Schedule; s != nil {
		if (s.Every == 0) == (s.DailyAt == "") {
			return pipeerrors.ConfigError("config",
				fmt.Sprintf("job %q schedule must set exactly one of every and daily_at", j.Name), nil)
		}
		if s.DailyAt != "" {
			if _, err := time.Parse("15:04", s.DailyAt); err != nil {
				return pipeerrors.ConfigError("config",
					fmt.Sprintf("job %q has invalid daily_at %q", j.Name, s.DailyAt), err)
			}
		}
	}
	return nil
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "90s" or "1h30m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler so the type also
// decodes from environment variables.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Date is a time.Time that unmarshals from YAML "2006-01-02" or RFC
// 3339 strings, interpreted as UTC.
type Date time.Time

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Date) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			*d = Date(parsed)
			return nil
		}
	}
	return fmt.Errorf("invalid date %q", raw)
}
