package classify

import (
	"context"
	"fmt"
	"log/slog"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/table"
)

// Rule maps a row predicate to a label. Rules are evaluated in order
// and the first match wins, so precedence is the list order.
type Rule struct {
	When  table.Predicate `yaml:"when" validate:"required"`
	Label string          `yaml:"label" validate:"required"`
}

// IncidentClassifier assigns a severity label per row from an ordered
// rule list over ticket attributes (priority, category, age).
type IncidentClassifier struct {
	rules        []Rule
	labelColumn  string
	defaultLabel string
	logger       *slog.Logger
}

// IncidentConfig configures an IncidentClassifier.
type IncidentConfig struct {
	Rules        []Rule `yaml:"rules" validate:"required,min=1,dive"`
	LabelColumn  string `yaml:"label_column"`  // default "severity"
	DefaultLabel string `yaml:"default_label"` // default "normal"
}

// NewIncidentClassifier creates a rule-based severity classifier.
func NewIncidentClassifier(cfg IncidentConfig, logger *slog.Logger) (*IncidentClassifier, error) {
	if len(cfg.Rules) == 0 {
		return nil, pipeerrors.ClassificationError("classify", "incident classifier requires at least one rule")
	}
	if cfg.LabelColumn == "" {
		cfg.LabelColumn = "severity"
	}
	if cfg.DefaultLabel == "" {
		cfg.DefaultLabel = "normal"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IncidentClassifier{
		rules:        cfg.Rules,
		labelColumn:  cfg.LabelColumn,
		defaultLabel: cfg.DefaultLabel,
		logger:       logger,
	}, nil
}

// Name implements Classifier.
func (c *IncidentClassifier) Name() string {
	return "incident"
}

// Classify returns the input rows with the label column appended.
// Rows matching no rule get the default label.
func (c *IncidentClassifier) Classify(ctx context.Context, t *table.Table) (*table.Table, error) {
	if t.HasColumn(c.labelColumn) {
		return nil, pipeerrors.ClassificationError("classify",
			fmt.Sprintf("table already has a %q column", c.labelColumn))
	}

	cols := make([]*table.Column, 0, t.NumColumns()+1)
	for _, col := range t.Columns() {
		cols = append(cols, table.NewColumn(col.Name, col.Kind))
	}
	cols = append(cols, table.NewColumn(c.labelColumn, table.KindString))
	out := table.New(cols...)

	counts := make(map[string]int)
	for i := 0; i < t.NumRows(); i++ {
		rec := t.Row(i)
		label, err := c.labelFor(rec)
		if err != nil {
			return nil, err
		}
		counts[label]++
		if err := out.AppendRow(append(rec.Values(), label)); err != nil {
			return nil, pipeerrors.ClassificationError("classify", err.Error())
		}
	}

	c.logger.InfoContext(ctx, "incident classification completed",
		slog.Int("rows", t.NumRows()),
		slog.Any("label_counts", counts))
	return out, nil
}

func (c *IncidentClassifier) labelFor(rec table.Record) (string, error) {
	for _, rule := range c.rules {
		ok, err := rule.When.Matches(rec)
		if err != nil {
			return "", pipeerrors.ClassificationError("classify", fmt.Sprintf("rule %q: %v", rule.Label, err))
		}
		if ok {
			return rule.Label, nil
		}
	}
	return c.defaultLabel, nil
}
