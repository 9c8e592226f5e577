// Package report turns computed metrics and classifications into a
// structured document and exports it as Excel (with native charts),
// PDF or CSV. Reports live for one pipeline run: rendered, exported,
// discarded.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	pipeerrors "reportcli/internal/errors"
	"reportcli/internal/metrics"
	"reportcli/internal/table"
)

// ChartKind selects the chart drawn for a chart section.
type ChartKind string

const (
	ChartBar  ChartKind = "bar"
	ChartLine ChartKind = "line"
	ChartPie  ChartKind = "pie"
)

// SectionType identifies what a report section holds.
type SectionType string

const (
	SectionKPIs  SectionType = "kpis"
	SectionChart SectionType = "chart"
	SectionTable SectionType = "table"
)

// SectionConfig declares one section of the report layout.
type SectionConfig struct {
	Title   string      `yaml:"title" validate:"required"`
	Type    SectionType `yaml:"type" validate:"required,oneof=kpis chart table"`
	Metrics []string    `yaml:"metrics"`  // kpis: scalar metrics to list; empty lists all
	Metric  string      `yaml:"metric"`   // chart: grouped metric to plot
	Chart   ChartKind   `yaml:"chart"`    // chart: defaults to bar
	Table   string      `yaml:"table"`    // table: name of the table to excerpt
	MaxRows int         `yaml:"max_rows"` // table: 0 means all rows
}

// Layout declares the whole report.
type Layout struct {
	Title    string          `yaml:"title"`
	Sections []SectionConfig `yaml:"sections" validate:"dive"`
}

// KPI is one named value row of a KPI section.
type KPI struct {
	Name  string
	Value float64
}

// Section is a rendered report section.
type Section struct {
	Title      string
	Type       SectionType
	Chart      ChartKind
	KPIs       []KPI
	Categories []string
	Values     []float64
	Table      *table.Table
	MaxRows    int
}

// Report is an ordered sequence of rendered sections.
type Report struct {
	Title       string
	RunID       string
	GeneratedAt time.Time
	Sections    []Section
}

// Renderer builds reports from pipeline outputs.
type Renderer struct {
	logger *slog.Logger
}

// NewRenderer creates a renderer. A nil logger falls back to
// slog.Default.
func NewRenderer(logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{logger: logger}
}

// Render assembles the report sections declared by the layout from the
// computed metrics and classification tables.
func (r *Renderer) Render(ctx context.Context, runID string, computed map[string]metrics.Metric, tables map[string]*table.Table, layout Layout) (*Report, error) {
	rep := &Report{
		Title:       layout.Title,
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
	}
	if rep.Title == "" {
		rep.Title = "Report"
	}

	for _, cfg := range layout.Sections {
		section, err := renderSection(cfg, computed, tables)
		if err != nil {
			return nil, err
		}
		rep.Sections = append(rep.Sections, section)
	}

	r.logger.InfoContext(ctx, "report rendered",
		slog.String("title", rep.Title),
		slog.Int("sections", len(rep.Sections)))
	return rep, nil
}

func renderSection(cfg SectionConfig, computed map[string]metrics.Metric, tables map[string]*table.Table) (Section, error) {
	section := Section{Title: cfg.Title, Type: cfg.Type}

	switch cfg.Type {
	case SectionKPIs:
		names := cfg.Metrics
		if len(names) == 0 {
			for name, m := range computed {
				if !m.IsGrouped() {
					names = append(names, name)
				}
			}
			sort.Strings(names)
		}
		for _, name := range names {
			m, ok := computed[name]
			if !ok {
				return Section{}, pipeerrors.ConfigError("report",
					fmt.Sprintf("section %q references unknown metric %q", cfg.Title, name), nil)
			}
			if m.IsGrouped() {
				return Section{}, pipeerrors.ConfigError("report",
					fmt.Sprintf("section %q lists grouped metric %q as a KPI", cfg.Title, name), nil)
			}
			section.KPIs = append(section.KPIs, KPI{Name: name, Value: m.Value})
		}

	case SectionChart:
		m, ok := computed[cfg.Metric]
		if !ok {
			return Section{}, pipeerrors.ConfigError("report",
				fmt.Sprintf("section %q references unknown metric %q", cfg.Title, cfg.Metric), nil)
		}
		if !m.IsGrouped() {
			return Section{}, pipeerrors.ConfigError("report",
				fmt.Sprintf("section %q charts scalar metric %q; charts need a grouped metric", cfg.Title, cfg.Metric), nil)
		}
		section.Chart = cfg.Chart
		if section.Chart == "" {
			section.Chart = ChartBar
		}
		for _, key := range m.GroupKeys() {
			section.Categories = append(section.Categories, key)
			section.Values = append(section.Values, m.Groups[key])
		}

	case SectionTable:
		t, ok := tables[cfg.Table]
		if !ok {
			return Section{}, pipeerrors.ConfigError("report",
				fmt.Sprintf("section %q references unknown table %q", cfg.Title, cfg.Table), nil)
		}
		section.Table = t
		section.MaxRows = cfg.MaxRows

	default:
		return Section{}, pipeerrors.ConfigError("report",
			fmt.Sprintf("section %q has unknown type %q", cfg.Title, cfg.Type), nil)
	}

	return section, nil
}

// tableRowLimit returns how many rows of a table section to emit.
func (s Section) tableRowLimit() int {
	if s.MaxRows > 0 && s.MaxRows < s.Table.NumRows() {
		return s.MaxRows
	}
	return s.Table.NumRows()
}
