package pipeline

import (
	"context"
	"fmt"

	"reportcli/internal/classify"
	"reportcli/internal/cleaner"
	"reportcli/internal/loader"
	"reportcli/internal/metrics"
	"reportcli/internal/report"
)

// Stage is one step of a pipeline run. Stages execute sequentially and
// communicate through the run's artifacts.
type Stage interface {
	// ID returns the stable identifier for this stage.
	ID() string

	// Name returns the human-readable name for this stage.
	Name() string

	// Run executes the stage against the run's current artifacts.
	Run(ctx context.Context, run *Run) error
}

// loadStage reads the job source into the working table.
type loadStage struct {
	loader *loader.Loader
	src    loader.Source
}

func (s *loadStage) ID() string   { return "load" }
func (s *loadStage) Name() string { return "Load source" }

func (s *loadStage) Run(ctx context.Context, run *Run) error {
	t, err := s.loader.Load(ctx, s.src)
	if err != nil {
		return err
	}
	run.SetWorking(t)
	return nil
}

// cleanStage applies the job's cleaning rules to the working table and
// publishes the result as the "clean" table.
type cleanStage struct {
	cleaner *cleaner.Cleaner
	rules   cleaner.Rules
}

func (s *cleanStage) ID() string   { return "clean" }
func (s *cleanStage) Name() string { return "Clean data" }

func (s *cleanStage) Run(ctx context.Context, run *Run) error {
	cleaned, rep, err := s.cleaner.Clean(ctx, run.Working(), s.rules)
	if err != nil {
		return err
	}
	run.SetWorking(cleaned)
	run.SetCleanReport(rep)
	run.SetTable("clean", cleaned)
	return nil
}

// classifyStage runs the configured classifier over the cleaned table
// and publishes the output under the classifier's name.
type classifyStage struct {
	classifier classify.Classifier
}

func (s *classifyStage) ID() string   { return "classify" }
func (s *classifyStage) Name() string { return fmt.Sprintf("Classify (%s)", s.classifier.Name()) }

func (s *classifyStage) Run(ctx context.Context, run *Run) error {
	out, err := s.classifier.Classify(ctx, run.Working())
	if err != nil {
		return err
	}
	run.SetTable(s.classifier.Name(), out)
	return nil
}

// metricsStage computes the job's metric specs over the cleaned table.
type metricsStage struct {
	engine *metrics.Engine
	specs  []metrics.Spec
}

func (s *metricsStage) ID() string   { return "metrics" }
func (s *metricsStage) Name() string { return "Compute metrics" }

func (s *metricsStage) Run(ctx context.Context, run *Run) error {
	computed, err := s.engine.Compute(ctx, run.Working(), s.specs)
	if err != nil {
		return err
	}
	run.SetComputed(computed)
	return nil
}

// exportStage renders the report and writes the configured outputs.
type exportStage struct {
	renderer   *report.Renderer
	layout     report.Layout
	reportPath string
	cleanPath  string
}

func (s *exportStage) ID() string   { return "export" }
func (s *exportStage) Name() string { return "Export report" }

func (s *exportStage) Run(ctx context.Context, run *Run) error {
	if s.cleanPath != "" {
		clean, ok := run.Table("clean")
		if ok {
			if err := report.WriteTableCSV(ctx, clean, s.cleanPath); err != nil {
				return err
			}
		}
	}

	if s.reportPath == "" {
		return nil
	}

	format, err := report.FormatForPath(s.reportPath)
	if err != nil {
		return err
	}
	rep, err := s.renderer.Render(ctx, run.ID, run.Computed(), run.Tables(), s.layout)
	if err != nil {
		return err
	}
	if err := report.Export(ctx, rep, s.reportPath, format); err != nil {
		return err
	}
	run.SetReportPath(s.reportPath)
	return nil
}
